// Package planner implements the platform-preference-driven file planner
// (C4): given a Game and a PlatformPrefs record, it produces an ordered
// DownloadBundle of the files the downloader should actually fetch.
//
// Grounded on original_source/romm/planner.cpp's buildBundleFromGame.
package planner

import (
	"path"
	"sort"
	"strings"

	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/model"
)

const avoidPenalty = -1000
const discExtBonus = 50

// Build runs §4.4's steps 1-3 and the mode-specific selection and returns
// the resulting bundle. If no files survive filtering, it returns
// errs.ErrNoValidFiles so the caller can surface a Data/InvalidData error
// at enqueue time.
func Build(g model.Game, prefs model.PlatformPrefs) (model.DownloadBundle, error) {
	files := candidateFiles(g)

	pref, hasPref := prefs.BySlug[g.PlatformSlug]
	mode := prefs.DefaultMode
	if hasPref && pref.Mode != "" {
		mode = pref.Mode
	}
	if mode == "" {
		mode = model.ModeBundleBest
	}

	ignoreExt := dedupAppend(prefs.DefaultIgnoreExt, pref.IgnoreExt)
	files = filterIgnored(files, ignoreExt)
	if len(files) == 0 {
		return model.DownloadBundle{}, errs.ErrNoValidFiles
	}

	preferExt := pref.PreferExt
	avoidTokens := pref.AvoidNameTokens

	var chosen []model.RomFile
	switch mode {
	case model.ModeSingleBest:
		chosen = []model.RomFile{pickSingleBest(files, preferExt, avoidTokens)}
	case model.ModeAllFiles:
		chosen = files
	default: // bundle_best
		chosen = pickBundleBest(files, preferExt, avoidTokens)
	}
	if len(chosen) == 0 {
		return model.DownloadBundle{}, errs.ErrNoValidFiles
	}

	specs := make([]model.DownloadFileSpec, 0, len(chosen))
	for _, f := range chosen {
		specs = append(specs, model.DownloadFileSpec{
			FileId:       f.Id,
			Name:         f.Name,
			Url:          f.Url,
			SizeBytes:    f.Size,
			RelativePath: f.RelativePath,
			Category:     f.Category,
		})
	}

	return model.DownloadBundle{
		RomId:        g.Id,
		Title:        g.Title,
		PlatformSlug: g.PlatformSlug,
		Mode:         mode,
		Files:        specs,
	}, nil
}

// candidateFiles implements step 1: keep files in category {"", "game"};
// if the result is empty and the Game carries a legacy top-level download
// URL, synthesize a single RomFile from it.
func candidateFiles(g model.Game) []model.RomFile {
	var out []model.RomFile
	for _, f := range g.Files {
		if f.Category == "" || f.Category == "game" {
			out = append(out, f)
		}
	}
	if len(out) == 0 && g.DownloadUrl != "" {
		out = append(out, model.RomFile{
			Id:   g.PreferredFileId,
			Name: g.PreferredFileName,
			Url:  g.DownloadUrl,
			Size: g.TotalSize,
		})
	}
	return out
}

func filterIgnored(files []model.RomFile, ignoreExt []string) []model.RomFile {
	if len(ignoreExt) == 0 {
		return files
	}
	var out []model.RomFile
	for _, f := range files {
		if hasAnyExt(f.Name, ignoreExt) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func hasAnyExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, e := range exts {
		if strings.HasSuffix(lower, strings.ToLower(e)) {
			return true
		}
	}
	return false
}

func dedupAppend(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		k := strings.ToLower(s)
		if !seen[k] {
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}

// extScore returns a file's score from prefer-ext position (earlier scores
// higher) plus an avoid-name-tokens penalty.
func extScore(f model.RomFile, preferExt, avoidTokens []string) int {
	score := 0
	lowerName := strings.ToLower(f.Name)
	ext := strings.ToLower(path.Ext(f.Name))
	for i, pe := range preferExt {
		if strings.ToLower(pe) == ext {
			score += len(preferExt) - i
			break
		}
	}
	for _, tok := range avoidTokens {
		if tok != "" && strings.Contains(lowerName, strings.ToLower(tok)) {
			score += avoidPenalty
		}
	}
	return score
}

func pickSingleBest(files []model.RomFile, preferExt, avoidTokens []string) model.RomFile {
	best := files[0]
	bestScore := extScore(best, preferExt, avoidTokens)
	for _, f := range files[1:] {
		s := extScore(f, preferExt, avoidTokens)
		if s > bestScore || (s == bestScore && f.Size > best.Size) {
			best, bestScore = f, s
		}
	}
	return best
}

// pickBundleBest groups files by lowercased parent directory, scores each
// group by its best per-file score (with a bonus for disc-index files),
// and returns every file in the winning group.
func pickBundleBest(files []model.RomFile, preferExt, avoidTokens []string) []model.RomFile {
	groups := make(map[string][]model.RomFile)
	var order []string
	for _, f := range files {
		dir := strings.ToLower(path.Dir(f.RelativePath))
		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}
		groups[dir] = append(groups[dir], f)
	}

	type scored struct {
		dir   string
		score int
		size  int64
	}
	var best *scored
	for _, dir := range order {
		members := groups[dir]
		groupScore := extScore(members[0], preferExt, avoidTokens)
		var groupSize int64
		for _, f := range members {
			s := extScore(f, preferExt, avoidTokens)
			if isDiscAuxExt(f.Name) {
				s += discExtBonus
			}
			if s > groupScore {
				groupScore = s
			}
			groupSize += f.Size
		}
		cand := scored{dir, groupScore, groupSize}
		if best == nil || cand.score > best.score || (cand.score == best.score && cand.size > best.size) {
			best = &cand
		}
	}
	if best == nil {
		return nil
	}
	result := append([]model.RomFile{}, groups[best.dir]...)
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func isDiscAuxExt(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".cue") || strings.HasSuffix(lower, ".gdi") || strings.HasSuffix(lower, ".m3u")
}
