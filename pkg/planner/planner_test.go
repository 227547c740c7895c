package planner

import (
	"testing"

	"github.com/shalasere/romm-switch-client/pkg/model"
)

func TestBuildSingleBestPrefersExtAndAvoidsTokens(t *testing.T) {
	g := model.Game{Id: "1", Title: "Game", PlatformSlug: "n64", Files: []model.RomFile{
		{Id: "a", Name: "game (proto).z64", Url: "http://x/a", Size: 100},
		{Id: "b", Name: "game.n64", Url: "http://x/b", Size: 90},
	}}
	prefs := model.PlatformPrefs{
		DefaultMode: model.ModeSingleBest,
		BySlug: map[string]model.PlatformPref{
			"n64": {PreferExt: []string{".n64", ".z64"}, AvoidNameTokens: []string{"proto"}},
		},
	}
	bundle, err := Build(g, prefs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.Files) != 1 || bundle.Files[0].FileId != "b" {
		t.Fatalf("expected file b chosen, got %+v", bundle.Files)
	}
}

func TestBuildBundleBestGroupsByDirectory(t *testing.T) {
	g := model.Game{Id: "1", Title: "Disc Game", PlatformSlug: "psx", Files: []model.RomFile{
		{Id: "a", Name: "disc1.bin", RelativePath: "disc1/disc1.bin", Url: "http://x/a", Size: 500},
		{Id: "b", Name: "disc1.cue", RelativePath: "disc1/disc1.cue", Url: "http://x/b", Size: 1},
		{Id: "c", Name: "disc2.bin", RelativePath: "disc2/disc2.bin", Url: "http://x/c", Size: 400},
	}}
	prefs := model.PlatformPrefs{DefaultMode: model.ModeBundleBest}
	bundle, err := Build(g, prefs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.Files) != 2 {
		t.Fatalf("expected disc1 group (2 files), got %+v", bundle.Files)
	}
}

func TestBuildAllFiles(t *testing.T) {
	g := model.Game{Id: "1", Title: "G", Files: []model.RomFile{
		{Id: "a", Name: "a.bin", Url: "http://x/a", Size: 1},
		{Id: "b", Name: "b.bin", Url: "http://x/b", Size: 1},
	}}
	prefs := model.PlatformPrefs{DefaultMode: model.ModeAllFiles}
	bundle, err := Build(g, prefs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.Files) != 2 {
		t.Fatalf("expected all 2 files, got %d", len(bundle.Files))
	}
}

func TestBuildEmptyReturnsError(t *testing.T) {
	g := model.Game{Id: "1", Title: "G"}
	prefs := model.DefaultPlatformPrefs()
	if _, err := Build(g, prefs); err == nil {
		t.Fatalf("expected error for game with no files")
	}
}

func TestBuildSynthesizesLegacySingleFile(t *testing.T) {
	g := model.Game{Id: "1", Title: "G", PreferredFileId: "f1", PreferredFileName: "g.nsp", DownloadUrl: "http://x/g", TotalSize: 123}
	prefs := model.DefaultPlatformPrefs()
	bundle, err := Build(g, prefs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.Files) != 1 || bundle.Files[0].SizeBytes != 123 {
		t.Fatalf("expected synthesized single file, got %+v", bundle.Files)
	}
}
