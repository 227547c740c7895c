// Package model holds the catalog and planning data types shared by the
// planner, downloader, and queue packages: Game/RomFile as fetched from the
// catalog server, and DownloadFileSpec/DownloadBundle as produced by the
// planner for the downloader to consume.
package model

// Game is one catalog entry. It is immutable once enriched with Files by
// the API facade (pkg/api).
type Game struct {
	Id                string    `json:"id"`
	Title             string    `json:"title"`
	PlatformId        string    `json:"platform_id"`
	PlatformSlug      string    `json:"platform_slug"`
	PreferredFileName string    `json:"preferred_file_name"`
	PreferredFileId   string    `json:"preferred_file_id"`
	CoverUrl          string    `json:"cover_url,omitempty"`
	TotalSize         int64     `json:"total_size"`
	Files             []RomFile `json:"files,omitempty"`

	// DownloadUrl, together with PreferredFileId, PreferredFileName and
	// TotalSize, mirrors a legacy single-file entry. These are used by the
	// planner's synthesis step (§4.4 step 1) when Files is empty, and by the
	// queue snapshot's legacy-bundle fallback (§4.7).
	DownloadUrl string `json:"download_url,omitempty"`
}

// RomFile is a child artifact of a Game. All four of {Id, Name, Size>0, Url}
// must be non-empty for any file the downloader may consume.
type RomFile struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	RelativePath string `json:"relative_path,omitempty"`
	Url          string `json:"url"`
	Size         int64  `json:"size"`
	Category     string `json:"category,omitempty"` // "game" | "dlc" | "update" | ""
}

// DownloadFileSpec is the planner's output for one file to actually fetch.
type DownloadFileSpec struct {
	FileId       string `json:"file_id"`
	Name         string `json:"name"`
	Url          string `json:"url"`
	SizeBytes    int64  `json:"size_bytes"`
	RelativePath string `json:"relative_path,omitempty"`
	Category     string `json:"category,omitempty"`
}

// BundleMode selects which files of a multi-file Game the planner keeps.
type BundleMode string

const (
	ModeSingleBest BundleMode = "single_best"
	ModeBundleBest BundleMode = "bundle_best"
	ModeAllFiles   BundleMode = "all_files"
)

// DownloadBundle is an ordered, non-empty sequence of DownloadFileSpec the
// downloader processes one at a time.
type DownloadBundle struct {
	RomId        string             `json:"rom_id"`
	Title        string             `json:"title"`
	PlatformSlug string             `json:"platform_slug"`
	Mode         BundleMode         `json:"mode"`
	Files        []DownloadFileSpec `json:"files"`
}

// TotalSize returns the sum of every file's size in the bundle.
func (b DownloadBundle) TotalSize() int64 {
	var total int64
	for _, f := range b.Files {
		total += f.SizeBytes
	}
	return total
}

// PlatformPref is the per-platform override of the default planning mode.
type PlatformPref struct {
	Mode             BundleMode `json:"mode,omitempty"`
	PreferExt        []string   `json:"prefer_ext,omitempty"`
	IgnoreExt        []string   `json:"ignore_ext,omitempty"`
	AvoidNameTokens  []string   `json:"avoid_name_tokens,omitempty"`
}

// PlatformPrefs is the root preference record consumed by the planner.
type PlatformPrefs struct {
	Version        int                     `json:"version"`
	DefaultMode    BundleMode              `json:"default_mode"`
	DefaultIgnoreExt []string              `json:"default_ignore_ext,omitempty"`
	BySlug         map[string]PlatformPref `json:"by_slug,omitempty"`
}

// DefaultPlatformPrefs returns the zero-value preference record: bundle_best
// mode and no per-platform overrides, matching original_source's default.
func DefaultPlatformPrefs() PlatformPrefs {
	return PlatformPrefs{
		Version:     1,
		DefaultMode: ModeBundleBest,
		BySlug:      make(map[string]PlatformPref),
	}
}
