// Package manifest implements the on-disk download journal (C3): its JSON
// shape, strict decoding, resume planning from observed part files, and the
// compatibility check that decides whether a manifest may be resumed by a
// given job.
//
// Grounded on original_source/romm/manifest.hpp and source/manifest.cpp.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/shalasere/romm-switch-client/pkg/errs"
)

// Part is one on-disk fragment of an in-progress download.
type Part struct {
	Index    int    `json:"index"`
	Size     int64  `json:"size"`
	Sha256   string `json:"sha256,omitempty"`
	Done     bool   `json:"done,omitempty"`
}

// Manifest is the journal written alongside parts in the temp directory.
type Manifest struct {
	RommId        string `json:"romm_id"`
	FileId        string `json:"file_id"`
	FsName        string `json:"fs_name"`
	Url           string `json:"url"`
	TotalSize     int64  `json:"total_size"`
	PartSize      int64  `json:"part_size"`
	Parts         []Part `json:"parts"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// wireManifest mirrors Manifest's JSON shape but with pointer scalars so
// Decode can tell "absent" apart from "zero value" for strict validation.
type wireManifest struct {
	RommId        *string `json:"romm_id"`
	FileId        *string `json:"file_id"`
	FsName        *string `json:"fs_name"`
	Url           *string `json:"url"`
	TotalSize     *int64  `json:"total_size"`
	PartSize      *int64  `json:"part_size"`
	Parts         []Part  `json:"parts"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// Encode serializes the manifest to its compact JSON form.
func Encode(m Manifest) ([]byte, error) {
	return json.Marshal(m)
}

// Decode strictly parses manifest JSON: the six top-level scalars
// (romm_id, file_id, fs_name, url, total_size, part_size) are required,
// and parts must be an array of objects (possibly empty).
func Decode(data []byte) (Manifest, error) {
	var w wireManifest
	if err := json.Unmarshal(data, &w); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", errs.ErrManifestInvalid, err)
	}
	if w.RommId == nil || w.FileId == nil || w.FsName == nil || w.Url == nil || w.TotalSize == nil || w.PartSize == nil {
		return Manifest{}, errs.ErrManifestInvalid
	}
	if w.Parts == nil {
		w.Parts = []Part{}
	}
	return Manifest{
		RommId:        *w.RommId,
		FileId:        *w.FileId,
		FsName:        *w.FsName,
		Url:           *w.Url,
		TotalSize:     *w.TotalSize,
		PartSize:      *w.PartSize,
		Parts:         w.Parts,
		FailureReason: w.FailureReason,
	}, nil
}

// Validate checks the invariants in §3/§8: parts are contiguous from 0,
// sizes sum to TotalSize, every intermediate part equals PartSize, and the
// last part is no larger than PartSize.
func Validate(m Manifest) error {
	var sum int64
	for i, p := range m.Parts {
		if p.Index != i {
			return fmt.Errorf("%w: part %d has index %d", errs.ErrManifestInvalid, i, p.Index)
		}
		if p.Size > m.PartSize {
			return fmt.Errorf("%w: part %d size %d exceeds part_size %d", errs.ErrManifestInvalid, i, p.Size, m.PartSize)
		}
		if i < len(m.Parts)-1 && p.Size != m.PartSize {
			return fmt.Errorf("%w: intermediate part %d size %d != part_size %d", errs.ErrManifestInvalid, i, p.Size, m.PartSize)
		}
		sum += p.Size
	}
	if sum != m.TotalSize {
		return fmt.Errorf("%w: parts sum to %d, total_size is %d", errs.ErrManifestInvalid, sum, m.TotalSize)
	}
	return nil
}

// Compatible reports whether m may be used to resume the given job. Total
// size and part size must match; rom id must match when both present; file
// id must match when both present; URL is only compared when neither a rom
// id nor a file id was available on both sides (see §4.3).
func Compatible(m Manifest, romId, fileId, url string, totalSize, partSize int64) bool {
	if m.TotalSize != 0 && totalSize != 0 && m.TotalSize != totalSize {
		return false
	}
	if m.PartSize != 0 && partSize != 0 && m.PartSize != partSize {
		return false
	}
	if m.RommId != "" && romId != "" && m.RommId != romId {
		return false
	}
	if m.FileId != "" && fileId != "" && m.FileId != fileId {
		return false
	}
	hasStrongId := (m.RommId != "" && romId != "") || (m.FileId != "" && fileId != "")
	if !hasStrongId {
		if m.Url != "" && url != "" && m.Url != url {
			return false
		}
	}
	return true
}
