package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/model"
)

type wireRomFile struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	RelativePath string `json:"relative_path"`
	Url          string `json:"url"`
	Size         int64  `json:"size"`
	Category     string `json:"category"`
}

type romDetailResponse struct {
	Files []wireRomFile `json:"files"`
}

// keepUnescaped is the set of bytes §4.9 requires passed through literally
// when building an absolute download URL: ":/?&=%~-_." plus unreserved
// alphanumerics.
const keepUnescaped = ":/?&=%~-_."

func isUnreserved(b byte) bool {
	if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' {
		return true
	}
	return strings.IndexByte(keepUnescaped, b) >= 0
}

// encodeURLPath percent-encodes every byte not in isUnreserved, matching
// §4.9's "encodes spaces and non-unreserved bytes" rule.
func encodeURLPath(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

// EnrichWithFiles fetches per-rom detail for romId and populates its
// RomFile list, building absolute download URLs against BaseURL when the
// server returns a relative path.
func (a *Api) EnrichWithFiles(ctx context.Context, romId string) ([]model.RomFile, bool, errs.Info) {
	var resp romDetailResponse
	path := fmt.Sprintf("/api/roms/%s", encodeURLPath(romId))
	err := a.getJSON(ctx, path, &resp)
	ok, info := infoFor(err, errs.Http)
	if !ok {
		return nil, false, info
	}

	files := make([]model.RomFile, 0, len(resp.Files))
	for _, w := range resp.Files {
		u := w.Url
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			u = a.absoluteURL(u)
		}
		files = append(files, model.RomFile{
			Id: w.Id, Name: w.Name, RelativePath: w.RelativePath, Url: u, Size: w.Size, Category: w.Category,
		})
	}
	return files, true, errs.Info{}
}

func (a *Api) absoluteURL(relativePath string) string {
	scheme := a.BaseURL.Scheme
	host := a.BaseURL.Host
	if a.BaseURL.Port != 0 && a.BaseURL.Port != defaultPortFor(scheme) {
		host = fmt.Sprintf("%s:%d", host, a.BaseURL.Port)
	}
	if !strings.HasPrefix(relativePath, "/") {
		relativePath = "/" + relativePath
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, encodeURLPath(relativePath))
}

func defaultPortFor(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}
