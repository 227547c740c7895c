package api

import (
	"context"
	"fmt"

	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/model"
)

const (
	firstPageSize      = 250
	subsequentPageSize = 500
)

type wireRom struct {
	Id                string `json:"id"`
	Title             string `json:"title"`
	PlatformId        string `json:"platform_id"`
	PlatformSlug      string `json:"platform_slug"`
	PreferredFileName string `json:"preferred_file_name"`
	PreferredFileId   string `json:"preferred_file_id"`
	CoverUrl          string `json:"cover_url"`
	TotalSize         int64  `json:"total_size"`
	DownloadUrl       string `json:"download_url"`
}

type romsPageResponse struct {
	Items   []wireRom `json:"items"`
	HasMore bool      `json:"has_more"`
}

func toGame(w wireRom) model.Game {
	return model.Game{
		Id: w.Id, Title: w.Title, PlatformId: w.PlatformId, PlatformSlug: w.PlatformSlug,
		PreferredFileName: w.PreferredFileName, PreferredFileId: w.PreferredFileId,
		CoverUrl: w.CoverUrl, TotalSize: w.TotalSize, DownloadUrl: w.DownloadUrl,
	}
}

// FetchRoms walks every page for platformSlug (first page ≈250 entries,
// subsequent pages ≈500) and merges the result into Status's all-roms map
// keyed by id (§4.9).
func (a *Api) FetchRoms(ctx context.Context, platformSlug string) (bool, errs.Info) {
	page := 0
	pageSize := firstPageSize
	var all []model.Game

	for {
		path := fmt.Sprintf("/api/platforms/%s/roms?page=%d&page_size=%d", platformSlug, page, pageSize)
		var resp romsPageResponse
		err := a.getJSON(ctx, path, &resp)
		ok, info := infoFor(err, errs.Http)
		if !ok {
			return false, info
		}
		for _, w := range resp.Items {
			all = append(all, toGame(w))
		}
		if !resp.HasMore {
			break
		}
		page++
		pageSize = subsequentPageSize

		select {
		case <-ctx.Done():
			return infoFor(ctx.Err(), errs.Network)
		default:
		}
	}

	a.St.MergeRoms(all)
	return true, errs.Info{}
}
