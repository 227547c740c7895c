package api

import (
	"context"

	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/status"
)

type wirePlatform struct {
	Id   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type platformsResponse struct {
	Platforms []wirePlatform `json:"platforms"`
}

// FetchPlatforms retrieves the platform list and, on success, populates
// Status.platforms directly (§4.9's Status-updating variant).
func (a *Api) FetchPlatforms(ctx context.Context) (bool, errs.Info) {
	var resp platformsResponse
	err := a.getJSON(ctx, "/api/platforms", &resp)
	ok, info := infoFor(err, errs.Http)
	if !ok {
		return false, info
	}
	out := make([]status.Platform, 0, len(resp.Platforms))
	for _, p := range resp.Platforms {
		out = append(out, status.Platform{Id: p.Id, Slug: p.Slug, Name: p.Name})
	}
	a.St.SetPlatforms(out)
	return true, info
}
