package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/shalasere/romm-switch-client/pkg/model"
)

// localSearchThreshold is the all-roms size above which a remote search is
// attempted before falling back to scanning the local list (§4.9).
const localSearchThreshold = 500

type searchResponse struct {
	Items []wireRom `json:"items"`
}

// Search returns matches for query against platformSlug. When the local
// all-roms list is small it filters locally without a round trip;
// otherwise it submits a server-side search and falls back to local
// filtering if that request fails.
func (a *Api) Search(ctx context.Context, platformSlug, query string) []model.Game {
	all := a.St.AllRoms()
	if len(all) <= localSearchThreshold {
		return localFilter(all, platformSlug, query)
	}

	path := fmt.Sprintf("/api/platforms/%s/search?q=%s", platformSlug, encodeURLPath(query))
	var resp searchResponse
	if err := a.getJSON(ctx, path, &resp); err != nil {
		return localFilter(all, platformSlug, query)
	}
	out := make([]model.Game, 0, len(resp.Items))
	for _, w := range resp.Items {
		out = append(out, toGame(w))
	}
	return out
}

func localFilter(all []model.Game, platformSlug, query string) []model.Game {
	q := strings.ToLower(query)
	var out []model.Game
	for _, g := range all {
		if platformSlug != "" && g.PlatformSlug != platformSlug {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(g.Title), q) {
			continue
		}
		out = append(out, g)
	}
	return out
}
