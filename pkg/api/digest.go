package api

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/shalasere/romm-switch-client/pkg/errs"
)

type wireIdentifier struct {
	Id      string `json:"id"`
	Version string `json:"version"`
}

type identifiersResponse struct {
	Items []wireIdentifier `json:"items"`
}

// DigestProbe fetches the lightweight identifiers endpoint for
// platformSlug and computes a stable 64-bit FNV-1a digest over the sorted
// "id|version" tokens, streaming each token through the hasher rather than
// building the concatenated token list first (§12 supplemented feature).
// An unchanged digest between calls lets the caller skip a full FetchRoms.
func (a *Api) DigestProbe(ctx context.Context, platformSlug string) (digest uint64, ok bool, info errs.Info) {
	var resp identifiersResponse
	path := fmt.Sprintf("/api/platforms/%s/identifiers", platformSlug)
	err := a.getJSON(ctx, path, &resp)
	ok, info = infoFor(err, errs.Http)
	if !ok {
		return 0, false, info
	}

	tokens := make([]string, 0, len(resp.Items))
	for _, it := range resp.Items {
		tokens = append(tokens, it.Id+"|"+it.Version)
	}
	sort.Strings(tokens)

	h := fnv.New64a()
	for _, t := range tokens {
		h.Write([]byte(t))
		h.Write([]byte{0}) // separator so adjacent tokens can't collide by concatenation
	}
	return h.Sum64(), true, errs.Info{}
}
