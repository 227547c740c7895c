// Package api implements the catalog-server facade (C9): platform and ROM
// fetches, the identifiers digest probe, per-rom file enrichment, remote
// search with a local-filter fallback, and the throughput diagnostics
// probe. Every fetch is layered on pkg/httpc and pkg/errs and returns
// (ok bool, info errs.Info) per §4.9 — the facade never mutates
// pkg/status directly except through its Status-updating variants.
//
// Grounded on original_source/romm/source/api_client.cpp's fetchPlatforms/
// fetchRoms/fetchIdentifiers/enrichWithFiles/search functions, re-expressed
// against pkg/httpc instead of raw sockets, in the shape of the teacher's
// internal/api package (one small file per concern, a shared receiver type
// holding the transport and caller-supplied credentials).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/httpc"
	"github.com/shalasere/romm-switch-client/pkg/rlog"
	"github.com/shalasere/romm-switch-client/pkg/status"
)

// Api is the catalog-server facade. BaseURL is the parsed server root;
// every request path is joined onto BaseURL.Path.
type Api struct {
	Client      *httpc.Client
	BaseURL     httpc.URL
	Credentials *httpc.Credentials
	Timeout     time.Duration
	Log         rlog.Logger
	St          *status.Status
}

func New(client *httpc.Client, baseURL httpc.URL, creds *httpc.Credentials, timeout time.Duration, log rlog.Logger, st *status.Status) *Api {
	return &Api{Client: client, BaseURL: baseURL, Credentials: creds, Timeout: timeout, Log: log, St: st}
}

// requestURL joins a request path (beginning with "/") onto BaseURL,
// preserving BaseURL.Path as a prefix (so a server mounted under a
// sub-path still resolves correctly).
func (a *Api) requestURL(path string) httpc.URL {
	u := a.BaseURL
	base := u.Path
	if base == "/" {
		base = ""
	}
	u.Path = base + path
	return u
}

func (a *Api) getJSON(ctx context.Context, path string, out interface{}) error {
	req := httpc.Request{
		Method:      "GET",
		URL:         a.requestURL(path),
		Credentials: a.Credentials,
		Headers:     map[string]string{"Accept": "application/json"},
	}
	resp, body, err := a.Client.Do(ctx, req, a.Timeout)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d %s", resp.StatusCode, resp.StatusText)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse failed decoding %s: %w", path, err)
	}
	return nil
}

// infoFor classifies a facade error with the given category hint, matching
// §4.9's (ok, ErrorInfo) return shape.
func infoFor(err error, hint errs.Category) (bool, errs.Info) {
	if err == nil {
		return true, errs.Info{}
	}
	return false, errs.ClassifyErr(err, hint)
}
