package api

import (
	"context"
	"fmt"
	"time"

	"github.com/shalasere/romm-switch-client/pkg/errs"
	"github.com/shalasere/romm-switch-client/pkg/httpc"
)

// MeasureThroughput performs a single buffered GET against url and reports
// an approximate bytes-per-second figure. The timer spans the whole Do
// call, including connect and any retries.
// Intended to be submitted through a dedicated asyncjob.Worker instance so
// a slow probe never blocks catalog fetches (§5, §12).
func (a *Api) MeasureThroughput(ctx context.Context, url string) (float64, error) {
	target, err := httpc.ParseURL(url)
	if err != nil {
		return 0, err
	}
	req := httpc.Request{Method: "GET", URL: target}

	start := time.Now()
	resp, body, err := a.Client.Do(ctx, req, a.Timeout)
	elapsed := time.Since(start)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, errs.ClassifyErr(fmt.Errorf("HTTP %d %s", resp.StatusCode, resp.StatusText), errs.Http)
	}
	if elapsed <= 0 {
		return 0, nil
	}
	return float64(len(body)) / elapsed.Seconds(), nil
}
