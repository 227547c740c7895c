package api

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/shalasere/romm-switch-client/pkg/httpc"
	"github.com/shalasere/romm-switch-client/pkg/model"
	"github.com/shalasere/romm-switch-client/pkg/rlog"
	"github.com/shalasere/romm-switch-client/pkg/status"
)

// fakeServer speaks just enough HTTP/1.1 to exercise the facade without
// net/http, mirroring pkg/httpc's test helper of the same shape.
func fakeServer(t *testing.T, respond func(path string) string) (httpc.URL, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				reqLine, err := r.ReadString('\n')
				if err != nil {
					return
				}
				for {
					line, err := r.ReadString('\n')
					if err != nil || strings.TrimRight(line, "\r\n") == "" {
						break
					}
				}
				parts := strings.Fields(reqLine)
				path := ""
				if len(parts) >= 2 {
					path = parts[1]
				}
				conn.Write([]byte(respond(path)))
			}()
		}
	}()
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return httpc.URL{Scheme: "http", Host: host, Port: port, Path: "/"}, func() { ln.Close() }
}

func jsonResponse(body string) string {
	return fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", len(body), body)
}

func TestFetchPlatforms(t *testing.T) {
	base, closeFn := fakeServer(t, func(path string) string {
		return jsonResponse(`{"platforms":[{"id":"1","slug":"switch","name":"Nintendo Switch"}]}`)
	})
	defer closeFn()

	st := status.New()
	a := New(httpc.NewClient(), base, nil, 2*time.Second, rlog.Nop{}, st)
	ok, info := a.FetchPlatforms(context.Background())
	if !ok {
		t.Fatalf("expected ok, got info=%+v", info)
	}
	platforms := st.Platforms()
	if len(platforms) != 1 || platforms[0].Slug != "switch" {
		t.Fatalf("unexpected platforms: %+v", platforms)
	}
}

func TestDigestProbeStableAcrossOrder(t *testing.T) {
	base1, close1 := fakeServer(t, func(path string) string {
		return jsonResponse(`{"items":[{"id":"b","version":"1"},{"id":"a","version":"2"}]}`)
	})
	defer close1()
	base2, close2 := fakeServer(t, func(path string) string {
		return jsonResponse(`{"items":[{"id":"a","version":"2"},{"id":"b","version":"1"}]}`)
	})
	defer close2()

	st := status.New()
	a1 := New(httpc.NewClient(), base1, nil, 2*time.Second, rlog.Nop{}, st)
	a2 := New(httpc.NewClient(), base2, nil, 2*time.Second, rlog.Nop{}, st)

	d1, ok1, _ := a1.DigestProbe(context.Background(), "switch")
	d2, ok2, _ := a2.DigestProbe(context.Background(), "switch")
	if !ok1 || !ok2 {
		t.Fatalf("expected both probes to succeed")
	}
	if d1 != d2 {
		t.Fatalf("expected order-independent digest, got %d vs %d", d1, d2)
	}
}

func TestEncodeURLPathPreservesReservedBytes(t *testing.T) {
	in := "/api/roms/abc:123/x?y=1&z=2~a-b_c.d"
	out := encodeURLPath(in)
	if out != in {
		t.Fatalf("expected reserved bytes preserved unchanged, got %q", out)
	}
	if got := encodeURLPath("a b"); got != "a%20b" {
		t.Fatalf("expected space to be percent-encoded, got %q", got)
	}
}

func TestSearchUsesLocalFilterBelowThreshold(t *testing.T) {
	st := status.New()
	st.MergeRoms([]model.Game{
		{Id: "1", Title: "Super Game", PlatformSlug: "switch"},
		{Id: "2", Title: "Other Game", PlatformSlug: "switch"},
		{Id: "3", Title: "Super Game", PlatformSlug: "nes"},
	})
	a := &Api{Client: httpc.NewClient(), BaseURL: httpc.URL{Scheme: "http", Host: "127.0.0.1", Port: 1, Path: "/"}, Timeout: 100 * time.Millisecond, Log: rlog.Nop{}, St: st}

	got := a.Search(context.Background(), "switch", "super")
	if len(got) != 1 || got[0].Id != "1" {
		t.Fatalf("expected local filter to match only the switch entry, got %+v", got)
	}
}
