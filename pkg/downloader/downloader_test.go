package downloader

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shalasere/romm-switch-client/pkg/httpc"
	"github.com/shalasere/romm-switch-client/pkg/rlog"
)

// rawServer speaks just enough HTTP/1.1 over a plain net.Listener to drive
// the downloader's HEAD/GET/Range requests without net/http, matching how
// the engine itself talks to a server.
func rawServer(t *testing.T, handle func(method, path string, headers map[string]string) string) (host string, port int, closeFn func()) {
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
				parts := strings.Fields(reqLine)
				if len(parts) < 2 {
					return
				}
				method, path := parts[0], parts[1]
				headers := map[string]string{}
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					line = strings.TrimRight(line, "\r\n")
					if line == "" {
						break
					}
					if idx := strings.IndexByte(line, ':'); idx >= 0 {
						headers[strings.ToLower(strings.TrimSpace(line[:idx]))] = strings.TrimSpace(line[idx+1:])
					}
				}
				conn.Write([]byte(handle(method, path, headers)))
			}()
		}
	}()
	h, p, _ := net.SplitHostPort(ln.Addr().String())
	var portNum int
	for _, c := range p {
		portNum = portNum*10 + int(c-'0')
	}
	return h, portNum, func() { ln.Close() }
}

func TestDownloadFreshSingleFileScenario1(t *testing.T) {
	host, port, closeFn := rawServer(t, func(method, path string, headers map[string]string) string {
		if method == "HEAD" {
			return "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nAccept-Ranges: bytes\r\nConnection: close\r\n\r\n"
		}
		return "HTTP/1.1 200 OK\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello"
	})
	defer closeFn()

	root := t.TempDir()
	d := New(httpc.NewClient(), rlog.Nop{}, root, 2*time.Second, true)
	job := Job{RomId: "r1", FileId: "f1", Title: "MyGame.nsp", Url: urlFor(host, port, "/file")}

	var progressed int64
	finalPath, err := d.Download(context.Background(), job, func(delta int64) { progressed += delta })
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("read final file: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", data)
	}
	if progressed != 5 {
		t.Fatalf("expected progress 5, got %d", progressed)
	}
}

func TestDownloadShortReadThenResumeScenario2(t *testing.T) {
	host, port, closeFn := rawServer(t, func(method, path string, headers map[string]string) string {
		if method == "HEAD" {
			return "HTTP/1.1 200 OK\r\nContent-Length: 10\r\nAccept-Ranges: bytes\r\nConnection: close\r\n\r\n"
		}
		if headers["range"] != "" {
			return "HTTP/1.1 206 Partial Content\r\nContent-Length: 5\r\nContent-Range: bytes 5-9/10\r\nConnection: close\r\n\r\nagain"
		}
		// Declares 10 bytes but only ever sends 5, then closes: a short read.
		return "HTTP/1.1 200 OK\r\nContent-Length: 10\r\nConnection: close\r\n\r\nshort"
	})
	defer closeFn()

	root := t.TempDir()
	d := New(httpc.NewClient(), rlog.Nop{}, root, 2*time.Second, true)
	job := Job{RomId: "r2", FileId: "f2", Title: "ShortRead.nsp", Url: urlFor(host, port, "/file")}

	var progressed int64
	finalPath, err := d.Download(context.Background(), job, func(delta int64) { progressed += delta })
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("read final file: %v", err)
	}
	if string(data) != "shortagain" {
		t.Fatalf("expected shortagain, got %q", data)
	}
	if progressed != 10 {
		t.Fatalf("expected progress 10 after the Range:bytes=5- resume, got %d", progressed)
	}
}

func TestDownloadRangeUnsupportedMidResumeScenario4(t *testing.T) {
	const body = "01234567890123456789" // 20 bytes
	host, port, closeFn := rawServer(t, func(method, path string, headers map[string]string) string {
		if method == "HEAD" {
			return "HTTP/1.1 200 OK\r\nContent-Length: 20\r\nConnection: close\r\n\r\n"
		}
		return "HTTP/1.1 200 OK\r\nContent-Length: 20\r\nConnection: close\r\n\r\n" + body
	})
	defer closeFn()

	root := t.TempDir()
	d := New(httpc.NewClient(), rlog.Nop{}, root, 2*time.Second, true)
	job := Job{RomId: "r4", FileId: "f4", Title: "StaleResume.nsp", Url: urlFor(host, port, "/file")}

	// Simulate bytes left behind by an earlier, incompatible attempt: no
	// manifest.json, so prepareManifest falls back to rawBytesOnDisk.
	dir := d.tempDir(job)
	mustWrite(t, partPath(dir, 0), make([]byte, 100))

	var progressed int64
	finalPath, err := d.Download(context.Background(), job, func(delta int64) { progressed += delta })
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("read final file: %v", err)
	}
	if string(data) != body {
		t.Fatalf("expected %q, got %q", body, data)
	}
	if progressed != int64(len(body)) {
		t.Fatalf("expected progress %d with no overcounting from the stale 100 bytes, got %d", len(body), progressed)
	}
}

func urlFor(host string, port int, path string) string {
	return "http://" + host + ":" + itoa(port) + path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func TestSanitizeName(t *testing.T) {
	if got := sanitizeName("Super Mario 64/Weird:Name", "fallback"); strings.ContainsAny(got, "/:") {
		t.Fatalf("expected path separators stripped, got %q", got)
	}
	if len(sanitizeName("123456789012345", "fallback")) != 12 {
		t.Fatalf("expected truncation to 12 chars")
	}
	if got := sanitizeName("", "fallback-id"); got != "fallback-id" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestRawBytesOnDiskContiguous(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, partPath(dir, 0), make([]byte, 100))
	mustWrite(t, partPath(dir, 1), make([]byte, 50))
	mustWrite(t, partPath(dir, 3), make([]byte, 10)) // gap at 2, should not count
	observed, err := scanParts(dir)
	if err != nil {
		t.Fatalf("scanParts: %v", err)
	}
	if got := rawBytesOnDisk(observed); got != 150 {
		t.Fatalf("expected 150 contiguous bytes, got %d", got)
	}
}

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFinalizeSinglePart(t *testing.T) {
	root := t.TempDir()
	d := New(httpc.NewClient(), rlog.Nop{}, root, time.Second, true)
	job := Job{Title: "Game.nsp"}
	dir := d.tempDir(job)
	mustWrite(t, partPath(dir, 0), []byte("hello"))

	out, err := d.finalizeSinglePart(dir, job)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected final file: %v %q", err, data)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected temp dir removed")
	}
}

func TestFinalizeMultiPart(t *testing.T) {
	root := t.TempDir()
	d := New(httpc.NewClient(), rlog.Nop{}, root, time.Second, true)
	job := Job{Title: "BigGame"}
	dir := d.tempDir(job)
	mustWrite(t, partPath(dir, 0), []byte("aaaa"))
	mustWrite(t, partPath(dir, 1), []byte("bb"))

	out, err := d.finalizeMultiPart(dir, job, 2)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "00")); err != nil {
		t.Fatalf("expected part 00 in final dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "01")); err != nil {
		t.Fatalf("expected part 01 in final dir: %v", err)
	}
}
