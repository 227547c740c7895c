package httpc

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestDecodeChunkedValidCases(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase hex", "5\r\nhello\r\n0\r\n\r\n", "hello"},
		{"uppercase hex", "A\r\n0123456789\r\n0\r\n\r\n", "0123456789"},
		{"chunk extension ignored", "5;ext=foo\r\nhello\r\n0\r\n\r\n", "hello"},
		{"multiple chunks", "3\r\nfoo\r\n3\r\nbar\r\n0\r\n\r\n", "foobar"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(c.in))
			var buf bytes.Buffer
			if err := decodeChunked(r, &buf); err != nil {
				t.Fatalf("decodeChunked: %v", err)
			}
			if buf.String() != c.want {
				t.Fatalf("got %q, want %q", buf.String(), c.want)
			}
		})
	}
}

func TestDecodeChunkedMissingFinalCRLF(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("5\r\nhello\r\n0\r\n"))
	var buf bytes.Buffer
	if err := decodeChunked(r, &buf); err == nil {
		t.Fatalf("expected error for missing final trailing CRLF")
	}
}

func TestDecodeChunkedTruncatedFinalChunk(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("5\r\nhel"))
	var buf bytes.Buffer
	if err := decodeChunked(r, &buf); err == nil {
		t.Fatalf("expected error for truncated chunk data")
	}
}

func TestDecodeChunkedOversizeChunkRejected(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("2000000\r\n"))
	var buf bytes.Buffer
	if err := decodeChunked(r, &buf); err == nil {
		t.Fatalf("expected error for chunk size exceeding %d", maxChunkSize)
	}
}

func TestDecodeChunkedMalformedSize(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("zz\r\nhello\r\n0\r\n\r\n"))
	var buf bytes.Buffer
	if err := decodeChunked(r, &buf); err == nil {
		t.Fatalf("expected error for malformed chunk size")
	}
}
