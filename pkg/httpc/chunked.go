package httpc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shalasere/romm-switch-client/pkg/errs"
)

// maxChunkSize clamps a parsed chunk size to a sane ceiling. The original
// decoder never validated that a chunk size fits a pointer; per §9's open
// question, implementers are directed to clamp rather than trust the wire.
const maxChunkSize = 16 << 20 // 16 MiB

// decodeChunked reads a chunked-transfer body from r and writes the
// decoded bytes to w. Each chunk is "<hex-size>[;ext...]\r\n<data>\r\n";
// the stream ends at a zero-size chunk followed by a trailing CRLF.
func decodeChunked(r *bufio.Reader, w io.Writer) error {
	for {
		line, err := readLine(r)
		if err != nil {
			return fmt.Errorf("recv failed reading chunk size: %w", err)
		}
		sizeStr := line
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			sizeStr = line[:idx]
		}
		sizeStr = strings.TrimSpace(sizeStr)
		if sizeStr == "" {
			return fmt.Errorf("malformed chunk size line %q", line)
		}
		size, err := strconv.ParseInt(sizeStr, 16, 64)
		if err != nil {
			return fmt.Errorf("malformed chunk size %q", sizeStr)
		}
		if size > maxChunkSize {
			return fmt.Errorf("malformed chunk: size %d exceeds maximum %d: %w", size, maxChunkSize, errs.ErrChunkTooLarge)
		}
		if size == 0 {
			// Trailing CRLF after the terminating zero-size chunk.
			if _, err := readLine(r); err != nil {
				return fmt.Errorf("recv failed reading final CRLF: %w", err)
			}
			return nil
		}

		if _, err := io.CopyN(w, r, size); err != nil {
			return fmt.Errorf("recv failed reading chunk data: %w", err)
		}
		trailer, err := readLine(r)
		if err != nil {
			return fmt.Errorf("recv failed reading chunk trailer: %w", err)
		}
		if trailer != "" {
			return fmt.Errorf("malformed chunk trailer %q", trailer)
		}
	}
}
