package httpc

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ContentRange is the parsed form of a "Content-Range: bytes a-b/total"
// response header. Total is nil when the server sent "*" for an unknown
// total length.
type ContentRange struct {
	Start int64
	End   int64
	Total *int64
}

// Response is the parsed form of a status line plus header block, matching
// §4.1's required shape. Headers are matched case-insensitively.
type Response struct {
	StatusCode      int
	StatusText      string
	ContentLength   *int64
	Chunked         bool
	AcceptRanges    bool
	ConnectionClose bool
	Location        string
	ContentRange    *ContentRange
	RawHeaders      map[string][]string
}

// readStatusLineAndHeaders reads the status line and the header block
// terminated by CRLFCRLF (bufio.Reader tolerates a bare LF as well, which
// real servers occasionally send). Grounded on
// original_source/romm/source/http_common.cpp's parseHttpResponseHeaders.
func readStatusLineAndHeaders(r *bufio.Reader) (Response, error) {
	statusLine, err := readLine(r)
	if err != nil {
		return Response{}, fmt.Errorf("recv failed reading status line: %w", err)
	}
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return Response{}, fmt.Errorf("malformed status line %q", statusLine)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return Response{}, fmt.Errorf("malformed status code in %q", statusLine)
	}
	text := ""
	if len(parts) == 3 {
		text = parts[2]
	}

	resp := Response{StatusCode: code, StatusText: text, RawHeaders: make(map[string][]string)}

	var haveContentLength bool
	for {
		line, err := readLine(r)
		if err != nil {
			return Response{}, fmt.Errorf("recv failed reading headers: %w", err)
		}
		if line == "" {
			break // CRLFCRLF terminator reached
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return Response{}, fmt.Errorf("malformed header line %q", line)
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if !httpguts.ValidHeaderFieldName(name) {
			return Response{}, fmt.Errorf("malformed header field name %q", name)
		}
		key := strings.ToLower(name)
		resp.RawHeaders[key] = append(resp.RawHeaders[key], value)

		switch key {
		case "content-length":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Response{}, fmt.Errorf("malformed content-length %q", value)
			}
			if haveContentLength && resp.ContentLength != nil && *resp.ContentLength != n {
				return Response{}, fmt.Errorf("conflicting content-length values")
			}
			resp.ContentLength = &n
			haveContentLength = true
		case "transfer-encoding":
			if strings.Contains(strings.ToLower(value), "chunked") {
				resp.Chunked = true
			}
		case "accept-ranges":
			if strings.Contains(strings.ToLower(value), "bytes") {
				resp.AcceptRanges = true
			}
		case "connection":
			if strings.Contains(strings.ToLower(value), "close") {
				resp.ConnectionClose = true
			}
		case "location":
			resp.Location = value
		case "content-range":
			cr, err := parseContentRange(value)
			if err != nil {
				return Response{}, err
			}
			resp.ContentRange = &cr
		}
	}
	return resp, nil
}

func parseContentRange(value string) (ContentRange, error) {
	value = strings.TrimPrefix(value, "bytes ")
	slash := strings.IndexByte(value, '/')
	if slash < 0 {
		return ContentRange{}, fmt.Errorf("malformed content-range %q", value)
	}
	rangePart, totalPart := value[:slash], value[slash+1:]
	dash := strings.IndexByte(rangePart, '-')
	if dash < 0 {
		return ContentRange{}, fmt.Errorf("malformed content-range %q", value)
	}
	start, err := strconv.ParseInt(rangePart[:dash], 10, 64)
	if err != nil {
		return ContentRange{}, fmt.Errorf("malformed content-range start %q", value)
	}
	end, err := strconv.ParseInt(rangePart[dash+1:], 10, 64)
	if err != nil {
		return ContentRange{}, fmt.Errorf("malformed content-range end %q", value)
	}
	cr := ContentRange{Start: start, End: end}
	if totalPart != "*" {
		total, err := strconv.ParseInt(totalPart, 10, 64)
		if err != nil {
			return ContentRange{}, fmt.Errorf("malformed content-range total %q", value)
		}
		cr.Total = &total
	}
	return cr, nil
}

// readLine reads up to and including CRLF (or LF), returning the line with
// the terminator stripped.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	return line, nil
}
