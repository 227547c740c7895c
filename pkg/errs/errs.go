// Package errs implements the engine's error taxonomy: a pure function that
// maps a free-form detail string (plus an optional category hint from the
// caller) to a structured Info record, and the handful of sentinel errors
// for conditions the engine itself detects (as opposed to transport/server
// failures reported as strings).
//
// Grounded on original_source/romm/errors.hpp's classifyError ordered
// if/else chain and on the teacher's pkg/warplib/errors.go package-level
// sentinel-error style.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Category is the top-level bucket an error falls into.
type Category string

const (
	Config      Category = "Config"
	Network     Category = "Network"
	Auth        Category = "Auth"
	Http        Category = "Http"
	Parse       Category = "Parse"
	Filesystem  Category = "Filesystem"
	Data        Category = "Data"
	Unsupported Category = "Unsupported"
	Internal    Category = "Internal"
)

// Code further distinguishes errors within a Category.
type Code string

const (
	CodeConfigMissing       Code = "ConfigMissing"
	CodeConfigInvalid       Code = "ConfigInvalid"
	CodeMissingRequiredField Code = "MissingRequiredField"
	CodeUnsupportedFeature  Code = "UnsupportedFeature"
	CodeAuthFailure         Code = "AuthFailure"
	CodeNotFound            Code = "NotFound"
	CodeHttpStatus          Code = "HttpStatus"
	CodeDnsFailure          Code = "DnsFailure"
	CodeConnectFailure      Code = "ConnectFailure"
	CodeTimeout             Code = "Timeout"
	CodeTransportFailure    Code = "TransportFailure"
	CodeParseFailure        Code = "ParseFailure"
	CodeInvalidData         Code = "InvalidData"
	CodeInternal            Code = "Internal"
)

// Info is the structured result of classifying an error.
type Info struct {
	Category    Category
	Code        Code
	UserMessage string
	HttpStatus  int // 0 when not applicable
	Retryable   bool
	Detail      string // the raw detail string that produced this Info
}

func (i Info) Error() string {
	return i.UserMessage
}

// Classify maps a free-form detail string to an Info record. hint supplies
// the caller's best guess at Category when nothing in detail narrows it
// further (rule 12 / the fallback case). Rules are evaluated in order;
// first match wins, mirroring original_source's classifyError.
func Classify(detail string, hint Category) Info {
	lower := strings.ToLower(detail)

	switch {
	case strings.Contains(lower, "missing config"):
		return Info{Config, CodeConfigMissing, "Configuration is missing required settings.", 0, false, detail}

	case strings.Contains(lower, "invalid config json"), strings.Contains(lower, "failed to parse env"):
		return Info{Config, CodeConfigInvalid, "Configuration could not be parsed.", 0, false, detail}

	case strings.Contains(lower, "missing server_url"), strings.Contains(lower, "missing platform id"):
		cat := hint
		if cat == "" {
			cat = Config
		}
		return Info{cat, CodeMissingRequiredField, "A required field is missing.", 0, false, detail}

	case strings.Contains(lower, "https not supported"),
		strings.Contains(lower, "tls not implemented"),
		strings.Contains(lower, "not supported"),
		strings.Contains(lower, "chunked transfer not supported"):
		return Info{Unsupported, CodeUnsupportedFeature, "This feature is not supported.", 0, false, detail}
	}

	if status, ok := parseHttpStatus(detail); ok {
		switch {
		case status == 401 || status == 403:
			return Info{Auth, CodeAuthFailure, "Authentication failed.", status, false, detail}
		case status == 404:
			return Info{Http, CodeNotFound, "The requested resource was not found.", status, false, detail}
		case status >= 500 && status <= 599:
			return Info{Http, CodeHttpStatus, "The server returned an error.", status, true, detail}
		case status >= 400 && status <= 499:
			return Info{Http, CodeHttpStatus, "The server rejected the request.", status, false, detail}
		}
	}

	switch {
	case strings.Contains(lower, "resolve") || strings.Contains(lower, "dns"):
		return Info{Network, CodeDnsFailure, "Could not resolve the server address.", 0, true, detail}

	case strings.Contains(lower, "connect failed"), strings.Contains(lower, "socket"):
		return Info{Network, CodeConnectFailure, "Could not connect to the server.", 0, true, detail}

	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return Info{Network, CodeTimeout, "The request timed out.", 0, true, detail}

	case strings.Contains(lower, "recv failed"), strings.Contains(lower, "send failed"), strings.Contains(lower, "transport"):
		return Info{Network, CodeTransportFailure, "A network transport error occurred.", 0, true, detail}

	case strings.Contains(lower, "parse"), strings.Contains(lower, "malformed"), strings.Contains(lower, "json"):
		return Info{Parse, CodeParseFailure, "Received data could not be parsed.", 0, false, detail}

	case strings.Contains(lower, "write failed"), strings.Contains(lower, "open part failed"), strings.Contains(lower, "seek failed"):
		return Info{Filesystem, CodeInvalidData, "A filesystem error occurred.", 0, true, detail}

	case strings.Contains(lower, "no valid files"), strings.Contains(lower, "missing id"):
		return Info{Data, CodeInvalidData, "No valid files were found.", 0, false, detail}
	}

	cat := hint
	if cat == "" {
		cat = Internal
	}
	return Info{cat, CodeInternal, "An unexpected error occurred.", 0, false, detail}
}

// ClassifyErr is a convenience wrapper around Classify for error values.
func ClassifyErr(err error, hint Category) Info {
	if err == nil {
		return Info{}
	}
	return Classify(err.Error(), hint)
}

// parseHttpStatus extracts a 3-digit code following the substring "HTTP" in
// message, e.g. "HTTP 404 Not Found" -> 404, 100..599 accepted.
func parseHttpStatus(message string) (int, bool) {
	idx := strings.Index(strings.ToUpper(message), "HTTP")
	if idx < 0 {
		return 0, false
	}
	rest := message[idx+4:]
	rest = strings.TrimLeft(rest, " /")
	var digits strings.Builder
	for _, r := range rest {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			if digits.Len() == 3 {
				break
			}
			continue
		}
		break
	}
	if digits.Len() != 3 {
		return 0, false
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil || n < 100 || n > 599 {
		return 0, false
	}
	return n, true
}

// Sentinel errors for conditions the engine itself detects, mirroring the
// teacher's pkg/warplib/errors.go package-level var block.
var (
	ErrNoValidFiles       = errors.New("no valid files to download")
	ErrMissingId          = errors.New("missing id")
	ErrManifestIncompatible = errors.New("manifest is not compatible with this job")
	ErrManifestInvalid    = errors.New("manifest is missing required fields")
	ErrShortRead          = errors.New("short read")
	ErrStopped            = errors.New("download stopped")
	ErrOverflow           = errors.New("write would overflow declared content length")
	ErrChunkTooLarge      = errors.New("chunk size exceeds maximum allowed")
	ErrQueueItemActive    = errors.New("an item for this game is already queued")
	ErrQueueItemCompleted = errors.New("this game has already been downloaded")
	ErrInsufficientDiskSpace = errors.New("insufficient disk space")
	ErrCrossDeviceMove    = errors.New("cross-device move not supported by rename, use copy+delete")
)
