package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// Scheme identifies where a GenICam schema document lives.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeFile
	SchemeLocal
	SchemeHTTP
)

// GenicamURL is the decomposed form of a register-reported schema URL,
// grounded on arv_parse_genicam_url's (scheme, path, address, size) tuple.
type GenicamURL struct {
	Scheme  Scheme
	Path    string // file path or HTTP URL, scheme stripped
	Address uint32 // valid when Scheme == SchemeLocal
	Size    uint32 // valid when Scheme == SchemeLocal; always parsed from the URL, may be 0
}

// ParseGenicamURL decodes a schema URL string as reported by
// RegXMLURL0/RegXMLURL1. Recognized forms:
//
//	file:<path>
//	http://... or https://...
//	local:<path>;<address>;<size>
//	local:<path>;<address>;<size>;<size2>   (double-length-field variant)
//
// Scheme matching is case-insensitive, matching cameras observed to send
// "LOCAL:" and "Local:" interchangeably.
func ParseGenicamURL(raw string) (GenicamURL, error) {
	raw = strings.TrimRight(raw, "\x00")
	raw = strings.TrimSpace(raw)

	idx := strings.Index(raw, ":")
	if idx < 0 {
		return GenicamURL{}, gvcp.Errorf("ParseGenicamURL", gvcp.KindInvalidParameter, fmt.Errorf("missing scheme in %q", raw))
	}

	scheme := strings.ToLower(raw[:idx])
	rest := raw[idx+1:]

	switch scheme {
	case "file":
		return GenicamURL{Scheme: SchemeFile, Path: rest}, nil
	case "http", "https":
		return GenicamURL{Scheme: SchemeHTTP, Path: raw}, nil
	case "local":
		return parseLocalURL(rest)
	default:
		return GenicamURL{}, gvcp.Errorf("ParseGenicamURL", gvcp.KindInvalidParameter, fmt.Errorf("unrecognized scheme %q", scheme))
	}
}

func parseLocalURL(rest string) (GenicamURL, error) {
	parts := strings.Split(rest, ";")
	if len(parts) < 3 {
		return GenicamURL{}, gvcp.Errorf("ParseGenicamURL", gvcp.KindInvalidParameter, fmt.Errorf("malformed local url %q", rest))
	}

	address, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return GenicamURL{}, gvcp.Errorf("ParseGenicamURL", gvcp.KindInvalidParameter, err)
	}

	// The double-length-field variant repeats the size; both fields are
	// expected equal, so the first one is authoritative.
	size, err := strconv.ParseUint(parts[2], 16, 32)
	if err != nil {
		return GenicamURL{}, gvcp.Errorf("ParseGenicamURL", gvcp.KindInvalidParameter, err)
	}

	return GenicamURL{
		Scheme:  SchemeLocal,
		Path:    parts[0],
		Address: uint32(address),
		Size:    uint32(size),
	}, nil
}
