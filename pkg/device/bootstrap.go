package device

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// bootstrapSchema implements GenICam document discovery: read the URL
// register, resolve it, and fall back to the fixed default node catalog
// if nothing is usable.
func (s *Session) bootstrapSchema(ctx context.Context) error {
	data, err := s.fetchGenicamDocument(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("genicam document fetch failed, using default nodes")
		data = nil
	}

	s.schemaMu.Lock()
	s.schema = data
	s.schemaMu.Unlock()

	if data == nil {
		return nil // the default node catalog is applied lazily by PopulateSchema
	}
	return nil
}

// fetchGenicamDocument reads the two XML URL registers in turn and
// resolves the first one that parses and yields data.
func (s *Session) fetchGenicamDocument(ctx context.Context) ([]byte, error) {
	for _, reg := range []uint32{gvcp.RegXMLURL0, gvcp.RegXMLURL1} {
		raw, err := s.readMemoryChunked(reg, gvcp.XMLURLSize)
		if err != nil {
			continue
		}
		urlStr := strings.TrimRight(string(raw), "\x00")
		if urlStr == "" {
			continue
		}

		data, err := s.resolveGenicamURL(ctx, urlStr)
		if err != nil {
			log.Warn().Err(err).Str("url", urlStr).Msg("genicam url resolution failed")
			continue
		}
		return data, nil
	}
	return nil, gvcp.Errorf("bootstrapSchema", gvcp.KindGenicamNotFound, fmt.Errorf("no usable XML URL register"))
}

func (s *Session) resolveGenicamURL(ctx context.Context, raw string) ([]byte, error) {
	u, err := s.urlParser.Parse(raw)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch u.Scheme {
	case SchemeFile:
		data, err = os.ReadFile(u.Path)
	case SchemeLocal:
		size := int(u.Size)
		if size == 0 {
			size = gvcp.DataSizeMax
		}
		data, err = s.readMemoryChunked(u.Address, size)
	case SchemeHTTP:
		data, err = s.httpFetcher.Fetch(ctx, u.Path)
	default:
		return nil, gvcp.Errorf("resolveGenicamURL", gvcp.KindInvalidParameter, fmt.Errorf("unsupported scheme for %q", raw))
	}
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(strings.ToLower(u.Path), ".zip") {
		return unzipFirstEntry(data)
	}
	return data, nil
}

// unzipFirstEntry inflates the first file in a zip archive, matching
// arv_zip_get_file_list picking zip_files->data. archive/zip is the
// standard library's implementation of this exact format; see DESIGN.md
// for why no third-party replacement is used.
func unzipFirstEntry(data []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, gvcp.Errorf("unzipFirstEntry", gvcp.KindGenicamNotFound, err)
	}
	if len(r.File) == 0 {
		return nil, gvcp.Errorf("unzipFirstEntry", gvcp.KindGenicamNotFound, fmt.Errorf("empty archive"))
	}

	f, err := r.File[0].Open()
	if err != nil {
		return nil, gvcp.Errorf("unzipFirstEntry", gvcp.KindGenicamNotFound, err)
	}
	defer f.Close()

	return io.ReadAll(f)
}

// PopulateSchema feeds the resolved GenICam document, or the fixed
// default node catalog when none was found, into the evaluator
// collaborator. Evaluating the resulting feature tree is out of scope.
func (s *Session) PopulateSchema(evaluator SchemaEvaluator) {
	s.schemaMu.Lock()
	data := s.schema
	s.schemaMu.Unlock()

	if data != nil {
		evaluator.SetDefaultNode("Device", string(data))
		return
	}

	for _, node := range DefaultSchemaNodes {
		evaluator.SetDefaultNode(node.Name, node.XML)
	}
}
