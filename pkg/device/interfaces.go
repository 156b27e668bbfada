// Package device implements the GigE Vision device session facade: control
// channel exchange, block I/O, privilege lease and heartbeat, MTU probing
// and GenICam schema bootstrap, composed around a single camera connection.
package device

import (
	"context"
	"net/http"
	"time"
)

// SchemaEvaluator is the GenICam feature-tree evaluator collaborator.
// Building and walking the tree is out of scope here; this package only
// constructs the raw document the evaluator will parse.
type SchemaEvaluator interface {
	SetDefaultNode(name, mainXML string, dependencyXML ...string)
	Bytes() []byte
}

// StreamOptions configures a stream created through a Session.
type StreamOptions struct {
	PacketSize int
}

// Stream is the opaque handle returned by a StreamCreator.
type Stream interface {
	Close() error
}

// StreamCreator is the streaming receiver collaborator. Packet
// reassembly and image delivery are out of scope here.
type StreamCreator interface {
	CreateStream(ctx context.Context, opts StreamOptions) (Stream, error)
}

// HTTPFetcher fetches a GenICam schema document over HTTP. The default
// implementation wraps net/http directly rather than pulling in a
// third-party HTTP client.
type HTTPFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type defaultHTTPFetcher struct {
	client *http.Client
}

// NewDefaultHTTPFetcher returns the stock HTTPFetcher: a bounded-timeout
// net/http client using the library's default redirect policy.
func NewDefaultHTTPFetcher() HTTPFetcher {
	return &defaultHTTPFetcher{client: &http.Client{Timeout: 10 * time.Second}}
}

func (f *defaultHTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return readAllLimited(resp.Body, 32<<20)
}

// URLParser wraps ParseGenicamURL so tests can inject alternate parsing.
type URLParser interface {
	Parse(raw string) (GenicamURL, error)
}

type defaultURLParser struct{}

func (defaultURLParser) Parse(raw string) (GenicamURL, error) { return ParseGenicamURL(raw) }

// ControlLostListener is invoked, at most by one goroutine at a time, when
// the heartbeat observes that control/exclusive privilege has been lost.
type ControlLostListener func()
