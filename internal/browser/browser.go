// Package browser is the page-rendering collaborator used by full HTTP
// probes and page-content hash probes.
//
// The Host interface hides how a page is loaded. HTTPHost fetches the
// document over HTTP and extracts its title and visible text with the
// crawler's HTML parser; it does not execute scripts. A headless browser
// can be plugged in by implementing Host.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nao1215/netprobe/internal/crawler"
	"github.com/nao1215/netprobe/internal/transport"
)

// ErrNoPage is returned by Page accessors before Goto succeeded.
var ErrNoPage = errors.New("no page loaded")

// ErrHTTPStatus wraps a non-2xx navigation response.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// Page is one browser tab.
type Page interface {
	// Goto loads url and returns the response status code.
	Goto(ctx context.Context, url string) (int, error)
	Title() (string, error)
	// Text is the visible text, whitespace collapsed.
	Text() (string, error)
	HTML() (string, error)
}

// PageFunc drives a page and returns a textual result.
type PageFunc func(ctx context.Context, page Page) (string, error)

// Host provides pages. RunWithPage opens a fresh page, calls fn and closes
// the page afterwards. Implementations must be safe for concurrent use.
type Host interface {
	RunWithPage(ctx context.Context, fn PageFunc) (string, error)
}

// defaultMaxDocument caps the bytes read per navigation.
const defaultMaxDocument = 5 * 1024 * 1024

// HTTPHost renders pages with a plain HTTP client.
type HTTPHost struct {
	client      *http.Client
	maxDocument int64
}

// NewHTTPHost creates a host using client, or a direct client when nil.
func NewHTTPHost(client *http.Client) *HTTPHost {
	if client == nil {
		client = transport.NewHTTPClient(transport.Direct, transport.HTTPOptions{})
	}
	return &HTTPHost{client: client, maxDocument: defaultMaxDocument}
}

// RunWithPage implements Host.
func (h *HTTPHost) RunWithPage(ctx context.Context, fn PageFunc) (string, error) {
	return fn(ctx, &httpPage{host: h})
}

type httpPage struct {
	host   *HTTPHost
	html   string
	parsed *crawler.ParseResult
}

func (p *httpPage) Goto(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := p.host.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.host.maxDocument))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read document: %w", err)
	}

	parser, err := crawler.NewParser(url)
	if err != nil {
		return resp.StatusCode, err
	}
	parsed, err := parser.Parse(strings.NewReader(string(body)))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse document: %w", err)
	}

	p.html = string(body)
	p.parsed = parsed

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (p *httpPage) Title() (string, error) {
	if p.parsed == nil {
		return "", ErrNoPage
	}
	return p.parsed.Title, nil
}

func (p *httpPage) Text() (string, error) {
	if p.parsed == nil {
		return "", ErrNoPage
	}
	return p.parsed.Text, nil
}

func (p *httpPage) HTML() (string, error) {
	if p.parsed == nil {
		return "", ErrNoPage
	}
	return p.html, nil
}
