package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nao1215/netprobe/internal/browser"
	"github.com/nao1215/netprobe/internal/crawler"
	"github.com/nao1215/netprobe/internal/probe"
)

// HTTP probe modes.
const (
	HTTPModeGet  = "get"
	HTTPModeHTML = "html"
	HTTPModeFull = "full"
)

// StatusBrowserMissing is recorded when a browser-backed probe has no host.
const StatusBrowserMissing = "Browser Missing"

// maxHTMLBody caps how much of a page html mode reads.
const maxHTMLBody = 10 * 1024 * 1024

// HTTPConnect issues a GET. Html mode also reads the body and reports its
// size and title; full mode loads the page through a browser host.
type HTTPConnect struct {
	*probe.Base
	client       *http.Client
	browser      browser.Host
	mode         string
	endpointType string
}

// Connect implements probe.NetConnect.
func (c *HTTPConnect) Connect(ctx context.Context) {
	target := targetURL(c.Settings(), c.endpointType)

	if c.mode == HTTPModeFull {
		c.connectBrowser(ctx, target)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.ProcessException(fmt.Sprintf("Invalid request for %s: %v", target, err), probe.StatusError)
		return
	}
	if s := c.Settings(); s.Username != "" {
		req.SetBasicAuth(s.Username, s.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.processRequestError(ctx, err)
		return
	}
	defer resp.Body.Close()
	c.SetStatusCode(resp.StatusCode)

	var extra []string
	if c.mode == HTTPModeHTML {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTMLBody))
		if err != nil {
			c.processRequestError(ctx, err)
			return
		}
		extra = append(extra, "Read "+strconv.Itoa(len(body))+" bytes")
		if parser, err := crawler.NewParser(target); err == nil {
			if parsed, err := parser.Parse(bytes.NewReader(body)); err == nil && parsed.Title != "" {
				extra = append(extra, "title \""+parsed.Title+"\"")
			}
		}
	}
	rtt := c.Elapsed()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		c.ProcessException(fmt.Sprintf("Unexpected status %s", resp.Status), strconv.Itoa(resp.StatusCode))
		return
	}
	c.ProcessStatus(http.StatusText(resp.StatusCode), rtt, extra...)
}

func (c *HTTPConnect) connectBrowser(ctx context.Context, target string) {
	if c.browser == nil {
		c.ProcessException("Browser is missing, cannot load "+target, StatusBrowserMissing)
		return
	}

	var status int
	title, err := c.browser.RunWithPage(ctx, func(ctx context.Context, page browser.Page) (string, error) {
		var err error
		status, err = page.Goto(ctx, target)
		if err != nil {
			return "", err
		}
		return page.Title()
	})
	if status != 0 {
		c.SetStatusCode(status)
	}
	if err != nil {
		if errors.Is(err, browser.ErrHTTPStatus) {
			c.ProcessException(fmt.Sprintf("Unexpected status %d", status), strconv.Itoa(status))
			return
		}
		c.processRequestError(ctx, err)
		return
	}

	var extra []string
	if title != "" {
		extra = append(extra, "title \""+title+"\"")
	}
	c.ProcessStatus("Page Loaded", c.Elapsed(), extra...)
}

// processRequestError maps a failed request to a result: timeouts first,
// then transport errors carrying their own message, then anything else.
func (c *HTTPConnect) processRequestError(ctx context.Context, err error) {
	if probe.IsTimeout(ctx, err) {
		c.ProcessTimeout("waiting for HTTP response")
		return
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		c.ProcessException("Failed to connect: "+urlErr.Err.Error(), probe.StatusException)
		return
	}
	c.ProcessException("Request failed: "+err.Error(), probe.StatusException)
}
