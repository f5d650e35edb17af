package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Crawl defaults.
const (
	DefaultMaxDepth    = 3
	DefaultMaxPages    = 50
	DefaultRatePerSec  = 2.0
	DefaultMaxBodySize = 5 * 1024 * 1024
)

// ErrInvalidStartURL is returned when the start URL cannot be crawled.
var ErrInvalidStartURL = errors.New("invalid start URL")

// PageResult is the outcome of fetching one URL.
type PageResult struct {
	URL        string
	Referrer   string
	Depth      int
	StatusCode int
	Title      string
	Bytes      int64
	Elapsed    time.Duration

	// Err is set when the request itself failed.
	Err error
}

// Failed reports whether the page is broken: a transport error or an
// HTTP status of 400 or above.
func (p PageResult) Failed() bool {
	return p.Err != nil || p.StatusCode >= http.StatusBadRequest
}

// Report summarises a crawl.
type Report struct {
	Start     string
	Pages     []PageResult
	Elapsed   time.Duration
	Truncated bool
}

// Failures returns the broken pages in crawl order.
func (r *Report) Failures() []PageResult {
	var out []PageResult
	for _, p := range r.Pages {
		if p.Failed() {
			out = append(out, p)
		}
	}
	return out
}

// Spider crawls one site. A Spider is not safe for concurrent Crawl calls;
// create one per crawl.
type Spider struct {
	client         *http.Client
	maxDepth       int
	maxPages       int
	limiter        *rate.Limiter
	userAgent      string
	maxBodySize    int64
	ignorePatterns []string
	followPatterns []string
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets how many link hops from the start page are followed.
// 0 fetches only the start page.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		if depth >= 0 {
			s.maxDepth = depth
		}
	}
}

// WithMaxPages caps the number of fetched pages.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		if maxPages > 0 {
			s.maxPages = maxPages
		}
	}
}

// WithRate sets the request rate in requests per second. A non-positive
// value removes pacing.
func WithRate(perSecond float64) SpiderOption {
	return func(s *Spider) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithSpiderUserAgent sets the User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithSpiderMaxBodySize caps how much of each body is read.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithIgnorePatterns skips paths matching any glob (e.g. "/logout*", "*.pdf").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts the crawl to paths matching at least one glob.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// NewSpider creates a Spider using client for every request.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	if client == nil {
		client = http.DefaultClient
	}
	s := &Spider{
		client:      client,
		maxDepth:    DefaultMaxDepth,
		maxPages:    DefaultMaxPages,
		limiter:     rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		userAgent:   "netprobe-crawler/1.0",
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type queueItem struct {
	url      string
	referrer string
	depth    int
}

// Crawl fetches startURL and follows same-host links breadth first. Page
// failures are recorded in the report, not returned; the error is non-nil
// only for an unusable start URL or a cancelled context, in which case the
// partial report is still returned.
func (s *Spider) Crawl(ctx context.Context, startURL string) (*Report, error) {
	start, err := url.Parse(startURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStartURL, startURL)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidStartURL, start.Scheme)
	}

	began := time.Now()
	report := &Report{Start: start.String()}
	visited := map[string]bool{normalizeURL(start.String()): true}
	queue := []queueItem{{url: start.String()}}

	for len(queue) > 0 {
		if len(report.Pages) >= s.maxPages {
			report.Truncated = true
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			report.Elapsed = time.Since(began)
			return report, err
		}

		item := queue[0]
		queue = queue[1:]

		page, links := s.fetchPage(ctx, item)
		report.Pages = append(report.Pages, page)
		if ctx.Err() != nil {
			report.Elapsed = time.Since(began)
			return report, ctx.Err()
		}

		if item.depth >= s.maxDepth {
			continue
		}
		for _, link := range links {
			key := normalizeURL(link)
			if visited[key] || !s.shouldCrawl(link) {
				continue
			}
			visited[key] = true
			queue = append(queue, queueItem{url: link, referrer: item.url, depth: item.depth + 1})
		}
	}

	report.Elapsed = time.Since(began)
	return report, nil
}

func (s *Spider) fetchPage(ctx context.Context, item queueItem) (PageResult, []string) {
	page := PageResult{URL: item.url, Referrer: item.referrer, Depth: item.depth}
	began := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.url, nil)
	if err != nil {
		page.Err = err
		return page, nil
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		page.Err = err
		page.Elapsed = time.Since(began)
		return page, nil
	}
	defer resp.Body.Close()

	page.StatusCode = resp.StatusCode
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	page.Bytes = int64(len(body))
	if err != nil {
		page.Err = err
		page.Elapsed = time.Since(began)
		return page, nil
	}
	page.Elapsed = time.Since(began)

	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return page, nil
	}
	parser, err := NewParser(item.url)
	if err != nil {
		return page, nil
	}
	parsed, err := parser.Parse(strings.NewReader(string(body)))
	if err != nil {
		return page, nil
	}
	page.Title = parsed.Title
	return page, parsed.InternalLinks
}

// normalizeURL drops the fragment and lowercases scheme and host so that
// equivalent URLs are visited once.
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// shouldCrawl applies ignore patterns first, then follow patterns.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern matches a path against a glob. "/dir/*" also matches
// deeper paths and "*.ext" matches by suffix.
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*."); ok && strings.HasSuffix(path, "."+ext) {
		return true
	}
	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
