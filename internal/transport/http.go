package transport

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultUserAgent is sent by HTTP probes unless overridden.
const DefaultUserAgent = "netprobe/1.0"

// defaultMaxRedirects stops redirect loops while allowing normal chains.
const defaultMaxRedirects = 10

// HTTPOptions configures NewHTTPClient.
type HTTPOptions struct {
	Timeout time.Duration

	// InsecureSkipVerify disables certificate verification. Probes that
	// monitor internal hosts with self-signed certificates need it.
	InsecureSkipVerify bool

	// MaxRedirects caps followed redirects. Zero means 10; a negative value
	// disables redirects so the probe sees the 3xx status itself.
	MaxRedirects int

	UserAgent string
	Headers   map[string]string
}

// NewHTTPClient builds an HTTP client whose connections are opened by d.
// A nil d uses Direct.
func NewHTTPClient(d Dialer, opts HTTPOptions) *http.Client {
	if d == nil {
		d = Direct
	}

	base := &http.Transport{
		DialContext:         d.DialContext,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}, //nolint:gosec // operator opt-in
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	maxRedirects := opts.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = defaultMaxRedirects
	}

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      base,
			userAgent: userAgent,
			headers:   opts.Headers,
		},
		Timeout: opts.Timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if maxRedirects < 0 || len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// headerInjectingTransport sets the user agent and fixed headers on every
// request, redirects included.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
