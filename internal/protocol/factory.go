package protocol

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/nao1215/netprobe/internal/browser"
	"github.com/nao1215/netprobe/internal/command"
	"github.com/nao1215/netprobe/internal/endpoint"
	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/quantum"
	"github.com/nao1215/netprobe/internal/transport"
)

// Factory builds the probe variant for an endpoint type and hands every
// variant the collaborators it needs.
type Factory struct {
	registry   *endpoint.Registry
	pinger     Pinger
	resolver   Resolver
	dialer     transport.Dialer
	client     *http.Client
	browser    browser.Host
	processors command.Provider
	analyzer   *quantum.Analyzer
	logger     *slog.Logger
	heloName   string
}

// Option configures a Factory.
type Option func(*Factory)

// WithRegistry replaces endpoint.Default().
func WithRegistry(r *endpoint.Registry) Option {
	return func(f *Factory) {
		if r != nil {
			f.registry = r
		}
	}
}

// WithPinger replaces the ICMP pinger.
func WithPinger(p Pinger) Option {
	return func(f *Factory) { f.pinger = p }
}

// WithResolver replaces net.DefaultResolver.
func WithResolver(r Resolver) Option {
	return func(f *Factory) { f.resolver = r }
}

// WithDialer sets the dialer used by SMTP and raw TCP probes, and by the
// default HTTP client.
func WithDialer(d transport.Dialer) Option {
	return func(f *Factory) { f.dialer = d }
}

// WithHTTPClient sets the client used by HTTP probes.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Factory) { f.client = c }
}

// WithBrowser sets the browser host. Without one, full page and site hash
// probes report "Browser Missing".
func WithBrowser(b browser.Host) Option {
	return func(f *Factory) { f.browser = b }
}

// WithProcessors sets the command processor provider.
func WithProcessors(p command.Provider) Option {
	return func(f *Factory) { f.processors = p }
}

// WithAnalyzer replaces the quantum analyzer.
func WithAnalyzer(a *quantum.Analyzer) Option {
	return func(f *Factory) { f.analyzer = a }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithHeloName sets the name SMTP probes announce.
func WithHeloName(name string) Option {
	return func(f *Factory) { f.heloName = name }
}

// NewFactory creates a Factory. Collaborators not given fall back to the
// real network implementations.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		registry: endpoint.Default(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.pinger == nil {
		f.pinger = NewICMPPinger()
	}
	if f.resolver == nil {
		f.resolver = net.DefaultResolver
	}
	if f.dialer == nil {
		f.dialer = transport.Direct
	}
	if f.client == nil {
		f.client = transport.NewHTTPClient(f.dialer, transport.HTTPOptions{})
	}
	if f.analyzer == nil {
		f.analyzer = quantum.NewAnalyzer(quantum.WithLogger(f.logger))
	}
	if f.heloName == "" {
		f.heloName = defaultHeloName()
	}
	return f
}

// Registry returns the endpoint registry the factory consults.
func (f *Factory) Registry() *endpoint.Registry { return f.registry }

// New creates a fresh handle for s and returns its variant.
func (f *Factory) New(s probe.Settings) probe.NetConnect {
	return f.NewFor(probe.NewHandle(s))
}

// NewFor returns the variant for the endpoint type configured on h. The
// handle's long-running flag and the variant's timeout extension come from
// the endpoint registry. Unknown types get the ICMP variant.
func (f *Factory) NewFor(h *probe.Handle) probe.NetConnect {
	typ := strings.ToLower(strings.TrimSpace(h.Config().Snapshot().EndpointType))

	v, ok := variants[typ]
	if !ok {
		f.logger.Warn("unknown endpoint type, using icmp", "type", typ, "entity_id", h.ID())
		v = variants[endpoint.ICMP]
	}

	h.SetLongRunning(f.registry.IsLongRunning(typ))
	base := probe.NewBase(h, v.prefix, f.registry.TimeoutMultiplier(typ))
	return v.build(f, base, typ)
}

type variant struct {
	prefix string
	build  func(f *Factory, base *probe.Base, typ string) probe.NetConnect
}

func httpVariant(mode string) variant {
	return variant{prefix: "HTTP", build: func(f *Factory, b *probe.Base, typ string) probe.NetConnect {
		return &HTTPConnect{Base: b, client: f.client, browser: f.browser, mode: mode, endpointType: typ}
	}}
}

func nmapVariant(vuln bool) variant {
	return variant{prefix: "Nmap", build: func(f *Factory, b *probe.Base, _ string) probe.NetConnect {
		return &NmapConnect{commandBase: commandBase{Base: b, provider: f.processors, name: command.NameNmap}, vuln: vuln}
	}}
}

func crawlVariant() variant {
	return variant{prefix: "Crawl", build: func(f *Factory, b *probe.Base, typ string) probe.NetConnect {
		return &CrawlConnect{commandBase: commandBase{Base: b, provider: f.processors, name: command.NameCrawl}, endpointType: typ}
	}}
}

// variants maps endpoint types to their constructors. It is built once and
// never modified.
var variants = map[string]variant{
	endpoint.ICMP: {prefix: "ICMP", build: func(f *Factory, b *probe.Base, _ string) probe.NetConnect {
		return &ICMPConnect{Base: b, pinger: f.pinger}
	}},
	endpoint.DNS: {prefix: "DNS", build: func(f *Factory, b *probe.Base, _ string) probe.NetConnect {
		return &DNSConnect{Base: b, resolver: f.resolver}
	}},
	endpoint.HTTP:     httpVariant(HTTPModeGet),
	endpoint.HTTPS:    httpVariant(HTTPModeGet),
	endpoint.HTTPHTML: httpVariant(HTTPModeHTML),
	endpoint.HTTPFull: httpVariant(HTTPModeFull),
	endpoint.SMTP: {prefix: "SMTP", build: func(f *Factory, b *probe.Base, _ string) probe.NetConnect {
		return &SMTPConnect{Base: b, dialer: f.dialer, heloName: f.heloName}
	}},
	endpoint.RawConnect: {prefix: "TCP", build: func(f *Factory, b *probe.Base, _ string) probe.NetConnect {
		return &RawConnect{Base: b, dialer: f.dialer}
	}},
	endpoint.Nmap:       nmapVariant(false),
	endpoint.NmapVuln:   nmapVariant(true),
	endpoint.CrawlSite:  crawlVariant(),
	endpoint.DailyCrawl: crawlVariant(),
	endpoint.BLEBroadcast: {prefix: "BLE", build: func(f *Factory, b *probe.Base, _ string) probe.NetConnect {
		return &BLEBroadcastConnect{commandBase{Base: b, provider: f.processors, name: command.NameBLEBroadcast}}
	}},
	endpoint.BLEBroadcastListen: {prefix: "BLE", build: func(f *Factory, b *probe.Base, _ string) probe.NetConnect {
		return &BLEListenConnect{commandBase{Base: b, provider: f.processors, name: command.NameBLEListen}}
	}},
	endpoint.DailyHugKeepAlive: {prefix: "KeepAlive", build: func(f *Factory, b *probe.Base, typ string) probe.NetConnect {
		return &KeepAliveConnect{commandBase: commandBase{Base: b, provider: f.processors, name: command.NameKeepAlive}, endpointType: typ}
	}},
	endpoint.SiteHash: {prefix: "SiteHash", build: func(f *Factory, b *probe.Base, typ string) probe.NetConnect {
		return &SiteHashConnect{Base: b, browser: f.browser, endpointType: typ}
	}},
	endpoint.Quantum: {prefix: "Quantum", build: func(f *Factory, b *probe.Base, _ string) probe.NetConnect {
		return &QuantumConnect{Base: b, analyzer: f.analyzer}
	}},
}
