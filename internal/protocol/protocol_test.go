package protocol

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/cryptobyte"

	"github.com/nao1215/netprobe/internal/browser"
	"github.com/nao1215/netprobe/internal/command"
	"github.com/nao1215/netprobe/internal/endpoint"
	"github.com/nao1215/netprobe/internal/probe"
	"github.com/nao1215/netprobe/internal/quantum"
)

type resolverFunc func(ctx context.Context, host string) ([]string, error)

func (f resolverFunc) LookupHost(ctx context.Context, host string) ([]string, error) {
	return f(ctx, host)
}

type pingerFunc func(ctx context.Context, host string) (PingReply, error)

func (f pingerFunc) Ping(ctx context.Context, host string) (PingReply, error) {
	return f(ctx, host)
}

// fakePage serves fixed content for any URL.
type fakePage struct {
	status int
	title  string
	text   string
}

func (p *fakePage) Goto(context.Context, string) (int, error) {
	if p.status >= 300 {
		return p.status, fmt.Errorf("%w: %d", browser.ErrHTTPStatus, p.status)
	}
	return p.status, nil
}
func (p *fakePage) Title() (string, error) { return p.title, nil }
func (p *fakePage) Text() (string, error)  { return p.text, nil }
func (p *fakePage) HTML() (string, error)  { return "<html>" + p.text + "</html>", nil }

type fakeHost struct {
	page *fakePage
}

func (h *fakeHost) RunWithPage(ctx context.Context, fn browser.PageFunc) (string, error) {
	return fn(ctx, h.page)
}

// recorder is a processor that remembers the arguments it was called with.
type recorder struct {
	calls  atomic.Int32
	args   atomic.Value
	result command.Result
}

func (r *recorder) Run(_ context.Context, args string) command.Result {
	r.calls.Add(1)
	r.args.Store(args)
	return r.result
}

func (r *recorder) lastArgs() string {
	s, _ := r.args.Load().(string)
	return s
}

func newFactory(opts ...Option) *Factory {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFactory(append([]Option{WithLogger(logger)}, opts...)...)
}

func runProbe(t *testing.T, nc probe.NetConnect) probe.Result {
	t.Helper()

	r, ok := probe.Run(context.Background(), nc)
	if !ok {
		t.Fatal("expected the probe to run")
	}
	return r
}

func processorsWith(name string, p command.Processor) *command.Registry {
	r := command.NewRegistry()
	_ = r.Register(name, p)
	return r
}

func TestCommandProbes_MissingProcessor(t *testing.T) {
	t.Parallel()

	types := []string{
		endpoint.Nmap, endpoint.NmapVuln, endpoint.CrawlSite, endpoint.DailyCrawl,
		endpoint.BLEBroadcast, endpoint.BLEBroadcastListen, endpoint.DailyHugKeepAlive,
	}
	f := newFactory(WithProcessors(command.NewRegistry()))

	for _, typ := range types {
		t.Run(typ, func(t *testing.T) {
			t.Parallel()

			r := runProbe(t, f.New(probe.Settings{
				EntityID: 1, EndpointType: typ, Address: "AA:BB:CC:DD:EE:FF", Password: "secret", Port: 443,
			}))
			if r.IsUp {
				t.Error("expected IsUp to be false")
			}
			if !strings.Contains(r.Message, MsgNoProcessor) {
				t.Errorf("expected %q in message, got %q", MsgNoProcessor, r.Message)
			}
			if r.Snapshot.Status != probe.StatusError {
				t.Errorf("expected status %q, got %q", probe.StatusError, r.Snapshot.Status)
			}
		})
	}

	t.Run("nil provider", func(t *testing.T) {
		t.Parallel()

		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.Nmap, Address: "example.com"}))
		if r.IsUp || r.Snapshot.Status != probe.StatusError {
			t.Errorf("unexpected result %+v", r)
		}
	})
}

func TestCommandProbes_Arguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings probe.Settings
		want     string
	}{
		{
			name:     "nmap",
			settings: probe.Settings{EndpointType: endpoint.Nmap, Address: "example.com", Port: 443},
			want:     "-sV --system-dns -p 443 example.com",
		},
		{
			name:     "nmap vuln",
			settings: probe.Settings{EndpointType: endpoint.NmapVuln, Address: "example.com", Port: 443},
			want:     "-sV --script vuln --system-dns -p 443 example.com",
		},
		{
			name:     "nmap extra arguments",
			settings: probe.Settings{EndpointType: endpoint.Nmap, Address: "example.com", Arguments: "-Pn"},
			want:     "-sV --system-dns example.com -Pn",
		},
		{
			name:     "crawl keeps the explicit port",
			settings: probe.Settings{EndpointType: endpoint.CrawlSite, Address: "https://example.com/shop", Port: 443},
			want:     "--url https://example.com:443/shop",
		},
		{
			name:     "crawl adds default port",
			settings: probe.Settings{EndpointType: endpoint.DailyCrawl, Address: "example.com"},
			want:     "--url http://example.com:80/",
		},
		{
			name:     "keep alive",
			settings: probe.Settings{EndpointType: endpoint.DailyHugKeepAlive, Address: "app.example.com", Port: 443},
			want:     "--url https://app.example.com:443/",
		},
		{
			name:     "ble broadcast",
			settings: probe.Settings{EndpointType: endpoint.BLEBroadcast, Address: "AA:BB:CC:DD:EE:FF", Password: "secret"},
			want:     `--address "AA:BB:CC:DD:EE:FF" --key "secret"`,
		},
		{
			name:     "ble listen without address",
			settings: probe.Settings{EndpointType: endpoint.BLEBroadcastListen, Password: `a"b`},
			want:     `--key "a\"b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{result: command.Result{Success: true, Message: "Host is up\n443/tcp open https"}}
			provider := command.NewRegistry()
			for _, name := range []string{command.NameNmap, command.NameCrawl, command.NameBLEBroadcast, command.NameBLEListen, command.NameKeepAlive} {
				_ = provider.Register(name, rec)
			}

			runProbe(t, newFactory(WithProcessors(provider)).New(tt.settings))
			if got := rec.lastArgs(); got != tt.want {
				t.Errorf("expected args %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNmapConnect(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, typ string, res command.Result) probe.Result {
		t.Helper()
		f := newFactory(WithProcessors(processorsWith(command.NameNmap, &recorder{result: res})))
		return runProbe(t, f.New(probe.Settings{EndpointType: typ, Address: "example.com", Port: 443}))
	}

	t.Run("open ports", func(t *testing.T) {
		t.Parallel()

		r := run(t, endpoint.Nmap, command.Result{Success: true, Message: "Host is up (0.010s latency).\nPORT    STATE SERVICE\n443/tcp open  https\n"})
		if !r.IsUp || r.Message != "Port/s open 443/tcp" {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("patched host stays up", func(t *testing.T) {
		t.Parallel()

		out := "Host is up (0.010s latency).\n443/tcp open  https\n| ssl-poodle:\n|   State: NOT VULNERABLE\n"
		r := run(t, endpoint.NmapVuln, command.Result{Success: true, Message: out})
		if !r.IsUp || r.Message != "Port/s open 443/tcp" {
			t.Errorf("expected up with open port, got %+v", r)
		}
	})

	t.Run("vulnerabilities fail the probe", func(t *testing.T) {
		t.Parallel()

		out := "Host is up.\n443/tcp open https\n| ssl-ccs-injection:\n|   VULNERABLE:\n|     State: VULNERABLE\n| ssl-poodle:\n|     State: LIKELY VULNERABLE\n"
		r := run(t, endpoint.NmapVuln, command.Result{Success: true, Message: out})
		if r.IsUp {
			t.Error("expected IsUp to be false")
		}
		if !strings.Contains(r.Message, "2 vulnerabilities found") {
			t.Errorf("expected vulnerability count in message, got %q", r.Message)
		}
		if r.Snapshot.RoundTripTime != probe.UnknownRoundTrip {
			t.Errorf("expected sentinel round trip, got %d", r.Snapshot.RoundTripTime)
		}
		if r.Snapshot.Status != StatusVulnerabilitiesFound {
			t.Errorf("expected %q, got %q", StatusVulnerabilitiesFound, r.Snapshot.Status)
		}
	})

	t.Run("host down", func(t *testing.T) {
		t.Parallel()

		r := run(t, endpoint.Nmap, command.Result{Success: true, Message: "Note: Host seems down."})
		if r.IsUp || r.Snapshot.Status != StatusHostDown {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("command failure", func(t *testing.T) {
		t.Parallel()

		r := run(t, endpoint.Nmap, command.Result{Message: "Error: nmap exited with code 1"})
		if r.IsUp || r.Snapshot.Status != probe.StatusError {
			t.Errorf("unexpected result %+v", r)
		}
	})
}

func TestParseNmapOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  string
		want NmapReport
	}{
		{name: "garbage", out: "not nmap output", want: NmapReport{}},
		{
			name: "ports",
			out:  "Host is up.\n22/tcp  open  ssh\n80/tcp  closed http\n443/tcp open  https\n53/udp open domain\n",
			want: NmapReport{HostUp: true, OpenPorts: []string{"22/tcp", "443/tcp", "53/udp"}},
		},
		{
			name: "bare marker",
			out:  "Host is up.\nsomething VULNERABLE here\n",
			want: NmapReport{HostUp: true, Vulnerabilities: 1},
		},
		{
			name: "not vulnerable",
			out:  "Host is up (0.010s latency).\n443/tcp open  https\n|   State: NOT VULNERABLE\n",
			want: NmapReport{HostUp: true, OpenPorts: []string{"443/tcp"}},
		},
		{
			name: "vulnerable and not vulnerable scripts",
			out:  "Host is up.\n443/tcp open  https\n| ssl-heartbleed:\n|   VULNERABLE:\n|   State: VULNERABLE\n| ssl-poodle:\n|   State: NOT VULNERABLE\n",
			want: NmapReport{HostUp: true, OpenPorts: []string{"443/tcp"}, Vulnerabilities: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseNmapOutput(tt.out)
			if got.HostUp != tt.want.HostUp || got.Vulnerabilities != tt.want.Vulnerabilities || !slices.Equal(got.OpenPorts, tt.want.OpenPorts) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCrawlConnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		res    command.Result
		up     bool
		status string
	}{
		{name: "clean crawl", res: command.Result{Success: true, Message: "Crawled 12 pages in 1.2s"}, up: true, status: "Crawl OK"},
		{name: "error marker", res: command.Result{Success: true, Message: "Crawled 12 pages\nError: https://a/b status 404"}, status: StatusCrawlFailed},
		{name: "command failure", res: command.Result{Message: "no --url"}, status: probe.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFactory(WithProcessors(processorsWith(command.NameCrawl, &recorder{result: tt.res})))
			r := runProbe(t, f.New(probe.Settings{EndpointType: endpoint.CrawlSite, Address: "example.com"}))
			if r.IsUp != tt.up || r.Snapshot.Status != tt.status {
				t.Errorf("expected up=%v status=%q, got %+v", tt.up, tt.status, r)
			}
		})
	}
}

func TestBLEBroadcastConnect_RequiresAddressAndKey(t *testing.T) {
	t.Parallel()

	for _, s := range []probe.Settings{
		{EndpointType: endpoint.BLEBroadcast, Address: "AA:BB:CC:DD:EE:FF"},
		{EndpointType: endpoint.BLEBroadcast, Password: "secret"},
	} {
		rec := &recorder{result: command.Result{Success: true}}
		f := newFactory(WithProcessors(processorsWith(command.NameBLEBroadcast, rec)))

		r := runProbe(t, f.New(s))
		if r.IsUp || r.Snapshot.Status != probe.StatusError {
			t.Errorf("unexpected result %+v", r)
		}
		if rec.calls.Load() != 0 {
			t.Errorf("expected processor not to be invoked, got %d calls", rec.calls.Load())
		}
	}
}

func TestKeepAliveConnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  command.Result
		up   bool
	}{
		{name: "ready", res: command.Result{Success: true, Message: "Site ready after 2 attempt(s) in 3s"}, up: true},
		{name: "negative phrase", res: command.Result{Success: true, Message: command.MsgSiteNotReady + " after 9 attempt(s): 503"}},
		{name: "command failure", res: command.Result{Message: "Error: no --url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFactory(WithProcessors(processorsWith(command.NameKeepAlive, &recorder{result: tt.res})))
			r := runProbe(t, f.New(probe.Settings{EndpointType: endpoint.DailyHugKeepAlive, Address: "app.example.com"}))
			if r.IsUp != tt.up {
				t.Errorf("expected up=%v, got %+v", tt.up, r)
			}
			if !tt.up && r.Snapshot.Status != StatusKeepAliveFailed {
				t.Errorf("expected %q, got %q", StatusKeepAliveFailed, r.Snapshot.Status)
			}
		})
	}
}

func TestDNSConnect(t *testing.T) {
	t.Parallel()

	t.Run("lists addresses", func(t *testing.T) {
		t.Parallel()

		f := newFactory(WithResolver(resolverFunc(func(_ context.Context, host string) ([]string, error) {
			if host != "example.com" {
				return nil, fmt.Errorf("unexpected host %q", host)
			}
			return []string{"192.0.2.1", "2001:db8::1"}, nil
		})))
		r := runProbe(t, f.New(probe.Settings{EndpointType: endpoint.DNS, Address: "https://example.com/path"}))
		if !r.IsUp || r.Message != "Found IP Addresses 192.0.2.1, 2001:db8::1" {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		t.Parallel()

		f := newFactory(WithResolver(resolverFunc(func(context.Context, string) ([]string, error) {
			return nil, nil
		})))
		r := runProbe(t, f.New(probe.Settings{EndpointType: endpoint.DNS, Address: "example.com"}))
		if r.IsUp || r.Snapshot.Status != probe.StatusException {
			t.Errorf("unexpected result %+v", r)
		}
		if r.Message != "DNS: No IP addresses found for host" {
			t.Errorf("unexpected message %q", r.Message)
		}
	})

	t.Run("cancelled resolution times out", func(t *testing.T) {
		t.Parallel()

		f := newFactory(WithResolver(resolverFunc(func(ctx context.Context, _ string) ([]string, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})))
		r := runProbe(t, f.New(probe.Settings{EndpointType: endpoint.DNS, Address: "example.com", Timeout: 20 * time.Millisecond}))
		if r.IsUp || r.Snapshot.Status != probe.StatusTimeout || !strings.Contains(r.Message, "Timed out") {
			t.Errorf("unexpected result %+v", r)
		}
	})
}

func TestICMPConnect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reply  PingReply
		err    error
		up     bool
		status string
	}{
		{name: "success", reply: PingReply{Status: ReplySuccess, RTT: 12 * time.Millisecond}, up: true, status: ReplySuccess},
		{name: "error", err: errors.New("permission denied"), status: StatusPingReplyNull},
		{name: "empty reply", status: StatusPingReplyNull},
		{name: "ttl expired", reply: PingReply{Status: ReplyTimeExceeded, Peer: "10.0.0.1"}, status: ReplyTimeExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFactory(WithPinger(pingerFunc(func(context.Context, string) (PingReply, error) {
				return tt.reply, tt.err
			})))
			r := runProbe(t, f.New(probe.Settings{EndpointType: endpoint.ICMP, Address: "192.0.2.1"}))
			if r.IsUp != tt.up || r.Snapshot.Status != tt.status {
				t.Errorf("expected up=%v status=%q, got %+v", tt.up, tt.status, r)
			}
			if tt.up && r.Snapshot.RoundTripTime != 12 {
				t.Errorf("expected 12ms, got %d", r.Snapshot.RoundTripTime)
			}
		})
	}
}

func TestHTTPConnect(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>Home</title></head><body>hello</body></html>`)
		}
	}))
	t.Cleanup(srv.Close)

	t.Run("get", func(t *testing.T) {
		t.Parallel()

		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.HTTP, Address: srv.URL}))
		if !r.IsUp || r.Snapshot.Status != "OK" || r.Snapshot.StatusCode != http.StatusOK {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()

		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.HTTP, Address: srv.URL + "/broken"}))
		if r.IsUp || r.Snapshot.Status != "500" || r.Snapshot.StatusCode != http.StatusInternalServerError {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("html reports bytes and title", func(t *testing.T) {
		t.Parallel()

		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.HTTPHTML, Address: srv.URL}))
		if !r.IsUp || !strings.Contains(r.Message, "bytes") || !strings.Contains(r.Message, `title "Home"`) {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("full without browser", func(t *testing.T) {
		t.Parallel()

		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.HTTPFull, Address: srv.URL}))
		if r.IsUp || r.Snapshot.Status != StatusBrowserMissing {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("full with browser", func(t *testing.T) {
		t.Parallel()

		f := newFactory(WithBrowser(browser.NewHTTPHost(srv.Client())))
		r := runProbe(t, f.New(probe.Settings{EndpointType: endpoint.HTTPFull, Address: srv.URL}))
		if !r.IsUp || r.Message != `Page Loaded title "Home"` {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.HTTP, Address: srv.URL + "/slow", Timeout: 50 * time.Millisecond}))
		if r.IsUp || r.Snapshot.Status != probe.StatusTimeout {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		addr := closedAddr(t)
		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.HTTP, Address: "http://" + addr}))
		if r.IsUp || !strings.HasPrefix(r.Message, "HTTP: Failed to connect:") {
			t.Errorf("unexpected result %+v", r)
		}
	})
}

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

// fakeSMTP serves one session answering with greeting and helo.
func fakeSMTP(t *testing.T, greeting, helo string) (string, int) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		fmt.Fprintf(conn, "%s\r\n", greeting)
		line, err := r.ReadString('\n')
		if err != nil || !strings.HasPrefix(line, "HELO ") {
			return
		}
		fmt.Fprintf(conn, "%s\r\n", helo)
		_, _ = r.ReadString('\n')
	}()

	host, port, _ := net.SplitHostPort(l.Addr().String())
	p, _ := strconv.Atoi(port)
	return host, p
}

func TestSMTPConnect(t *testing.T) {
	t.Parallel()

	t.Run("greeting and helo", func(t *testing.T) {
		t.Parallel()

		host, port := fakeSMTP(t, "220 mail.example ESMTP", "250 mail.example")
		r := runProbe(t, newFactory(WithHeloName("probe.local")).New(probe.Settings{EndpointType: endpoint.SMTP, Address: host, Port: port}))
		if !r.IsUp || r.Message != "Connected 220 mail.example ESMTP" {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("greeting counts when helo is refused", func(t *testing.T) {
		t.Parallel()

		host, port := fakeSMTP(t, "220 mail.example ESMTP", "502 command not implemented")
		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.SMTP, Address: host, Port: port}))
		if !r.IsUp || r.Snapshot.Status != "Connected" {
			t.Errorf("expected up with status Connected, got %+v", r)
		}
		if !strings.Contains(r.Message, "HELO rejected: 502") {
			t.Errorf("expected refused HELO in message, got %q", r.Message)
		}
	})

	t.Run("unexpected greeting", func(t *testing.T) {
		t.Parallel()

		host, port := fakeSMTP(t, "554 no service", "")
		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.SMTP, Address: host, Port: port}))
		if r.IsUp || r.Snapshot.Status != StatusUnexpectedResponse || !strings.Contains(r.Message, "554 no service") {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("refused", func(t *testing.T) {
		t.Parallel()

		host, port, _ := net.SplitHostPort(closedAddr(t))
		p, _ := strconv.Atoi(port)
		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.SMTP, Address: host, Port: p}))
		if r.IsUp || r.Snapshot.Status != probe.StatusException {
			t.Errorf("unexpected result %+v", r)
		}
	})
}

func TestRawConnect(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := l.Addr().(*net.TCPAddr).Port

	r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.RawConnect, Address: "127.0.0.1", Port: port}))
	if !r.IsUp || r.Message != "Connected" {
		t.Errorf("unexpected result %+v", r)
	}

	r = runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.RawConnect, Address: "127.0.0.1"}))
	if r.IsUp || r.Snapshot.Status != probe.StatusError {
		t.Errorf("expected missing port to fail, got %+v", r)
	}
}

func TestSiteHashConnect(t *testing.T) {
	t.Parallel()

	t.Run("initialize, match, mismatch", func(t *testing.T) {
		t.Parallel()

		page := &fakePage{status: http.StatusOK, text: "Welcome v1"}
		f := newFactory(WithBrowser(&fakeHost{page: page}))
		h := probe.NewHandle(probe.Settings{EntityID: 3, EndpointType: endpoint.SiteHash, Address: "example.com"})
		nc := f.NewFor(h)

		r := runProbe(t, nc)
		if !r.IsUp || r.Snapshot.Status != StatusSiteHashInitialized {
			t.Fatalf("expected initialization, got %+v", r)
		}
		if got := h.Config().SiteHash(); got != HashContent("Welcome v1") {
			t.Errorf("expected stored hash, got %q", got)
		}

		if r = runProbe(t, nc); !r.IsUp || r.Snapshot.Status != StatusSiteHashOK {
			t.Errorf("expected SiteHash OK, got %+v", r)
		}

		page.text = "Welcome v2"
		r = runProbe(t, nc)
		if r.IsUp || r.Snapshot.Status != StatusSiteHashMismatch || !strings.Contains(r.Message, "SiteHash mismatch") {
			t.Errorf("expected mismatch, got %+v", r)
		}
	})

	t.Run("browser missing", func(t *testing.T) {
		t.Parallel()

		r := runProbe(t, newFactory().New(probe.Settings{EndpointType: endpoint.SiteHash, Address: "example.com"}))
		if r.IsUp || r.Snapshot.Status != StatusBrowserMissing {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("error status", func(t *testing.T) {
		t.Parallel()

		f := newFactory(WithBrowser(&fakeHost{page: &fakePage{status: http.StatusNotFound}}))
		r := runProbe(t, f.New(probe.Settings{EndpointType: endpoint.SiteHash, Address: "example.com"}))
		if r.IsUp || r.Snapshot.Status != "404" {
			t.Errorf("unexpected result %+v", r)
		}
	})
}

type handshakeFunc func(ctx context.Context, host string, port int, alg quantum.AlgorithmInfo) (string, error)

func (f handshakeFunc) Handshake(ctx context.Context, host string, port int, alg quantum.AlgorithmInfo) (string, error) {
	return f(ctx, host, port, alg)
}

// serverHelloTrace renders a minimal ServerHello choosing group the way
// openssl s_client -msg prints it.
func serverHelloTrace(group uint16) string {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint8(2)
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint16(0x0303)
		b.AddBytes(make([]byte, 32))
		b.AddUint8(0)
		b.AddUint16(0x1301)
		b.AddUint8(0)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint16(0x0033)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddUint16(group)
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					b.AddBytes([]byte{1, 2, 3, 4})
				})
			})
		})
	})
	return "<<< TLS 1.3, Handshake [length 0040], ServerHello\n    " + hex.EncodeToString(b.BytesOrPanic()) + "\n"
}

func TestQuantumConnect(t *testing.T) {
	t.Parallel()

	t.Run("negotiated group", func(t *testing.T) {
		t.Parallel()

		var gotPort atomic.Int32
		analyzer := quantum.NewAnalyzer(
			quantum.WithHandshakeRunner(handshakeFunc(func(_ context.Context, _ string, port int, alg quantum.AlgorithmInfo) (string, error) {
				gotPort.Store(int32(port))
				return serverHelloTrace(alg.DefaultID), nil
			})),
			quantum.WithModernAlgorithms([]quantum.AlgorithmInfo{{Name: "SecP256r1MLKEM768", DefaultID: 0x11EB, Enabled: true}}),
			quantum.WithGroupTable(quantum.DefaultGroupTable()),
		)
		r := runProbe(t, newFactory(WithAnalyzer(analyzer)).New(probe.Settings{EndpointType: endpoint.Quantum, Address: "example.com"}))
		if !r.IsUp || !strings.Contains(r.Message, "0x11EB") {
			t.Errorf("unexpected result %+v", r)
		}
		if gotPort.Load() != 443 {
			t.Errorf("expected default port 443, got %d", gotPort.Load())
		}
	})

	t.Run("no algorithms", func(t *testing.T) {
		t.Parallel()

		analyzer := quantum.NewAnalyzer(quantum.WithModernAlgorithms(nil), quantum.WithLegacyAlgorithms(nil))
		r := runProbe(t, newFactory(WithAnalyzer(analyzer)).New(probe.Settings{EndpointType: endpoint.Quantum, Address: "example.com"}))
		if r.IsUp || r.Message != "Quantum: "+quantum.MsgNoAlgorithms || r.Snapshot.Status != StatusNotQuantumSafe {
			t.Errorf("unexpected result %+v", r)
		}
	})
}

func TestFactory(t *testing.T) {
	t.Parallel()

	t.Run("unknown type falls back to icmp", func(t *testing.T) {
		t.Parallel()

		nc := newFactory().New(probe.Settings{EndpointType: "gopher", Address: "example.com"})
		if _, ok := nc.(*ICMPConnect); !ok {
			t.Errorf("expected *ICMPConnect, got %T", nc)
		}
	})

	t.Run("every registered type has a variant", func(t *testing.T) {
		t.Parallel()

		for _, typ := range endpoint.Default().Types() {
			if _, ok := variants[typ]; !ok {
				t.Errorf("no variant for %q", typ)
			}
		}
	})

	t.Run("long running flag and timeout extension", func(t *testing.T) {
		t.Parallel()

		f := newFactory()
		nc := f.New(probe.Settings{EndpointType: endpoint.NmapVuln, Address: "example.com", Timeout: time.Second})
		if !nc.Handle().IsLongRunning() {
			t.Error("expected nmapvuln to be long running")
		}
		n, ok := nc.(*NmapConnect)
		if !ok {
			t.Fatalf("expected *NmapConnect, got %T", nc)
		}
		want := time.Duration(f.Registry().TimeoutMultiplier(endpoint.NmapVuln)) * time.Second
		if n.Timeout() != want {
			t.Errorf("expected timeout %v, got %v", want, n.Timeout())
		}

		if newFactory().New(probe.Settings{EndpointType: endpoint.ICMP}).Handle().IsLongRunning() {
			t.Error("expected icmp not to be long running")
		}
	})
}

func TestTargetURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		settings probe.Settings
		typ      string
		want     string
	}{
		{probe.Settings{Address: "example.com"}, endpoint.HTTP, "http://example.com/"},
		{probe.Settings{Address: "example.com"}, endpoint.HTTPS, "https://example.com/"},
		{probe.Settings{Address: "example.com", Port: 443}, endpoint.HTTP, "https://example.com/"},
		{probe.Settings{Address: "example.com/status", Port: 8080}, endpoint.HTTP, "http://example.com:8080/status"},
		{probe.Settings{Address: "https://example.com/a", Port: 8443}, endpoint.HTTP, "https://example.com:8443/a"},
		{probe.Settings{Address: "::1", Port: 8080}, endpoint.HTTP, "http://[::1]:8080/"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := targetURL(tt.settings, tt.typ); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
