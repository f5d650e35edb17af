package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"runtime"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/nao1215/netprobe/internal/crawler"
)

func TestSplitArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "nmap", in: "-sV --system-dns -p 443 example.com", want: []string{"-sV", "--system-dns", "-p", "443", "example.com"}},
		{name: "ble", in: `--address "AA:BB:CC:DD:EE:FF" --key "my secret"`, want: []string{"--address", "AA:BB:CC:DD:EE:FF", "--key", "my secret"}},
		{name: "url", in: "--url https://host:8443/path", want: []string{"--url", "https://host:8443/path"}},
		{name: "empty quoted value", in: `--key ""`, want: []string{"--key", ""}},
		{name: "escaped quote", in: `--name "a \"b\""`, want: []string{"--name", `a "b"`}},
		{name: "single quotes are literal", in: `--x 'a\b'`, want: []string{"--x", `a\b`}},
		{name: "extra whitespace", in: "  a \t b  ", want: []string{"a", "b"}},
		{name: "empty", in: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SplitArgs(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("unterminated quote", func(t *testing.T) {
		t.Parallel()

		if _, err := SplitArgs(`--key "abc`); !errors.Is(err, ErrUnterminatedQuote) {
			t.Errorf("expected ErrUnterminatedQuote, got %v", err)
		}
	})
}

func TestFlagValue(t *testing.T) {
	t.Parallel()

	args := []string{"--url", "https://a.example", "--key=abc", "--flag"}
	if v, ok := FlagValue(args, "--url"); !ok || v != "https://a.example" {
		t.Errorf("expected url, got %q %v", v, ok)
	}
	if v, ok := FlagValue(args, "--key"); !ok || v != "abc" {
		t.Errorf("expected abc, got %q %v", v, ok)
	}
	if _, ok := FlagValue(args, "--flag"); ok {
		t.Error("expected trailing flag without value to be absent")
	}
}

func TestTrimOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 10, want: "abc"},
		{name: "ascii cut", in: "abcdef", n: 3, want: "abc"},
		{name: "cut inside rune", in: "aé", n: 2, want: "a"},
		{name: "cut inside wide rune", in: "日本", n: 4, want: "日"},
		{name: "cut on boundary", in: "aéb", n: 3, want: "aé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := trimOutput(tt.in, tt.n); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register("", ProcessorFunc(nil)); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}

	echo := ProcessorFunc(func(_ context.Context, args string) Result {
		return Result{Success: true, Message: args}
	})
	if err := r.Register(NameNmap, echo); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(NameCrawl, echo); err != nil {
		t.Fatal(err)
	}

	p, ok := r.GetProcessor(NameNmap)
	if !ok {
		t.Fatal("expected nmap processor")
	}
	if res := p.Run(context.Background(), "x"); res.Message != "x" {
		t.Errorf("expected echo, got %q", res.Message)
	}
	if got := r.Names(); !slices.Equal(got, []string{NameCrawl, NameNmap}) {
		t.Errorf("unexpected names %v", got)
	}

	if err := r.Register(NameNmap, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.GetProcessor(NameNmap); ok {
		t.Error("expected nil registration to remove the processor")
	}
}

func TestExecProcessor(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("captures output", func(t *testing.T) {
		t.Parallel()

		p := NewExecProcessor("sh", WithPrefixArgs("-c", `echo "$0 $1"`))
		res := p.Run(context.Background(), `"Host is up" "443/tcp open"`)
		if !res.Success {
			t.Fatalf("expected success, got %q", res.Message)
		}
		if res.Message != "Host is up 443/tcp open" {
			t.Errorf("unexpected message %q", res.Message)
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		t.Parallel()

		p := NewExecProcessor("sh", WithPrefixArgs("-c", "echo boom; exit 3"))
		res := p.Run(context.Background(), "")
		if res.Success {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Message, "code 3") || !strings.Contains(res.Message, "boom") {
			t.Errorf("unexpected message %q", res.Message)
		}
	})

	t.Run("environment injection", func(t *testing.T) {
		t.Parallel()

		p := NewExecProcessor("sh", WithPrefixArgs("-c", "echo $PROBE_MODE"), WithEnv("PROBE_MODE=listen"))
		if res := p.Run(context.Background(), ""); res.Message != "listen" {
			t.Errorf("expected listen, got %q", res.Message)
		}
	})

	t.Run("output cap keeps whole runes", func(t *testing.T) {
		t.Parallel()

		// "é" is two bytes, so a 4 byte cap falls inside the second rune.
		p := NewExecProcessor("sh", WithPrefixArgs("-c", "printf 'aéé'"), WithMaxOutput(4))
		res := p.Run(context.Background(), "")
		if !utf8.ValidString(res.Message) {
			t.Fatalf("expected valid UTF-8, got %q", res.Message)
		}
		if res.Message != "aé" {
			t.Errorf("expected %q, got %q", "aé", res.Message)
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		t.Parallel()

		res := NewExecProcessor("netprobe-no-such-binary").Run(context.Background(), "")
		if res.Success || !strings.HasPrefix(res.Message, "Error:") {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("bad quoting never starts the binary", func(t *testing.T) {
		t.Parallel()

		res := NewExecProcessor("sh").Run(context.Background(), `--key "open`)
		if res.Success || !strings.Contains(res.Message, "unterminated") {
			t.Errorf("unexpected result %+v", res)
		}
	})
}

func TestCrawlProcessor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><a href="/ok">ok</a><a href="/gone">gone</a></body></html>`)
		case "/ok":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body>fine</body></html>`)
		default:
			http.Error(w, "gone", http.StatusGone)
		}
	}))
	t.Cleanup(srv.Close)

	p := NewCrawlProcessor(srv.Client(), crawler.WithRate(0))

	t.Run("reports failed pages with error marker", func(t *testing.T) {
		t.Parallel()

		res := p.Run(context.Background(), "--url "+srv.URL+"/")
		if !res.Success {
			t.Fatalf("expected command success, got %q", res.Message)
		}
		if !strings.HasPrefix(res.Message, "Crawled 3 pages") {
			t.Errorf("unexpected summary %q", res.Message)
		}
		if !strings.Contains(res.Message, "Error: "+srv.URL+"/gone status 410") {
			t.Errorf("expected failure line, got %q", res.Message)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		t.Parallel()

		if res := p.Run(context.Background(), "--depth 2"); res.Success {
			t.Errorf("expected failure, got %+v", res)
		}
	})
}

func TestKeepAliveProcessor(t *testing.T) {
	t.Parallel()

	t.Run("wakes after a few attempts", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p := NewKeepAliveProcessor(srv.Client(), 10*time.Millisecond)
		res := p.Run(context.Background(), "--url "+srv.URL)
		if !res.Success || !strings.Contains(res.Message, "after 3 attempt(s)") {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("gives up at the deadline", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		res := NewKeepAliveProcessor(srv.Client(), 20*time.Millisecond).Run(ctx, "--url "+srv.URL)
		if !strings.Contains(res.Message, MsgSiteNotReady) {
			t.Errorf("expected %q in message, got %q", MsgSiteNotReady, res.Message)
		}
	})
}
