package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/netprobe/internal/config"
	"github.com/nao1215/netprobe/internal/database"
	"github.com/nao1215/netprobe/internal/endpoint"
	"github.com/nao1215/netprobe/internal/log"
	"github.com/nao1215/netprobe/internal/model"
	"github.com/nao1215/netprobe/internal/probe"
)

// TestNewRunCmd tests the run command creation.
func TestNewRunCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "run" {
			t.Errorf("expected use 'run', got %q", cmd.Use)
		}
	})

	t.Run("has scheduler flags", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name      string
			shorthand string
		}{
			{name: "interval", shorthand: "i"},
			{name: "cycles", shorthand: "n"},
			{name: "timeout", shorthand: "t"},
			{name: "proxy", shorthand: "x"},
			{name: "format", shorthand: "f"},
			{name: "output", shorthand: "o"},
			{name: "concurrency"},
			{name: "max-queue"},
			{name: "db-dir"},
			{name: "no-db"},
		}
		for _, tt := range tests {
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q for %s, got %q", tt.shorthand, tt.name, flag.Shorthand)
			}
		}
	})
}

// monitorConfig returns a probe file with an up, a down and a disabled probe.
func monitorConfig(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return writeConfig(t, fmt.Sprintf(`
settings:
  timeout: 2s
probes:
  - id: 1
    type: http
    address: %s
  - id: 2
    type: rawconnect
    address: 127.0.0.1
    port: %d
  - id: 3
    type: http
    address: %s
    enabled: false
`, srv.URL, closedPort(t), srv.URL))
}

func TestRunRunCmd(t *testing.T) {
	t.Parallel()

	t.Run("runs one cycle and prints a JSON report", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "run", "-c", monitorConfig(t), "-n", "1", "--no-db", "-f", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var rep model.StatusReport
		if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
			t.Fatalf("expected one JSON report, got %v: %q", err, stdout)
		}
		if rep.Total != 2 {
			t.Errorf("expected disabled probe to be left out, got %d entries", rep.Total)
		}
		if rep.Up != 1 || rep.Down != 1 {
			t.Errorf("expected 1 up and 1 down, got up=%d down=%d", rep.Up, rep.Down)
		}
	})

	t.Run("writes the report to a file", func(t *testing.T) {
		t.Parallel()

		reportPath := filepath.Join(t.TempDir(), "reports", "status.md")
		stdout, _, err := execute(t, "run", "-c", monitorConfig(t), "-n", "1", "--no-db",
			"-f", "markdown", "-o", reportPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected nothing on stdout, got %q", stdout)
		}

		content, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), "Netprobe Status Report") {
			t.Errorf("expected markdown report, got %q", content)
		}
	})

	t.Run("stores results for history", func(t *testing.T) {
		t.Parallel()

		cfgPath := monitorConfig(t)
		dbDir := t.TempDir()
		if _, _, err := execute(t, "run", "-c", cfgPath, "-n", "2", "-i", "10ms", "--db-dir", dbDir, "-f", "json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stdout, _, err := execute(t, "history", "-c", cfgPath, "--db-dir", dbDir, "-f", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var latest model.StatusReport
		if err := json.Unmarshal([]byte(stdout), &latest); err != nil {
			t.Fatalf("expected JSON history, got %v: %q", err, stdout)
		}
		if latest.Total != 2 {
			t.Errorf("expected latest result of 2 probes, got %d", latest.Total)
		}

		stdout, _, err = execute(t, "history", "-c", cfgPath, "--db-dir", dbDir, "--id", "1", "-f", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var recent model.StatusReport
		if err := json.Unmarshal([]byte(stdout), &recent); err != nil {
			t.Fatalf("expected JSON history, got %v: %q", err, stdout)
		}
		if recent.Total != 2 {
			t.Errorf("expected 2 results of probe 1, got %d", recent.Total)
		}
		for _, e := range recent.Entries {
			if e.EntityID != 1 || !e.IsUp {
				t.Errorf("expected up results of probe 1, got %+v", e)
			}
		}
	})

	t.Run("requires probes", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "run", "-c", writeConfig(t, "# empty\n"), "-n", "1", "--no-db")
		if err == nil || !strings.Contains(err.Error(), config.ErrNoProbes.Error()) {
			t.Errorf("expected no probes error, got %v", err)
		}
	})

	t.Run("rejects conflicting proxy settings", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "run", "-c", monitorConfig(t), "-n", "1", "--no-db",
			"--proxy", "127.0.0.1:9050", "--embedded-tor")
		if err == nil || !strings.Contains(err.Error(), "configuration error") {
			t.Errorf("expected configuration error, got %v", err)
		}
	})
}

func TestMonitorSiteHashes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() }) //nolint:errcheck // test cleanup

	if err := db.SaveSiteHash(ctx, 5, "abc"); err != nil {
		t.Fatal(err)
	}

	logger, _, err := log.New(log.Options{Console: &strings.Builder{}})
	if err != nil {
		t.Fatal(err)
	}
	m := newMonitor(config.NewConfig(), db, endpoint.Default(), logger, &strings.Builder{})

	settings := []probe.Settings{
		{EntityID: 5, EndpointType: endpoint.SiteHash, Address: "https://example.com", SiteHash: "seed"},
		{EntityID: 6, EndpointType: endpoint.HTTP, Address: "example.com"},
	}
	if err := m.restoreSiteHashes(ctx, settings); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings[0].SiteHash != "abc" {
		t.Errorf("expected stored hash to win, got %q", settings[0].SiteHash)
	}
	if settings[1].SiteHash != "" {
		t.Errorf("expected non sitehash probe untouched, got %q", settings[1].SiteHash)
	}

	m.saveSiteHash(ctx, 5, "def")
	hashes, err := db.SiteHashes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if hashes[5] != "def" {
		t.Errorf("expected updated hash def, got %q", hashes[5])
	}
}

func TestHistoryWithoutDatabase(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "history", "-c", writeConfig(t, "# empty\n"), "--db-dir", filepath.Join(t.TempDir(), "none"))
	if err == nil || !strings.Contains(err.Error(), "no history found") {
		t.Errorf("expected no history error, got %v", err)
	}
}
