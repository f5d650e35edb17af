package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/netprobe/internal/probe"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *ResultDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func result(entityID int, up bool, rtt int64, at time.Time) probe.Result {
	r := probe.Result{
		EntityID:  entityID,
		CycleID:   uuid.New(),
		IsUp:      up,
		Message:   "OK",
		EventTime: at,
		Snapshot:  probe.StatusSnapshot{Status: "OK", RoundTripTime: rtt, StatusCode: 200},
	}
	if !up {
		r.Message = "HTTP: Failed to connect: refused"
		r.Snapshot = probe.StatusSnapshot{Status: probe.StatusException, RoundTripTime: probe.UnknownRoundTrip}
	}
	return r
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("expected database file, got %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("missing database without create", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent")
		_, err := Open(dbDir, Options{})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Errorf("expected ErrDatabaseNotFound, got %v", err)
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("expected directory not to be created")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := db1.SaveSiteHash(context.Background(), 1, "abc"); err != nil {
			t.Fatal(err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer db2.Close()

		hashes, err := db2.SiteHashes(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if hashes[1] != "abc" {
			t.Errorf("expected persisted hash, got %v", hashes)
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

func TestSaveAndQueryResults(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := probe.Settings{EntityID: 1, EndpointType: "http", Address: "example.com"}

	first := result(1, true, 42, base)
	if err := db.SaveResult(ctx, s, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.SaveResult(ctx, s, result(1, false, 0, base.Add(time.Minute))); err != nil {
		t.Fatalf("save: %v", err)
	}
	other := probe.Settings{EntityID: 2, EndpointType: "icmp", Address: "192.0.2.1"}
	if err := db.SaveResult(ctx, other, result(2, true, 3, base)); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Run("recent results newest first", func(t *testing.T) {
		t.Parallel()

		recs, err := db.RecentResults(ctx, 1, 10)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("expected 2 records, got %d", len(recs))
		}
		if recs[0].IsUp || recs[0].RoundTrip != nil {
			t.Errorf("expected newest record down without round trip, got %+v", recs[0])
		}
		if !recs[1].IsUp || recs[1].RoundTrip == nil || *recs[1].RoundTrip != 42*time.Millisecond {
			t.Errorf("expected oldest record up with 42ms, got %+v", recs[1])
		}
		if recs[1].CycleID != first.CycleID {
			t.Errorf("expected cycle id %v, got %v", first.CycleID, recs[1].CycleID)
		}
		if !recs[1].EventTime.Equal(base) {
			t.Errorf("expected event time %v, got %v", base, recs[1].EventTime)
		}
		if recs[1].EndpointType != "http" || recs[1].StatusCode != 200 {
			t.Errorf("unexpected record %+v", recs[1])
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		recs, err := db.RecentResults(ctx, 1, 1)
		if err != nil || len(recs) != 1 {
			t.Errorf("expected 1 record, got %d (%v)", len(recs), err)
		}
		if _, err := db.RecentResults(ctx, 1, 0); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("expected ErrInvalidLimit, got %v", err)
		}
	})

	t.Run("latest per entity", func(t *testing.T) {
		t.Parallel()

		recs, err := db.LatestResults(ctx)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(recs) != 2 || recs[0].EntityID != 1 || recs[1].EntityID != 2 {
			t.Fatalf("unexpected latest records %+v", recs)
		}
		if recs[0].IsUp {
			t.Error("expected latest result of entity 1 to be down")
		}
	})
}

func TestResultRecordProbe(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := probe.Settings{EntityID: 4, EndpointType: "dns", Address: "example.com"}

	if err := db.SaveResult(ctx, s, result(4, true, 17, at)); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveResult(ctx, s, result(4, false, 0, at.Add(time.Second))); err != nil {
		t.Fatal(err)
	}
	recs, err := db.RecentResults(ctx, 4, 2)
	if err != nil {
		t.Fatal(err)
	}

	gotS, gotDown := recs[0].Probe()
	if gotS.EndpointType != "dns" || gotS.Address != "example.com" || gotS.EntityID != 4 {
		t.Errorf("unexpected settings %+v", gotS)
	}
	if gotDown.Snapshot.RoundTripTime != probe.UnknownRoundTrip || gotDown.IsUp {
		t.Errorf("expected failed result with unknown round trip, got %+v", gotDown)
	}
	_, gotUp := recs[1].Probe()
	if rtt, ok := gotUp.RoundTrip(); !ok || rtt != 17*time.Millisecond {
		t.Errorf("expected 17ms, got %v (%v)", rtt, ok)
	}
	if !gotUp.Completed() {
		t.Error("expected completed result")
	}
}

func TestPruneBefore(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := probe.Settings{EntityID: 1, EndpointType: "icmp", Address: "192.0.2.1"}

	for i := range 3 {
		if err := db.SaveResult(ctx, s, result(1, true, 1, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.PruneBefore(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows pruned, got %d", n)
	}
	recs, err := db.RecentResults(ctx, 1, 10)
	if err != nil || len(recs) != 1 {
		t.Errorf("expected 1 remaining record, got %d (%v)", len(recs), err)
	}
}

func TestSiteHashes(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.SaveSiteHash(ctx, 7, "first"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSiteHash(ctx, 7, "second"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSiteHash(ctx, 8, "other"); err != nil {
		t.Fatal(err)
	}

	hashes, err := db.SiteHashes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 2 || hashes[7] != "second" || hashes[8] != "other" {
		t.Errorf("unexpected hashes %v", hashes)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		zero bool
	}{
		{in: "2026-03-01T12:00:00.000000000Z"},
		{in: "2026-03-01 12:00:00"},
		{in: "2026-03-01T12:00:00Z"},
		{in: "garbage", zero: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			if got := parseTimestamp(tt.in); got.IsZero() != tt.zero {
				t.Errorf("expected zero=%v, got %v", tt.zero, got)
			}
		})
	}
}
