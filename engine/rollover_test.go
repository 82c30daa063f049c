package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

func TestClearMonthArchivesAndResetsState(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	opts := testOptions(t, dbPath)

	s := openState(t, dbPath, opts)
	t.Cleanup(func() { _ = s.Cleanup(ctx) })

	ts := serial.Timestamp{Year: 2020, Month: 6, Day: 15, Hour: 10}
	if err := s.RecordHit(ctx, sampleRecord("10.0.0.1", "/index.html", ts)); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}
	if s.Totals.Hits == 0 {
		t.Fatal("expected at least one recorded hit before rollover")
	}

	if err := s.ClearMonth(ctx); err != nil {
		t.Fatalf("ClearMonth: %v", err)
	}

	if s.Totals.Hits != 0 {
		t.Fatalf("Totals.Hits after ClearMonth = %d, want 0", s.Totals.Hits)
	}
	if _, ok := s.Hosts.Find("10.0.0.1"); ok {
		t.Fatal("expected the host table to be cleared after ClearMonth")
	}
	if !s.Sysnode.Dirty {
		t.Fatal("expected Sysnode to be marked dirty after ClearMonth")
	}

	archived := filepath.Join(filepath.Dir(dbPath), "test-2020-06.db")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("expected archived database at %s: %v", archived, err)
	}

	if err := s.RecordHit(ctx, sampleRecord("10.0.0.2", "/about.html", ts)); err != nil {
		t.Fatalf("RecordHit after rollover: %v", err)
	}
	if err := s.SaveState(ctx); err != nil {
		t.Fatalf("SaveState after rollover: %v", err)
	}
}
