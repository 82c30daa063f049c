package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/serial"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

func testOptions(t *testing.T, dbPath string) Options {
	t.Helper()
	return Options{
		DBPath:      dbPath,
		HistoryPath: filepath.Join(filepath.Dir(dbPath), "webalizer.hist"),
		Incremental: true,
		MemoryMode:  true,
	}
}

func openState(t *testing.T, dbPath string, opts Options) *State {
	t.Helper()
	db, err := boltstore.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := New(zap.NewNop(), db, opts)
	s.InstallStatusCodes([]uint16{200, 404})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

func sampleRecord(host, url string, ts serial.Timestamp) *node.LogRecord {
	return &node.LogRecord{
		Timestamp: ts,
		Host:      host,
		Method:    "GET",
		URL:       url,
		Status:    200,
		Bytes:     1024,
		Agent:     "test-agent",
	}
}

func TestLifecycleSaveAndRestoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	opts := testOptions(t, dbPath)

	s := openState(t, dbPath, opts)
	if err := s.RestoreState(ctx); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}

	ts := serial.Timestamp{Year: 2020, Month: 6, Day: 1, Hour: 10}
	if err := s.RecordHit(ctx, sampleRecord("10.0.0.1", "/index.html", ts)); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}
	if err := s.RecordHit(ctx, sampleRecord("10.0.0.2", "/about.html", ts)); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}

	wantHits := s.Totals.Hits
	wantHosts := s.Totals.Hosts

	if err := s.SaveState(ctx); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	reopened := openState(t, dbPath, opts)
	if err := reopened.RestoreState(ctx); err != nil {
		t.Fatalf("RestoreState (reopen): %v", err)
	}
	t.Cleanup(func() { _ = reopened.Cleanup(ctx) })

	if reopened.Totals.Hits != wantHits {
		t.Fatalf("restored Totals.Hits = %d, want %d", reopened.Totals.Hits, wantHits)
	}
	if reopened.Totals.Hosts != wantHosts {
		t.Fatalf("restored Totals.Hosts = %d, want %d", reopened.Totals.Hosts, wantHosts)
	}
	if _, ok := reopened.Hosts.Find("10.0.0.1"); !ok {
		t.Fatal("expected host 10.0.0.1 to survive the round trip")
	}
}

func TestInitializeRefusesIncrementalMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	opts := testOptions(t, dbPath)
	s := openState(t, dbPath, opts)
	if err := s.SaveState(ctx); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	mismatched := opts
	mismatched.Incremental = false
	db, err := boltstore.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = db.Close() }()
	other := New(zap.NewNop(), db, mismatched)
	if err := other.Initialize(ctx); !errors.Is(err, ErrTruncationRefused) {
		t.Fatalf("Initialize across an Incremental mismatch = %v, want ErrTruncationRefused", err)
	}
}

func TestReportOnlyRestoreSkipsSwappableTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	opts := testOptions(t, dbPath)

	s := openState(t, dbPath, opts)
	ts := serial.Timestamp{Year: 2020, Month: 6, Day: 1, Hour: 10}
	if err := s.RecordHit(ctx, sampleRecord("10.0.0.1", "/index.html", ts)); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}
	if err := s.SaveState(ctx); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	roOpts := opts
	roOpts.ReportOnly = true
	ro := openState(t, dbPath, roOpts)
	t.Cleanup(func() { _ = ro.Cleanup(ctx) })
	if err := ro.RestoreState(ctx); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	if ro.Totals.Hits == 0 {
		t.Fatal("expected report-only restore to still load totals")
	}
	if _, ok := ro.Hosts.Find("10.0.0.1"); ok {
		t.Fatal("expected report-only restore to skip loading the swappable host table")
	}
}

func TestMemoryModeOffResumeReusesSwappedOutHost(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	opts := testOptions(t, dbPath)
	opts.MemoryMode = false

	s := openState(t, dbPath, opts)
	if err := s.RestoreState(ctx); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}

	ts := serial.Timestamp{Year: 2020, Month: 6, Day: 1, Hour: 10}
	if err := s.RecordHit(ctx, sampleRecord("10.0.0.1", "/index.html", ts)); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}
	host, ok := s.Hosts.Find("10.0.0.1")
	if !ok {
		t.Fatal("expected host 10.0.0.1 to be resident after RecordHit")
	}
	wantID := host.ID
	wantHosts := s.Totals.Hosts

	if err := s.SaveState(ctx); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	// The host still has an open visit, so SaveState's end-of-run SwapOut
	// keeps it, and the memory-mode-off restore reloads it with that visit.
	reopened := openState(t, dbPath, opts)
	t.Cleanup(func() { _ = reopened.Cleanup(ctx) })
	if err := reopened.RestoreState(ctx); err != nil {
		t.Fatalf("RestoreState (reopen): %v", err)
	}
	if _, ok := reopened.Hosts.Find("10.0.0.1"); !ok {
		t.Fatal("expected the host pinned by its active visit to be reloaded on a memory-mode-off resume")
	}
	if !reopened.Hosts.SwappedOut() {
		t.Fatal("expected a memory-mode-off resume to mark the Hosts table swapped out")
	}

	ts2 := serial.Timestamp{Year: 2020, Month: 6, Day: 1, Hour: 11}
	if err := reopened.RecordHit(ctx, sampleRecord("10.0.0.1", "/other.html", ts2)); err != nil {
		t.Fatalf("RecordHit (reopen): %v", err)
	}

	got, ok := reopened.Hosts.Find("10.0.0.1")
	if !ok {
		t.Fatal("expected host 10.0.0.1 to be resident after the second RecordHit")
	}
	if got.ID != wantID {
		t.Fatalf("resumed host id = %d, want %d (a store consult should rehydrate the existing row, not mint a new one)", got.ID, wantID)
	}
	if reopened.Totals.Hosts != wantHosts {
		t.Fatalf("Totals.Hosts after resume = %d, want %d (a rehydrated host must not be counted as new)", reopened.Totals.Hosts, wantHosts)
	}
}

func TestRecordHitFoldsIntoDailyAndHourlyTotals(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()
	opts := testOptions(t, dbPath)

	s := openState(t, dbPath, opts)
	t.Cleanup(func() { _ = s.Cleanup(ctx) })
	if err := s.RestoreState(ctx); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}

	ts := serial.Timestamp{Year: 2020, Month: 6, Day: 15, Hour: 10}
	if err := s.RecordHit(ctx, sampleRecord("10.0.0.1", "/index.html", ts)); err != nil {
		t.Fatalf("RecordHit: %v", err)
	}

	if got := s.Daily[14].Hits; got != 1 {
		t.Fatalf("Daily[14].Hits = %d, want 1 (a single hit must be visible before save)", got)
	}

	// No hour transition has happened yet, so the hour accumulator is only
	// folded into HourlyTotals by SaveState's explicit flush.
	if got := s.Hourly[10].Hits; got != 0 {
		t.Fatalf("Hourly[10].Hits before save = %d, want 0", got)
	}
	if err := s.SaveState(ctx); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if got := s.Hourly[10].Hits; got != 1 {
		t.Fatalf("Hourly[10].Hits after save = %d, want 1", got)
	}
	if got := s.Daily[14].MaxHitsPerHour; got != 1 {
		t.Fatalf("Daily[14].MaxHitsPerHour after save = %d, want 1", got)
	}
}
