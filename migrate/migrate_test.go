package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/IzzySoft/StoneStepsWebalizer/engine"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/serial"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

func newTestState(t *testing.T) *engine.State {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := boltstore.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	eng := engine.New(zap.NewNop(), db, engine.Options{DBPath: path})
	eng.Sysnode = &node.Sysnode{}
	return eng
}

func TestRenumberSequencesStepRecoversMaxID(t *testing.T) {
	eng := newTestState(t)
	ctx := context.Background()
	store := eng.Store()

	host := &node.Host{ID: 5, Value: "10.0.0.1"}
	if err := store.Put(ctx, boltstore.TableHosts, idKey(host.ID), host.Pack()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	step := renumberSequencesStep{}
	if !step.Applies(eng.Sysnode) {
		t.Fatal("expected Applies to always report true")
	}
	if err := step.Run(ctx, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}

	next, err := store.NextSequence(ctx, boltstore.TableHosts)
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if next <= host.ID {
		t.Fatalf("sequence not advanced past existing max id: got %d, want > %d", next, host.ID)
	}
}

func TestRenumberSequencesStepNoopOnEmptyTable(t *testing.T) {
	eng := newTestState(t)
	ctx := context.Background()

	if err := (renumberSequencesStep{}).Run(ctx, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	seq, err := eng.Store().NextSequence(ctx, boltstore.TableHosts)
	if err != nil {
		t.Fatalf("NextSequence: %v", err)
	}
	if seq != 1 {
		t.Fatalf("sequence on an untouched table = %d, want 1", seq)
	}
}

func TestBackfillDailyHourlyVersionStepSetsFlag(t *testing.T) {
	eng := newTestState(t)
	ctx := context.Background()
	store := eng.Store()

	day := &node.DailyTotals{Day: 1, Hits: 100}
	if err := store.Put(ctx, boltstore.TableDaily, idKey(1), day.Pack()); err != nil {
		t.Fatalf("Put daily: %v", err)
	}
	hour := &node.HourlyTotals{Hour: 0, Hits: 50}
	if err := store.Put(ctx, boltstore.TableHourly, idKey(0), hour.Pack()); err != nil {
		t.Fatalf("Put hourly: %v", err)
	}

	step := backfillDailyHourlyVersionStep{}
	if step.Applies(eng.Sysnode) != true {
		t.Fatal("expected Applies to report true when FixedDHV is unset")
	}
	if err := step.Run(ctx, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !eng.Sysnode.FixedDHV {
		t.Fatal("expected FixedDHV to be set after Run")
	}
	if !eng.Sysnode.Dirty {
		t.Fatal("expected Sysnode to be marked dirty after Run")
	}

	buf, err := store.Get(ctx, boltstore.TableDaily, idKey(1))
	if err != nil {
		t.Fatalf("Get daily after backfill: %v", err)
	}
	got, _, err := node.UnpackDailyTotals(buf)
	if err != nil {
		t.Fatalf("UnpackDailyTotals: %v", err)
	}
	if got.Hits != 100 {
		t.Fatalf("daily row hits = %d, want 100", got.Hits)
	}

	if step.Applies(eng.Sysnode) {
		t.Fatal("expected Applies to report false once FixedDHV is set")
	}
}

func TestBackfillHostLastTimestampStepFillsMissingTimestamp(t *testing.T) {
	eng := newTestState(t)
	ctx := context.Background()
	store := eng.Store()

	cur := serial.Timestamp{Year: 2020, Month: 6, Day: 15, Hour: 10, Min: 30, Sec: 45}
	wantFloor := serial.Timestamp{Year: 2020, Month: 6, Day: 15}
	totals := &node.Totals{CurTimestamp: cur}
	if err := store.Put(ctx, boltstore.TableTotals, idKey(0), totals.Pack()); err != nil {
		t.Fatalf("Put totals: %v", err)
	}

	// stale is seen today (present in dhosts) and has no LastTime yet: the
	// step must backfill it with the floor of cur, not cur itself.
	stale := &node.Host{ID: 1, Value: "10.0.0.1", LastTime: serial.Timestamp{Null: true}}
	if err := store.Put(ctx, boltstore.TableHosts, idKey(stale.ID), stale.Pack()); err != nil {
		t.Fatalf("Put host: %v", err)
	}
	if err := store.Put(ctx, boltstore.TableDHosts, idKey(stale.ID), []byte{1}); err != nil {
		t.Fatalf("Put dhosts: %v", err)
	}
	if err := store.PutIndex(ctx, boltstore.IndexDHosts, idKey(stale.ID), stale.ID); err != nil {
		t.Fatalf("PutIndex dhosts: %v", err)
	}

	// untouched is also missing LastTime but was not seen today, so the
	// step must leave it alone.
	untouched := &node.Host{ID: 2, Value: "10.0.0.2", LastTime: serial.Timestamp{Null: true}}
	if err := store.Put(ctx, boltstore.TableHosts, idKey(untouched.ID), untouched.Pack()); err != nil {
		t.Fatalf("Put host: %v", err)
	}

	fresh := &node.Host{ID: 3, Value: "10.0.0.3", LastTime: serial.Timestamp{Year: 2021, Month: 1, Day: 1}}
	if err := store.Put(ctx, boltstore.TableHosts, idKey(fresh.ID), fresh.Pack()); err != nil {
		t.Fatalf("Put host: %v", err)
	}

	eng.Sysnode.AppVersionLastWritten = node.AppVersion{Major: node.MinSupportedAppVersionMajor - 1}
	step := backfillHostLastTimestampStep{}
	if !step.Applies(eng.Sysnode) {
		t.Fatal("expected Applies to report true for a pre-v4 AppVersionLastWritten")
	}
	if err := step.Run(ctx, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}

	buf, err := store.Get(ctx, boltstore.TableHosts, idKey(stale.ID))
	if err != nil {
		t.Fatalf("Get host: %v", err)
	}
	got, _, err := node.UnpackHost(buf)
	if err != nil {
		t.Fatalf("UnpackHost: %v", err)
	}
	if got.LastTime != wantFloor {
		t.Fatalf("LastTime = %+v, want %+v", got.LastTime, wantFloor)
	}

	buf, err = store.Get(ctx, boltstore.TableHosts, idKey(untouched.ID))
	if err != nil {
		t.Fatalf("Get host: %v", err)
	}
	got, _, err = node.UnpackHost(buf)
	if err != nil {
		t.Fatalf("UnpackHost: %v", err)
	}
	if !got.LastTime.Null {
		t.Fatalf("expected a host absent from dhosts to be left untouched, got %+v", got.LastTime)
	}

	buf, err = store.Get(ctx, boltstore.TableHosts, idKey(fresh.ID))
	if err != nil {
		t.Fatalf("Get host: %v", err)
	}
	got, _, err = node.UnpackHost(buf)
	if err != nil {
		t.Fatalf("UnpackHost: %v", err)
	}
	if got.LastTime.Year != 2021 {
		t.Fatalf("expected an already-set LastTime to survive untouched, got %+v", got.LastTime)
	}

	if size, err := store.IndexSize(ctx, boltstore.IndexDHosts); err != nil {
		t.Fatalf("IndexSize: %v", err)
	} else if size != 0 {
		t.Fatalf("dhosts index size after backfill = %d, want 0", size)
	}
	if c, err := store.Scan(ctx, boltstore.TableDHosts, false); err != nil {
		t.Fatalf("Scan dhosts: %v", err)
	} else {
		if c.Next() {
			t.Fatal("expected dhosts table to be empty after backfill")
		}
		_ = c.Close()
	}

	eng.Sysnode.AppVersionLastWritten = node.Current
	if step.Applies(eng.Sysnode) {
		t.Fatal("expected Applies to report false once AppVersionLastWritten meets the floor")
	}
}

func TestBackfillRecordCountsStepRecomputesFromRowCounts(t *testing.T) {
	eng := newTestState(t)
	ctx := context.Background()
	store := eng.Store()

	if err := store.Put(ctx, boltstore.TableTotals, idKey(0), (&node.Totals{}).Pack()); err != nil {
		t.Fatalf("Put totals: %v", err)
	}

	for i, h := range []*node.Host{
		{ID: 1, Value: "10.0.0.1", IsGroup: false},
		{ID: 2, Value: "10.0.0.2", IsGroup: true},
		{ID: 3, Value: "10.0.0.3", IsGroup: true},
	} {
		if err := store.Put(ctx, boltstore.TableHosts, idKey(uint64(i+1)), h.Pack()); err != nil {
			t.Fatalf("Put host: %v", err)
		}
	}
	for i, r := range []*node.Referrer{
		{ID: 1, Value: "direct", IsGroup: false},
		{ID: 2, Value: "search-engines", IsGroup: true},
	} {
		if err := store.Put(ctx, boltstore.TableReferrers, idKey(uint64(i+1)), r.Pack()); err != nil {
			t.Fatalf("Put referrer: %v", err)
		}
	}
	if err := store.Put(ctx, boltstore.TableDownloads, idKey(1), (&node.Download{ID: 1, Name: "a.zip"}).Pack()); err != nil {
		t.Fatalf("Put download: %v", err)
	}
	if err := store.Put(ctx, boltstore.TableDownloads, idKey(2), (&node.Download{ID: 2, Name: "b.zip"}).Pack()); err != nil {
		t.Fatalf("Put download: %v", err)
	}
	if err := store.Put(ctx, boltstore.TableSearch, idKey(1), (&node.Search{ID: 1, SearchType: "google", Terms: []string{"go"}}).Pack()); err != nil {
		t.Fatalf("Put search: %v", err)
	}

	eng.Sysnode.AppVersionLastWritten = node.AppVersion{Major: node.MinSupportedAppVersionMajor - 1}
	step := backfillRecordCountsStep{}
	if !step.Applies(eng.Sysnode) {
		t.Fatal("expected Applies to report true for a pre-v4 AppVersionLastWritten")
	}
	if err := step.Run(ctx, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}

	buf, err := store.Get(ctx, boltstore.TableTotals, idKey(0))
	if err != nil {
		t.Fatalf("Get totals: %v", err)
	}
	got, _, err := node.UnpackTotals(buf)
	if err != nil {
		t.Fatalf("UnpackTotals: %v", err)
	}
	if got.Downloads != 2 {
		t.Fatalf("Downloads = %d, want 2", got.Downloads)
	}
	if got.SearchHits != 1 {
		t.Fatalf("SearchHits = %d, want 1", got.SearchHits)
	}
	if got.GroupHosts != 2 {
		t.Fatalf("GroupHosts = %d, want 2", got.GroupHosts)
	}
	if got.GroupReferrers != 1 {
		t.Fatalf("GroupReferrers = %d, want 1", got.GroupReferrers)
	}
}

func TestRunAppliesEligibleStepsAndStampsVersion(t *testing.T) {
	eng := newTestState(t)
	ctx := context.Background()

	eng.Sysnode.AppVersionLastWritten = node.AppVersion{Major: node.MinSupportedAppVersionMajor}

	if err := Run(ctx, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if eng.Sysnode.AppVersionLastWritten != node.Current {
		t.Fatalf("AppVersionLastWritten = %+v, want %+v", eng.Sysnode.AppVersionLastWritten, node.Current)
	}
	if !eng.Sysnode.Dirty {
		t.Fatal("expected Sysnode to be marked dirty after Run")
	}
	if !eng.Sysnode.FixedDHV {
		t.Fatal("expected the daily/hourly backfill step to have run")
	}
}
