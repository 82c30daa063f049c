package migrate

import (
	"context"
	"time"

	"github.com/IzzySoft/StoneStepsWebalizer/engine"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/serial"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// backfillHostLastTimestampStep fills in Host.LastTime for rows written by
// a build older than v4, which carried no per-host timestamp field at all.
// Only hosts the dhosts auxiliary table records as seen today are touched —
// dhosts is exactly the set of hosts the current day's activity has already
// accounted for — and each is stamped with the start of the running month's
// current day (floor(cur_tstamp/86400)*86400), the closest available
// approximation absent a genuine per-host history. dhosts itself is then
// drained, since its only consumer is this step and a fresh run repopulates
// it from scratch as hosts are seen.
//
// In practice this step never runs through the CLI: Sysnode.CompatibilityError
// already refuses to open a database whose AppVersionLastWritten predates
// MinSupportedAppVersionMajor, which is exactly the condition Applies checks
// for. It is kept as a real, independently runnable step — and tested
// directly — for the same reason the v4 Host codec still carries the
// pre-v4 decode branch at all: a database this old reaching migrate.Run at
// some point (a relaxed compatibility floor in a later build, say) should
// not find the step missing.
type backfillHostLastTimestampStep struct{}

func (backfillHostLastTimestampStep) Name() string { return "backfill-host-last-timestamp" }

func (backfillHostLastTimestampStep) Applies(sys *node.Sysnode) bool {
	return sys.AppVersionLastWritten.Major < node.MinSupportedAppVersionMajor
}

func (backfillHostLastTimestampStep) Run(ctx context.Context, eng *engine.State) error {
	store := eng.Store()

	fallback := startOfDay(currentTimestamp(ctx, store))

	dhosts := map[uint64]bool{}
	if err := scanInto(ctx, store, boltstore.TableDHosts, func(item storage.Item) {
		dhosts[decodeID(item.Key)] = true
	}); err != nil {
		return err
	}

	type hostRow struct {
		key storage.Key
		h   *node.Host
	}
	var stale []hostRow
	if err := scanInto(ctx, store, boltstore.TableHosts, func(item storage.Item) {
		h, _, err := node.UnpackHost(item.Value)
		if err != nil || !h.LastTime.Null || !dhosts[h.ID] {
			return
		}
		stale = append(stale, hostRow{key: item.Key, h: h})
	}); err != nil {
		return err
	}

	for _, r := range stale {
		r.h.LastTime = fallback
		if err := store.Put(ctx, boltstore.TableHosts, r.key, r.h.Pack()); err != nil {
			return err
		}
	}

	for id := range dhosts {
		if err := store.Delete(ctx, boltstore.TableDHosts, idKey(id)); err != nil {
			return err
		}
		if err := store.DeleteIndex(ctx, boltstore.IndexDHosts, idKey(id)); err != nil {
			return err
		}
	}
	return nil
}

// startOfDay floors ts to midnight UTC of the same instant, preserving its
// UTC offset — the Timestamp equivalent of floor(cur_tstamp/86400)*86400
// over a raw Unix timestamp.
func startOfDay(ts serial.Timestamp) serial.Timestamp {
	if ts.Null {
		return ts
	}
	unix := ts.Time().Unix()
	floored := unix - unix%86400
	loc := time.FixedZone("", int(ts.UTCOffM)*60)
	return serial.FromTime(time.Unix(floored, 0).In(loc))
}

// currentTimestamp reads the month's running timestamp directly from
// storage rather than eng.Totals, which is still unpopulated at the point
// in the lifecycle migrate steps run.
func currentTimestamp(ctx context.Context, store storage.Store) serial.Timestamp {
	buf, err := store.Get(ctx, boltstore.TableTotals, idKey(0))
	if err != nil {
		return serial.Timestamp{Null: true}
	}
	t, _, err := node.UnpackTotals(buf)
	if err != nil {
		return serial.Timestamp{Null: true}
	}
	return t.CurTimestamp
}
