package migrate

import (
	"context"

	"github.com/IzzySoft/StoneStepsWebalizer/engine"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// backfillDailyHourlyVersionStep re-packs every daily/hourly row still
// present under its original key, stamping it with the current record
// version — for a database written before release 3.3.1.5 introduced
// version tags on these two kinds at all. Sysnode.FixedDHV is set once done
// so the step never runs twice against the same database.
type backfillDailyHourlyVersionStep struct{}

func (backfillDailyHourlyVersionStep) Name() string { return "backfill-daily-hourly-version" }

func (backfillDailyHourlyVersionStep) Applies(sys *node.Sysnode) bool { return !sys.FixedDHV }

func (backfillDailyHourlyVersionStep) Run(ctx context.Context, eng *engine.State) error {
	store := eng.Store()

	type dailyRow struct {
		key storage.Key
		row *node.DailyTotals
	}
	var daily []dailyRow
	if err := scanInto(ctx, store, boltstore.TableDaily, func(item storage.Item) {
		d, _, err := node.UnpackDailyTotals(item.Value)
		if err != nil {
			return
		}
		daily = append(daily, dailyRow{key: item.Key, row: d})
	}); err != nil {
		return err
	}
	for _, r := range daily {
		if err := store.Put(ctx, boltstore.TableDaily, r.key, r.row.Pack()); err != nil {
			return err
		}
	}

	type hourlyRow struct {
		key storage.Key
		row *node.HourlyTotals
	}
	var hourly []hourlyRow
	if err := scanInto(ctx, store, boltstore.TableHourly, func(item storage.Item) {
		h, _, err := node.UnpackHourlyTotals(item.Value)
		if err != nil {
			return
		}
		hourly = append(hourly, hourlyRow{key: item.Key, row: h})
	}); err != nil {
		return err
	}
	for _, r := range hourly {
		if err := store.Put(ctx, boltstore.TableHourly, r.key, r.row.Pack()); err != nil {
			return err
		}
	}

	eng.Sysnode.FixedDHV = true
	eng.Sysnode.Dirty = true
	return nil
}

// scanInto drains table into fn, closing the cursor before the caller
// issues any writes of its own — Put opens its own transaction and must
// not race a still-open read cursor's.
func scanInto(ctx context.Context, store storage.Store, table string, fn func(storage.Item)) error {
	cur, err := store.Scan(ctx, table, false)
	if err != nil {
		return err
	}
	for cur.Next() {
		fn(cur.Item())
	}
	if err := cur.Err(); err != nil {
		_ = cur.Close()
		return err
	}
	return cur.Close()
}
