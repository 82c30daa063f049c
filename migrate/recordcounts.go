package migrate

import (
	"context"

	"github.com/IzzySoft/StoneStepsWebalizer/engine"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// backfillRecordCountsStep recomputes Totals.Downloads, .SearchHits and the
// per-kind Group* distinct counts by counting rows in the storage engine's
// own tables, for a database written before these fields existed at all.
// Downloads and SearchHits take the row count of their respective tables
// directly; the Group* counts take the row count of IsGroup rows in
// hosts/referrers/agents/users. URLs and search terms carry no group
// concept of their own, so GroupURLs and GroupSearches are left at zero.
type backfillRecordCountsStep struct{}

func (backfillRecordCountsStep) Name() string { return "backfill-record-counts" }

func (backfillRecordCountsStep) Applies(sys *node.Sysnode) bool {
	return sys.AppVersionLastWritten.Major < node.MinSupportedAppVersionMajor
}

func (backfillRecordCountsStep) Run(ctx context.Context, eng *engine.State) error {
	store := eng.Store()

	downloads, err := countRows(ctx, store, boltstore.TableDownloads)
	if err != nil {
		return err
	}
	searches, err := countRows(ctx, store, boltstore.TableSearch)
	if err != nil {
		return err
	}
	groupHosts, err := countGroupRows(ctx, store, boltstore.TableHosts, func(v []byte) (bool, error) {
		h, _, err := node.UnpackHost(v)
		if err != nil {
			return false, err
		}
		return h.IsGroup, nil
	})
	if err != nil {
		return err
	}
	groupReferrers, err := countGroupRows(ctx, store, boltstore.TableReferrers, func(v []byte) (bool, error) {
		r, _, err := node.UnpackReferrer(v)
		if err != nil {
			return false, err
		}
		return r.IsGroup, nil
	})
	if err != nil {
		return err
	}
	groupAgents, err := countGroupRows(ctx, store, boltstore.TableAgents, func(v []byte) (bool, error) {
		a, _, err := node.UnpackAgent(v)
		if err != nil {
			return false, err
		}
		return a.IsGroup, nil
	})
	if err != nil {
		return err
	}
	groupUsers, err := countGroupRows(ctx, store, boltstore.TableUsers, func(v []byte) (bool, error) {
		u, _, err := node.UnpackUser(v)
		if err != nil {
			return false, err
		}
		return u.IsGroup, nil
	})
	if err != nil {
		return err
	}

	buf, err := store.Get(ctx, boltstore.TableTotals, idKey(0))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil
		}
		return err
	}
	t, _, err := node.UnpackTotals(buf)
	if err != nil {
		return err
	}
	t.Downloads = downloads
	t.SearchHits = searches
	t.GroupHosts = groupHosts
	t.GroupReferrers = groupReferrers
	t.GroupAgents = groupAgents
	t.GroupUsers = groupUsers
	return store.Put(ctx, boltstore.TableTotals, idKey(0), t.Pack())
}

func countRows(ctx context.Context, store storage.Store, table string) (uint64, error) {
	var n uint64
	if err := scanInto(ctx, store, table, func(_ storage.Item) { n++ }); err != nil {
		return 0, err
	}
	return n, nil
}

func countGroupRows(ctx context.Context, store storage.Store, table string, isGroup func([]byte) (bool, error)) (uint64, error) {
	var n uint64
	var firstErr error
	if err := scanInto(ctx, store, table, func(item storage.Item) {
		ok, err := isGroup(item.Value)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		if ok {
			n++
		}
	}); err != nil {
		return 0, err
	}
	return n, firstErr
}
