package engine

import (
	"context"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// writeIndexed persists value under id in table, first deleting whatever
// index entries the previously-persisted row (if any) held and replacing
// them with newKeys — the read-before-write pattern that keeps secondary
// indexes live-maintained without requiring callers to track prior field
// values themselves.
func writeIndexed(ctx context.Context, store storage.Store, table string, id uint64, value []byte,
	decodeOld func([]byte) []indexEntry, newKeys []indexEntry) error {
	var oldKeys []indexEntry
	if old, err := store.Get(ctx, table, idKey(id)); err == nil {
		oldKeys = decodeOld(old)
	}
	if err := reindex(ctx, store, oldKeys, newKeys, id); err != nil {
		return err
	}
	return store.Put(ctx, table, idKey(id), value)
}

func decodeOldHost(buf []byte) []indexEntry {
	h, _, err := node.UnpackHost(buf)
	if err != nil {
		return nil
	}
	return indexHostKeys(h)
}

func decodeOldURL(buf []byte) []indexEntry {
	u, _, err := node.UnpackURL(buf)
	if err != nil {
		return nil
	}
	return indexURLKeys(u)
}

func decodeOldReferrer(buf []byte) []indexEntry {
	r, _, err := node.UnpackReferrer(buf)
	if err != nil {
		return nil
	}
	return indexReferrerKeys(r)
}

func decodeOldAgent(buf []byte) []indexEntry {
	a, _, err := node.UnpackAgent(buf)
	if err != nil {
		return nil
	}
	return indexAgentKeys(a)
}

func decodeOldSearch(buf []byte) []indexEntry {
	s, _, err := node.UnpackSearch(buf)
	if err != nil {
		return nil
	}
	return indexSearchKeys(s)
}

func decodeOldUser(buf []byte) []indexEntry {
	u, _, err := node.UnpackUser(buf)
	if err != nil {
		return nil
	}
	return indexUserKeys(u)
}

func decodeOldError(buf []byte) []indexEntry {
	e, _, err := node.UnpackError(buf)
	if err != nil {
		return nil
	}
	return indexErrorKeys(e)
}

func decodeOldDownload(buf []byte) []indexEntry {
	d, _, err := node.UnpackDownload(buf)
	if err != nil {
		return nil
	}
	return indexDownloadKeys(d)
}

func (s *State) persistHost(ctx context.Context, h *node.Host) error {
	if err := writeIndexed(ctx, s.store, boltstore.TableHosts, h.ID, h.Pack(), decodeOldHost, indexHostKeys(h)); err != nil {
		return Error.Wrap(err)
	}
	h.Dirty = false
	return nil
}

func (s *State) persistURL(ctx context.Context, u *node.URL) error {
	if err := writeIndexed(ctx, s.store, boltstore.TableURLs, u.ID, u.Pack(), decodeOldURL, indexURLKeys(u)); err != nil {
		return Error.Wrap(err)
	}
	u.Dirty = false
	return nil
}

func (s *State) persistReferrer(ctx context.Context, r *node.Referrer) error {
	if err := writeIndexed(ctx, s.store, boltstore.TableReferrers, r.ID, r.Pack(), decodeOldReferrer, indexReferrerKeys(r)); err != nil {
		return Error.Wrap(err)
	}
	r.Dirty = false
	return nil
}

func (s *State) persistAgent(ctx context.Context, a *node.Agent) error {
	if err := writeIndexed(ctx, s.store, boltstore.TableAgents, a.ID, a.Pack(), decodeOldAgent, indexAgentKeys(a)); err != nil {
		return Error.Wrap(err)
	}
	a.Dirty = false
	return nil
}

func (s *State) persistSearch(ctx context.Context, srch *node.Search) error {
	if err := writeIndexed(ctx, s.store, boltstore.TableSearch, srch.ID, srch.Pack(), decodeOldSearch, indexSearchKeys(srch)); err != nil {
		return Error.Wrap(err)
	}
	srch.Dirty = false
	return nil
}

func (s *State) persistUser(ctx context.Context, u *node.User) error {
	if err := writeIndexed(ctx, s.store, boltstore.TableUsers, u.ID, u.Pack(), decodeOldUser, indexUserKeys(u)); err != nil {
		return Error.Wrap(err)
	}
	u.Dirty = false
	return nil
}

func (s *State) persistError(ctx context.Context, e *node.ErrorRec) error {
	if err := writeIndexed(ctx, s.store, boltstore.TableErrors, e.ID, e.Pack(), decodeOldError, indexErrorKeys(e)); err != nil {
		return Error.Wrap(err)
	}
	e.Dirty = false
	return nil
}

func (s *State) persistDownload(ctx context.Context, d *node.Download) error {
	if err := writeIndexed(ctx, s.store, boltstore.TableDownloads, d.ID, d.Pack(), decodeOldDownload, indexDownloadKeys(d)); err != nil {
		return Error.Wrap(err)
	}
	d.Dirty = false
	return nil
}

// persistActiveVisit and persistActiveDownload maintain enumeration-only
// indexes (no report ordering, just "which ids are active").
func (s *State) persistActiveVisit(ctx context.Context, v *node.ActiveVisit) error {
	if err := s.store.Put(ctx, boltstore.TableActiveVisits, idKey(v.ID), v.Pack()); err != nil {
		return Error.Wrap(err)
	}
	if err := s.store.PutIndex(ctx, boltstore.IndexVisitsActive, idKey(v.ID), v.ID); err != nil {
		return Error.Wrap(err)
	}
	v.Dirty = false
	return nil
}

func (s *State) persistActiveDownload(ctx context.Context, a *node.ActiveDownload) error {
	if err := s.store.Put(ctx, boltstore.TableActiveDownload, idKey(a.ID), a.Pack()); err != nil {
		return Error.Wrap(err)
	}
	if err := s.store.PutIndex(ctx, boltstore.IndexActiveDownloads, idKey(a.ID), a.ID); err != nil {
		return Error.Wrap(err)
	}
	a.Dirty = false
	return nil
}

func (s *State) deleteActiveVisit(ctx context.Context, id uint64) error {
	if err := s.store.Delete(ctx, boltstore.TableActiveVisits, idKey(id)); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(s.store.DeleteIndex(ctx, boltstore.IndexVisitsActive, idKey(id)))
}

func (s *State) deleteActiveDownload(ctx context.Context, id uint64) error {
	if err := s.store.Delete(ctx, boltstore.TableActiveDownload, idKey(id)); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(s.store.DeleteIndex(ctx, boltstore.IndexActiveDownloads, idKey(id)))
}

func (s *State) persistCountry(ctx context.Context, c *node.Country) error {
	if err := s.store.Put(ctx, boltstore.TableCountries, idKey(c.Code), c.Pack()); err != nil {
		return Error.Wrap(err)
	}
	if err := s.store.PutIndex(ctx, boltstore.IndexCountries, idKey(c.Code), c.Code); err != nil {
		return Error.Wrap(err)
	}
	c.Dirty = false
	return nil
}

func (s *State) persistCity(ctx context.Context, c *node.City) error {
	if err := s.store.Put(ctx, boltstore.TableCities, idKey(c.ID()), c.Pack()); err != nil {
		return Error.Wrap(err)
	}
	c.Dirty = false
	return nil
}

func (s *State) persistSysnode(ctx context.Context) error {
	if err := s.store.Put(ctx, boltstore.TableSysnode, idKey(0), s.Sysnode.Pack()); err != nil {
		return Error.Wrap(err)
	}
	s.Sysnode.Dirty = false
	return nil
}

func (s *State) persistTotals(ctx context.Context) error {
	if err := s.store.Put(ctx, boltstore.TableTotals, idKey(0), s.Totals.Pack()); err != nil {
		return Error.Wrap(err)
	}
	s.Totals.Dirty = false
	return nil
}

func (s *State) persistDaily(ctx context.Context, d *node.DailyTotals) error {
	if err := s.store.Put(ctx, boltstore.TableDaily, idKey(uint64(d.Day)), d.Pack()); err != nil {
		return Error.Wrap(err)
	}
	d.Dirty = false
	return nil
}

func (s *State) persistHourly(ctx context.Context, h *node.HourlyTotals) error {
	if err := s.store.Put(ctx, boltstore.TableHourly, idKey(uint64(h.Hour)), h.Pack()); err != nil {
		return Error.Wrap(err)
	}
	h.Dirty = false
	return nil
}

func (s *State) persistStatusCode(ctx context.Context, c *node.StatusCode) error {
	if err := s.store.Put(ctx, boltstore.TableStatusCodes, idKey(uint64(c.Code)), c.Pack()); err != nil {
		return Error.Wrap(err)
	}
	c.Dirty = false
	return nil
}

// persistDHosts rewrites the dhosts auxiliary table from s.dtHosts, the set
// of host ids seen so far today — consulted by backfillHostLastTimestamp
// style migration steps and by a restarted run resuming the same day.
func (s *State) persistDHosts(ctx context.Context) error {
	cur, err := s.store.Scan(ctx, boltstore.TableDHosts, false)
	if err != nil {
		return Error.Wrap(err)
	}
	var stale []uint64
	for cur.Next() {
		stale = append(stale, decodeNodeID(storage.Value(cur.Item().Key)))
	}
	if err := cur.Err(); err != nil {
		_ = cur.Close()
		return Error.Wrap(err)
	}
	if err := cur.Close(); err != nil {
		return Error.Wrap(err)
	}
	for _, id := range stale {
		if s.dtHosts[id] {
			continue
		}
		if err := s.store.Delete(ctx, boltstore.TableDHosts, idKey(id)); err != nil {
			return Error.Wrap(err)
		}
		if err := s.store.DeleteIndex(ctx, boltstore.IndexDHosts, idKey(id)); err != nil {
			return Error.Wrap(err)
		}
	}
	for id := range s.dtHosts {
		if err := s.store.Put(ctx, boltstore.TableDHosts, idKey(id), []byte{1}); err != nil {
			return Error.Wrap(err)
		}
		if err := s.store.PutIndex(ctx, boltstore.IndexDHosts, idKey(id), id); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}
