package engine

import (
	"context"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// RestoreState reads persisted totals and the calendar tables back into
// memory and folds the current month into the history table — done even
// under ReportOnly, so a report-only run against a partial month sees the
// same totals a normal run would have reported up to this point. Report-only
// runs stop there: the active-entity and swappable tables exist only to
// support new ingestion, which a report-only run never performs.
func (s *State) RestoreState(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !s.opts.Incremental {
		return nil
	}

	if err := s.restoreTotals(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.restoreCalendar(ctx); err != nil {
		return Error.Wrap(err)
	}

	s.hist.Upsert(node.HistoryMonth{
		Year:     int(s.Totals.CurYear),
		Month:    int(s.Totals.CurMonth),
		Hits:     s.Totals.Hits,
		Files:    s.Totals.Files,
		Pages:    s.Totals.Pages,
		Visits:   s.Totals.Visits,
		Hosts:    s.Totals.Hosts,
		XferKiB:  s.Totals.Xfer / 1024,
		FirstDay: s.Totals.FirstDay,
		LastDay:  s.Totals.LastDay,
	})

	if s.opts.ReportOnly {
		return nil
	}

	if err := s.restoreCountries(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.restoreCities(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.restoreDHosts(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.restoreSmallTables(ctx); err != nil {
		return Error.Wrap(err)
	}
	if s.opts.MemoryMode {
		if err := s.restoreHostsAndURLs(ctx); err != nil {
			return Error.Wrap(err)
		}
	} else {
		// Neither table is populated here; mark both swapped out so
		// findOrCreateHost/findOrCreateURL consult the hosts.value/urls.value
		// indexes before minting a new id for a host or URL this run never
		// happened to touch in memory yet.
		s.Hosts.SetSwappedOut(true)
		s.URLs.SetSwappedOut(true)
	}
	if err := s.restoreActiveVisits(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.restoreActiveDownloads(ctx); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

func (s *State) restoreTotals(ctx context.Context) error {
	buf, err := s.store.Get(ctx, boltstore.TableTotals, idKey(0))
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
	s.Totals = t
	return nil
}

func (s *State) restoreCalendar(ctx context.Context) error {
	if err := scanTable(ctx, s.store, boltstore.TableDaily, func(_ storage.Key, v storage.Value) error {
		d, _, err := node.UnpackDailyTotals(v)
		if err != nil || d.Day < 1 || int(d.Day) > len(s.Daily) {
			return nil
		}
		s.Daily[d.Day-1] = *d
		return nil
	}); err != nil {
		return err
	}
	if err := scanTable(ctx, s.store, boltstore.TableHourly, func(_ storage.Key, v storage.Value) error {
		h, _, err := node.UnpackHourlyTotals(v)
		if err != nil || int(h.Hour) >= len(s.Hourly) {
			return nil
		}
		s.Hourly[h.Hour] = *h
		return nil
	}); err != nil {
		return err
	}
	counts := make(map[uint16]uint64, len(s.StatusCodes))
	if err := scanTable(ctx, s.store, boltstore.TableStatusCodes, func(_ storage.Key, v storage.Value) error {
		c, _, err := node.UnpackStatusCode(v)
		if err != nil {
			return nil
		}
		counts[c.Code] = c.Count
		return nil
	}); err != nil {
		return err
	}
	for i := range s.StatusCodes {
		if n, ok := counts[s.StatusCodes[i].Code]; ok {
			s.StatusCodes[i].Count = n
		}
	}
	return nil
}

func (s *State) restoreCountries(ctx context.Context) error {
	return scanTable(ctx, s.store, boltstore.TableCountries, func(_ storage.Key, v storage.Value) error {
		c, _, err := node.UnpackCountry(v)
		if err != nil {
			return nil
		}
		if existing, ok := s.Countries[c.Code]; ok {
			c.Description = existing.Description
		}
		s.Countries[c.Code] = c
		return nil
	})
}

func (s *State) restoreCities(ctx context.Context) error {
	return scanTable(ctx, s.store, boltstore.TableCities, func(_ storage.Key, v storage.Value) error {
		c, _, err := node.UnpackCity(v)
		if err != nil {
			return nil
		}
		s.Cities[c.ID()] = c
		return nil
	})
}

func (s *State) restoreDHosts(ctx context.Context) error {
	return scanTable(ctx, s.store, boltstore.TableDHosts, func(k storage.Key, _ storage.Value) error {
		s.dtHosts[decodeNodeID(storage.Value(k))] = true
		return nil
	})
}

// restoreSmallTables reloads every table that is never swapped out
// (referrers, agents, search, users, errors, downloads) in full, regardless
// of memory-mode.
func (s *State) restoreSmallTables(ctx context.Context) error {
	if err := scanTable(ctx, s.store, boltstore.TableReferrers, func(_ storage.Key, v storage.Value) error {
		r, _, err := node.UnpackReferrer(v)
		if err != nil {
			return nil
		}
		s.Referrers.Put(r)
		return nil
	}); err != nil {
		return err
	}
	if err := scanTable(ctx, s.store, boltstore.TableAgents, func(_ storage.Key, v storage.Value) error {
		a, _, err := node.UnpackAgent(v)
		if err != nil {
			return nil
		}
		s.Agents.Put(a)
		return nil
	}); err != nil {
		return err
	}
	if err := scanTable(ctx, s.store, boltstore.TableSearch, func(_ storage.Key, v storage.Value) error {
		srch, _, err := node.UnpackSearch(v)
		if err != nil {
			return nil
		}
		s.Searches.Put(srch)
		return nil
	}); err != nil {
		return err
	}
	if err := scanTable(ctx, s.store, boltstore.TableUsers, func(_ storage.Key, v storage.Value) error {
		u, _, err := node.UnpackUser(v)
		if err != nil {
			return nil
		}
		s.Users.Put(u)
		return nil
	}); err != nil {
		return err
	}
	if err := scanTable(ctx, s.store, boltstore.TableErrors, func(_ storage.Key, v storage.Value) error {
		e, _, err := node.UnpackError(v)
		if err != nil {
			return nil
		}
		s.Errors.Put(e)
		return nil
	}); err != nil {
		return err
	}
	return scanTable(ctx, s.store, boltstore.TableDownloads, func(_ storage.Key, v storage.Value) error {
		d, _, err := node.UnpackDownload(v)
		if err != nil {
			return nil
		}
		s.Downloads.Put(d)
		return nil
	})
}

// restoreHostsAndURLs fully loads the two swappable tables, used only in
// memory-mode where no swap-out pass will ever run to repopulate them
// lazily from storage.
func (s *State) restoreHostsAndURLs(ctx context.Context) error {
	if err := scanTable(ctx, s.store, boltstore.TableHosts, func(_ storage.Key, v storage.Value) error {
		h, _, err := node.UnpackHost(v)
		if err != nil {
			return nil
		}
		s.Hosts.Put(h)
		if h.IsSpammer {
			s.Spammers[h.Value] = true
		}
		return nil
	}); err != nil {
		return err
	}
	return scanTable(ctx, s.store, boltstore.TableURLs, func(_ storage.Key, v storage.Value) error {
		u, _, err := node.UnpackURL(v)
		if err != nil {
			return nil
		}
		s.URLs.Put(u)
		return nil
	})
}

// restoreActiveVisits loads every active visit and, when not already
// resident from restoreHostsAndURLs, its host and its entry and last URLs,
// so that the rows the swap-out evictor keeps pinned (an active visit's
// host, and its last URL through VisitRefCount) are resident the moment
// ingestion resumes.
func (s *State) restoreActiveVisits(ctx context.Context) error {
	return scanTable(ctx, s.store, boltstore.TableActiveVisits, func(_ storage.Key, v storage.Value) error {
		visit, _, err := node.UnpackActiveVisit(v)
		if err != nil {
			return nil
		}
		s.ActiveVisits.Put(visit)
		if err := s.ensureHostLoaded(ctx, visit.ID); err != nil {
			return err
		}
		if err := s.ensureURLLoaded(ctx, visit.EntryURLID); err != nil {
			return err
		}
		if visit.HasLastURL {
			if err := s.ensureURLLoaded(ctx, visit.LastURLID); err != nil {
				return err
			}
		}
		return nil
	})
}

// restoreActiveDownloads loads every active download job and, mirroring
// restoreActiveVisits, the host its owning Download references — downloads
// themselves are already resident by this point via restoreSmallTables,
// which never swaps the Downloads table out.
func (s *State) restoreActiveDownloads(ctx context.Context) error {
	return scanTable(ctx, s.store, boltstore.TableActiveDownload, func(_ storage.Key, v storage.Value) error {
		a, _, err := node.UnpackActiveDownload(v)
		if err != nil {
			return nil
		}
		s.ActiveDLs.Put(a)
		if d, ok := s.findDownloadByID(a.ID); ok {
			if err := s.ensureHostLoaded(ctx, d.HostID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *State) ensureHostLoaded(ctx context.Context, id uint64) error {
	buf, err := s.store.Get(ctx, boltstore.TableHosts, idKey(id))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil
		}
		return err
	}
	h, _, err := node.UnpackHost(buf)
	if err != nil {
		return err
	}
	if _, ok := s.Hosts.Find(h.Value); ok {
		return nil
	}
	s.Hosts.Put(h)
	if h.IsSpammer {
		s.Spammers[h.Value] = true
	}
	return nil
}

func (s *State) ensureURLLoaded(ctx context.Context, id uint64) error {
	buf, err := s.store.Get(ctx, boltstore.TableURLs, idKey(id))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil
		}
		return err
	}
	u, _, err := node.UnpackURL(buf)
	if err != nil {
		return err
	}
	if _, ok := s.URLs.Find(u.Value); ok {
		return nil
	}
	s.URLs.Put(u)
	return nil
}

func scanTable(ctx context.Context, store storage.Store, table string, fn func(storage.Key, storage.Value) error) error {
	cur, err := store.Scan(ctx, table, false)
	if err != nil {
		return err
	}
	for cur.Next() {
		item := cur.Item()
		if err := fn(item.Key, item.Value); err != nil {
			_ = cur.Close()
			return err
		}
	}
	if err := cur.Err(); err != nil {
		_ = cur.Close()
		return err
	}
	return cur.Close()
}
