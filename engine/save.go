package engine

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// legacyStateFileName is the sentinel file historically used to detect
// "a previous run exists", superseded by the database's own sysnode row.
// Kept only so a database migrated from an older layout gets it cleaned up.
const legacyStateFileName = "webalizer.current"

func (s *State) legacyStatePath() string {
	return filepath.Join(filepath.Dir(s.opts.DBPath), legacyStateFileName)
}

// SaveState flushes every dirty in-memory row to storage: ended
// active-entity ids first (freeing their index slots), then the singleton
// and calendar rows, then every aggregation table in host/url dependency
// order, then the history file. On a successful incremental save, the
// legacy sentinel state file next to the database is removed.
func (s *State) SaveState(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !s.opts.Incremental {
		return nil
	}

	// Flush the hour in progress: without this, a save that lands mid-hour
	// (the common case) would never fold that hour's hits into HourlyTotals
	// or the day's running avg/max — those only otherwise update on an hour
	// transition, which a save does not cause.
	s.updateHourlyStats()

	// End of run: swap out everything eligible regardless of how close the
	// tables are to maybeSwapOut's pressure threshold, so a save never
	// leaves swappable rows resident that a subsequent restore would have
	// to mark SwappedOut and re-fault back in one at a time anyway.
	if !s.opts.MemoryMode {
		s.SwapOut(ctx)
	}

	for _, id := range s.VEnded {
		if err := s.deleteActiveVisit(ctx, id); err != nil {
			return Error.Wrap(err)
		}
	}
	s.VEnded = s.VEnded[:0]
	for _, id := range s.DLEnded {
		if err := s.deleteActiveDownload(ctx, id); err != nil {
			return Error.Wrap(err)
		}
	}
	s.DLEnded = s.DLEnded[:0]

	if err := s.persistSysnode(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.persistTotals(ctx); err != nil {
		return Error.Wrap(err)
	}
	for i := range s.Daily {
		if s.Daily[i].Dirty {
			if err := s.persistDaily(ctx, &s.Daily[i]); err != nil {
				return Error.Wrap(err)
			}
		}
	}
	for i := range s.Hourly {
		if s.Hourly[i].Dirty {
			if err := s.persistHourly(ctx, &s.Hourly[i]); err != nil {
				return Error.Wrap(err)
			}
		}
	}
	for i := range s.StatusCodes {
		if s.StatusCodes[i].Dirty {
			if err := s.persistStatusCode(ctx, &s.StatusCodes[i]); err != nil {
				return Error.Wrap(err)
			}
		}
	}
	for _, c := range s.Countries {
		if c.Dirty {
			if err := s.persistCountry(ctx, c); err != nil {
				return Error.Wrap(err)
			}
		}
	}
	for _, c := range s.Cities {
		if c.Dirty {
			if err := s.persistCity(ctx, c); err != nil {
				return Error.Wrap(err)
			}
		}
	}
	if err := s.persistDHosts(ctx); err != nil {
		return Error.Wrap(err)
	}

	// Active visits before hosts, active downloads before downloads: both
	// active-entity rows reference their parent by id but carry no content
	// the parent depends on, so a crash between the two leaves storage
	// missing the child rather than pointing a saved parent at a dangling
	// active-entity row.
	if err := s.saveActiveVisits(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.saveActiveDownloads(ctx); err != nil {
		return Error.Wrap(err)
	}

	// Downloads before hosts: a download row's HostID references a host
	// that may already have been swapped out; writing downloads first means
	// a crash between the two still leaves the download record internally
	// consistent with whatever host state made it to storage.
	if err := s.saveDownloads(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.saveHosts(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.saveURLs(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.saveReferrers(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.saveAgents(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.saveSearches(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.saveUsers(ctx); err != nil {
		return Error.Wrap(err)
	}
	if err := s.saveErrors(ctx); err != nil {
		return Error.Wrap(err)
	}

	if err := s.hist.Save(s.opts.HistoryPath); err != nil {
		s.log.Warn("history save failed", zap.Error(err))
	}

	if err := os.Remove(s.legacyStatePath()); err != nil && !os.IsNotExist(err) {
		s.log.Warn("legacy state file removal failed", zap.Error(err))
	}
	return nil
}

func (s *State) saveDownloads(ctx context.Context) error {
	it := s.Downloads.Iterate()
	for it.Next() {
		d := it.Item()
		if !d.Dirty {
			continue
		}
		if err := s.persistDownload(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveHosts(ctx context.Context) error {
	it := s.Hosts.Iterate()
	for it.Next() {
		h := it.Item()
		if !h.Dirty {
			continue
		}
		if err := s.persistHost(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveURLs(ctx context.Context) error {
	it := s.URLs.Iterate()
	for it.Next() {
		u := it.Item()
		if !u.Dirty {
			continue
		}
		if err := s.persistURL(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveReferrers(ctx context.Context) error {
	it := s.Referrers.Iterate()
	for it.Next() {
		r := it.Item()
		if !r.Dirty {
			continue
		}
		if err := s.persistReferrer(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveAgents(ctx context.Context) error {
	it := s.Agents.Iterate()
	for it.Next() {
		a := it.Item()
		if !a.Dirty {
			continue
		}
		if err := s.persistAgent(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveSearches(ctx context.Context) error {
	it := s.Searches.Iterate()
	for it.Next() {
		srch := it.Item()
		if !srch.Dirty {
			continue
		}
		if err := s.persistSearch(ctx, srch); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveUsers(ctx context.Context) error {
	it := s.Users.Iterate()
	for it.Next() {
		u := it.Item()
		if !u.Dirty {
			continue
		}
		if err := s.persistUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveErrors(ctx context.Context) error {
	it := s.Errors.Iterate()
	for it.Next() {
		e := it.Item()
		if !e.Dirty {
			continue
		}
		if err := s.persistError(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveActiveVisits(ctx context.Context) error {
	it := s.ActiveVisits.Iterate()
	for it.Next() {
		v := it.Item()
		if !v.Dirty {
			continue
		}
		if err := s.persistActiveVisit(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) saveActiveDownloads(ctx context.Context) error {
	it := s.ActiveDLs.Iterate()
	for it.Next() {
		a := it.Item()
		if !a.Dirty {
			continue
		}
		if err := s.persistActiveDownload(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup stops the trickle-sync goroutine (if running) and closes the
// store. It does not call SaveState — callers that want a durable run must
// call SaveState first.
func (s *State) Cleanup(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if s.trickle != nil {
		s.trickle.Stop()
	}
	if err := s.store.Sync(); err != nil {
		s.log.Warn("final sync failed", zap.Error(err))
	}
	return Error.Wrap(s.store.Close())
}
