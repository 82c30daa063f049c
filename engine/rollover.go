package engine

import (
	"context"
	"fmt"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// ClearMonth rolls the current database file aside, suffixed by the month
// just finished, reattaches every index against the now-empty file, and
// resets every in-memory table for a fresh month — the incremental
// equivalent of starting a new database, without losing the localized
// status-code/country tables installed at Initialize.
func (s *State) ClearMonth(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	// Flush the outgoing month's in-progress hour before anything below
	// resets Totals/Daily/Hourly out from under it. Ordinarily a no-op: the
	// caller's SaveState just before ClearMonth already flushed it.
	s.updateHourlyStats()

	suffix := fmt.Sprintf("%04d-%02d", s.Totals.CurYear, s.Totals.CurMonth)
	if err := s.store.Rollover(ctx, suffix); err != nil {
		return Error.Wrap(err)
	}

	rebuild := s.Sysnode.Batch
	for index, table := range boltstore.AllIndexes {
		if err := s.store.Attach(ctx, index, table, rebuild, rebuildFnFor(index)); err != nil {
			return Error.Wrap(err)
		}
	}

	s.Sysnode.Dirty = true

	s.Totals = &node.Totals{Dirty: true}
	for i := range s.Daily {
		s.Daily[i] = node.DailyTotals{Day: uint8(i + 1)}
	}
	for i := range s.Hourly {
		s.Hourly[i] = node.HourlyTotals{Hour: uint8(i)}
	}
	for i := range s.StatusCodes {
		s.StatusCodes[i].Count = 0
		s.StatusCodes[i].Dirty = true
	}
	for _, c := range s.Countries {
		c.Hits, c.Files, c.Pages, c.Visits, c.Xfer = 0, 0, 0, 0, 0
		c.Dirty = true
	}
	s.Cities = map[uint64]*node.City{}

	s.Hosts.Clear()
	s.ActiveVisits.Clear()
	s.URLs.Clear()
	s.Referrers.Clear()
	s.Agents.Clear()
	s.Searches.Clear()
	s.Users.Clear()
	s.Errors.Clear()
	s.Downloads.Clear()
	s.ActiveDLs.Clear()

	s.Spammers = map[string]bool{}
	s.dtHosts = map[uint64]bool{}
	s.VEnded = nil
	s.DLEnded = nil
	s.curHour = 0
	s.hasHour = false
	s.curAccum = hourAccum{}

	return nil
}
