package engine

import (
	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

// hourAccum buffers the hits/files/pages/xfer/visits/hosts observed during
// the hour currently in progress. It is folded into node.HourlyTotals and
// the current day's running average/max at the next hour transition
// (updateHourlyStats), then zeroed.
type hourAccum struct {
	Hits, Files, Pages uint64
	Xfer               uint64
	Visits, Hosts      uint64
}

// SetTimestamp advances the time machine to ts, firing deferred hourly and
// daily rollups on hour/day transitions. Callers must call
// ClearMonth (or otherwise reset the month) before SetTimestamp observes a
// change of year or month if a rollover is desired; SetTimestamp itself
// only tracks first/last day within whatever month is currently open.
func (s *State) SetTimestamp(ts serial.Timestamp) {
	t := s.Totals

	yearOrMonthChanged := t.CurTimestamp.Null || int(ts.Year) != int(t.CurYear) || ts.Month != t.CurMonth
	if yearOrMonthChanged {
		t.FirstDay = ts.Day
		t.LastDay = ts.Day
		t.CurMonth = ts.Month
		t.CurYear = ts.Year
		t.HasDays = true
	} else if ts.Day > t.LastDay {
		t.LastDay = ts.Day
	}

	if !s.hasHour {
		s.curHour = ts.Hour
		s.hasHour = true
	} else if ts.Hour != s.curHour {
		s.updateHourlyStats()
		s.curHour = ts.Hour
	}

	if !t.CurTimestamp.Null && ts.Day != t.CurTimestamp.Day {
		prevDay := t.CurTimestamp.Day
		if prevDay >= 1 && int(prevDay) <= len(s.Daily) {
			s.Daily[prevDay-1].Hosts = uint64(len(s.dtHosts))
			s.Daily[prevDay-1].Dirty = true
		}
		s.dtHosts = map[uint64]bool{}
	}

	t.CurTimestamp = ts
	t.Dirty = true
}

// updateHourlyStats folds the in-progress hour's accumulator into the
// current day's running hourly average/max and the month-wide max-hits-
// per-hour, then resets the accumulator. A no-op if no activity
// accumulated this hour.
func (s *State) updateHourlyStats() {
	a := s.curAccum
	if a.Hits == 0 {
		return
	}
	day := s.Totals.CurTimestamp.Day
	if day == 0 || int(day) > len(s.Daily) {
		s.curAccum = hourAccum{}
		return
	}
	d := &s.Daily[day-1]
	d.Day = day
	d.HoursObserved++
	n := float64(d.HoursObserved)

	d.AvgHitsPerHour += (float64(a.Hits) - d.AvgHitsPerHour) / n
	if a.Hits > d.MaxHitsPerHour {
		d.MaxHitsPerHour = a.Hits
	}
	d.AvgFilesPerHour += (float64(a.Files) - d.AvgFilesPerHour) / n
	if a.Files > d.MaxFilesPerHour {
		d.MaxFilesPerHour = a.Files
	}
	d.AvgPagesPerHour += (float64(a.Pages) - d.AvgPagesPerHour) / n
	if a.Pages > d.MaxPagesPerHour {
		d.MaxPagesPerHour = a.Pages
	}
	d.AvgXferPerHour += (float64(a.Xfer) - d.AvgXferPerHour) / n
	if a.Xfer > d.MaxXferPerHour {
		d.MaxXferPerHour = a.Xfer
	}
	d.AvgVisitsPerHour += (float64(a.Visits) - d.AvgVisitsPerHour) / n
	if a.Visits > d.MaxVisitsPerHour {
		d.MaxVisitsPerHour = a.Visits
	}
	d.AvgHostsPerHour += (float64(a.Hosts) - d.AvgHostsPerHour) / n
	if a.Hosts > d.MaxHostsPerHour {
		d.MaxHostsPerHour = a.Hosts
	}
	d.Dirty = true

	h := &s.Hourly[s.curHour]
	h.Hour = s.curHour
	h.Hits += a.Hits
	h.Files += a.Files
	h.Pages += a.Pages
	h.Xfer += a.Xfer
	h.Dirty = true

	if a.Hits > s.Totals.MaxHitsPerHour {
		s.Totals.MaxHitsPerHour = a.Hits
		s.Totals.Dirty = true
	}

	s.curAccum = hourAccum{}
}

// addHourlyHit accumulates one hit's contribution into the in-progress
// hour, folded into daily stats at the next hour transition.
func (s *State) addHourlyHit(isFile, isPage bool, xfer uint64) {
	s.curAccum.Hits++
	if isFile {
		s.curAccum.Files++
	}
	if isPage {
		s.curAccum.Pages++
	}
	s.curAccum.Xfer += xfer
}

func (s *State) addHourlyVisit() { s.curAccum.Visits++ }

// addDailyHit folds one record's hit/file/page/xfer contribution directly
// into the current day's running totals. Unlike the hour accumulator these
// are not deferred to an hour transition — a report run against a partial
// day must already see them.
func (s *State) addDailyHit(day uint8, isFile, isPage bool, xfer uint64) {
	if day == 0 || int(day) > len(s.Daily) {
		return
	}
	d := &s.Daily[day-1]
	d.Day = day
	d.Hits++
	if isFile {
		d.Files++
	}
	if isPage {
		d.Pages++
	}
	d.Xfer += xfer
	d.Dirty = true
}

// addDailyVisit mirrors addHourlyVisit for the day's running visit count,
// called alongside it from OpenVisit.
func (s *State) addDailyVisit(day uint8) {
	if day == 0 || int(day) > len(s.Daily) {
		return
	}
	d := &s.Daily[day-1]
	d.Day = day
	d.Visits++
	d.Dirty = true
}

func (s *State) markHostSeenToday(hostID uint64) {
	if !s.dtHosts[hostID] {
		s.dtHosts[hostID] = true
		s.curAccum.Hosts++
	}
}
