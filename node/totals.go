package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// Totals is the singleton running-counter record for the current month.
// It is the root of the hourly/daily rollup math performed by the engine's
// time machine (engine.State.SetTimestamp).
type Totals struct {
	Hits, Files, Pages uint64
	Visits             uint64
	Hosts              uint64
	Xfer               uint64
	Errors             uint64

	RobotHits, RobotFiles, RobotPages uint64
	RobotXfer                         uint64
	RobotVisits, RobotHosts           uint64

	SpammerHits   uint64
	SpammerVisits uint64

	Downloads  uint64
	SearchHits uint64

	// Group counts: a distinct host/url/referrer/agent/search/user count
	// is GroupX plus the primary table's non-group row count.
	GroupHosts     uint64
	GroupURLs      uint64
	GroupReferrers uint64
	GroupAgents    uint64
	GroupSearches  uint64
	GroupUsers     uint64

	MaxVisitLen uint64
	AvgVisitLen float64

	// MaxHitsPerHour (hm_hit) is the month-wide maximum of HourlyTotals.Hits
	// observed over any completed hour, updated by updateHourlyStats.
	MaxHitsPerHour uint64

	CurTimestamp serial.Timestamp
	CurMonth     uint8
	CurYear      int16

	FirstDay uint8
	LastDay  uint8
	HasDays  bool // false until the first record of the month is observed

	Dirty bool
}

func (t *Totals) Pack() []byte {
	return serial.PackRecord(VersionTotals, func(w *serial.Writer) {
		w.PutUint64(t.Hits)
		w.PutUint64(t.Files)
		w.PutUint64(t.Pages)
		w.PutUint64(t.Visits)
		w.PutUint64(t.Hosts)
		w.PutUint64(t.Xfer)
		w.PutUint64(t.Errors)
		w.PutUint64(t.RobotHits)
		w.PutUint64(t.RobotFiles)
		w.PutUint64(t.RobotPages)
		w.PutUint64(t.RobotXfer)
		w.PutUint64(t.RobotVisits)
		w.PutUint64(t.RobotHosts)
		w.PutUint64(t.SpammerHits)
		w.PutUint64(t.SpammerVisits)
		w.PutUint64(t.Downloads)
		w.PutUint64(t.SearchHits)
		w.PutUint64(t.GroupHosts)
		w.PutUint64(t.GroupURLs)
		w.PutUint64(t.GroupReferrers)
		w.PutUint64(t.GroupAgents)
		w.PutUint64(t.GroupSearches)
		w.PutUint64(t.GroupUsers)
		w.PutUint64(t.MaxVisitLen)
		w.PutFloat64(t.AvgVisitLen)
		w.PutUint64(t.MaxHitsPerHour)
		w.PutTimestamp(t.CurTimestamp)
		w.PutUint8(t.CurMonth)
		w.PutUint16(uint16(t.CurYear))
		w.PutUint8(t.FirstDay)
		w.PutUint8(t.LastDay)
		w.PutBool(t.HasDays)
	})
}

func UnpackTotals(buf []byte) (*Totals, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionTotals {
		return nil, version, serial.ErrUnsupportedVersion
	}
	t := &Totals{}
	fields := []*uint64{
		&t.Hits, &t.Files, &t.Pages, &t.Visits, &t.Hosts, &t.Xfer, &t.Errors,
		&t.RobotHits, &t.RobotFiles, &t.RobotPages, &t.RobotXfer, &t.RobotVisits, &t.RobotHosts,
		&t.SpammerHits, &t.SpammerVisits, &t.Downloads, &t.SearchHits,
		&t.GroupHosts, &t.GroupURLs, &t.GroupReferrers, &t.GroupAgents, &t.GroupSearches, &t.GroupUsers,
		&t.MaxVisitLen,
	}
	for _, f := range fields {
		if *f, err = r.Uint64(); err != nil {
			return nil, version, err
		}
	}
	if t.AvgVisitLen, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if t.MaxHitsPerHour, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if t.CurTimestamp, err = r.Timestamp(); err != nil {
		return nil, version, err
	}
	if t.CurMonth, err = r.Uint8(); err != nil {
		return nil, version, err
	}
	year, err := r.Uint16()
	if err != nil {
		return nil, version, err
	}
	t.CurYear = int16(year)
	if t.FirstDay, err = r.Uint8(); err != nil {
		return nil, version, err
	}
	if t.LastDay, err = r.Uint8(); err != nil {
		return nil, version, err
	}
	if t.HasDays, err = r.Bool(); err != nil {
		return nil, version, err
	}
	return t, version, nil
}
