package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// DailyTotals is the per-day row for one day [1..31] of the current month,
// carrying both the day's running totals and the hourly avg/max derived
// from HourlyTotals observed that day.
type DailyTotals struct {
	Day uint8 // 1..31, also the node id

	Hits, Files, Pages uint64
	Xfer               uint64
	Visits             uint64
	Hosts              uint64

	HoursObserved uint8 // <= 24

	AvgHitsPerHour   float64
	MaxHitsPerHour   uint64
	AvgFilesPerHour  float64
	MaxFilesPerHour  uint64
	AvgPagesPerHour  float64
	MaxPagesPerHour  uint64
	AvgXferPerHour   float64
	MaxXferPerHour   uint64
	AvgVisitsPerHour float64
	MaxVisitsPerHour uint64
	AvgHostsPerHour  float64
	MaxHostsPerHour  uint64

	Dirty bool
}

func (d *DailyTotals) Pack() []byte {
	return serial.PackRecord(VersionDailyTotals, func(w *serial.Writer) {
		w.PutUint8(d.Day)
		w.PutUint64(d.Hits)
		w.PutUint64(d.Files)
		w.PutUint64(d.Pages)
		w.PutUint64(d.Xfer)
		w.PutUint64(d.Visits)
		w.PutUint64(d.Hosts)
		w.PutUint8(d.HoursObserved)
		w.PutFloat64(d.AvgHitsPerHour)
		w.PutUint64(d.MaxHitsPerHour)
		w.PutFloat64(d.AvgFilesPerHour)
		w.PutUint64(d.MaxFilesPerHour)
		w.PutFloat64(d.AvgPagesPerHour)
		w.PutUint64(d.MaxPagesPerHour)
		w.PutFloat64(d.AvgXferPerHour)
		w.PutUint64(d.MaxXferPerHour)
		w.PutFloat64(d.AvgVisitsPerHour)
		w.PutUint64(d.MaxVisitsPerHour)
		w.PutFloat64(d.AvgHostsPerHour)
		w.PutUint64(d.MaxHostsPerHour)
	})
}

// UnpackDailyTotals decodes a DailyTotals record. The version returned
// lets migrate's backfillDailyHourlyVersionStep detect rows persisted before
// daily/hourly records carried a version byte at all (releases before 3.3.1.5).
func UnpackDailyTotals(buf []byte) (*DailyTotals, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionDailyTotals {
		return nil, version, serial.ErrUnsupportedVersion
	}
	d := &DailyTotals{}
	if d.Day, err = r.Uint8(); err != nil {
		return nil, version, err
	}
	if d.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.Files, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.Pages, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.Visits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.Hosts, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.HoursObserved, err = r.Uint8(); err != nil {
		return nil, version, err
	}
	if d.AvgHitsPerHour, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if d.MaxHitsPerHour, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.AvgFilesPerHour, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if d.MaxFilesPerHour, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.AvgPagesPerHour, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if d.MaxPagesPerHour, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.AvgXferPerHour, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if d.MaxXferPerHour, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.AvgVisitsPerHour, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if d.MaxVisitsPerHour, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.AvgHostsPerHour, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if d.MaxHostsPerHour, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return d, version, nil
}

// HourlyTotals is the per-hour [0..23] accumulator for the current day,
// reset whenever the hour changes (engine.State.updateHourlyStats).
type HourlyTotals struct {
	Hour uint8 // 0..23, also the node id

	Hits, Files, Pages uint64
	Xfer               uint64

	Dirty bool
}

func (h *HourlyTotals) Pack() []byte {
	return serial.PackRecord(VersionHourlyTotals, func(w *serial.Writer) {
		w.PutUint8(h.Hour)
		w.PutUint64(h.Hits)
		w.PutUint64(h.Files)
		w.PutUint64(h.Pages)
		w.PutUint64(h.Xfer)
	})
}

func UnpackHourlyTotals(buf []byte) (*HourlyTotals, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionHourlyTotals {
		return nil, version, serial.ErrUnsupportedVersion
	}
	h := &HourlyTotals{}
	if h.Hour, err = r.Uint8(); err != nil {
		return nil, version, err
	}
	if h.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.Files, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.Pages, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return h, version, nil
}
