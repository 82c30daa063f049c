package node

import (
	"strconv"

	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

// Download aggregates repeated transfers of one (host, download-name) pair.
// It owns an optional ActiveDownload sharing its id. Ownership runs
// download -> host -> visit -> url, a DAG with no cycles.
type Download struct {
	ID uint64

	HostValue string
	Name      string

	SumHits uint64
	SumXfer uint64
	SumTime float64
	AvgTime float64
	Count   uint64

	HostID uint64

	HasActive bool // true while an ActiveDownload with this same ID exists

	Dirty bool
}

func (d *Download) Key() string { return d.HostValue + "\x00" + d.Name }

func (d *Download) Pack() []byte {
	return serial.PackRecord(VersionDownload, func(w *serial.Writer) {
		w.PutUint64(d.ID)
		w.PutString(d.HostValue)
		w.PutString(d.Name)
		w.PutUint64(d.SumHits)
		w.PutUint64(d.SumXfer)
		w.PutFloat64(d.SumTime)
		w.PutFloat64(d.AvgTime)
		w.PutUint64(d.Count)
		w.PutUint64(d.HostID)
		w.PutBool(d.HasActive)
	})
}

func UnpackDownload(buf []byte) (*Download, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionDownload {
		return nil, version, serial.ErrUnsupportedVersion
	}
	d := &Download{}
	if d.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.HostValue, err = r.String(); err != nil {
		return nil, version, err
	}
	if d.Name, err = r.String(); err != nil {
		return nil, version, err
	}
	if d.SumHits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.SumXfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.SumTime, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if d.AvgTime, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if d.Count, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.HostID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if d.HasActive, err = r.Bool(); err != nil {
		return nil, version, err
	}
	return d, version, nil
}

// ActiveDownload is the in-progress job for a Download. Its id always
// equals the owning Download's id. Destroyed when the job times out.
type ActiveDownload struct {
	ID uint64 // == owning Download.ID

	Hits     uint64
	LastTime serial.Timestamp
	ProcTime float64
	Xfer     uint64

	Dirty bool
}

// Key returns the hash table fingerprint key: the job's id, which always
// equals its owning Download's id.
func (a *ActiveDownload) Key() string { return strconv.FormatUint(a.ID, 10) }

func (a *ActiveDownload) Pack() []byte {
	return serial.PackRecord(VersionActiveDownload, func(w *serial.Writer) {
		w.PutUint64(a.ID)
		w.PutUint64(a.Hits)
		w.PutTimestamp(a.LastTime)
		w.PutFloat64(a.ProcTime)
		w.PutUint64(a.Xfer)
	})
}

func UnpackActiveDownload(buf []byte) (*ActiveDownload, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionActiveDownload {
		return nil, version, serial.ErrUnsupportedVersion
	}
	a := &ActiveDownload{}
	if a.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if a.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if a.LastTime, err = r.Timestamp(); err != nil {
		return nil, version, err
	}
	if a.ProcTime, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if a.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return a, version, nil
}
