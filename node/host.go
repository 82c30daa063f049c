package node

import (
	"strconv"

	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

// Host aggregates traffic from a single hostname or IP address. A host with
// an active visit or a non-zero download refcount must never be evicted by
// the hash table's swap-out pass (see hashtable.Evictor and engine's host
// evaluator).
type Host struct {
	ID    uint64
	Value string // hostname or dotted-quad/IPv6 literal

	Hits, Files, Pages uint64
	Xfer               uint64
	Visits             uint64
	VisitsConverted    uint64
	VisitMax           uint64 // longest visit, seconds
	VisitAvg           float64

	MaxHitsPerVisit  uint64
	MaxFilesPerVisit uint64
	MaxPagesPerVisit uint64
	MaxXferPerVisit  uint64

	CountryCode uint64 // packed via PackCountryCode
	City        City

	LastTime serial.Timestamp

	IsSpammer bool
	IsRobot   bool
	IsGroup   bool

	// ActiveVisitID is non-zero while the host has an open visit; resolved
	// to an in-memory *ActiveVisit by the engine's unpack callback.
	ActiveVisitID uint64
	HasActive     bool

	// GroupVisitHead is the head of a singly linked chain of node ids
	// recording group-visit membership for this host; owned uniquely by
	// the host.
	GroupVisitHead uint64
	HasGroupVisit  bool

	// DownloadRefCount pins the host in memory while non-zero: a download
	// node referencing this host as its owner holds one ref each.
	DownloadRefCount uint64

	Dirty bool
}

// Key returns the hash table fingerprint key (case-sensitive value string,
// matching the C++ implementation's tstring_t hostname key).
func (h *Host) Key() string { return h.Value }

// Evictable reports whether h may be swapped out right now: no active
// visit, no pending group-visit chain, and no inbound download refs.
func (h *Host) Evictable() bool {
	return !h.HasActive && !h.HasGroupVisit && h.DownloadRefCount == 0
}

// Pack serializes h's current version payload.
func (h *Host) Pack() []byte {
	return serial.PackRecord(VersionHost, func(w *serial.Writer) {
		w.PutUint64(h.ID)
		w.PutString(h.Value)
		w.PutUint64(h.Hits)
		w.PutUint64(h.Files)
		w.PutUint64(h.Pages)
		w.PutUint64(h.Xfer)
		w.PutUint64(h.Visits)
		w.PutUint64(h.VisitsConverted)
		w.PutUint64(h.VisitMax)
		w.PutFloat64(h.VisitAvg)
		w.PutUint64(h.MaxHitsPerVisit)
		w.PutUint64(h.MaxFilesPerVisit)
		w.PutUint64(h.MaxPagesPerVisit)
		w.PutUint64(h.MaxXferPerVisit)
		w.PutUint64(h.CountryCode)
		h.City.pack(w)
		w.PutTimestamp(h.LastTime)
		w.PutBool(h.IsSpammer)
		w.PutBool(h.IsRobot)
		w.PutBool(h.IsGroup)
		w.PutBool(h.HasActive)
		w.PutUint64(h.ActiveVisitID)
		w.PutBool(h.HasGroupVisit)
		w.PutUint64(h.GroupVisitHead)
		w.PutUint64(h.DownloadRefCount)
	})
}

// UnpackHost decodes a Host from a framed record. Versions 1-3 lacked
// LastTime (added in v4, backfilled by migrate); callers check the
// returned version to decide whether migration is still required.
func UnpackHost(buf []byte) (*Host, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionHost {
		return nil, version, serial.ErrUnsupportedVersion
	}
	h := &Host{}
	if h.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.Value, err = r.String(); err != nil {
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
	if h.Visits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.VisitsConverted, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.VisitMax, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.VisitAvg, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if h.MaxHitsPerVisit, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.MaxFilesPerVisit, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.MaxPagesPerVisit, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.MaxXferPerVisit, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.CountryCode, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.City, err = unpackCity(r); err != nil {
		return nil, version, err
	}
	if version >= 4 {
		if h.LastTime, err = r.Timestamp(); err != nil {
			return nil, version, err
		}
	} else {
		h.LastTime = serial.Timestamp{Null: true}
	}
	if h.IsSpammer, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if h.IsRobot, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if h.IsGroup, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if h.HasActive, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if h.ActiveVisitID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.HasGroupVisit, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if h.GroupVisitHead, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if h.DownloadRefCount, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return h, version, nil
}

// ActiveVisit is the in-progress session for a host. It is destroyed on
// inactivity timeout or end-of-month; its id always equals the owning
// host's id.
type ActiveVisit struct {
	ID uint64 // == owning Host.ID

	Hits, Files, Pages uint64
	Xfer               uint64

	EntryURLID uint64

	LastURLID  uint64
	HasLastURL bool

	StartTime serial.Timestamp
	LastTime  serial.Timestamp

	IsRobot     bool
	IsConverted bool

	// HostRefCount is always 1 while the visit is attached to its host;
	// kept explicit so a const-restore path can materialize a visit
	// without mutating it.
	HostRefCount uint64

	Dirty bool
}

// Key returns the hash table fingerprint key: the visit's id, which always
// equals its owning host's id.
func (v *ActiveVisit) Key() string { return strconv.FormatUint(v.ID, 10) }

// Pack serializes v's current version payload.
func (v *ActiveVisit) Pack() []byte {
	return serial.PackRecord(VersionActiveVisit, func(w *serial.Writer) {
		w.PutUint64(v.ID)
		w.PutUint64(v.Hits)
		w.PutUint64(v.Files)
		w.PutUint64(v.Pages)
		w.PutUint64(v.Xfer)
		w.PutUint64(v.EntryURLID)
		w.PutBool(v.HasLastURL)
		w.PutUint64(v.LastURLID)
		w.PutTimestamp(v.StartTime)
		w.PutTimestamp(v.LastTime)
		w.PutBool(v.IsRobot)
		w.PutBool(v.IsConverted)
		w.PutUint64(v.HostRefCount)
	})
}

// UnpackActiveVisit decodes an ActiveVisit from a framed record.
func UnpackActiveVisit(buf []byte) (*ActiveVisit, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionActiveVisit {
		return nil, version, serial.ErrUnsupportedVersion
	}
	v := &ActiveVisit{}
	if v.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if v.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if v.Files, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if v.Pages, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if v.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if v.EntryURLID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if v.HasLastURL, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if v.LastURLID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if v.StartTime, err = r.Timestamp(); err != nil {
		return nil, version, err
	}
	if v.LastTime, err = r.Timestamp(); err != nil {
		return nil, version, err
	}
	if v.IsRobot, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if v.IsConverted, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if v.HostRefCount, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return v, version, nil
}
