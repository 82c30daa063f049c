package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// URLType classifies the scheme(s) a URL has been observed under.
type URLType uint8

const (
	URLTypeHTTP  URLType = 0
	URLTypeHTTPS URLType = 1
	URLTypeMixed URLType = 2
)

// URL aggregates traffic to one URL string. A URL referenced by any active
// visit (VisitRefCount > 0) must never be evicted.
type URL struct {
	ID    uint64
	Value string

	Hits uint64
	Xfer uint64

	EntryCount uint64
	ExitCount  uint64

	AvgTime float64
	MaxTime float64

	Type        URLType
	IsTarget    bool
	IsHexEncode bool
	PathLen     uint32

	// VisitRefCount pins the URL in memory while non-zero: each active
	// visit whose LastURLID points here holds one ref.
	VisitRefCount uint64

	Dirty bool
}

func (u *URL) Key() string { return u.Value }

// Evictable reports whether u may be swapped out right now.
func (u *URL) Evictable() bool { return u.VisitRefCount == 0 }

func (u *URL) Pack() []byte {
	return serial.PackRecord(VersionURL, func(w *serial.Writer) {
		w.PutUint64(u.ID)
		w.PutString(u.Value)
		w.PutUint64(u.Hits)
		w.PutUint64(u.Xfer)
		w.PutUint64(u.EntryCount)
		w.PutUint64(u.ExitCount)
		w.PutFloat64(u.AvgTime)
		w.PutFloat64(u.MaxTime)
		w.PutUint8(uint8(u.Type))
		w.PutBool(u.IsTarget)
		w.PutBool(u.IsHexEncode)
		w.PutUint32(u.PathLen)
		w.PutUint64(u.VisitRefCount)
	})
}

func UnpackURL(buf []byte) (*URL, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionURL {
		return nil, version, serial.ErrUnsupportedVersion
	}
	u := &URL{}
	if u.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.Value, err = r.String(); err != nil {
		return nil, version, err
	}
	if u.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.EntryCount, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.ExitCount, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.AvgTime, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if u.MaxTime, err = r.Float64(); err != nil {
		return nil, version, err
	}
	typ, err := r.Uint8()
	if err != nil {
		return nil, version, err
	}
	u.Type = URLType(typ)
	if u.IsTarget, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if u.IsHexEncode, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if u.PathLen, err = r.Uint32(); err != nil {
		return nil, version, err
	}
	if u.VisitRefCount, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return u, version, nil
}
