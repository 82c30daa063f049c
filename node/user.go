package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// User aggregates traffic for an HTTP-authenticated user.
type User struct {
	ID    uint64
	Value string // authenticated user id

	Hits   uint64
	Files  uint64
	Xfer   uint64
	Visits uint64

	AvgTime float64
	MaxTime float64

	IsGroup bool

	Dirty bool
}

func (u *User) Key() string { return u.Value }

func (u *User) Pack() []byte {
	return serial.PackRecord(VersionUser, func(w *serial.Writer) {
		w.PutUint64(u.ID)
		w.PutString(u.Value)
		w.PutUint64(u.Hits)
		w.PutUint64(u.Files)
		w.PutUint64(u.Xfer)
		w.PutUint64(u.Visits)
		w.PutFloat64(u.AvgTime)
		w.PutFloat64(u.MaxTime)
		w.PutBool(u.IsGroup)
	})
}

func UnpackUser(buf []byte) (*User, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionUser {
		return nil, version, serial.ErrUnsupportedVersion
	}
	u := &User{}
	if u.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.Value, err = r.String(); err != nil {
		return nil, version, err
	}
	if u.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.Files, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.Visits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if u.AvgTime, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if u.MaxTime, err = r.Float64(); err != nil {
		return nil, version, err
	}
	if u.IsGroup, err = r.Bool(); err != nil {
		return nil, version, err
	}
	return u, version, nil
}
