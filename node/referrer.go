package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// Referrer aggregates traffic arriving via a given referrer URL.
type Referrer struct {
	ID    uint64
	Value string

	Hits   uint64
	Visits uint64

	IsGroup bool

	Dirty bool
}

func (r *Referrer) Key() string { return r.Value }

func (rf *Referrer) Pack() []byte {
	return serial.PackRecord(VersionReferrer, func(w *serial.Writer) {
		w.PutUint64(rf.ID)
		w.PutString(rf.Value)
		w.PutUint64(rf.Hits)
		w.PutUint64(rf.Visits)
		w.PutBool(rf.IsGroup)
	})
}

func UnpackReferrer(buf []byte) (*Referrer, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionReferrer {
		return nil, version, serial.ErrUnsupportedVersion
	}
	rf := &Referrer{}
	if rf.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if rf.Value, err = r.String(); err != nil {
		return nil, version, err
	}
	if rf.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if rf.Visits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if rf.IsGroup, err = r.Bool(); err != nil {
		return nil, version, err
	}
	return rf, version, nil
}
