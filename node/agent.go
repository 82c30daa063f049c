package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// Agent aggregates traffic from a given user-agent string.
type Agent struct {
	ID    uint64
	Value string

	Hits   uint64
	Xfer   uint64
	Visits uint64

	IsRobot bool
	IsGroup bool

	Dirty bool
}

func (a *Agent) Key() string { return a.Value }

func (a *Agent) Pack() []byte {
	return serial.PackRecord(VersionAgent, func(w *serial.Writer) {
		w.PutUint64(a.ID)
		w.PutString(a.Value)
		w.PutUint64(a.Hits)
		w.PutUint64(a.Xfer)
		w.PutUint64(a.Visits)
		w.PutBool(a.IsRobot)
		w.PutBool(a.IsGroup)
	})
}

func UnpackAgent(buf []byte) (*Agent, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionAgent {
		return nil, version, serial.ErrUnsupportedVersion
	}
	a := &Agent{}
	if a.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if a.Value, err = r.String(); err != nil {
		return nil, version, err
	}
	if a.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if a.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if a.Visits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if a.IsRobot, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if a.IsGroup, err = r.Bool(); err != nil {
		return nil, version, err
	}
	return a, version, nil
}
