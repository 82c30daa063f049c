package node

import (
	"fmt"
	"strconv"

	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

// ErrorRec aggregates hits for one (method, status, url) error combination.
// Named ErrorRec, not Error, to avoid colliding with the package's error
// values and the standard error interface.
type ErrorRec struct {
	ID uint64

	Method      string
	Status      uint16
	URL         string
	IsHexEncode bool

	Hits uint64

	Dirty bool
}

// Key combines method, status and url, matching the original fingerprint
// that hashes all three fields together.
func (e *ErrorRec) Key() string {
	return e.Method + "\x00" + strconv.Itoa(int(e.Status)) + "\x00" + e.URL
}

func (e *ErrorRec) String() string {
	return fmt.Sprintf("%s %d %s", e.Method, e.Status, e.URL)
}

func (e *ErrorRec) Pack() []byte {
	return serial.PackRecord(VersionError, func(w *serial.Writer) {
		w.PutUint64(e.ID)
		w.PutString(e.Method)
		w.PutUint16(e.Status)
		w.PutString(e.URL)
		w.PutBool(e.IsHexEncode)
		w.PutUint64(e.Hits)
	})
}

func UnpackError(buf []byte) (*ErrorRec, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionError {
		return nil, version, serial.ErrUnsupportedVersion
	}
	e := &ErrorRec{}
	if e.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if e.Method, err = r.String(); err != nil {
		return nil, version, err
	}
	if e.Status, err = r.Uint16(); err != nil {
		return nil, version, err
	}
	if e.URL, err = r.String(); err != nil {
		return nil, version, err
	}
	if e.IsHexEncode, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if e.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return e, version, nil
}
