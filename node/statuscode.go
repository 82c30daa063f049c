package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// StatusCode tracks the hit count for one HTTP status code. The full table
// is populated from the localization list on init (out of scope here —
// engine.State.InstallStatusCodes takes the list as a parameter) and
// iterated in ascending code order; ClassStart finds the first index in a
// given 1xx/2xx/.../5xx class by a linear scan.
type StatusCode struct {
	Code  uint16 // also the node id
	Count uint64

	Dirty bool
}

func (s *StatusCode) Pack() []byte {
	return serial.PackRecord(VersionStatusCode, func(w *serial.Writer) {
		w.PutUint16(s.Code)
		w.PutUint64(s.Count)
	})
}

func UnpackStatusCode(buf []byte) (*StatusCode, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionStatusCode {
		return nil, version, serial.ErrUnsupportedVersion
	}
	s := &StatusCode{}
	if s.Code, err = r.Uint16(); err != nil {
		return nil, version, err
	}
	if s.Count, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return s, version, nil
}

// ClassStart returns the index of the first status code in the same
// hundreds-class as code (1xx..5xx) in a table sorted ascending by Code,
// or -1 if that class has no entry. It scans the table from the start;
// there is no class index table, so the lookup is linear in len(codes).
func ClassStart(codes []StatusCode, code uint16) int {
	class := code / 100
	for i, c := range codes {
		if c.Code/100 == class {
			return i
		}
	}
	return -1
}
