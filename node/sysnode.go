package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// ByteOrderSentinel is written into every sysnode and checked on open; a
// mismatch means the database was written on a different-endian host than
// the one attempting to open it; such a file is rejected outright rather
// than byte-swapped.
const ByteOrderSentinel uint32 = 0x01020304

// SizeofSignature captures the widths this build expects for the counter
// and pointer-sized fields that changed across schema versions (the v4
// widening to 64-bit counters). A mismatch on open is fatal.
type SizeofSignature struct {
	CounterWidth   uint8 // bytes; 8 for v4+
	TimestampWidth uint8
}

// CurrentSizeofSignature is the signature this build writes and expects.
var CurrentSizeofSignature = SizeofSignature{CounterWidth: 8, TimestampWidth: 11}

// Sysnode is the singleton record capturing writer version, mode flags,
// byte-order sentinel and primitive sizes used to validate cross-run
// compatibility. It is written on every save.
type Sysnode struct {
	AppVersionCreated     AppVersion
	AppVersionLastWritten AppVersion

	Incremental bool
	Batch       bool

	UTCEnabled   bool
	UTCOffsetMin int16

	ByteOrder uint32
	Sizeof    SizeofSignature

	// FixedDHV is the one-shot flag set once migrate's
	// backfillDailyHourlyVersionStep has run, backfilling daily/hourly version tags for rows written
	// before release 3.3.1.5 introduced them.
	FixedDHV bool

	Dirty bool
}

// NewSysnode returns a fresh sysnode for a brand-new database, stamped
// with the current application version and byte-order/size signatures.
func NewSysnode(incremental, batch, utcEnabled bool, utcOffsetMin int16) *Sysnode {
	return &Sysnode{
		AppVersionCreated:     Current,
		AppVersionLastWritten: Current,
		Incremental:           incremental,
		Batch:                 batch,
		UTCEnabled:            utcEnabled,
		UTCOffsetMin:          utcOffsetMin,
		ByteOrder:             ByteOrderSentinel,
		Sizeof:                CurrentSizeofSignature,
		Dirty:                 true,
	}
}

// CompatibilityError reports why s cannot be opened by this build, or ""
// if it can.
func (s *Sysnode) CompatibilityError() string {
	if s.ByteOrder != ByteOrderSentinel {
		return "byte-order sentinel mismatch"
	}
	if s.Sizeof != CurrentSizeofSignature {
		return "type size signature mismatch"
	}
	if s.AppVersionLastWritten.Major < MinSupportedAppVersionMajor {
		return "database predates the v4 schema and is not supported for read-write access"
	}
	return ""
}

func (s *Sysnode) Pack() []byte {
	return serial.PackRecord(VersionSysnode, func(w *serial.Writer) {
		s.AppVersionCreated.pack(w)
		s.AppVersionLastWritten.pack(w)
		w.PutBool(s.Incremental)
		w.PutBool(s.Batch)
		w.PutBool(s.UTCEnabled)
		w.PutUint16(uint16(s.UTCOffsetMin))
		w.PutUint32(s.ByteOrder)
		w.PutUint8(s.Sizeof.CounterWidth)
		w.PutUint8(s.Sizeof.TimestampWidth)
		w.PutBool(s.FixedDHV)
	})
}

func UnpackSysnode(buf []byte) (*Sysnode, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionSysnode {
		return nil, version, serial.ErrUnsupportedVersion
	}
	s := &Sysnode{}
	if s.AppVersionCreated, err = unpackAppVersion(r); err != nil {
		return nil, version, err
	}
	if s.AppVersionLastWritten, err = unpackAppVersion(r); err != nil {
		return nil, version, err
	}
	if s.Incremental, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if s.Batch, err = r.Bool(); err != nil {
		return nil, version, err
	}
	if s.UTCEnabled, err = r.Bool(); err != nil {
		return nil, version, err
	}
	off, err := r.Uint16()
	if err != nil {
		return nil, version, err
	}
	s.UTCOffsetMin = int16(off)
	if s.ByteOrder, err = r.Uint32(); err != nil {
		return nil, version, err
	}
	if s.Sizeof.CounterWidth, err = r.Uint8(); err != nil {
		return nil, version, err
	}
	if s.Sizeof.TimestampWidth, err = r.Uint8(); err != nil {
		return nil, version, err
	}
	if version >= 4 {
		if s.FixedDHV, err = r.Bool(); err != nil {
			return nil, version, err
		}
	}
	return s, version, nil
}
