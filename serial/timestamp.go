package serial

import "time"

// Timestamp is the on-disk timestamp representation: year/month/day/hour/
// min/sec plus a UTC offset in minutes. A zero Null flag marks a valid
// timestamp; Null=true encodes "no timestamp" (e.g. an unset first-day/
// last-day before the first record).
type Timestamp struct {
	Year    int16
	Month   uint8
	Day     uint8
	Hour    uint8
	Min     uint8
	Sec     uint8
	UTCOffM int16
	Null    bool
}

// FromTime converts a time.Time into the on-disk Timestamp shape, recording
// its zone offset in minutes.
func FromTime(t time.Time) Timestamp {
	_, offsetSec := t.Zone()
	return Timestamp{
		Year:    int16(t.Year()),
		Month:   uint8(t.Month()),
		Day:     uint8(t.Day()),
		Hour:    uint8(t.Hour()),
		Min:     uint8(t.Minute()),
		Sec:     uint8(t.Second()),
		UTCOffM: int16(offsetSec / 60),
		Null:    false,
	}
}

// Time converts a Timestamp back to a time.Time in a fixed zone carrying
// the stored UTC offset. A Null timestamp converts to the zero time.Time.
func (ts Timestamp) Time() time.Time {
	if ts.Null {
		return time.Time{}
	}
	loc := time.FixedZone("", int(ts.UTCOffM)*60)
	return time.Date(int(ts.Year), time.Month(ts.Month), int(ts.Day), int(ts.Hour), int(ts.Min), int(ts.Sec), 0, loc)
}

// PutTimestamp writes the seven-field timestamp encoding.
func (w *Writer) PutTimestamp(ts Timestamp) {
	w.PutBool(ts.Null)
	if ts.Null {
		// still emit zeroed fields so the payload size is version-stable.
		ts = Timestamp{}
	}
	w.PutUint16(uint16(int16ToU16(ts.Year)))
	w.PutUint8(ts.Month)
	w.PutUint8(ts.Day)
	w.PutUint8(ts.Hour)
	w.PutUint8(ts.Min)
	w.PutUint8(ts.Sec)
	w.PutUint16(uint16(int16ToU16(ts.UTCOffM)))
}

// Timestamp reads a seven-field timestamp encoding.
func (r *Reader) Timestamp() (Timestamp, error) {
	var ts Timestamp
	null, err := r.Bool()
	if err != nil {
		return ts, err
	}
	ts.Null = null
	year, err := r.Uint16()
	if err != nil {
		return ts, err
	}
	ts.Year = u16ToInt16(year)
	if ts.Month, err = r.Uint8(); err != nil {
		return ts, err
	}
	if ts.Day, err = r.Uint8(); err != nil {
		return ts, err
	}
	if ts.Hour, err = r.Uint8(); err != nil {
		return ts, err
	}
	if ts.Min, err = r.Uint8(); err != nil {
		return ts, err
	}
	if ts.Sec, err = r.Uint8(); err != nil {
		return ts, err
	}
	off, err := r.Uint16()
	if err != nil {
		return ts, err
	}
	ts.UTCOffM = u16ToInt16(off)
	return ts, nil
}

func int16ToU16(v int16) uint16 { return uint16(v) }
func u16ToInt16(v uint16) int16 { return int16(v) }
