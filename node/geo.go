package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// PackCountryCode packs a two-letter lowercase country code into the low 10
// bits of a uint64, five bits per letter (a=0 .. z=25, fits in 5 bits).
// This does not round-trip uppercase input; country codes are assumed
// normalized to lowercase upstream.
func PackCountryCode(code string) uint64 {
	if len(code) != 2 {
		return 0
	}
	hi := uint64(code[0] - 'a')
	lo := uint64(code[1] - 'a')
	return hi<<5 | lo
}

// UnpackCountryCode reverses PackCountryCode.
func UnpackCountryCode(packed uint64) string {
	if packed == 0 {
		return ""
	}
	hi := byte((packed>>5)&0x1f) + 'a'
	lo := byte(packed&0x1f) + 'a'
	return string([]byte{hi, lo})
}

// Country aggregates traffic per two-letter country code. Description is
// populated at runtime from the localization table on init, never
// persisted.
type Country struct {
	Code uint64 // PackCountryCode result, also the node id

	Hits, Files, Pages, Visits uint64
	Xfer                       uint64

	Description string // not persisted

	Dirty bool
}

func (c *Country) Pack() []byte {
	return serial.PackRecord(VersionCountry, func(w *serial.Writer) {
		w.PutUint64(c.Code)
		w.PutUint64(c.Hits)
		w.PutUint64(c.Files)
		w.PutUint64(c.Pages)
		w.PutUint64(c.Visits)
		w.PutUint64(c.Xfer)
	})
}

func UnpackCountry(buf []byte) (*Country, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionCountry {
		return nil, version, serial.ErrUnsupportedVersion
	}
	c := &Country{}
	if c.Code, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Files, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Pages, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Visits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return c, version, nil
}

// City aggregates traffic per (geoname id, country code). An empty City
// (GeonameID == 0) represents "no city resolved" and is never persisted as
// its own row — it is only ever embedded inline in a Host record.
type City struct {
	GeonameID   uint64
	CountryCode uint64
	Name        string

	Hits, Files, Pages, Visits uint64
	Xfer                       uint64

	Dirty bool
}

// IsEmpty reports whether this is the "no city" sentinel.
func (c City) IsEmpty() bool { return c.GeonameID == 0 }

// ID packs (GeonameID, CountryCode) into the node id used as this city's
// primary-table key.
func (c City) ID() uint64 { return c.GeonameID<<10 | c.CountryCode }

func (c City) pack(w *serial.Writer) {
	w.PutUint64(c.GeonameID)
	w.PutUint64(c.CountryCode)
	w.PutString(c.Name)
}

func unpackCity(r *serial.Reader) (City, error) {
	var c City
	var err error
	if c.GeonameID, err = r.Uint64(); err != nil {
		return c, err
	}
	if c.CountryCode, err = r.Uint64(); err != nil {
		return c, err
	}
	if c.Name, err = r.String(); err != nil {
		return c, err
	}
	return c, nil
}

// Pack serializes c as a standalone framed record (used only by the
// dedicated city aggregation table, distinct from the inline embedding
// inside Host).
func (c *City) Pack() []byte {
	return serial.PackRecord(VersionCity, func(w *serial.Writer) {
		c.pack(w)
		w.PutUint64(c.Hits)
		w.PutUint64(c.Files)
		w.PutUint64(c.Pages)
		w.PutUint64(c.Visits)
		w.PutUint64(c.Xfer)
	})
}

func UnpackCity(buf []byte) (*City, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionCity {
		return nil, version, serial.ErrUnsupportedVersion
	}
	c, err := unpackCity(r)
	if err != nil {
		return nil, version, err
	}
	if c.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Files, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Pages, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Visits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if c.Xfer, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return &c, version, nil
}
