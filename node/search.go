package node

import (
	"strings"

	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

// Search aggregates a distinct (engine-type, search-terms) combination
// extracted from a referrer query string. The logical key is the packed
// "[len]type[len]term..." representation itself, matching the original
// scnode fingerprint, which lets search terms be compared without
// re-joining fields.
type Search struct {
	ID uint64

	SearchType string
	Terms      []string

	Hits   uint64
	Visits uint64

	Dirty bool
}

// TermCount mirrors the original termcnt field: the number of terms packed
// into this record's key, computed as len(Terms) rather than stored.
func (s *Search) TermCount() int { return len(s.Terms) }

// Key packs the search type and terms into the "[len]type[len]term..."
// fingerprint used both as the hash table key and the persisted key field.
func (s *Search) Key() string {
	var b strings.Builder
	writeLenPrefixed(&b, s.SearchType)
	for _, t := range s.Terms {
		writeLenPrefixed(&b, t)
	}
	return b.String()
}

func writeLenPrefixed(b *strings.Builder, s string) {
	b.WriteByte(byte(len(s)))
	b.WriteString(s)
}

func (s *Search) Pack() []byte {
	return serial.PackRecord(VersionSearch, func(w *serial.Writer) {
		w.PutUint64(s.ID)
		w.PutString(s.SearchType)
		w.PutUint32(uint32(len(s.Terms)))
		for _, t := range s.Terms {
			w.PutString(t)
		}
		w.PutUint64(s.Hits)
		w.PutUint64(s.Visits)
	})
}

func UnpackSearch(buf []byte) (*Search, uint16, error) {
	r, version, err := serial.Payload(buf)
	if err != nil {
		return nil, 0, err
	}
	if version > VersionSearch {
		return nil, version, serial.ErrUnsupportedVersion
	}
	s := &Search{}
	if s.ID, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if s.SearchType, err = r.String(); err != nil {
		return nil, version, err
	}
	n, err := r.Uint32()
	if err != nil {
		return nil, version, err
	}
	s.Terms = make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		t, err := r.String()
		if err != nil {
			return nil, version, err
		}
		s.Terms = append(s.Terms, t)
	}
	if s.Hits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	if s.Visits, err = r.Uint64(); err != nil {
		return nil, version, err
	}
	return s, version, nil
}
