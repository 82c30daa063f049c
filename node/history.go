package node

// HistoryMonth is one row of the flat history file: the finalized roll-up
// for a single (year, month), consumed and produced by the history package.
// It lives in a separate flat file, outside the main store, so it carries
// no wire version tag of its own — history.Table owns its own text encoding.
type HistoryMonth struct {
	Year  int
	Month int

	Hits, Files, Pages uint64
	Visits             uint64
	Hosts              uint64
	XferKiB            uint64

	FirstDay uint8
	LastDay  uint8
}

// Key returns the (year, month) identity used to upsert a row in place.
func (h HistoryMonth) Key() (int, int) { return h.Year, h.Month }

// Spammer is an in-memory-only marker: webalizer repopulates the spammer
// set from persisted Host.IsSpammer rows on load rather than persisting a
// dedicated Spammer table: the set is in-memory only, repopulated from
// persisted host nodes on load.
type Spammer struct {
	HostValue string
}
