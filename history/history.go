// Package history implements the flat year/month roll-up file consumed and
// produced by the engine. A missing file loads as an empty Table, and a
// read error partway through keeps the rows read before it; only a file
// that exists but cannot be opened is an error, which callers log before
// continuing with an empty Table. The current month is recovered from the
// database itself.
package history

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/zeebo/errs"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
)

// Error is the error class for the history package.
var Error = errs.Class("history")

const numColumns = 8

// Table holds every (year, month) roll-up row, keyed for O(1) upsert.
type Table struct {
	rows  []node.HistoryMonth
	index map[[2]int]int // (year, month) -> index into rows
}

// New returns an empty history table.
func New() *Table {
	return &Table{index: map[[2]int]int{}}
}

// Rows returns every row, in the order they were loaded/inserted.
func (t *Table) Rows() []node.HistoryMonth { return t.rows }

// Upsert inserts or replaces the row for m.Year/m.Month.
func (t *Table) Upsert(m node.HistoryMonth) {
	key := [2]int{m.Year, m.Month}
	if i, ok := t.index[key]; ok {
		t.rows[i] = m
		return
	}
	t.index[key] = len(t.rows)
	t.rows = append(t.rows, m)
}

// Get returns the row for (year, month), if present.
func (t *Table) Get(year, month int) (node.HistoryMonth, bool) {
	i, ok := t.index[[2]int{year, month}]
	if !ok {
		return node.HistoryMonth{}, false
	}
	return t.rows[i], true
}

// Load reads path's rows into a fresh Table. A missing file returns an
// empty Table and no error. A row that fails to parse is skipped; missing
// trailing columns default to zero, keeping the format backward-compatible
// with narrower rows written by older versions.
func Load(path string) (*Table, error) {
	t := New()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, Error.Wrap(err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		rec, err := r.Read()
		if err != nil {
			break // EOF or malformed trailing row: stop, keep what parsed so far
		}
		m, ok := parseRow(rec)
		if !ok {
			continue
		}
		t.Upsert(m)
	}
	return t, nil
}

func parseRow(rec []string) (node.HistoryMonth, bool) {
	if len(rec) < 2 {
		return node.HistoryMonth{}, false
	}
	get := func(i int) uint64 {
		if i >= len(rec) {
			return 0
		}
		v, _ := strconv.ParseUint(rec[i], 10, 64)
		return v
	}
	year, err := strconv.Atoi(rec[0])
	if err != nil {
		return node.HistoryMonth{}, false
	}
	month, err := strconv.Atoi(rec[1])
	if err != nil {
		return node.HistoryMonth{}, false
	}
	return node.HistoryMonth{
		Year:     year,
		Month:    month,
		Hits:     get(2),
		Files:    get(3),
		Pages:    get(4),
		Visits:   get(5),
		Hosts:    get(6),
		XferKiB:  get(7),
		FirstDay: uint8(get(8)),
		LastDay:  uint8(get(9)),
	}, true
}

// Save writes every row to path, overwriting any existing file, ordered by
// (year, month) ascending.
func (t *Table) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	rows := append([]node.HistoryMonth(nil), t.rows...)
	sortRows(rows)
	for _, m := range rows {
		rec := make([]string, numColumns+2)
		rec[0] = strconv.Itoa(m.Year)
		rec[1] = strconv.Itoa(m.Month)
		rec[2] = strconv.FormatUint(m.Hits, 10)
		rec[3] = strconv.FormatUint(m.Files, 10)
		rec[4] = strconv.FormatUint(m.Pages, 10)
		rec[5] = strconv.FormatUint(m.Visits, 10)
		rec[6] = strconv.FormatUint(m.Hosts, 10)
		rec[7] = strconv.FormatUint(m.XferKiB, 10)
		rec[8] = strconv.Itoa(int(m.FirstDay))
		rec[9] = strconv.Itoa(int(m.LastDay))
		if err := w.Write(rec); err != nil {
			return Error.Wrap(err)
		}
	}
	w.Flush()
	return Error.Wrap(w.Error())
}

func sortRows(rows []node.HistoryMonth) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && less(rows[j], rows[j-1]); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func less(a, b node.HistoryMonth) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	return a.Month < b.Month
}
