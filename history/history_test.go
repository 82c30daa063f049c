package history

import (
	"path/filepath"
	"testing"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	t1 := New()
	t1.Upsert(node.HistoryMonth{Year: 2020, Month: 6, Hits: 100, Files: 90, Pages: 80, Visits: 10, Hosts: 5, XferKiB: 1024, FirstDay: 1, LastDay: 30})
	t1.Upsert(node.HistoryMonth{Year: 2020, Month: 5, Hits: 50, Files: 40, Pages: 30, Visits: 5, Hosts: 3, XferKiB: 512, FirstDay: 1, LastDay: 31})
	if err := t1.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t2, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(t2.Rows()) != 2 {
		t.Fatalf("got %d rows, want 2", len(t2.Rows()))
	}
	rows := t2.Rows()
	if rows[0].Year != 2020 || rows[0].Month != 5 {
		t.Fatalf("rows not sorted ascending: %+v", rows)
	}
	got, ok := t2.Get(2020, 6)
	if !ok {
		t.Fatal("expected 2020-06 row")
	}
	if got.Hits != 100 || got.LastDay != 30 {
		t.Fatalf("got %+v, want hits=100 lastday=30", got)
	}
}

func TestLoadMissingFileIsSoft(t *testing.T) {
	tab, err := Load(filepath.Join(t.TempDir(), "does-not-exist.csv"))
	if err != nil {
		t.Fatalf("Load of missing file returned error: %v", err)
	}
	if len(tab.Rows()) != 0 {
		t.Fatalf("expected empty table, got %d rows", len(tab.Rows()))
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	tab := New()
	tab.Upsert(node.HistoryMonth{Year: 2020, Month: 6, Hits: 10})
	tab.Upsert(node.HistoryMonth{Year: 2020, Month: 6, Hits: 20})
	if len(tab.Rows()) != 1 {
		t.Fatalf("expected one row after upsert-replace, got %d", len(tab.Rows()))
	}
	got, _ := tab.Get(2020, 6)
	if got.Hits != 20 {
		t.Fatalf("got hits=%d, want 20", got.Hits)
	}
}
