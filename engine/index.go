package engine

import (
	"context"
	"encoding/binary"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// descKey packs (value, id) so that ascending byte order over the result
// yields value descending, id ascending among ties — satisfying the
// "descending, ties broken by node id ascending" ordering property (spec
// §8) without requiring callers to scan in reverse.
func descKey(value, id uint64) storage.Key {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], ^value)
	binary.BigEndian.PutUint64(b[8:16], id)
	return storage.Key(b[:])
}

// idKey packs a bare node id, used by enumeration-only indexes (visits.active,
// active_downloads, countries, dhosts) that carry no report ordering.
func idKey(id uint64) storage.Key {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return storage.Key(b[:])
}

// valueKey indexes a swappable node by its own lookup value (hosts.value,
// urls.value), letting GetByValue answer "does this value already have a
// row" without the node being resident in memory — the path
// findOrCreateHost/findOrCreateURL fall through to once their table has
// been marked SwappedOut.
func valueKey(value string) storage.Key {
	return storage.Key(value)
}

func decodeNodeID(v storage.Value) uint64 {
	if len(v) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

// indexHostKeys returns the (index name, key) pairs a host must be indexed
// under, selecting the .groups. variant for group hosts.
func indexHostKeys(h *node.Host) []indexEntry {
	entries := []indexEntry{{boltstore.IndexHostsValue, valueKey(h.Value)}}
	if h.IsGroup {
		return append(entries,
			indexEntry{boltstore.IndexHostsGroupsHits, descKey(h.Hits, h.ID)},
			indexEntry{boltstore.IndexHostsGroupsXfer, descKey(h.Xfer, h.ID)},
		)
	}
	return append(entries,
		indexEntry{boltstore.IndexHostsHits, descKey(h.Hits, h.ID)},
		indexEntry{boltstore.IndexHostsXfer, descKey(h.Xfer, h.ID)},
	)
}

func indexURLKeys(u *node.URL) []indexEntry {
	entries := []indexEntry{{boltstore.IndexURLsValue, valueKey(u.Value)}}
	if u.IsTarget {
		return append(entries,
			indexEntry{boltstore.IndexURLsGroupsHits, descKey(u.Hits, u.ID)},
			indexEntry{boltstore.IndexURLsGroupsXfer, descKey(u.Xfer, u.ID)},
			indexEntry{boltstore.IndexURLsEntry, descKey(u.EntryCount, u.ID)},
			indexEntry{boltstore.IndexURLsExit, descKey(u.ExitCount, u.ID)},
		)
	}
	return append(entries,
		indexEntry{boltstore.IndexURLsHits, descKey(u.Hits, u.ID)},
		indexEntry{boltstore.IndexURLsXfer, descKey(u.Xfer, u.ID)},
		indexEntry{boltstore.IndexURLsEntry, descKey(u.EntryCount, u.ID)},
		indexEntry{boltstore.IndexURLsExit, descKey(u.ExitCount, u.ID)},
	)
}

func indexReferrerKeys(r *node.Referrer) []indexEntry {
	if r.IsGroup {
		return []indexEntry{{boltstore.IndexReferrersGrpHits, descKey(r.Hits, r.ID)}}
	}
	return []indexEntry{{boltstore.IndexReferrersHits, descKey(r.Hits, r.ID)}}
}

func indexAgentKeys(a *node.Agent) []indexEntry {
	if a.IsGroup {
		return []indexEntry{{boltstore.IndexAgentsGrpVisits, descKey(a.Visits, a.ID)}}
	}
	return []indexEntry{{boltstore.IndexAgentsVisits, descKey(a.Visits, a.ID)}}
}

func indexSearchKeys(s *node.Search) []indexEntry {
	return []indexEntry{{boltstore.IndexSearchHits, descKey(s.Hits, s.ID)}}
}

func indexUserKeys(u *node.User) []indexEntry {
	if u.IsGroup {
		return []indexEntry{{boltstore.IndexUsersGroupsHits, descKey(u.Hits, u.ID)}}
	}
	return []indexEntry{{boltstore.IndexUsersHits, descKey(u.Hits, u.ID)}}
}

func indexErrorKeys(e *node.ErrorRec) []indexEntry {
	return []indexEntry{{boltstore.IndexErrorsHits, descKey(e.Hits, e.ID)}}
}

func indexDownloadKeys(d *node.Download) []indexEntry {
	return []indexEntry{{boltstore.IndexDownloadsXfer, descKey(d.SumXfer, d.ID)}}
}

type indexEntry struct {
	name string
	key  storage.Key
}

// reindex deletes stale entries under oldKeys and writes fresh ones,
// keeping a table's secondary indexes live-maintained on every dirty write.
func reindex(ctx context.Context, store storage.Store, oldKeys, newKeys []indexEntry, id uint64) error {
	for _, e := range oldKeys {
		if err := store.DeleteIndex(ctx, e.name, e.key); err != nil {
			return err
		}
	}
	for _, e := range newKeys {
		if err := store.PutIndex(ctx, e.name, e.key, id); err != nil {
			return err
		}
	}
	return nil
}
