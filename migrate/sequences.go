package migrate

import (
	"context"
	"encoding/binary"

	"github.com/IzzySoft/StoneStepsWebalizer/engine"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// sequencedTables lists every primary table whose node ids are allocated
// from the store's per-table sequence counter (engine's findOrCreateX
// helpers), as opposed to a fixed key (sysnode, totals) or a composite key
// derived from the row's own content (calendar rows, countries, active
// entities).
var sequencedTables = []string{
	boltstore.TableHosts, boltstore.TableURLs, boltstore.TableReferrers,
	boltstore.TableAgents, boltstore.TableSearch, boltstore.TableUsers,
	boltstore.TableErrors, boltstore.TableDownloads,
}

// renumberSequencesStep reconciles each sequenced table's counter against
// the highest node id actually present in it, recovering a database
// restored from a backup taken between a row write and the counter's own
// flush — without this, the next findOrCreate call could mint an id that
// collides with one already on disk.
type renumberSequencesStep struct{}

func (renumberSequencesStep) Name() string { return "renumber-sequences" }

// Applies unconditionally: the reconciliation is a single key-only scan per
// table and a no-op SetSequence call when the counter is already ahead, so
// there is no sysnode flag gating it the way there is for the field-level
// backfills below.
func (renumberSequencesStep) Applies(sys *node.Sysnode) bool { return true }

func (renumberSequencesStep) Run(ctx context.Context, eng *engine.State) error {
	store := eng.Store()
	for _, table := range sequencedTables {
		cur, err := store.Scan(ctx, table, true)
		if err != nil {
			return err
		}
		var maxID uint64
		if cur.Next() {
			if k := cur.Item().Key; len(k) >= 8 {
				maxID = binary.BigEndian.Uint64(k)
			}
		}
		if err := cur.Err(); err != nil {
			_ = cur.Close()
			return err
		}
		if err := cur.Close(); err != nil {
			return err
		}
		if maxID == 0 {
			continue
		}
		if err := store.SetSequence(ctx, table, maxID); err != nil {
			return err
		}
	}
	return nil
}
