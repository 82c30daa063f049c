package engine

import (
	"context"
	"encoding/binary"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/IzzySoft/StoneStepsWebalizer/history"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

const trickleInterval = 5 * time.Second

// InstallStatusCodes replaces s.StatusCodes with one zero-count entry per
// code in codes, sorted ascending — the ordering ClassStart depends on.
// Counts already restored by RestoreState are clobbered if called after it;
// callers should install before restoring.
func (s *State) InstallStatusCodes(codes []uint16) {
	out := make([]node.StatusCode, len(codes))
	for i, c := range codes {
		out[i] = node.StatusCode{Code: c}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	s.StatusCodes = out
}

// InstallCountries seeds s.Countries with one zero-count entry per
// (code, description) pair, keyed by PackCountryCode. Description is a
// runtime-only field never round-tripped through storage.
func (s *State) InstallCountries(table map[string]string) {
	s.Countries = make(map[uint64]*node.Country, len(table))
	for code, desc := range table {
		packed := node.PackCountryCode(code)
		s.Countries[packed] = &node.Country{Code: packed, Description: desc}
	}
}

// Initialize opens or creates the sysnode row, enforces byte-order/size
// compatibility and the incremental/batch truncation policy, attaches every
// secondary index (rebuilding them when the prior run was in batch mode),
// installs Options.StatusCodes/Countries when given, loads the history file, and — unless memory-mode is on — installs
// the host/url swap-out evictors and starts the trickle-sync goroutine.
// Callers run migrate.Run(ctx, state) between Initialize and RestoreState
// when Sysnode.AppVersionLastWritten predates node.Current.
func (s *State) Initialize(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	existing, err := s.readSysnode(ctx)
	if err != nil {
		return Error.Wrap(err)
	}
	prevBatch := existing != nil && existing.Batch
	switch {
	case existing == nil:
		s.Sysnode = node.NewSysnode(s.opts.Incremental, s.opts.Batch, s.opts.UTCEnabled, s.opts.UTCOffsetMin)
	case existing.CompatibilityError() != "":
		return ErrIncompatibleDatabase.New("%s", existing.CompatibilityError())
	case existing.Incremental != s.opts.Incremental:
		return ErrTruncationRefused
	default:
		s.Sysnode = existing
		s.Sysnode.Batch = s.opts.Batch
		s.Sysnode.UTCEnabled = s.opts.UTCEnabled
		s.Sysnode.UTCOffsetMin = s.opts.UTCOffsetMin
		s.Sysnode.Dirty = true
	}

	if len(s.opts.StatusCodes) > 0 {
		s.InstallStatusCodes(s.opts.StatusCodes)
	}
	if s.opts.Countries != nil {
		s.InstallCountries(s.opts.Countries)
	}

	rebuild := prevBatch
	for index, table := range boltstore.AllIndexes {
		if err := s.store.Attach(ctx, index, table, rebuild, rebuildFnFor(index)); err != nil {
			return Error.Wrap(err)
		}
	}

	hist, err := history.Load(s.opts.HistoryPath)
	if err != nil {
		s.log.Warn("history file load failed, continuing with an empty table", zap.Error(err))
		hist = history.New()
	}
	s.hist = hist

	if !s.opts.MemoryMode {
		s.installSwapEvictors(ctx)
		s.trickle = storage.NewTrickler(s.store, trickleInterval, s.log)
		s.trickle.Start(ctx)
	}

	s.initDone = true
	return nil
}

func (s *State) readSysnode(ctx context.Context) (*node.Sysnode, error) {
	buf, err := s.store.Get(ctx, boltstore.TableSysnode, idKey(0))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil, nil
		}
		return nil, err
	}
	sys, _, err := node.UnpackSysnode(buf)
	return sys, err
}

// rebuildFnFor returns the Attach rebuild callback for a named index: given
// a primary table row's raw key/value, it reports the index key and node id
// that row belongs under, or ok=false to skip it.
func rebuildFnFor(index string) func(key, value []byte) (storage.Key, uint64, bool) {
	switch index {
	case boltstore.IndexHostsHits, boltstore.IndexHostsGroupsHits:
		group := index == boltstore.IndexHostsGroupsHits
		return func(_, v []byte) (storage.Key, uint64, bool) {
			h, _, err := node.UnpackHost(v)
			if err != nil || h.IsGroup != group {
				return nil, 0, false
			}
			return descKey(h.Hits, h.ID), h.ID, true
		}
	case boltstore.IndexHostsValue:
		return func(_, v []byte) (storage.Key, uint64, bool) {
			h, _, err := node.UnpackHost(v)
			if err != nil {
				return nil, 0, false
			}
			return valueKey(h.Value), h.ID, true
		}
	case boltstore.IndexHostsXfer, boltstore.IndexHostsGroupsXfer:
		group := index == boltstore.IndexHostsGroupsXfer
		return func(_, v []byte) (storage.Key, uint64, bool) {
			h, _, err := node.UnpackHost(v)
			if err != nil || h.IsGroup != group {
				return nil, 0, false
			}
			return descKey(h.Xfer, h.ID), h.ID, true
		}
	case boltstore.IndexURLsHits, boltstore.IndexURLsGroupsHits:
		group := index == boltstore.IndexURLsGroupsHits
		return func(_, v []byte) (storage.Key, uint64, bool) {
			u, _, err := node.UnpackURL(v)
			if err != nil || u.IsTarget != group {
				return nil, 0, false
			}
			return descKey(u.Hits, u.ID), u.ID, true
		}
	case boltstore.IndexURLsXfer, boltstore.IndexURLsGroupsXfer:
		group := index == boltstore.IndexURLsGroupsXfer
		return func(_, v []byte) (storage.Key, uint64, bool) {
			u, _, err := node.UnpackURL(v)
			if err != nil || u.IsTarget != group {
				return nil, 0, false
			}
			return descKey(u.Xfer, u.ID), u.ID, true
		}
	case boltstore.IndexURLsValue:
		return func(_, v []byte) (storage.Key, uint64, bool) {
			u, _, err := node.UnpackURL(v)
			if err != nil {
				return nil, 0, false
			}
			return valueKey(u.Value), u.ID, true
		}
	case boltstore.IndexURLsEntry:
		return func(_, v []byte) (storage.Key, uint64, bool) {
			u, _, err := node.UnpackURL(v)
			if err != nil {
				return nil, 0, false
			}
			return descKey(u.EntryCount, u.ID), u.ID, true
		}
	case boltstore.IndexURLsExit:
		return func(_, v []byte) (storage.Key, uint64, bool) {
			u, _, err := node.UnpackURL(v)
			if err != nil {
				return nil, 0, false
			}
			return descKey(u.ExitCount, u.ID), u.ID, true
		}
	case boltstore.IndexReferrersHits, boltstore.IndexReferrersGrpHits:
		group := index == boltstore.IndexReferrersGrpHits
		return func(_, v []byte) (storage.Key, uint64, bool) {
			r, _, err := node.UnpackReferrer(v)
			if err != nil || r.IsGroup != group {
				return nil, 0, false
			}
			return descKey(r.Hits, r.ID), r.ID, true
		}
	case boltstore.IndexAgentsVisits, boltstore.IndexAgentsGrpVisits:
		group := index == boltstore.IndexAgentsGrpVisits
		return func(_, v []byte) (storage.Key, uint64, bool) {
			a, _, err := node.UnpackAgent(v)
			if err != nil || a.IsGroup != group {
				return nil, 0, false
			}
			return descKey(a.Visits, a.ID), a.ID, true
		}
	case boltstore.IndexSearchHits:
		return func(_, v []byte) (storage.Key, uint64, bool) {
			srch, _, err := node.UnpackSearch(v)
			if err != nil {
				return nil, 0, false
			}
			return descKey(srch.Hits, srch.ID), srch.ID, true
		}
	case boltstore.IndexUsersHits, boltstore.IndexUsersGroupsHits:
		group := index == boltstore.IndexUsersGroupsHits
		return func(_, v []byte) (storage.Key, uint64, bool) {
			u, _, err := node.UnpackUser(v)
			if err != nil || u.IsGroup != group {
				return nil, 0, false
			}
			return descKey(u.Hits, u.ID), u.ID, true
		}
	case boltstore.IndexErrorsHits:
		return func(_, v []byte) (storage.Key, uint64, bool) {
			e, _, err := node.UnpackError(v)
			if err != nil {
				return nil, 0, false
			}
			return descKey(e.Hits, e.ID), e.ID, true
		}
	case boltstore.IndexDownloadsXfer:
		return func(_, v []byte) (storage.Key, uint64, bool) {
			d, _, err := node.UnpackDownload(v)
			if err != nil {
				return nil, 0, false
			}
			return descKey(d.SumXfer, d.ID), d.ID, true
		}
	case boltstore.IndexVisitsActive:
		return func(k, _ []byte) (storage.Key, uint64, bool) {
			if len(k) < 8 {
				return nil, 0, false
			}
			id := binary.BigEndian.Uint64(k)
			return idKey(id), id, true
		}
	case boltstore.IndexActiveDownloads:
		return func(k, _ []byte) (storage.Key, uint64, bool) {
			if len(k) < 8 {
				return nil, 0, false
			}
			id := binary.BigEndian.Uint64(k)
			return idKey(id), id, true
		}
	case boltstore.IndexCountries:
		return func(k, _ []byte) (storage.Key, uint64, bool) {
			if len(k) < 8 {
				return nil, 0, false
			}
			id := binary.BigEndian.Uint64(k)
			return idKey(id), id, true
		}
	case boltstore.IndexDHosts:
		return func(k, _ []byte) (storage.Key, uint64, bool) {
			if len(k) < 8 {
				return nil, 0, false
			}
			id := binary.BigEndian.Uint64(k)
			return idKey(id), id, true
		}
	default:
		return func(_, _ []byte) (storage.Key, uint64, bool) { return nil, 0, false }
	}
}
