package engine

import (
	"context"

	"github.com/IzzySoft/StoneStepsWebalizer/hashtable"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
)

// hostEvictor implements hashtable.Evictor[*node.Host]: hosts with an
// active visit, a pending group-visit chain, or a non-zero download
// refcount are pinned in memory.
type hostEvictor struct {
	ctx context.Context
	s   *State
}

func (e *hostEvictor) Evaluate(h *node.Host) bool { return h.Evictable() }

func (e *hostEvictor) Write(h *node.Host) bool {
	if !h.Dirty {
		return true
	}
	return e.s.persistHost(e.ctx, h) == nil
}

// urlEvictor implements hashtable.Evictor[*node.URL]: a URL referenced by
// any active visit's LastURLID must not be evicted.
type urlEvictor struct {
	ctx context.Context
	s   *State
}

func (e *urlEvictor) Evaluate(u *node.URL) bool { return u.Evictable() }

func (e *urlEvictor) Write(u *node.URL) bool {
	if !u.Dirty {
		return true
	}
	return e.s.persistURL(e.ctx, u) == nil
}

// installSwapEvictors wires the two tables that may swap out to storage
// when memory-mode is off: hosts, then URLs.
func (s *State) installSwapEvictors(ctx context.Context) {
	s.Hosts.SetEvictor(&hostEvictor{ctx: ctx, s: s})
	s.URLs.SetEvictor(&urlEvictor{ctx: ctx, s: s})
}

// SwapOut runs one swap-out cycle over the hosts and URLs tables: walk
// hosts, then walk URLs, marking both tables swapped out. Non-fatal: a
// write failure simply stops that table's scan early, per
// hashtable.Table.SwapOut's contract.
func (s *State) SwapOut(ctx context.Context) (hostsWritten, urlsWritten int) {
	hostsWritten = s.Hosts.SwapOut()
	urlsWritten = s.URLs.SwapOut()
	s.Hosts.SetSwappedOut(true)
	s.URLs.SetSwappedOut(true)
	return hostsWritten, urlsWritten
}

// swapOutThreshold is how large the Hosts/URLs tables are allowed to grow,
// past their starting bucket count, before maybeSwapOut drives a pass.
const swapOutThreshold = hashtable.Large

// maybeSwapOut drives a swap-out pass once either swappable table has grown
// past swapOutThreshold, bounding memory growth over a long incremental run
// when memory-mode is off. A no-op in memory-mode, where the tables carry
// no evictor and are expected to hold every row for the run's duration.
func (s *State) maybeSwapOut(ctx context.Context) {
	if s.opts.MemoryMode {
		return
	}
	if s.Hosts.Size() < swapOutThreshold && s.URLs.Size() < swapOutThreshold {
		return
	}
	s.SwapOut(ctx)
}

var (
	_ hashtable.Evictor[*node.Host] = (*hostEvictor)(nil)
	_ hashtable.Evictor[*node.URL]  = (*urlEvictor)(nil)
)
