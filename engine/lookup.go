package engine

import (
	"context"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

// findOrCreateHost returns the resident Host for value, allocating a fresh
// id and row if none exists yet. The returned bool reports whether a new
// row was created. Once the Hosts table has been marked SwappedOut (by a
// prior SwapOut pass this run, or by RestoreState on a memory-mode-off
// resume), a miss against the in-memory table falls through to the
// hosts.value index before minting a new id, so a host persisted by an
// earlier run is rehydrated under its existing id rather than duplicated.
func (s *State) findOrCreateHost(ctx context.Context, value string) (*node.Host, bool, error) {
	if h, ok := s.Hosts.Find(value); ok {
		return h, false, nil
	}
	if s.Hosts.SwappedOut() {
		h, err := s.loadSwappedHost(ctx, value)
		if err != nil {
			return nil, false, err
		}
		if h != nil {
			return h, false, nil
		}
	}
	id, err := s.store.NextSequence(ctx, boltstore.TableHosts)
	if err != nil {
		return nil, false, err
	}
	h := &node.Host{ID: id, Value: value, Dirty: true}
	s.Hosts.Put(h)
	return h, true, nil
}

// loadSwappedHost consults the hosts.value index for a host the Hosts
// table may have spilled to storage, rehydrating it into memory on a hit.
// Returns a nil Host, not an error, when value has no existing row.
func (s *State) loadSwappedHost(ctx context.Context, value string) (*node.Host, error) {
	id, ok, err := s.store.GetByValue(ctx, boltstore.IndexHostsValue, valueKey(value))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	buf, err := s.store.Get(ctx, boltstore.TableHosts, idKey(id))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil, nil
		}
		return nil, err
	}
	h, _, err := node.UnpackHost(buf)
	if err != nil {
		return nil, err
	}
	s.Hosts.Put(h)
	if h.IsSpammer {
		s.Spammers[h.Value] = true
	}
	return h, nil
}

func (s *State) findOrCreateURL(ctx context.Context, value string) (*node.URL, bool, error) {
	if u, ok := s.URLs.Find(value); ok {
		return u, false, nil
	}
	if s.URLs.SwappedOut() {
		u, err := s.loadSwappedURL(ctx, value)
		if err != nil {
			return nil, false, err
		}
		if u != nil {
			return u, false, nil
		}
	}
	id, err := s.store.NextSequence(ctx, boltstore.TableURLs)
	if err != nil {
		return nil, false, err
	}
	u := &node.URL{ID: id, Value: value, Dirty: true}
	s.URLs.Put(u)
	return u, true, nil
}

// loadSwappedURL is loadSwappedHost's counterpart for the URLs table.
func (s *State) loadSwappedURL(ctx context.Context, value string) (*node.URL, error) {
	id, ok, err := s.store.GetByValue(ctx, boltstore.IndexURLsValue, valueKey(value))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	buf, err := s.store.Get(ctx, boltstore.TableURLs, idKey(id))
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil, nil
		}
		return nil, err
	}
	u, _, err := node.UnpackURL(buf)
	if err != nil {
		return nil, err
	}
	s.URLs.Put(u)
	return u, nil
}

func (s *State) findOrCreateReferrer(ctx context.Context, value string) (*node.Referrer, error) {
	if r, ok := s.Referrers.Find(value); ok {
		return r, nil
	}
	id, err := s.store.NextSequence(ctx, boltstore.TableReferrers)
	if err != nil {
		return nil, err
	}
	r := &node.Referrer{ID: id, Value: value, Dirty: true}
	s.Referrers.Put(r)
	return r, nil
}

func (s *State) findOrCreateAgent(ctx context.Context, value string) (*node.Agent, error) {
	if a, ok := s.Agents.Find(value); ok {
		return a, nil
	}
	id, err := s.store.NextSequence(ctx, boltstore.TableAgents)
	if err != nil {
		return nil, err
	}
	a := &node.Agent{ID: id, Value: value, Dirty: true}
	s.Agents.Put(a)
	return a, nil
}

func (s *State) findOrCreateSearch(ctx context.Context, searchType string, terms []string) (*node.Search, error) {
	probe := &node.Search{SearchType: searchType, Terms: terms}
	if srch, ok := s.Searches.Find(probe.Key()); ok {
		return srch, nil
	}
	id, err := s.store.NextSequence(ctx, boltstore.TableSearch)
	if err != nil {
		return nil, err
	}
	probe.ID = id
	probe.Dirty = true
	s.Searches.Put(probe)
	return probe, nil
}

func (s *State) findOrCreateUser(ctx context.Context, value string) (*node.User, error) {
	if u, ok := s.Users.Find(value); ok {
		return u, nil
	}
	id, err := s.store.NextSequence(ctx, boltstore.TableUsers)
	if err != nil {
		return nil, err
	}
	u := &node.User{ID: id, Value: value, Dirty: true}
	s.Users.Put(u)
	return u, nil
}

func (s *State) findOrCreateError(ctx context.Context, method string, status uint16, url string) (*node.ErrorRec, error) {
	probe := &node.ErrorRec{Method: method, Status: status, URL: url}
	if e, ok := s.Errors.Find(probe.Key()); ok {
		return e, nil
	}
	id, err := s.store.NextSequence(ctx, boltstore.TableErrors)
	if err != nil {
		return nil, err
	}
	probe.ID = id
	probe.Dirty = true
	s.Errors.Put(probe)
	return probe, nil
}

func (s *State) findOrCreateDownload(ctx context.Context, host *node.Host, name string) (*node.Download, bool, error) {
	key := host.Value + "\x00" + name
	if d, ok := s.Downloads.Find(key); ok {
		return d, false, nil
	}
	id, err := s.store.NextSequence(ctx, boltstore.TableDownloads)
	if err != nil {
		return nil, false, err
	}
	d := &node.Download{ID: id, HostValue: host.Value, Name: name, HostID: host.ID, Dirty: true}
	s.Downloads.Put(d)
	return d, true, nil
}
