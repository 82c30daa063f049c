package engine

import (
	"strconv"
	"time"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

// OpenVisit starts a new active visit for host at ts, entering through
// entryURL. host must not already have an active visit — callers check
// host.HasActive first.
func (s *State) OpenVisit(host *node.Host, ts serial.Timestamp, entryURL *node.URL) *node.ActiveVisit {
	v := &node.ActiveVisit{
		ID:           host.ID,
		EntryURLID:   entryURL.ID,
		StartTime:    ts,
		LastTime:     ts,
		HostRefCount: 1,
		Dirty:        true,
	}
	entryURL.EntryCount++
	entryURL.Dirty = true
	host.ActiveVisitID = v.ID
	host.HasActive = true
	host.Dirty = true
	s.ActiveVisits.Put(v)
	s.addHourlyVisit()
	s.addDailyVisit(ts.Day)
	return v
}

// touchVisit resolves the URL reference on the visit's last hit before it
// moves to a new one, decrementing the previous URL's refcount and
// incrementing the new one's. A URL is referenced by visits through a
// visit-refcount rather than a strong pointer.
func (s *State) touchVisit(v *node.ActiveVisit, u *node.URL, ts serial.Timestamp) {
	if v.HasLastURL && v.LastURLID != u.ID {
		if old, ok := s.URLs.Find(strconv.FormatUint(v.LastURLID, 10)); ok {
			if old.VisitRefCount > 0 {
				old.VisitRefCount--
				old.Dirty = true
			}
		}
	}
	if !v.HasLastURL || v.LastURLID != u.ID {
		u.VisitRefCount++
		u.Dirty = true
	}
	v.LastURLID = u.ID
	v.HasLastURL = true
	v.LastTime = ts
}

func activeVisitKey(hostID uint64) string        { return strconv.FormatUint(hostID, 10) }
func activeDownloadKey(downloadID uint64) string { return strconv.FormatUint(downloadID, 10) }

func visitLenSeconds(v *node.ActiveVisit) uint64 {
	start, end := v.StartTime.Time(), v.LastTime.Time()
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Second)
}

// CloseVisit ends v (inactivity timeout or end-of-month), folding its
// totals into host and into s.Totals, releasing its URL reference, and
// queuing its id for deletion from the visits.active index at the next
// SaveState.
func (s *State) CloseVisit(host *node.Host, v *node.ActiveVisit) {
	length := visitLenSeconds(v)

	host.Visits++
	if v.IsConverted {
		host.VisitsConverted++
	}
	if length > host.VisitMax {
		host.VisitMax = length
	}
	n := float64(host.Visits)
	host.VisitAvg += (float64(length) - host.VisitAvg) / n
	if v.Hits > host.MaxHitsPerVisit {
		host.MaxHitsPerVisit = v.Hits
	}
	if v.Files > host.MaxFilesPerVisit {
		host.MaxFilesPerVisit = v.Files
	}
	if v.Pages > host.MaxPagesPerVisit {
		host.MaxPagesPerVisit = v.Pages
	}
	if v.Xfer > host.MaxXferPerVisit {
		host.MaxXferPerVisit = v.Xfer
	}
	host.HasActive = false
	host.ActiveVisitID = 0
	host.Dirty = true

	s.Totals.Visits++
	tn := float64(s.Totals.Visits)
	s.Totals.AvgVisitLen += (float64(length) - s.Totals.AvgVisitLen) / tn
	if length > s.Totals.MaxVisitLen {
		s.Totals.MaxVisitLen = length
	}
	s.Totals.Dirty = true

	if v.HasLastURL {
		if u, ok := s.URLs.Find(strconv.FormatUint(v.LastURLID, 10)); ok && u.VisitRefCount > 0 {
			u.VisitRefCount--
			u.ExitCount++
			u.Dirty = true
		}
	}

	s.ActiveVisits.Remove(v.Key())
	s.VEnded = append(s.VEnded, v.ID)
}

// ExpireVisits closes every active visit whose LastTime precedes now by
// more than the configured visit timeout, returning the number closed.
func (s *State) ExpireVisits(now serial.Timestamp) int {
	closed := 0
	it := s.ActiveVisits.Iterate()
	var stale []*node.ActiveVisit
	for it.Next() {
		v := it.Item()
		if now.Time().Sub(v.LastTime.Time()) > s.opts.VisitTimeout {
			stale = append(stale, v)
		}
	}
	for _, v := range stale {
		host, ok := s.findHostByVisitID(v.ID)
		if !ok {
			continue
		}
		s.CloseVisit(host, v)
		closed++
	}
	return closed
}

// findHostByVisitID scans the hosts table for the host whose active visit
// is v.ID. Hosts pinned by an active visit are never swapped out, so a
// live scan always finds the owner while memory-mode is on; under
// memory-mode off the active-visit index is the source of truth and
// callers should resolve through storage instead (see RestoreState).
func (s *State) findHostByVisitID(id uint64) (*node.Host, bool) {
	it := s.Hosts.Iterate()
	for it.Next() {
		h := it.Item()
		if h.HasActive && h.ActiveVisitID == id {
			return h, true
		}
	}
	return nil, false
}

// OpenDownload starts a new active download job for d at ts.
func (s *State) OpenDownload(d *node.Download, ts serial.Timestamp) *node.ActiveDownload {
	a := &node.ActiveDownload{ID: d.ID, LastTime: ts, Dirty: true}
	d.HasActive = true
	d.Dirty = true
	s.ActiveDLs.Put(a)
	return a
}

// CloseDownload ends a (timed-out) active download job, folding its totals
// into the owning Download record and queuing it for index deletion.
func (s *State) CloseDownload(d *node.Download, a *node.ActiveDownload) {
	d.SumHits += a.Hits
	d.SumXfer += a.Xfer
	d.SumTime += a.ProcTime
	d.Count++
	n := float64(d.Count)
	d.AvgTime += (a.ProcTime - d.AvgTime) / n
	d.HasActive = false
	d.Dirty = true

	s.ActiveDLs.Remove(a.Key())
	s.DLEnded = append(s.DLEnded, a.ID)
}

// ExpireDownloads closes every active download whose LastTime precedes now
// by more than the configured download timeout.
func (s *State) ExpireDownloads(now serial.Timestamp) int {
	closed := 0
	it := s.ActiveDLs.Iterate()
	var stale []*node.ActiveDownload
	for it.Next() {
		a := it.Item()
		if now.Time().Sub(a.LastTime.Time()) > s.opts.DownloadTimeout {
			stale = append(stale, a)
		}
	}
	for _, a := range stale {
		d, ok := s.findDownloadByID(a.ID)
		if !ok {
			continue
		}
		s.CloseDownload(d, a)
		closed++
	}
	return closed
}

func (s *State) findDownloadByID(id uint64) (*node.Download, bool) {
	it := s.Downloads.Iterate()
	for it.Next() {
		d := it.Item()
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}
