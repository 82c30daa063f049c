package engine

import (
	"context"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
)

// RecordHit folds one parsed access-log line into every table it touches:
// host, url, referrer, agent, search, user, error and download aggregates,
// the active-visit/active-download lifecycle, and the hourly/daily/monthly
// totals. Field extraction and classification (robot, spammer, page/target
// detection) are expected to have already happened upstream; RecordHit
// only aggregates.
func (s *State) RecordHit(ctx context.Context, rec *node.LogRecord) (err error) {
	defer mon.Task()(&ctx)(&err)

	s.SetTimestamp(rec.Timestamp)

	host, newHost, err := s.findOrCreateHost(ctx, rec.Host)
	if err != nil {
		return Error.Wrap(err)
	}
	url, _, err := s.findOrCreateURL(ctx, rec.URL)
	if err != nil {
		return Error.Wrap(err)
	}

	isFile := rec.Status < 400
	isPage := rec.IsPage

	host.Hits++
	host.Xfer += rec.Bytes
	host.LastTime = rec.Timestamp
	if rec.IsRobot {
		host.IsRobot = true
	}
	if rec.IsSpammer {
		host.IsSpammer = true
		s.Spammers[host.Value] = true
	}
	host.Dirty = true

	url.Hits++
	url.Xfer += rec.Bytes
	if rec.IsTarget {
		url.IsTarget = true
	}
	url.Dirty = true

	if newHost {
		s.Totals.Hosts++
	}

	s.Totals.Hits++
	if isFile {
		s.Totals.Files++
	}
	if isPage {
		s.Totals.Pages++
	}
	s.Totals.Xfer += rec.Bytes
	if rec.Status >= 400 {
		s.Totals.Errors++
	}
	if rec.IsRobot {
		s.Totals.RobotHits++
		if isFile {
			s.Totals.RobotFiles++
		}
		if isPage {
			s.Totals.RobotPages++
		}
		s.Totals.RobotXfer += rec.Bytes
	}
	if rec.IsSpammer {
		s.Totals.SpammerHits++
	}
	s.Totals.Dirty = true

	s.markHostSeenToday(host.ID)
	s.addHourlyHit(isFile, isPage, rec.Bytes)
	s.addDailyHit(rec.Timestamp.Day, isFile, isPage, rec.Bytes)

	var v *node.ActiveVisit
	newVisit := !host.HasActive
	if newVisit {
		v = s.OpenVisit(host, rec.Timestamp, url)
	} else {
		found, ok := s.ActiveVisits.Find(activeVisitKey(host.ID))
		if !ok {
			v = s.OpenVisit(host, rec.Timestamp, url)
			newVisit = true
		} else {
			v = found
			s.touchVisit(v, url, rec.Timestamp)
		}
	}
	v.Hits++
	if isFile {
		v.Files++
	}
	if isPage {
		v.Pages++
	}
	v.Xfer += rec.Bytes
	if rec.IsRobot {
		v.IsRobot = true
	}
	if rec.IsTarget {
		v.IsConverted = true
	}
	v.Dirty = true

	s.foldGeo(host, isFile, isPage, newVisit, rec.Bytes)

	if rec.Referrer != "" {
		ref, err := s.findOrCreateReferrer(ctx, rec.Referrer)
		if err != nil {
			return Error.Wrap(err)
		}
		ref.Hits++
		if newVisit {
			ref.Visits++
		}
		ref.Dirty = true

		if rec.SearchType != "" {
			srch, err := s.findOrCreateSearch(ctx, rec.SearchType, rec.SearchTerms)
			if err != nil {
				return Error.Wrap(err)
			}
			srch.Hits++
			if newVisit {
				srch.Visits++
			}
			srch.Dirty = true
			s.Totals.SearchHits++
		}
	}

	if rec.Agent != "" {
		agent, err := s.findOrCreateAgent(ctx, rec.Agent)
		if err != nil {
			return Error.Wrap(err)
		}
		agent.Hits++
		agent.Xfer += rec.Bytes
		if newVisit {
			agent.Visits++
		}
		if rec.IsRobot {
			agent.IsRobot = true
		}
		agent.Dirty = true
	}

	if rec.User != "" {
		user, err := s.findOrCreateUser(ctx, rec.User)
		if err != nil {
			return Error.Wrap(err)
		}
		user.Hits++
		if isFile {
			user.Files++
		}
		user.Xfer += rec.Bytes
		if newVisit {
			user.Visits++
		}
		user.Dirty = true
	}

	if rec.Status >= 400 {
		erec, err := s.findOrCreateError(ctx, rec.Method, rec.Status, rec.URL)
		if err != nil {
			return Error.Wrap(err)
		}
		erec.Hits++
		erec.Dirty = true
	}

	for i := range s.StatusCodes {
		if s.StatusCodes[i].Code == rec.Status {
			s.StatusCodes[i].Count++
			s.StatusCodes[i].Dirty = true
			break
		}
	}

	if rec.DownloadName != "" {
		if err := s.recordDownload(ctx, host, rec); err != nil {
			return Error.Wrap(err)
		}
	}

	s.maybeSwapOut(ctx)
	return nil
}

func (s *State) recordDownload(ctx context.Context, host *node.Host, rec *node.LogRecord) error {
	d, isNew, err := s.findOrCreateDownload(ctx, host, rec.DownloadName)
	if err != nil {
		return err
	}
	if isNew {
		host.DownloadRefCount++
		host.Dirty = true
	}
	var a *node.ActiveDownload
	if !d.HasActive {
		a = s.OpenDownload(d, rec.Timestamp)
	} else {
		found, ok := s.ActiveDLs.Find(activeDownloadKey(d.ID))
		if !ok {
			a = s.OpenDownload(d, rec.Timestamp)
		} else {
			a = found
		}
	}
	a.Hits++
	a.Xfer += rec.Bytes
	a.LastTime = rec.Timestamp
	a.Dirty = true
	return nil
}
