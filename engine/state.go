// Package engine implements the aggregation orchestrator: the in-memory
// hash tables, totals and time machine, active-entity lifecycle, swap-out
// drive, monthly rollover and restore/save protocol.
package engine

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/IzzySoft/StoneStepsWebalizer/hashtable"
	"github.com/IzzySoft/StoneStepsWebalizer/history"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
)

var mon = monkit.Package()

// Default session-inactivity timeouts: 30 minutes, matching the classic
// webalizer default. Download jobs use the same default absent a more
// specific policy from the configuration layer.
const (
	DefaultVisitTimeout    = 30 * time.Minute
	DefaultDownloadTimeout = 30 * time.Minute
)

// Options configures a fresh or reopened State, mirroring the CLI-bound
// fields of Sysnode.
type Options struct {
	DBPath      string
	HistoryPath string

	Incremental bool
	Batch       bool
	ReportOnly  bool
	EndOfMonth  bool
	MemoryMode  bool

	UTCEnabled   bool
	UTCOffsetMin int16

	VisitTimeout    time.Duration
	DownloadTimeout time.Duration

	// StatusCodes and Countries seed the localized tables installed on
	// Initialize; their content is a localization concern owned by the
	// caller.
	StatusCodes []uint16
	Countries   map[string]string // two-letter lowercase code -> description
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.VisitTimeout == 0 {
		out.VisitTimeout = DefaultVisitTimeout
	}
	if out.DownloadTimeout == 0 {
		out.DownloadTimeout = DefaultDownloadTimeout
	}
	return out
}

// State owns every in-memory aggregation table, the totals/time-machine
// cursor, and the handle to the storage engine.
type State struct {
	log     *zap.Logger
	store   storage.Store
	hist    *history.Table
	opts    Options
	trickle *storage.Trickler

	RunID uuid.UUID

	Sysnode *node.Sysnode
	Totals  *node.Totals

	Hosts        *hashtable.Table[*node.Host]
	ActiveVisits *hashtable.Table[*node.ActiveVisit]
	URLs         *hashtable.Table[*node.URL]
	Referrers    *hashtable.Table[*node.Referrer]
	Agents       *hashtable.Table[*node.Agent]
	Searches     *hashtable.Table[*node.Search]
	Users        *hashtable.Table[*node.User]
	Errors       *hashtable.Table[*node.ErrorRec]
	Downloads    *hashtable.Table[*node.Download]
	ActiveDLs    *hashtable.Table[*node.ActiveDownload]

	// Spammers is repopulated from persisted Host.IsSpammer rows on load,
	// never persisted itself.
	Spammers map[string]bool

	Countries map[uint64]*node.Country
	Cities    map[uint64]*node.City

	Daily  [31]node.DailyTotals
	Hourly [24]node.HourlyTotals

	StatusCodes []node.StatusCode

	// VEnded/DLEnded accumulate ids of visits/downloads that ended this
	// run, deleted from the visits.active/active_downloads indexes at the
	// start of SaveState.
	VEnded  []uint64
	DLEnded []uint64

	// dtHosts is the set of hosts seen so far today, snapshotted into
	// Daily[day-1].Hosts on a day transition and mirrored into the
	// "dhosts" auxiliary table for the pre-3.4.1.1 migration step.
	dtHosts map[uint64]bool

	curHour  uint8
	hasHour  bool
	curAccum hourAccum
	initDone bool
}

// New constructs an unopened State. Call Initialize before use.
func New(log *zap.Logger, store storage.Store, opts Options) *State {
	opts = opts.withDefaults()
	hosts, visits, urls, refs, agents, search, users, errRecs, dls, adls := newTables()
	return &State{
		log:          log,
		store:        store,
		opts:         opts,
		RunID:        uuid.New(),
		Sysnode:      &node.Sysnode{},
		Totals:       &node.Totals{},
		Hosts:        hosts,
		ActiveVisits: visits,
		URLs:         urls,
		Referrers:    refs,
		Agents:       agents,
		Searches:     search,
		Users:        users,
		Errors:       errRecs,
		Downloads:    dls,
		ActiveDLs:    adls,
		Spammers:     map[string]bool{},
		Countries:    map[uint64]*node.Country{},
		Cities:       map[uint64]*node.City{},
		dtHosts:      map[uint64]bool{},
	}
}

// Store returns the underlying storage engine, for use by the migrate
// package's version-gated steps and by maintenance commands (compact,
// db-info) that operate on the store directly rather than through State's
// in-memory tables.
func (s *State) Store() storage.Store { return s.store }

// Log returns the logger this State was constructed with.
func (s *State) Log() *zap.Logger { return s.log }

// History returns the loaded history table, populated by Initialize.
func (s *State) History() *history.Table { return s.hist }

func newTables() (hosts *hashtable.Table[*node.Host], visits *hashtable.Table[*node.ActiveVisit],
	urls *hashtable.Table[*node.URL], refs *hashtable.Table[*node.Referrer],
	agents *hashtable.Table[*node.Agent], search *hashtable.Table[*node.Search],
	users *hashtable.Table[*node.User], errs *hashtable.Table[*node.ErrorRec],
	dls *hashtable.Table[*node.Download], adls *hashtable.Table[*node.ActiveDownload]) {
	hosts = hashtable.New[*node.Host](hashtable.Large)
	visits = hashtable.New[*node.ActiveVisit](hashtable.Medium)
	urls = hashtable.New[*node.URL](hashtable.Large)
	refs = hashtable.New[*node.Referrer](hashtable.Medium)
	agents = hashtable.New[*node.Agent](hashtable.Medium)
	search = hashtable.New[*node.Search](hashtable.Medium)
	users = hashtable.New[*node.User](hashtable.Small)
	errs = hashtable.New[*node.ErrorRec](hashtable.Small)
	dls = hashtable.New[*node.Download](hashtable.Medium)
	adls = hashtable.New[*node.ActiveDownload](hashtable.Small)
	return
}
