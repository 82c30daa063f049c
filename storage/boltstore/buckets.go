package boltstore

// Primary table names, one bolt bucket per node kind, keyed by node id.
const (
	TableSysnode        = "sysnode"
	TableTotals         = "totals"
	TableHosts          = "hosts"
	TableActiveVisits   = "active_visits"
	TableURLs           = "urls"
	TableReferrers      = "referrers"
	TableAgents         = "agents"
	TableSearch         = "search"
	TableUsers          = "users"
	TableErrors         = "errors"
	TableDownloads      = "downloads"
	TableActiveDownload = "active_downloads"
	TableCountries      = "countries"
	TableCities         = "cities"
	TableDaily          = "daily"
	TableHourly         = "hourly"
	TableStatusCodes    = "statuscodes"
	TableDHosts         = "dhosts" // daily-seen hosts auxiliary table, feeds the pre-3.4.1.1 migration step
)

// AllTables lists every primary table; the order is not significant.
var AllTables = []string{
	TableSysnode, TableTotals, TableHosts, TableActiveVisits, TableURLs,
	TableReferrers, TableAgents, TableSearch, TableUsers, TableErrors,
	TableDownloads, TableActiveDownload, TableCountries, TableCities,
	TableDaily, TableHourly, TableStatusCodes, TableDHosts,
}

// Named secondary indexes actually maintained.
const (
	IndexHostsHits        = "hosts.hits"
	IndexHostsXfer        = "hosts.xfer"
	IndexHostsGroupsHits  = "hosts.groups.hits"
	IndexHostsGroupsXfer  = "hosts.groups.xfer"
	IndexHostsValue       = "hosts.value"
	IndexURLsHits         = "urls.hits"
	IndexURLsXfer         = "urls.xfer"
	IndexURLsValue        = "urls.value"
	IndexURLsEntry        = "urls.entry"
	IndexURLsExit         = "urls.exit"
	IndexURLsGroupsHits   = "urls.groups.hits"
	IndexURLsGroupsXfer   = "urls.groups.xfer"
	IndexReferrersHits    = "referrers.hits"
	IndexReferrersGrpHits = "referrers.groups.hits"
	IndexAgentsVisits     = "agents.visits"
	IndexAgentsGrpVisits  = "agents.groups.visits"
	IndexSearchHits       = "search.hits"
	IndexUsersHits        = "users.hits"
	IndexUsersGroupsHits  = "users.groups.hits"
	IndexErrorsHits       = "errors.hits"
	IndexDownloadsXfer    = "downloads.xfer"
	IndexVisitsActive     = "visits.active"
	IndexActiveDownloads  = "active_downloads"
	IndexCountries        = "countries"
	IndexDHosts           = "dhosts"
)

// AllIndexes lists every named secondary index, and the primary table each
// is rebuilt from on Attach(rebuild=true).
var AllIndexes = map[string]string{
	IndexHostsHits:        TableHosts,
	IndexHostsXfer:        TableHosts,
	IndexHostsGroupsHits:  TableHosts,
	IndexHostsGroupsXfer:  TableHosts,
	IndexHostsValue:       TableHosts,
	IndexURLsHits:         TableURLs,
	IndexURLsXfer:         TableURLs,
	IndexURLsValue:        TableURLs,
	IndexURLsEntry:        TableURLs,
	IndexURLsExit:         TableURLs,
	IndexURLsGroupsHits:   TableURLs,
	IndexURLsGroupsXfer:   TableURLs,
	IndexReferrersHits:    TableReferrers,
	IndexReferrersGrpHits: TableReferrers,
	IndexAgentsVisits:     TableAgents,
	IndexAgentsGrpVisits:  TableAgents,
	IndexSearchHits:       TableSearch,
	IndexUsersHits:        TableUsers,
	IndexUsersGroupsHits:  TableUsers,
	IndexErrorsHits:       TableErrors,
	IndexDownloadsXfer:    TableDownloads,
	IndexVisitsActive:     TableActiveVisits,
	IndexActiveDownloads:  TableActiveDownload,
	IndexCountries:        TableCountries,
	IndexDHosts:           TableDHosts,
}

// indexBucket returns the bolt bucket name an index's entries are stored
// under, namespaced away from primary tables so an index name never
// collides with a table name. Sequence counters use bolt's own
// per-bucket NextSequence rather than a side table.
func indexBucket(index string) string { return "idx:" + index }
