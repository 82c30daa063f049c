package node

import (
	"testing"

	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

func sampleTimestamp() serial.Timestamp {
	return serial.Timestamp{Year: 2020, Month: 6, Day: 15, Hour: 10, Min: 30, Sec: 0, UTCOffM: -300}
}

func TestHostRoundTrip(t *testing.T) {
	want := &Host{
		ID: 7, Value: "10.0.0.1", Hits: 5, Files: 4, Pages: 3, Xfer: 1024,
		Visits: 2, VisitsConverted: 1, VisitMax: 120, VisitAvg: 60.5,
		MaxHitsPerVisit: 3, MaxFilesPerVisit: 2, MaxPagesPerVisit: 2, MaxXferPerVisit: 512,
		CountryCode: PackCountryCode("us"),
		City:        City{GeonameID: 42, CountryCode: PackCountryCode("us"), Name: "Springfield"},
		LastTime:    sampleTimestamp(),
		IsSpammer:   false, IsRobot: false, IsGroup: false,
		HasActive: true, ActiveVisitID: 7,
		HasGroupVisit: true, GroupVisitHead: 99,
		DownloadRefCount: 1,
	}
	got, version, err := UnpackHost(want.Pack())
	if err != nil {
		t.Fatal(err)
	}
	if version != VersionHost {
		t.Fatalf("version = %d, want %d", version, VersionHost)
	}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestHostEvictable(t *testing.T) {
	h := &Host{}
	if !h.Evictable() {
		t.Fatal("bare host should be evictable")
	}
	h.HasActive = true
	if h.Evictable() {
		t.Fatal("host with active visit must not be evictable")
	}
	h.HasActive = false
	h.DownloadRefCount = 1
	if h.Evictable() {
		t.Fatal("host with download refs must not be evictable")
	}
}

func TestActiveVisitRoundTrip(t *testing.T) {
	want := &ActiveVisit{
		ID: 7, Hits: 3, Files: 2, Pages: 1, Xfer: 2048,
		EntryURLID: 11, HasLastURL: true, LastURLID: 12,
		StartTime: sampleTimestamp(), LastTime: sampleTimestamp(),
		IsRobot: false, IsConverted: true, HostRefCount: 1,
	}
	got, _, err := UnpackActiveVisit(want.Pack())
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestURLRoundTrip(t *testing.T) {
	want := &URL{
		ID: 3, Value: "/index.html", Hits: 10, Xfer: 4096,
		EntryCount: 2, ExitCount: 1, AvgTime: 0.5, MaxTime: 1.2,
		Type: URLTypeHTTPS, IsTarget: true, IsHexEncode: false, PathLen: 11,
		VisitRefCount: 1,
	}
	got, _, err := UnpackURL(want.Pack())
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestURLEvictable(t *testing.T) {
	u := &URL{}
	if !u.Evictable() {
		t.Fatal("bare url should be evictable")
	}
	u.VisitRefCount = 1
	if u.Evictable() {
		t.Fatal("url referenced by a visit must not be evictable")
	}
}

func TestReferrerAgentUserRoundTrip(t *testing.T) {
	ref := &Referrer{ID: 1, Value: "https://example.com/", Hits: 4, Visits: 2}
	got, _, err := UnpackReferrer(ref.Pack())
	if err != nil || *got != *ref {
		t.Fatalf("referrer: got %+v, err %v", got, err)
	}

	ag := &Agent{ID: 2, Value: "curl/8.0", Hits: 9, Xfer: 99, Visits: 3, IsRobot: true}
	gotA, _, err := UnpackAgent(ag.Pack())
	if err != nil || *gotA != *ag {
		t.Fatalf("agent: got %+v, err %v", gotA, err)
	}

	u := &User{ID: 3, Value: "alice", Hits: 5, Files: 4, Xfer: 100, Visits: 1, AvgTime: 1.1, MaxTime: 2.2}
	gotU, _, err := UnpackUser(u.Pack())
	if err != nil || *gotU != *u {
		t.Fatalf("user: got %+v, err %v", gotU, err)
	}
}

func TestSearchRoundTripAndKey(t *testing.T) {
	s := &Search{ID: 4, SearchType: "google", Terms: []string{"go", "webalizer"}, Hits: 2, Visits: 1}
	got, _, err := UnpackSearch(s.Pack())
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != s.ID || got.SearchType != s.SearchType || len(got.Terms) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.TermCount() != 2 {
		t.Fatalf("TermCount = %d, want 2", got.TermCount())
	}
	if s.Key() != got.Key() {
		t.Fatalf("key mismatch: %q vs %q", s.Key(), got.Key())
	}
}

func TestErrorRecRoundTripAndKey(t *testing.T) {
	e := &ErrorRec{ID: 5, Method: "GET", Status: 404, URL: "/missing", IsHexEncode: false, Hits: 1}
	got, _, err := UnpackError(e.Pack())
	if err != nil || *got != *e {
		t.Fatalf("got %+v, err %v", got, err)
	}
	e2 := &ErrorRec{Method: "GET", Status: 404, URL: "/other"}
	if e.Key() == e2.Key() {
		t.Fatal("distinct urls must produce distinct error keys")
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	d := &Download{ID: 6, HostValue: "10.0.0.1", Name: "pkg.tar.gz", SumHits: 2, SumXfer: 2048, SumTime: 3.5, AvgTime: 1.75, Count: 2, HostID: 7, HasActive: true}
	got, _, err := UnpackDownload(d.Pack())
	if err != nil || *got != *d {
		t.Fatalf("got %+v, err %v", got, err)
	}

	ad := &ActiveDownload{ID: 6, Hits: 1, LastTime: sampleTimestamp(), ProcTime: 0.9, Xfer: 1024}
	gotAD, _, err := UnpackActiveDownload(ad.Pack())
	if err != nil || *gotAD != *ad {
		t.Fatalf("got %+v, err %v", gotAD, err)
	}
}

func TestCountryCodePacking(t *testing.T) {
	packed := PackCountryCode("us")
	if UnpackCountryCode(packed) != "us" {
		t.Fatalf("round trip failed: %q", UnpackCountryCode(packed))
	}
	if PackCountryCode("") != 0 {
		t.Fatal("empty code should pack to zero")
	}
}

func TestCountryRoundTrip(t *testing.T) {
	c := &Country{Code: PackCountryCode("de"), Hits: 1, Files: 1, Pages: 1, Visits: 1, Xfer: 10}
	got, _, err := UnpackCountry(c.Pack())
	if err != nil || *got != *c {
		t.Fatalf("got %+v, err %v", got, err)
	}
}

func TestCityRoundTrip(t *testing.T) {
	c := &City{GeonameID: 100, CountryCode: PackCountryCode("fr"), Name: "Paris", Hits: 2, Files: 2, Pages: 1, Visits: 1, Xfer: 20}
	got, _, err := UnpackCity(c.Pack())
	if err != nil || *got != *c {
		t.Fatalf("got %+v, err %v", got, err)
	}
	if c.IsEmpty() {
		t.Fatal("non-zero geoname id must not be empty")
	}
	var empty City
	if !empty.IsEmpty() {
		t.Fatal("zero-value city must be empty")
	}
}

func TestDailyHourlyRoundTrip(t *testing.T) {
	d := &DailyTotals{Day: 15, Hits: 100, Files: 80, Pages: 50, Xfer: 1000, Visits: 10, Hosts: 5, HoursObserved: 24,
		AvgHitsPerHour: 4.1, MaxHitsPerHour: 20}
	got, _, err := UnpackDailyTotals(d.Pack())
	if err != nil || *got != *d {
		t.Fatalf("got %+v, err %v", got, err)
	}

	h := &HourlyTotals{Hour: 10, Hits: 5, Files: 4, Pages: 2, Xfer: 50}
	gotH, _, err := UnpackHourlyTotals(h.Pack())
	if err != nil || *gotH != *h {
		t.Fatalf("got %+v, err %v", gotH, err)
	}
}

func TestStatusCodeRoundTripAndClassStart(t *testing.T) {
	s := &StatusCode{Code: 404, Count: 3}
	got, _, err := UnpackStatusCode(s.Pack())
	if err != nil || *got != *s {
		t.Fatalf("got %+v, err %v", got, err)
	}
	codes := []StatusCode{{Code: 200}, {Code: 301}, {Code: 404}, {Code: 500}}
	if idx := ClassStart(codes, 404); idx != 2 {
		t.Fatalf("ClassStart(404) = %d, want 2", idx)
	}
	if idx := ClassStart(codes, 200); idx != 0 {
		t.Fatalf("ClassStart(200) = %d, want 0", idx)
	}
}

func TestTotalsRoundTrip(t *testing.T) {
	tot := &Totals{
		Hits: 100, Files: 80, Pages: 50, Visits: 10, Hosts: 5, Xfer: 10240, Errors: 2,
		RobotHits: 5, RobotFiles: 4, RobotPages: 2, RobotXfer: 512, RobotVisits: 1, RobotHosts: 1,
		SpammerHits: 1, SpammerVisits: 1, Downloads: 3, SearchHits: 7,
		GroupHosts: 1, GroupURLs: 2, GroupReferrers: 0, GroupAgents: 1, GroupSearches: 0, GroupUsers: 0,
		MaxVisitLen: 3600, AvgVisitLen: 120.5, MaxHitsPerHour: 30,
		CurTimestamp: sampleTimestamp(), CurMonth: 6, CurYear: 2020,
		FirstDay: 1, LastDay: 15, HasDays: true,
	}
	got, _, err := UnpackTotals(tot.Pack())
	if err != nil || *got != *tot {
		t.Fatalf("got %+v, err %v", got, err)
	}
}

func TestSysnodeRoundTripAndCompatibility(t *testing.T) {
	s := NewSysnode(true, false, true, -300)
	got, version, err := UnpackSysnode(s.Pack())
	if err != nil {
		t.Fatal(err)
	}
	if version != VersionSysnode {
		t.Fatalf("version = %d, want %d", version, VersionSysnode)
	}
	got.Dirty = s.Dirty // Dirty is not persisted, reset for comparison
	if *got != *s {
		t.Fatalf("got %+v, want %+v", got, s)
	}
	if errMsg := got.CompatibilityError(); errMsg != "" {
		t.Fatalf("fresh sysnode should be compatible, got %q", errMsg)
	}
}

func TestSysnodeRejectsPreV4(t *testing.T) {
	s := NewSysnode(false, false, false, 0)
	s.AppVersionLastWritten = AppVersion{Major: 3, Minor: 8, Patch: 0, Build: 4}
	if errMsg := s.CompatibilityError(); errMsg == "" {
		t.Fatal("expected pre-v4 database to be rejected")
	}
}

func TestSysnodeByteOrderMismatch(t *testing.T) {
	s := NewSysnode(false, false, false, 0)
	s.ByteOrder = 0xdeadbeef
	if errMsg := s.CompatibilityError(); errMsg == "" {
		t.Fatal("expected byte-order mismatch to be rejected")
	}
}

func TestAppVersionCompare(t *testing.T) {
	older := AppVersion{Major: 3, Minor: 8, Patch: 0, Build: 4}
	newer := AppVersion{Major: 4, Minor: 0, Patch: 0, Build: 0}
	if !older.Less(newer) {
		t.Fatal("3.8.0.4 should be less than 4.0.0.0")
	}
	if newer.Less(older) {
		t.Fatal("4.0.0.0 should not be less than 3.8.0.4")
	}
	if newer.Compare(newer) != 0 {
		t.Fatal("equal versions should compare 0")
	}
}

func TestUnsupportedVersionRejected(t *testing.T) {
	h := &Host{ID: 1, Value: "x"}
	buf := h.Pack()
	// Corrupt the version tag to one newer than this build understands.
	buf[0] = 0xff
	buf[1] = 0xff
	if _, _, err := UnpackHost(buf); err != serial.ErrUnsupportedVersion {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}
