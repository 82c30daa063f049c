// Package node defines the persistent record kinds the engine aggregates
// traffic into: hosts, URLs, visits, downloads and their supporting tables.
// Each kind carries its own wire-format version tag (see serial.PackRecord)
// independent of the overall application version tracked in Sysnode.
package node

import (
	"fmt"

	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

// AppVersion is a four-part major.minor.patch.build version, matching the
// application-version scheme webalizer's sysnode tracks (e.g. "3.8.0.4").
type AppVersion struct {
	Major, Minor, Patch, Build uint8
}

// Current is the application version this build writes into new/updated
// sysnode rows.
var Current = AppVersion{Major: 4, Minor: 0, Patch: 0, Build: 0}

// Compare returns -1, 0 or 1 comparing v to other lexicographically over
// (Major, Minor, Patch, Build).
func (v AppVersion) Compare(other AppVersion) int {
	for _, pair := range [][2]uint8{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}, {v.Build, other.Build}} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}
	return 0
}

// Less reports whether v is strictly older than other.
func (v AppVersion) Less(other AppVersion) bool { return v.Compare(other) < 0 }

// String renders the version as "major.minor.patch.build".
func (v AppVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// Pack appends the four version bytes.
func (v AppVersion) pack(w *serial.Writer) {
	w.PutUint8(v.Major)
	w.PutUint8(v.Minor)
	w.PutUint8(v.Patch)
	w.PutUint8(v.Build)
}

func unpackAppVersion(r *serial.Reader) (AppVersion, error) {
	var v AppVersion
	var err error
	if v.Major, err = r.Uint8(); err != nil {
		return v, err
	}
	if v.Minor, err = r.Uint8(); err != nil {
		return v, err
	}
	if v.Patch, err = r.Uint8(); err != nil {
		return v, err
	}
	if v.Build, err = r.Uint8(); err != nil {
		return v, err
	}
	return v, nil
}

// Record wire-format version tags, one per node kind. These are bumped
// independently of AppVersion whenever a kind's payload layout changes.
const (
	VersionHost           uint16 = 4
	VersionActiveVisit    uint16 = 3
	VersionURL            uint16 = 3
	VersionReferrer       uint16 = 2
	VersionAgent          uint16 = 2
	VersionSearch         uint16 = 2
	VersionUser           uint16 = 2
	VersionError          uint16 = 2
	VersionDownload       uint16 = 2
	VersionActiveDownload uint16 = 2
	VersionCountry        uint16 = 1
	VersionCity           uint16 = 1
	VersionDailyTotals    uint16 = 2
	VersionHourlyTotals   uint16 = 2
	VersionStatusCode     uint16 = 1
	VersionTotals         uint16 = 4
	VersionSysnode        uint16 = 4
	VersionHistoryMonth   uint16 = 1

	// MinSupportedAppVersionMajor is the oldest sysnode major version this
	// build will open; the v4 schema widened all counters to 64-bit and
	// added UTC offsets, so pre-v4 databases are rejected except for
	// informational reads (see Sysnode.CompatibilityError).
	MinSupportedAppVersionMajor uint8 = 4
)
