package node

import "github.com/IzzySoft/StoneStepsWebalizer/serial"

// LogRecord is the minimal shape a parsed access-log line must present to
// engine.State.RecordHit. Field extraction, DNS resolution and robot/
// spammer classification are external collaborators: by the time a
// LogRecord reaches the engine, those decisions (IsPage, IsRobot,
// IsSpammer) have already been made upstream.
type LogRecord struct {
	Timestamp serial.Timestamp

	Host   string
	Method string
	URL    string
	Status uint16
	Bytes  uint64

	Referrer string
	Agent    string
	User     string

	// SearchType/SearchTerms are non-empty when Referrer was recognized as
	// a search-engine query string by the upstream parser.
	SearchType  string
	SearchTerms []string

	// DownloadName is non-empty when URL was classified as a download
	// target by the upstream parser.
	DownloadName string

	IsPage      bool
	IsHexEncode bool
	IsSecure    bool // true if the request arrived over https
	IsTarget    bool // true if URL is a configured conversion target
	IsRobot     bool
	IsSpammer   bool
}
