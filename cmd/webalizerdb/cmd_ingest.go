package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/serial"
)

var ingestInputPath string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Feed JSON-lines log records into RecordHit (test support, not a real log parser)",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestInputPath, "input", "", "path to a JSON-lines file of log records (default: stdin)")
}

// ingestRecord is the JSON-lines shape runIngest decodes, standing in for
// the field-extraction, DNS resolution and robot/spammer classification a
// real log parser would have already done by the time a record reaches
// node.LogRecord. Not a production ingestion path: see the doc of
// engine.State.RecordHit for the boundary this command exercises from the
// outside.
type ingestRecord struct {
	Time time.Time `json:"time"`

	Host   string `json:"host"`
	Method string `json:"method"`
	URL    string `json:"url"`
	Status uint16 `json:"status"`
	Bytes  uint64 `json:"bytes"`

	Referrer string `json:"referrer"`
	Agent    string `json:"agent"`
	User     string `json:"user"`

	SearchType  string   `json:"search_type"`
	SearchTerms []string `json:"search_terms"`

	DownloadName string `json:"download_name"`

	IsPage      bool `json:"is_page"`
	IsHexEncode bool `json:"is_hex_encode"`
	IsSecure    bool `json:"is_secure"`
	IsTarget    bool `json:"is_target"`
	IsRobot     bool `json:"is_robot"`
	IsSpammer   bool `json:"is_spammer"`
}

func (r *ingestRecord) toLogRecord() *node.LogRecord {
	return &node.LogRecord{
		Timestamp:    serial.FromTime(r.Time),
		Host:         r.Host,
		Method:       r.Method,
		URL:          r.URL,
		Status:       r.Status,
		Bytes:        r.Bytes,
		Referrer:     r.Referrer,
		Agent:        r.Agent,
		User:         r.User,
		SearchType:   r.SearchType,
		SearchTerms:  r.SearchTerms,
		DownloadName: r.DownloadName,
		IsPage:       r.IsPage,
		IsHexEncode:  r.IsHexEncode,
		IsSecure:     r.IsSecure,
		IsTarget:     r.IsTarget,
		IsRobot:      r.IsRobot,
		IsSpammer:    r.IsSpammer,
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var in io.Reader = os.Stdin
	if ingestInputPath != "" {
		f, err := os.Open(ingestInputPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	state, closeState, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeState() }()

	dec := json.NewDecoder(bufio.NewReader(in))
	for dec.More() {
		var rec ingestRecord
		if err := dec.Decode(&rec); err != nil {
			return err
		}
		if err := state.RecordHit(ctx, rec.toLogRecord()); err != nil {
			return err
		}
	}

	return state.SaveState(ctx)
}
