// Package config binds the command-line flags and optional YAML overlay
// every subcommand in cmd/webalizerdb reads its run options from.
package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IzzySoft/StoneStepsWebalizer/engine"
)

// Config is the CLI-bound run configuration. It mirrors the fields of
// engine.Options plus the path to an optional YAML overlay file.
type Config struct {
	ConfigFile string

	DBPath      string
	HistoryPath string

	Incremental     bool
	Batch           bool
	ReportOnly      bool
	EndOfMonth      bool
	MemoryMode      bool
	CompactDatabase bool
	DBInfo          bool

	UTCEnabled   bool
	UTCOffsetMin int

	VisitTimeout    time.Duration
	DownloadTimeout time.Duration
}

// Bind registers every flag Config exposes on cmd's persistent flag set, so
// a single Bind call on the root command is inherited by every subcommand,
// with defaults matching engine.DefaultVisitTimeout/DefaultDownloadTimeout.
func Bind(cmd *cobra.Command, cfg *Config) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "path to a YAML overlay file")
	flags.StringVar(&cfg.DBPath, "db", "webalizer.db", "path to the embedded database file")
	flags.StringVar(&cfg.HistoryPath, "history", "webalizer.hist", "path to the flat history file")
	flags.BoolVar(&cfg.Incremental, "incremental", false, "run in incremental mode, preserving state between runs")
	flags.BoolVar(&cfg.Batch, "batch", false, "run in batch mode: indexes are still maintained live, and the next run rebuilds them on attach")
	flags.BoolVar(&cfg.ReportOnly, "report-only", false, "restore state and produce reports without ingesting new records")
	flags.BoolVar(&cfg.EndOfMonth, "end-of-month", false, "force a monthly rollover after this run")
	flags.BoolVar(&cfg.MemoryMode, "memory-mode", false, "keep every aggregation table resident, disabling swap-out")
	flags.BoolVar(&cfg.CompactDatabase, "compact-database", false, "no effect; the compact subcommand compacts the database file")
	flags.BoolVar(&cfg.DBInfo, "db-info", false, "no effect; the db-info subcommand prints database diagnostic info")
	flags.BoolVar(&cfg.UTCEnabled, "utc", false, "interpret log timestamps as UTC rather than local time")
	flags.IntVar(&cfg.UTCOffsetMin, "utc-offset", 0, "UTC offset in minutes, when --utc is set")
	flags.DurationVar(&cfg.VisitTimeout, "visit-timeout", engine.DefaultVisitTimeout, "session-inactivity timeout for active visits")
	flags.DurationVar(&cfg.DownloadTimeout, "download-timeout", engine.DefaultDownloadTimeout, "inactivity timeout for active downloads")
}

// Load overlays cfg with values from cfg.ConfigFile, if set. Flags
// explicitly passed on the command line always win: Load is called after
// cobra has already parsed flags into cfg, and only fills fields that
// still hold their flag default via viper's BindPFlag precedence.
func Load(cmd *cobra.Command, cfg *Config) error {
	if cfg.ConfigFile == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg.DBPath = v.GetString("db")
	cfg.HistoryPath = v.GetString("history")
	cfg.Incremental = v.GetBool("incremental")
	cfg.Batch = v.GetBool("batch")
	cfg.ReportOnly = v.GetBool("report-only")
	cfg.EndOfMonth = v.GetBool("end-of-month")
	cfg.MemoryMode = v.GetBool("memory-mode")
	cfg.CompactDatabase = v.GetBool("compact-database")
	cfg.DBInfo = v.GetBool("db-info")
	cfg.UTCEnabled = v.GetBool("utc")
	cfg.UTCOffsetMin = v.GetInt("utc-offset")
	cfg.VisitTimeout = v.GetDuration("visit-timeout")
	cfg.DownloadTimeout = v.GetDuration("download-timeout")
	return nil
}

// Options converts cfg into engine.Options, ready to pass to engine.New.
func (cfg *Config) Options() engine.Options {
	return engine.Options{
		DBPath:          cfg.DBPath,
		HistoryPath:     cfg.HistoryPath,
		Incremental:     cfg.Incremental,
		Batch:           cfg.Batch,
		ReportOnly:      cfg.ReportOnly,
		EndOfMonth:      cfg.EndOfMonth,
		MemoryMode:      cfg.MemoryMode,
		UTCEnabled:      cfg.UTCEnabled,
		UTCOffsetMin:    int16(cfg.UTCOffsetMin),
		VisitTimeout:    cfg.VisitTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
	}
}
