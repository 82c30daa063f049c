package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim space, without touching engine state",
	RunE:  runCompact,
}

// runCompact operates on the store file directly rather than through
// openEngine: compaction is a page-level file rewrite and has no business
// going through Initialize's compatibility gate, migrate steps, or
// RestoreState's in-memory load.
func runCompact(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := boltstore.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Compact(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "compacted", cfg.DBPath)
	return nil
}
