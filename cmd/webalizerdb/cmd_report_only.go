package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportOnlyCmd = &cobra.Command{
	Use:   "report-only",
	Short: "Restore state and print a totals summary without ingesting or saving",
	RunE:  runReportOnly,
}

func runReportOnly(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg.ReportOnly = true

	state, closeState, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeState() }()

	t := state.Totals
	fmt.Fprintf(cmd.OutOrStdout(), "hosts=%d hits=%d files=%d pages=%d visits=%d xfer=%d\n",
		t.Hosts, t.Hits, t.Files, t.Pages, t.Visits, t.Xfer)

	return nil
}
