package main

import (
	"github.com/spf13/cobra"
)

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Restore state, roll the current month's database aside, and save the fresh one",
	RunE:  runRollover,
}

func runRollover(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	state, closeState, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeState() }()

	if err := state.ClearMonth(ctx); err != nil {
		return err
	}

	return state.SaveState(ctx)
}
