package main

import (
	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Restore state, flush any pending changes, and close",
	RunE:  runSave,
}

func runSave(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	state, closeState, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeState() }()

	if err := state.SaveState(ctx); err != nil {
		return err
	}

	if cfg.EndOfMonth {
		if err := state.ClearMonth(ctx); err != nil {
			return err
		}
		if err := state.SaveState(ctx); err != nil {
			return err
		}
	}

	return nil
}
