package main

import (
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a fresh database, or bring an existing one's schema up to date",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	state, closeState, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeState() }()

	return state.SaveState(ctx)
}
