// Command webalizerdb drives one engine.State lifecycle per invocation:
// open (and, if needed, upgrade) the database, optionally restore and save
// state, then close. Each subcommand wires a different slice of that
// lifecycle; the option grammar itself is bound once on the root command
// via config.Bind, so every subcommand shares one flag set.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IzzySoft/StoneStepsWebalizer/config"
	"github.com/IzzySoft/StoneStepsWebalizer/wlog"
)

var (
	cfg config.Config
	log *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "webalizerdb",
		Short: "Incremental web-server log aggregation database",
	}
)

func init() {
	config.Bind(rootCmd, &cfg)
	rootCmd.PersistentFlags().BoolVar(&development, "dev", false, "enable development-mode logging")
	rootCmd.AddCommand(initCmd, saveCmd, reportOnlyCmd, dbInfoCmd, compactCmd, rolloverCmd, ingestCmd)
}

var development bool

// loggerFor builds the shared logger once flags are parsed; cobra runs the
// nearest PersistentPreRunE in a command's parent chain (here the root's)
// before the command's own RunE, so binding it there (rather than in init,
// before flag parsing) is what lets --dev actually take effect.
func loggerFor(cmd *cobra.Command, _ []string) error {
	l, err := wlog.New(development)
	if err != nil {
		return err
	}
	log = l
	if cfg.ConfigFile != "" {
		if err := config.Load(cmd, &cfg); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	rootCmd.PersistentPreRunE = loggerFor
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if log != nil {
		_ = log.Sync()
	}
}
