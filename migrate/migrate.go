// Package migrate applies version-gated upgrade steps against a database
// that has already passed engine.State.Initialize's compatibility check but
// has not yet been restored into memory. Callers run migrate.Run between
// Initialize and RestoreState; engine itself never imports this package, to
// keep the dependency one-directional (migrate needs the full engine.State
// to drive its steps, engine has no need to know migrate exists).
package migrate

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/IzzySoft/StoneStepsWebalizer/engine"
	"github.com/IzzySoft/StoneStepsWebalizer/node"
)

// Error is the error class for the migrate package.
var Error = errs.Class("migrate")

// Step is one version-gated upgrade applied against an opened-but-not-yet-
// restored database. Run must operate on eng.Store() directly — eng's
// in-memory tables (Totals, Hosts, ...) are still at their zero value at
// this point in the lifecycle.
type Step interface {
	// Name identifies the step in logs.
	Name() string
	// Applies reports whether sys needs this step.
	Applies(sys *node.Sysnode) bool
	// Run performs the upgrade.
	Run(ctx context.Context, eng *engine.State) error
}

// Steps lists every upgrade step in the order Run applies them: sequence
// reconciliation first since it is unconditional and cheap, then the
// per-row backfills gated on the sysnode flags they each clear.
var Steps = []Step{
	renumberSequencesStep{},
	backfillDailyHourlyVersionStep{},
	backfillHostLastTimestampStep{},
	backfillRecordCountsStep{},
}

// Run applies every step whose Applies reports true against eng.Sysnode, in
// Steps order, then stamps the sysnode's last-written version to the
// current build and marks it dirty so the stamp reaches storage on the
// next SaveState.
func Run(ctx context.Context, eng *engine.State) error {
	for _, step := range Steps {
		if !step.Applies(eng.Sysnode) {
			continue
		}
		eng.Log().Info("applying migration step", zap.String("step", step.Name()))
		if err := step.Run(ctx, eng); err != nil {
			return Error.New("%s: %v", step.Name(), err)
		}
	}
	eng.Sysnode.AppVersionLastWritten = node.Current
	eng.Sysnode.Dirty = true
	return nil
}
