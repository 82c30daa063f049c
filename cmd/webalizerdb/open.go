package main

import (
	"context"

	"github.com/IzzySoft/StoneStepsWebalizer/engine"
	"github.com/IzzySoft/StoneStepsWebalizer/migrate"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/storelogger"
)

// defaultStatusCodes seeds the status-code report table absent any
// localization front end telling us otherwise — the common HTTP codes a
// fresh database should start tracking. A real deployment would replace
// this with whatever localization content its own loader provides.
var defaultStatusCodes = []uint16{
	200, 206, 301, 302, 304, 400, 401, 403, 404, 408, 410, 500, 502, 503,
}

// openEngine opens the bolt file at cfg.DBPath, wraps it in the debug-
// logging decorator, constructs an engine.State, and runs it through the
// full open sequence: Initialize, migrate.Run, RestoreState. The returned
// close func runs Cleanup; callers that intend to persist changes must call
// SaveState themselves before invoking it.
func openEngine(ctx context.Context) (*engine.State, func() error, error) {
	db, err := boltstore.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	store := storelogger.New(log, db)

	state := engine.New(log, store, cfg.Options())
	state.InstallStatusCodes(defaultStatusCodes)

	if err := state.Initialize(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := migrate.Run(ctx, state); err != nil {
		_ = state.Cleanup(ctx)
		return nil, nil, err
	}
	if err := state.RestoreState(ctx); err != nil {
		_ = state.Cleanup(ctx)
		return nil, nil, err
	}

	return state, func() error { return state.Cleanup(ctx) }, nil
}
