package main

import (
	"encoding/binary"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IzzySoft/StoneStepsWebalizer/node"
	"github.com/IzzySoft/StoneStepsWebalizer/storage"
	"github.com/IzzySoft/StoneStepsWebalizer/storage/boltstore"
)

var dbInfoCmd = &cobra.Command{
	Use:   "db-info",
	Short: "Print the raw sysnode record without enforcing compatibility checks",
	RunE:  runDBInfo,
}

// runDBInfo reads the sysnode row directly off the store, deliberately
// skipping engine.State.Initialize's compatibility gate: the whole point of
// this command is to diagnose a database that gate would otherwise reject.
func runDBInfo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := boltstore.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var idKey storage.Key = make([]byte, 8)
	binary.BigEndian.PutUint64(idKey, 0)

	buf, err := db.Get(ctx, boltstore.TableSysnode, idKey)
	if err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "no sysnode record: this is an uninitialized or empty database")
			return nil
		}
		return err
	}

	sys, version, err := node.UnpackSysnode(buf)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "sysnode record version: %d\n", version)
	fmt.Fprintf(out, "created by:       %s\n", sys.AppVersionCreated)
	fmt.Fprintf(out, "last written by:  %s\n", sys.AppVersionLastWritten)
	fmt.Fprintf(out, "incremental:      %t\n", sys.Incremental)
	fmt.Fprintf(out, "batch:            %t\n", sys.Batch)
	fmt.Fprintf(out, "utc enabled:      %t (offset %dm)\n", sys.UTCEnabled, sys.UTCOffsetMin)
	fmt.Fprintf(out, "daily/hourly fixed: %t\n", sys.FixedDHV)
	if msg := sys.CompatibilityError(); msg != "" {
		fmt.Fprintf(out, "compatibility:    INCOMPATIBLE: %s\n", msg)
	} else {
		fmt.Fprintf(out, "compatibility:    ok\n")
	}

	return nil
}
