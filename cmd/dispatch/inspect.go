package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoobzio/dispatchz/internal/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize a completed run's SQLite results ledger",
	Long: `inspect reads the ledger written by a prior "dispatch run --store-path"
invocation and reports how many of its recorded tasks failed, without
re-reading unfinished_tasks.txt.`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().String("store-path", "", "path to the run's SQLite results ledger (required)")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	storePath, _ := cmd.Flags().GetString("store-path")
	if storePath == "" {
		return fmt.Errorf("inspect: --store-path is required")
	}

	ledger, err := store.Open(storePath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	failed, err := ledger.CountFailed(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("failed tasks: %d\n", failed)
	return nil
}
