package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Forcibly tear down a transport daemon's scratch state",
	Long: `kill mode ignores every run positional: it removes the scratch
directory a prior (possibly crashed) run left behind, the same destructive,
no-confirmation recovery path as the original's --kill/-k flag. Since
dispatchz's transport is brought up fresh per run rather than as a
long-lived system daemon, there is no separate process to signal — the
scratch directory is the only state that outlives a crashed run.`,
	RunE: runKill,
}

func init() {
	killCmd.Flags().String("scratch-dir", "", "scratch directory to remove (required)")
}

func runKill(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("scratch-dir")
	if dir == "" {
		return fmt.Errorf("kill: --scratch-dir is required")
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("kill: removing %s: %w", dir, err)
	}
	fmt.Printf("removed scratch directory %s\n", dir)
	return nil
}
