// Command dispatch is the master-side CLI: it loads a node/data file
// pair, brings up the transport, and drives a run of dispatchz to
// completion.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Fan a batch of tasks out across worker slots on a set of compute nodes",
}

func main() {
	rootCmd.AddCommand(runCmd, killCmd, inspectCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
