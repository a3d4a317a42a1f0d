// shardsctl is the operational command line for shard-routing topologies:
// it validates topology files, prints the routing decision table, and runs
// schema migrations across all shards.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var topologyFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "shardsctl",
		Short:         "Operate shard-routing topologies",
		Long:          "shardsctl validates topology files, prints routing decision tables and runs schema migrations across every shard of a topology.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&topologyFile, "file", "f", "topology.yml", "path to the topology YAML file")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newRoutesCommand())
	rootCmd.AddCommand(newMigrateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
