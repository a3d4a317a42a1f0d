package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bestie/active-record-shards/routing"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a topology file",
		Long:  "Parses the topology file, checks it for configuration errors and builds the full registry once, exiting non-zero on any inconsistency.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, parseErr := routing.LoadConfigFile(topologyFile)
			if parseErr != nil {
				return parseErr
			}

			registry, buildErr := cfg.BuildRegistry()
			if buildErr != nil {
				return buildErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "topology ok: %d shard(s), %d model(s), default shard %q\n",
				len(registry.ShardKeys()), len(registry.Models()), registry.DefaultShardKey())

			return nil
		},
	}
}
