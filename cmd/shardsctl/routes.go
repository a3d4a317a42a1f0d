package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bestie/active-record-shards/routing"
)

func newRoutesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the routing decision table for a topology",
		Long:  "Builds the registry from the topology file and prints, per model, which shard and role serves reads, writes, transactional reads and forced-replica reads.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, parseErr := routing.LoadConfigFile(topologyFile)
			if parseErr != nil {
				return parseErr
			}

			registry, buildErr := cfg.BuildRegistry()
			if buildErr != nil {
				return buildErr
			}

			if asJSON {
				snapshot, snapshotErr := registry.Snapshot()
				if snapshotErr != nil {
					return snapshotErr
				}

				fmt.Fprintln(cmd.OutOrStdout(), string(snapshot))

				return nil
			}

			router, routerErr := routing.NewRouter(registry)
			if routerErr != nil {
				return routerErr
			}

			return printDecisionTable(cmd, router)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the registry snapshot as JSON instead of the decision table")

	return cmd
}

// routeScenarios are the contexts the decision table is rendered for.
var routeScenarios = []struct {
	name string
	op   routing.OperationKind
	ctx  func(context.Context) context.Context
}{
	{"read", routing.OpRead, func(ctx context.Context) context.Context { return ctx }},
	{"write", routing.OpWrite, func(ctx context.Context) context.Context { return ctx }},
	{"read in transaction", routing.OpRead, routing.WithTransaction},
	{"forced-replica read", routing.OpForceReplica, func(ctx context.Context) context.Context { return ctx }},
	{"migration", routing.OpWrite, routing.WithMigration},
}

func printDecisionTable(cmd *cobra.Command, router *routing.Router) error {
	registry := router.Registry()

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "MODEL\tSCENARIO\tSHARD\tROLE\tHANDLE")

	for _, model := range registry.Models() {
		policy, policyErr := registry.PolicyFor(model)
		if policyErr != nil {
			return policyErr
		}

		for _, scenario := range routeScenarios {
			ctx := scenario.ctx(context.Background())

			// a sharded model without a static shard is shown once per shard
			if policy.Sharded() && policy.StaticShard() == "" {
				for _, shard := range registry.ShardKeys() {
					printDecisionRow(writer, router, routing.WithShard(ctx, shard), model, scenario.name, scenario.op)
				}
				continue
			}

			printDecisionRow(writer, router, ctx, model, scenario.name, scenario.op)
		}
	}

	return writer.Flush()
}

func printDecisionRow(
	writer *tabwriter.Writer,
	router *routing.Router,
	ctx context.Context,
	model string,
	scenario string,
	op routing.OperationKind,
) {
	handle, err := router.Decide(ctx, model, op)
	if err != nil {
		fmt.Fprintf(writer, "%s\t%s\t-\t-\terror: %v\n", model, scenario, err)
		return
	}

	fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", model, scenario, handle.Shard(), handle.Role(), handle.ID())
}
