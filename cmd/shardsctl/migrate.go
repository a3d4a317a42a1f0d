package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bestie/active-record-shards/routing"
	"github.com/bestie/active-record-shards/routing/postgrescluster"
)

var errInvalidMigrationFilename = errors.New("migration filename must look like NNN_name.sql")

func newMigrateCommand() *cobra.Command {
	var migrationsDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to the primary of every shard",
		Long:  "Reads NNN_name.sql files from the migrations directory and applies the ones not yet recorded in the version table, on every shard's primary.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, parseErr := routing.LoadConfigFile(topologyFile)
			if parseErr != nil {
				return parseErr
			}

			migrations, readErr := readMigrationsDir(migrationsDir)
			if readErr != nil {
				return readErr
			}

			if len(migrations) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no migrations found in %s\n", migrationsDir)

				return nil
			}

			ctx := cmd.Context()

			cluster, openErr := postgrescluster.OpenFromConfig(ctx, cfg)
			if openErr != nil {
				return openErr
			}
			defer cluster.Close()

			migrator, migratorErr := postgrescluster.NewMigrator(cluster)
			if migratorErr != nil {
				return migratorErr
			}

			if applyErr := migrator.Apply(ctx, migrations...); applyErr != nil {
				return applyErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied up to version %d on all shards\n", migrations[len(migrations)-1].Version)

			return nil
		},
	}

	cmd.Flags().StringVarP(&migrationsDir, "dir", "d", "migrations", "directory containing NNN_name.sql migration files")

	return cmd
}

func readMigrationsDir(dir string) ([]postgrescluster.Migration, error) {
	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		return nil, readErr
	}

	var migrations []postgrescluster.Migration

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		migration, parseErr := parseMigrationFile(dir, entry.Name())
		if parseErr != nil {
			return nil, parseErr
		}

		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	return migrations, nil
}

func parseMigrationFile(dir string, filename string) (postgrescluster.Migration, error) {
	base := strings.TrimSuffix(filename, ".sql")

	versionPart, name, found := strings.Cut(base, "_")
	if !found || versionPart == "" || name == "" {
		return postgrescluster.Migration{}, fmt.Errorf("%w: %s", errInvalidMigrationFilename, filename)
	}

	version, versionErr := strconv.ParseInt(versionPart, 10, 64)
	if versionErr != nil {
		return postgrescluster.Migration{}, fmt.Errorf("%w: %s", errInvalidMigrationFilename, filename)
	}

	contents, readErr := os.ReadFile(filepath.Join(dir, filename))
	if readErr != nil {
		return postgrescluster.Migration{}, readErr
	}

	return postgrescluster.Migration{Version: version, Name: name, SQL: string(contents)}, nil
}
