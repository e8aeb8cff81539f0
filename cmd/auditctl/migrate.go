package main

import (
	"fmt"

	"github.com/spf13/cobra"

	infra_config "github.com/spounge-ai/auditchain/internal/infra/config"
	"github.com/spounge-ai/auditchain/internal/infra/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|version]",
	Short: "Manage the Postgres audit schema",
	Long: `Applies the embedded Postgres migrations to persistence.url. SQLite stores
create their schema when opened and need no migration step.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

var migrateSteps int

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "migrations to revert with down")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	cfg, err := infra_config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Persistence.Type != infra_config.StoragePostgres {
		return fmt.Errorf("migrate needs persistence.type %q, config has %q", infra_config.StoragePostgres, cfg.Persistence.Type)
	}

	logger := cliLogger()
	m, err := persistence.NewMigrator(cfg.Persistence.URL, logger)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch action {
	case "up":
		return m.Up()
	case "down":
		return m.Down(migrateSteps)
	case "version":
		version, dirty, ok, err := m.Version()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
}
