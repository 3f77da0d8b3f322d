package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soclens/soclens/internal/config"
	"github.com/soclens/soclens/internal/logging"
	"github.com/soclens/soclens/internal/seeder"
	"github.com/soclens/soclens/internal/store"
)

var (
	seedCount  int
	seedAgents int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert generated events into the document store",
	Long:  `Generates plausible security events for demos and local development. Requires the Postgres mirror to be enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 500, "number of events to generate")
	seedCmd.Flags().IntVar(&seedAgents, "agents", 5, "number of fake endpoints")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	if !cfg.Postgres.Enabled {
		return fmt.Errorf("seeding requires postgres.enabled")
	}

	if err := store.RunMigrations(cfg.Postgres.Migrations, cfg.Postgres.ConnString()); err != nil {
		return err
	}
	pgStore, err := store.NewPostgresStore(ctx, cfg.Postgres.ConnString())
	if err != nil {
		return err
	}
	defer pgStore.Close()

	return seeder.New(pgStore, log).Seed(ctx, seedCount, seedAgents)
}
