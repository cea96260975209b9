package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yungbote/mdr-backend/internal/app"
	"github.com/yungbote/mdr-backend/internal/data/db"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

// env opens the wired application for one command.
type env interface {
	Open(ctx context.Context) (*app.App, error)
}

type appEnv struct{}

func (appEnv) Open(ctx context.Context) (*app.App, error) { return app.New(ctx) }

func newRootCmd() *cobra.Command {
	return newRootCmdWith(appEnv{})
}

func newRootCmdWith(e env) *cobra.Command {
	root := &cobra.Command{
		Use:           "mdrctl",
		Short:         "Maintenance tasks for the metadata repository",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newSyncUIDsCmd(e),
		newHistoryCmd(e),
		newCompactCmd(e),
		newReprojectCmd(e),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the relational graph store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New("development")
			if err != nil {
				return err
			}
			defer log.Sync()
			cfg := db.ConfigFromEnv()
			if cfg.Driver == db.DriverMemory {
				return fmt.Errorf("STORE_DRIVER=memory has no schema to migrate")
			}
			svc, err := db.Open(cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := db.AutoMigrateAll(cmd.Context(), svc, log); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", cfg.Driver)
			return nil
		},
	}
}

func withApp(e env, cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := e.Open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
