package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/joho/godotenv"
	"github.com/purplix/backend/internal/purplix/app"
	"github.com/spf13/cobra"
)

// newRootCmd builds the "purplix" command. Every sub-command reads its
// settings from the environment, optionally seeded from --env-file.
func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "purplix",
		Short:         "Purplix backend: canaries, surveys and accounts",
		Version:       app.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			// Values in the file win over the inherited environment.
			if err := godotenv.Overload(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file to load before reading configuration")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newPurgeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(cmd.Context(), app.LoadConfig())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.LoadConfig()
			db, err := app.OpenDatabase(cfg, app.NewLogger(cfg))
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired rows once and print what was removed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			report, err := app.Purge(ctx, app.LoadConfig())
			if err != nil {
				return err
			}

			tables := make([]string, 0, len(report))
			for t := range report {
				tables = append(tables, t)
			}
			sort.Strings(tables)
			for _, t := range tables {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d\n", t, report[t])
			}
			return nil
		},
	}
}
