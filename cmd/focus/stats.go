package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-focus/pkg/persist"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var dbPath string
	var filter persist.Filter

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregated focus statistics from the local store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				dbPath = cfg.Persistence.SQLite.Path
			}

			store, err := persist.OpenSQLite(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context(), filter)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (defaults to persistence.sqlite.path)")
	cmd.Flags().StringVar(&filter.SubjectID, "user-id", "", "only records for this user")
	cmd.Flags().StringVar(&filter.ContentID, "module-id", "", "only records for this module")
	return cmd
}
