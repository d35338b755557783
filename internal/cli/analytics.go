package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"formbuilder-service/internal/config"
	"github.com/spf13/cobra"
)

var errNoPersistentStore = errors.New("analytics needs postgres.url: without it forms live only in the memory of a running server")

// NewAnalyticsCmd prints the batch analytics summary of a form as JSON.
func NewAnalyticsCmd(configPath *string) *cobra.Command {
	var formID string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the analytics summary of a form",
		RunE: func(cmd *cobra.Command, args []string) error {
			if formID == "" {
				return fmt.Errorf("--form is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			config.NewLogger(cfg.Log)
			if cfg.Postgres.URL == "" {
				return errNoPersistentStore
			}

			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.close()

			summary, err := b.service(nil).FormAnalytics(cmd.Context(), formID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "form id")
	return cmd
}
