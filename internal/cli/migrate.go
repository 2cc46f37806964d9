package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the order and outbox indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if err := requireMongo(cfg); err != nil {
				return err
			}
			repo, err := openMongo(cmd.Context(), cfg, log, true)
			if err != nil {
				return err
			}
			return repo.Close(context.Background())
		},
	}
}
