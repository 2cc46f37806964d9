package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command for the checkout service.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkoutd",
		Short: "Storefront checkout order service",
		Long: `Turns storefront checkout submissions into committed orders.

Configuration is read from the environment (HTTP_PORT, MONGO_URI, STORE, ...).`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewOutboxCommand())
	cmd.AddCommand(NewSeedCommand())

	return cmd
}
