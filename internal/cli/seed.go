package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/spf13/cobra"
)

func NewSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <products.json>",
		Short: "Load catalog products for local testing",
		Long: `Load catalog products for local testing.

The file holds a JSON array of products in the catalog's document shape;
use "-" to read from stdin. Products with an id are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if err := requireMongo(cfg); err != nil {
				return err
			}

			products, err := readProducts(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			repo, err := openMongo(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			defer repo.Close(cmd.Context())

			for i := range products {
				if err := repo.UpsertProduct(cmd.Context(), &products[i]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), products[i].ID.Hex(), products[i].Title)
			}
			return nil
		},
	}
}

func readProducts(stdin io.Reader, path string) ([]domain.Product, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse products: %w", err)
	}
	return products, nil
}
