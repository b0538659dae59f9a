package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"chatcart/pkg/commerce"
	"chatcart/pkg/config"

	"github.com/spf13/cobra"
)

var catalogFile string

type catalogSeed struct {
	Products []struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		Stock int     `json:"stock"`
	} `json:"products"`
	Pincodes []string `json:"pincodes,omitempty"`
}

// catalogCmd imports products and serviceable pincodes from a JSON
// file so operators can stock the store without touching the database.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Import catalog products from a JSON file",
	Long:  "Loads ChatCart configuration and upserts products (and optionally serviceable pincodes) from a JSON file into the commerce store.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		raw, err := os.ReadFile(catalogFile)
		if err != nil {
			fmt.Printf("failed to read catalog file: %v\n", err)
			return
		}

		var seed catalogSeed
		if err := json.Unmarshal(raw, &seed); err != nil {
			fmt.Printf("failed to parse catalog file: %v\n", err)
			return
		}
		if len(seed.Products) == 0 && len(seed.Pincodes) == 0 {
			fmt.Println("catalog file has no products or pincodes")
			return
		}

		shop, err := commerceStore(cfg)
		if err != nil {
			fmt.Printf("failed to open commerce store: %v\n", err)
			return
		}
		defer shop.Close()

		ctx := context.Background()
		for _, p := range seed.Products {
			product := commerce.Product{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
			if err := shop.UpsertProduct(ctx, product); err != nil {
				fmt.Printf("failed to import product %s: %v\n", p.ID, err)
				return
			}
		}
		for _, code := range seed.Pincodes {
			if err := shop.AddServiceablePincode(ctx, code); err != nil {
				fmt.Printf("failed to import pincode %s: %v\n", code, err)
				return
			}
		}

		fmt.Printf("imported %d products, %d pincodes\n", len(seed.Products), len(seed.Pincodes))
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().StringVarP(&catalogFile, "file", "f", "catalog.json", "path to the catalog JSON file")
}
