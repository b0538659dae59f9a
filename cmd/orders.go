package cmd

import (
	"context"
	"fmt"
	"strings"

	"chatcart/pkg/config"

	"github.com/spf13/cobra"
)

var ordersLimit int

// ordersCmd lists recent orders for operators, straight from the
// business-record store.
var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List recent orders",
	Long:  "Loads ChatCart configuration, opens the order store, and prints the most recent orders.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		shop, err := commerceStore(cfg)
		if err != nil {
			fmt.Printf("failed to open commerce store: %v\n", err)
			return
		}
		defer shop.Close()

		orders, err := shop.ListOrders(context.Background(), ordersLimit)
		if err != nil {
			fmt.Printf("failed to list orders: %v\n", err)
			return
		}

		if len(orders) == 0 {
			fmt.Println("no orders yet")
			return
		}

		for _, order := range orders {
			items := make([]string, 0, len(order.Items))
			for _, item := range order.Items {
				items = append(items, fmt.Sprintf("%d×%s", item.Qty, item.Name))
			}

			fmt.Printf("%s  %s  %s %.2f  %s  %s  %s\n",
				order.ID,
				order.CreatedAt.Format("2006-01-02 15:04"),
				cfg.Commerce.Policy().Currency, order.Total,
				order.PaymentMethod,
				order.Status,
				strings.Join(items, ", "))
		}
	},
}

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.Flags().IntVarP(&ordersLimit, "limit", "n", 20, "maximum number of orders to list")
}
