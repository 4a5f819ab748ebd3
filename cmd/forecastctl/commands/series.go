package commands

import (
	"order-forecast-api/internal/printer"

	"github.com/spf13/cobra"
)

var seriesProduct string

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List products that have order lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		products, warnings, err := app.Forecasts.Products(cmd.Context())
		if err != nil {
			return printer.Error("Failed to list products", err)
		}
		printer.Warnings(warnings)
		printer.Products(products)
		return nil
	},
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Print the daily demand of a product",
	RunE: func(cmd *cobra.Command, args []string) error {
		series, err := app.Forecasts.DemandSeries(cmd.Context(), seriesProduct)
		if err != nil {
			return printer.Error("Failed to load demand", err)
		}
		printer.Warnings(series.Warnings)
		return printer.Series(series)
	},
}

func init() {
	seriesCmd.Flags().StringVarP(&seriesProduct, "product", "p", "", "Product key")
	_ = seriesCmd.MarkFlagRequired("product")

	rootCmd.AddCommand(productsCmd, seriesCmd)
}
