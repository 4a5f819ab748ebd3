package commands

import (
	"order-forecast-api/internal/printer"
	"order-forecast-api/pkg/services"

	"github.com/spf13/cobra"
)

var classifyDryRun bool

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify pending orders and write their status back",
	Long: `Train the order status classifier on orders labeled Valid, Invalid or
Duplicate, print its held-out evaluation, then predict a status for every
Pending or unset order and write it to the store.

Use --dry-run to print the predictions without writing them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := app.Forecasts.ClassifyOrders(cmd.Context(), services.ClassifyRequest{DryRun: classifyDryRun})
		if err != nil {
			return printer.Error("Classification failed", err)
		}
		printer.Warnings(result.Warnings)
		return printer.Classification(result)
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyDryRun, "dry-run", false, "Print predictions without writing them")
	rootCmd.AddCommand(classifyCmd)
}
