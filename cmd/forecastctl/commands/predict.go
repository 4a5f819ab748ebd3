package commands

import (
	"os"

	"order-forecast-api/internal/printer"
	"order-forecast-api/pkg/services"

	"github.com/spf13/cobra"
)

var (
	predictProduct string
	predictMonth   string
	retrainMonth   string
	exportPath     string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Forecast a product from the first day of a month",
	Long: `Forecast a product from the first day of --month and compare the
forecast with the demand recorded inside the horizon.

With --retrain-month the model is first trained on everything before that
month plus its realized demand, and the forecast reuses that model. When
that training window reaches into the forecast month a fresh model is fitted
instead and a warning is printed.

Examples:
  forecastctl predict -p P1 -m 2025-03
  forecastctl predict -p P1 -m 2025-04 --retrain-month 2025-03 --export out.xlsx`,
	RunE: runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	session := app.Sessions.Create()
	defer app.Sessions.Delete(session.ID)

	req := services.PredictRequest{Product: predictProduct, Month: predictMonth}
	if retrainMonth != "" {
		retrained, err := app.Forecasts.RetrainMonth(ctx, session, services.RetrainRequest{Product: predictProduct, Month: retrainMonth})
		if err != nil {
			return printer.Error("Retrain failed", err)
		}
		printer.Warnings(retrained.Warnings)
		printer.Success("retrained %s with %d realized days (generation %d)",
			predictProduct, retrained.RealizedCount, retrained.Model.Generation)
		req.UseCached = true
	}

	result, err := app.Forecasts.PredictMonth(ctx, session, req)
	if err != nil {
		return printer.Error("Forecast failed", err)
	}
	printer.Warnings(result.Warnings)
	if err := printer.Forecast(result); err != nil {
		return err
	}

	if exportPath == "" {
		return nil
	}
	data, err := services.ExportForecastWorkbook(result)
	if err != nil {
		return printer.Error("Export failed", err)
	}
	if err := os.WriteFile(exportPath, data, 0o644); err != nil {
		return printer.Error("Export failed", err)
	}
	printer.Success("wrote %s", exportPath)
	return nil
}

func init() {
	predictCmd.Flags().StringVarP(&predictProduct, "product", "p", "", "Product key")
	predictCmd.Flags().StringVarP(&predictMonth, "month", "m", "", "Forecast month (YYYY-MM)")
	predictCmd.Flags().StringVar(&retrainMonth, "retrain-month", "", "Retrain with this month's realized demand first (YYYY-MM)")
	predictCmd.Flags().StringVar(&exportPath, "export", "", "Write the forecast and comparison to this .xlsx file")
	_ = predictCmd.MarkFlagRequired("product")
	_ = predictCmd.MarkFlagRequired("month")

	rootCmd.AddCommand(predictCmd)
}
