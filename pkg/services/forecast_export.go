package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	forecastSheet   = "Forecast"
	comparisonSheet = "Comparison"
)

// ExportForecastWorkbook renders a forecast result as an .xlsx workbook with a
// Forecast sheet (date, yhat, yhat_lower, yhat_upper) and a Comparison sheet
// (date, y, yhat, error, abs_error, then MAE and RMSE when defined).
func ExportForecastWorkbook(result *ForecastResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), forecastSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(comparisonSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	forecastRows := [][]interface{}{{"date", "yhat", "yhat_lower", "yhat_upper"}}
	for _, p := range result.Forecast {
		forecastRows = append(forecastRows, []interface{}{p.Date.Format("2006-01-02"), p.Point, p.Lower, p.Upper})
	}
	if err := writeRows(f, forecastSheet, forecastRows); err != nil {
		return nil, err
	}

	comparisonRows := [][]interface{}{{"date", "y", "yhat", "error", "abs_error"}}
	for _, r := range result.Comparison.Rows {
		comparisonRows = append(comparisonRows, []interface{}{r.Date.Format("2006-01-02"), r.Realized, r.Predicted, r.Error, r.AbsError})
	}
	if result.Comparison.Empty {
		comparisonRows = append(comparisonRows, []interface{}{}, []interface{}{"no realized demand inside the forecast horizon"})
	} else {
		comparisonRows = append(comparisonRows,
			[]interface{}{},
			[]interface{}{"MAE", *result.Comparison.MAE},
			[]interface{}{"RMSE", *result.Comparison.RMSE},
		)
	}
	if err := writeRows(f, comparisonSheet, comparisonRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ForecastExportFilename names the exported workbook.
func ForecastExportFilename(result *ForecastResult) string {
	return fmt.Sprintf("forecast_%s_%s.xlsx", result.Product, result.Month)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
