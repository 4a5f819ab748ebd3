package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"order-forecast-api/pkg/models"
	"order-forecast-api/pkg/services"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Out is where tables and messages go. Tests replace it.
var Out io.Writer = os.Stdout

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	green.Fprintf(Out, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Step prints a step message with emphasis
func Step(format string, a ...any) {
	cyan.Fprintf(Out, "→ %s\n", fmt.Sprintf(format, a...))
}

// Warnings prints diagnostics in yellow, one per line.
func Warnings(warnings []models.Warning) {
	for _, w := range warnings {
		if w.RecordID != "" {
			yellow.Fprintf(Out, "⚠️  [%s] %s: %s\n", w.Kind, w.RecordID, w.Message)
			continue
		}
		yellow.Fprintf(Out, "⚠️  [%s] %s\n", w.Kind, w.Message)
	}
}

// Error prints a formatted error to stderr and returns a plain error for Cobra
func Error(title string, err error, suggestions ...string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	fmt.Fprintf(os.Stderr, "%v\n", err)
	if len(suggestions) > 0 {
		fmt.Fprintln(os.Stderr)
		for _, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  - %s\n", s)
		}
	}
	return fmt.Errorf("%s: %w", title, err)
}

func render(header []string, rows [][]string) error {
	table := tablewriter.NewWriter(Out)
	table.Header(toAny(header)...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func num(v float64) string { return fmt.Sprintf("%.2f", v) }

// Series prints a daily demand table.
func Series(series *services.SeriesResult) error {
	rows := make([][]string, 0, len(series.Observations))
	for _, o := range series.Observations {
		rows = append(rows, []string{o.Date.Format("2006-01-02"), fmt.Sprint(o.Quantity)})
	}
	return render([]string{"date", "quantity"}, rows)
}

// Forecast prints the forecast, its comparison with realized demand and the error summary.
func Forecast(result *services.ForecastResult) error {
	model := result.Model
	Step("model %s (generation %d, %d training days through %s)",
		model.ID, model.Generation, model.TrainingSize, model.TrainedThrough.Format("2006-01-02"))

	rows := make([][]string, 0, len(result.Forecast))
	for _, p := range result.Forecast {
		rows = append(rows, []string{p.Date.Format("2006-01-02"), num(p.Point), num(p.Lower), num(p.Upper)})
	}
	if err := render([]string{"date", "yhat", "yhat_lower", "yhat_upper"}, rows); err != nil {
		return err
	}

	if result.Comparison.Empty {
		yellow.Fprintln(Out, "no realized demand inside the forecast horizon")
		return nil
	}
	rows = rows[:0]
	for _, r := range result.Comparison.Rows {
		rows = append(rows, []string{r.Date.Format("2006-01-02"), fmt.Sprint(r.Realized), num(r.Predicted), num(r.Error), num(r.AbsError)})
	}
	if err := render([]string{"date", "y", "yhat", "error", "abs_error"}, rows); err != nil {
		return err
	}
	Success("MAE %s  RMSE %s", num(*result.Comparison.MAE), num(*result.Comparison.RMSE))
	return nil
}

// Classification prints the evaluation report and the per-order predictions.
func Classification(result *services.ClassifyResult) error {
	report := result.Report
	Step("trained on %d orders, evaluated on %d", report.TrainSize, report.TestSize)

	classes := make([]string, 0, len(report.Classes))
	for class := range report.Classes {
		classes = append(classes, string(class))
	}
	sort.Strings(classes)

	metricsRow := func(name string, m models.ClassMetrics) []string {
		return []string{name, num(m.Precision), num(m.Recall), num(m.F1Score), fmt.Sprint(m.Support)}
	}
	rows := make([][]string, 0, len(classes)+2)
	for _, class := range classes {
		rows = append(rows, metricsRow(class, report.Classes[models.OrderStatus(class)]))
	}
	rows = append(rows, metricsRow("macro avg", report.MacroAvg), metricsRow("weighted avg", report.WeightedAvg))
	if err := render([]string{"class", "precision", "recall", "f1", "support"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(Out, "accuracy %s\n", num(report.Accuracy))

	rows = rows[:0]
	for _, p := range result.Predictions {
		written := "dry-run"
		switch {
		case p.Error != "":
			written = "failed: " + p.Error
		case p.Written:
			written = "written"
		}
		rows = append(rows, []string{p.OrderRecordID, p.OrderID, string(p.Predicted), written})
	}
	if err := render([]string{"record", "order", "predicted", "write-back"}, rows); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d orders classified, %d written, %d failed", len(result.Predictions), result.Written, result.Failed)
	if result.Failed > 0 {
		red.Fprintln(Out, summary)
	} else {
		Success("%s", summary)
	}
	return nil
}

// Products prints one product key per line.
func Products(products []string) {
	fmt.Fprintln(Out, strings.Join(products, "\n"))
}
