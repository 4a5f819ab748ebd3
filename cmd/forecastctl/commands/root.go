package commands

import (
	"fmt"

	config "order-forecast-api/configs"
	"order-forecast-api/internal/bootstrap"
	"order-forecast-api/internal/printer"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile string
	verbose bool

	// app is built once per invocation by the root PersistentPreRunE.
	app *bootstrap.App
)

var rootCmd = &cobra.Command{
	Use:   "forecastctl",
	Short: "Run demand forecasts and order classification against the order base",
	Long: `forecastctl runs the same pipeline as the API server from a terminal.

It reads the Airtable connection from the environment (or a .env file) and
the forecast and classifier settings from PIPELINE_CONFIG_PATH.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.HasParent() || cmd.Name() == "help" {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return printer.Error("Failed to load env file", err)
		}

		logger := zap.NewNop()
		if verbose {
			var err error
			if logger, err = zap.NewDevelopment(); err != nil {
				return err
			}
		}

		var err error
		app, err = bootstrap.New(cmd.Context(), config.LoadConfig(), logger)
		if err != nil {
			return printer.Error("Failed to initialise", err,
				"Set AIRTABLE_BASE_ID and AIRTABLE_API_KEY",
				"Check PIPELINE_CONFIG_PATH points at a valid YAML file")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(version, commit string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline activity to stderr")
}
