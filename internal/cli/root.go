package cli

import (
	"context"

	"resumeflow/internal/common"
	"resumeflow/internal/config"
	"resumeflow/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "resumeflow",
	Short: "A CLI client for the resume optimization workflow",
	Long: `Resumeflow drives a resume optimization workflow hosted by a remote engine.
It starts workflows, follows their progress, runs the discovery interview,
reviews drafting suggestions and exports the final resume. Interview and
drafting state is kept locally so interrupted sessions can be resumed.`,
	SilenceUsage: true,
}

// outputConfig holds the --output and --format flags shared by every command.
var outputConfig common.CommandConfig

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// applyOutputFormat fills in the default format and validates it.
func applyOutputFormat(cmd *cobra.Command, _ []string) error {
	cfg := getConfigFromContext(cmd.Context())
	if outputConfig.OutputFormat == "" {
		outputConfig.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(outputConfig.OutputFormat, cfg.App.SupportedFormats)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&outputConfig.OutputFormat, "format", "", "Output format: json, text, markdown, or pretty")

	// Add completion for format flag
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}
