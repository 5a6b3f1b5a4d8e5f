// Package cmd defines the CLI commands for the review-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/app"
	"github.com/JakeFAU/review-crawler/internal/config"
	"github.com/JakeFAU/review-crawler/internal/job"
	"github.com/JakeFAU/review-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands need from the service container.
type App interface {
	Close()
	Logger() *zap.Logger
	Runner() *job.Runner
	ServeMetrics(ctx context.Context)
}

// newApp is the application factory. Tests replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "review-crawler",
		Short: "Crawls business search results and their reviews into CSV files.",
		Long: `review-crawler searches a review site for businesses matching a set of
keywords, then collects every listed business's reviews. Each keyword and each
business gets its own CSV output.`,
		SilenceUsage: true,

		// Runs after flag parsing so flag overrides land in the config the
		// services are built from.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := applyOverrides(cmd, &cfg); err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			appInstance.ServeMetrics(cmd.Context())
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
				_ = appInstance.Logger().Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("output-dir", "", "directory receiving the CSV outputs")
	flags.String("location", "", "country code passed to the relay")
	flags.Int("concurrency", 0, "number of concurrent workers")

	cmd.AddCommand(newSearchCmd(), newReviewsCmd(), newCrawlCmd())
	return cmd
}

// applyOverrides copies explicitly set flags over the loaded config.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Crawler.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("location") {
		cfg.Crawler.Location, _ = flags.GetString("location")
	}
	if flags.Changed("concurrency") {
		cfg.Crawler.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("keyword") {
		cfg.Crawler.Keywords, _ = flags.GetStringSlice("keyword")
	}
	if flags.Changed("pages") {
		cfg.Crawler.Pages, _ = flags.GetInt("pages")
	}
	return cfg.Validate()
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("keyword", "k", nil, "search keyword; repeat for more than one")
	cmd.Flags().IntP("pages", "p", 0, "result pages per keyword")
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// runPhase executes phase and logs the summary. Failed units are reported
// but do not fail the command; a phase error does.
func runPhase(cmd *cobra.Command, phase job.Phase, files []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	runner := appInstance.Runner()

	summary, err := runner.Run(cmd.Context(), phase, files)
	for _, out := range summary.Outputs {
		logger.Info("output written",
			zap.String("output", out.Name),
			zap.String("path", out.Path),
			zap.Int("records", out.Records),
			zap.String("archive_uri", out.ArchiveURI),
		)
	}
	for _, uerr := range summary.Report.Errors {
		logger.Warn("unit failed", zap.Error(uerr))
	}
	logger.Info("run finished",
		zap.String("run_id", runner.RunID()),
		zap.String("phase", string(phase)),
		zap.Int("succeeded", summary.Report.Succeeded),
		zap.Int("failed", summary.Report.Failed),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", phase, err)
	}
	return nil
}

// Execute is the main entry point.
func Execute() {
	// Bootstrap logger for failures before the configured one exists.
	if logger, err := logging.New(false, ""); err == nil {
		zap.ReplaceGlobals(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}
