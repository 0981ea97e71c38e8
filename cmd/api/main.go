package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pefman/ai-fight-club/internal/config"
	"github.com/pefman/ai-fight-club/internal/llm"
	"github.com/pefman/ai-fight-club/internal/logging"
	"github.com/pefman/ai-fight-club/internal/metrics"
	"github.com/pefman/ai-fight-club/internal/server"
)

// Build metadata injected via -ldflags at build time
var (
	buildVersion = "dev"
	buildTime    = ""
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "fightclub-api",
	Short:         "AI Fight Club model backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel, cfg.Development())
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /api/generate backed by Gemini",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the build version",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fightclub-api %s %s\n", buildVersion, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	defer func() { _ = logger.Sync() }()
	ac := cfg.API
	log := logger.With(zap.String("service", "api"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := llm.NewGemini(ctx, llm.Config{
		APIKey:      ac.GeminiAPIKey,
		Model:       ac.Model,
		Temperature: ac.Temperature,
		MaxTokens:   ac.MaxTokens,
		Timeout:     ac.RequestTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("%w (set GEMINI_API_KEY)", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)

	h := server.NewBackendHandler(gen, gen.Model(), metrics.Handler(reg), log, m, cfg.Game.AllowedOrigin)

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(ac.Port))
	if err != nil {
		return err
	}
	log.Info("starting", zap.String("version", buildVersion), zap.String("model", gen.Model()))
	return server.Run(ctx, ln, h, log, nil)
}
