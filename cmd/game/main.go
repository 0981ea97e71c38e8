package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pefman/ai-fight-club/internal/api"
	"github.com/pefman/ai-fight-club/internal/config"
	"github.com/pefman/ai-fight-club/internal/content"
	"github.com/pefman/ai-fight-club/internal/game"
	"github.com/pefman/ai-fight-club/internal/logging"
	"github.com/pefman/ai-fight-club/internal/metrics"
	"github.com/pefman/ai-fight-club/internal/server"
	"github.com/pefman/ai-fight-club/internal/session"
	"github.com/pefman/ai-fight-club/internal/stats"
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
	Use:           "fightclub-game",
	Short:         "AI Fight Club game server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
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
	Short: "Run the game HTTP and websocket server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fightclub-game %s %s\n", buildVersion, buildTime)
	},
}

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Inspect game content",
}

var contentValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a content file, or the embedded default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Game.ContentPath
		if len(args) == 1 {
			path = args[0]
		}
		cat, err := content.Load(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ok: %d traits, %d attitudes, %d focus areas, %d challenges, %d rivals\n",
			len(cat.Traits), len(cat.Attitudes), len(cat.FocusAreas), len(cat.Challenges), len(cat.Rivals))
		for _, slot := range cat.Missing() {
			fmt.Fprintf(out, "generated at play time: %s\n", slot)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")
	contentCmd.AddCommand(contentValidateCmd)
	rootCmd.AddCommand(serveCmd, versionCmd, contentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openStore(gc config.GameConfig, log *zap.Logger) (session.Store, error) {
	if gc.Store == "sqlite" {
		st, err := session.NewSQLiteStore(gc.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("session store", zap.String("kind", "sqlite"), zap.String("path", st.Path()))
		return st, nil
	}
	log.Info("session store", zap.String("kind", "memory"), zap.Int("capacity", gc.MemoryCapacity))
	return session.NewMemoryStore(gc.MemoryCapacity)
}

func runServe(cmd *cobra.Command, _ []string) error {
	defer func() { _ = logger.Sync() }()
	gc := cfg.Game
	log := logger.With(zap.String("service", "game"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := content.Load(gc.ContentPath)
	if err != nil {
		return err
	}
	store, err := openStore(gc, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", gc.Store, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNewMetrics(reg)

	hub := server.NewHub(log, m, gc.AllowedOrigin)
	opts := []game.Option{
		game.WithNotifier(hub),
		game.WithMetrics(m),
		game.WithLogger(log),
		game.WithSessionTTL(gc.SessionTTL),
		game.WithGenerateTimeout(gc.GenerateTimeout),
	}
	var backend server.HealthChecker
	if gc.AIEnabled {
		acfg := api.DefaultConfig(gc.BackendURL)
		acfg.MaxRetries = gc.BackendRetries
		client := api.NewClient(acfg, log, m)
		opts = append(opts, game.WithGenerator(client))
		backend = client
	} else {
		log.Warn("ai backend disabled, using local scoring")
	}
	svc := game.NewService(store, cat, stats.NewBoard(), opts...)
	if err := svc.LoadLeaderboard(ctx, gc.MockEntries, gc.MockSeed); err != nil {
		_ = store.Close()
		return err
	}

	proxy, err := server.NewBackendProxy(gc.BackendURL, log)
	if err != nil {
		_ = store.Close()
		return err
	}
	srv := server.New(server.Options{
		Service:       svc,
		Hub:           hub,
		Proxy:         proxy,
		Backend:       backend,
		Metrics:       metrics.Handler(reg),
		Observer:      m,
		AllowedOrigin: gc.AllowedOrigin,
		Version:       buildVersion,
		Logger:        log,
	})

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(gc.Port))
	if err != nil {
		_ = store.Close()
		return err
	}
	log.Info("starting",
		zap.String("version", buildVersion),
		zap.String("store", gc.Store),
		zap.String("backend", gc.BackendURL),
		zap.Bool("ai", gc.AIEnabled))
	return server.Run(ctx, ln, srv.Handler(), log, func() {
		hub.Close()
		if err := store.Close(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	})
}
