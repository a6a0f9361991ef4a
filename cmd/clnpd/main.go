// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/pointerlabs/clnp/internal/admin"
	"github.com/pointerlabs/clnp/internal/api"
	"github.com/pointerlabs/clnp/internal/archive"
	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/config"
	"github.com/pointerlabs/clnp/internal/daemon"
	clnplog "github.com/pointerlabs/clnp/internal/log"
	"github.com/pointerlabs/clnp/internal/scoring"
	"github.com/pointerlabs/clnp/internal/session"
	"github.com/pointerlabs/clnp/internal/store"
	"github.com/pointerlabs/clnp/internal/telemetry"
	"github.com/pointerlabs/clnp/internal/token"
	"github.com/pointerlabs/clnp/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// The logger initialises exactly once, and config loading already logs,
	// so pick the output format straight from the environment first.
	var logOut io.Writer = os.Stdout
	if os.Getenv("CLNP_LOG_FORMAT") == "console" {
		logOut = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	clnplog.Configure(clnplog.Config{
		Output:  logOut,
		Service: "clnp",
	})

	logger := clnplog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Msg("failed to load configuration")
	}

	logger.Info().
		Str("event", "config.loaded").
		Str("source", "env+defaults").
		Msg("loaded configuration from environment and defaults")

	if cfg.SecretGenerated {
		logger.Warn().
			Str("security", "weak").
			Msg("CLNP_SECRET not set; using an ephemeral secret. Tokens and receipts will not survive a restart.")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "datadir.create_failed").
			Str("path", cfg.DataDir).
			Msg("failed to create data directory")
	}

	otelEnabled := cfg.OTelExporter != "" && cfg.OTelExporter != "none"
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        otelEnabled,
		ServiceName:    "clnp",
		ServiceVersion: version.Version,
		Environment:    config.ParseString("CLNP_ENV", "production"),
		ExporterType:   cfg.OTelExporter,
		Endpoint:       cfg.OTelEndpoint,
		SamplingRate:   cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialise tracing")
	}

	signer := token.NewSigner(cfg.Secret)

	st := store.New()
	go st.RunSweeper(ctx, store.SweepInterval)

	sessions := session.NewLogger(cfg.SessionLogPath())

	var arch *archive.Store
	if cfg.SQLitePath != "" {
		arch, err = archive.Open(cfg.SQLitePath)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "archive.open_failed").
				Str("path", cfg.SQLitePath).
				Msg("failed to open session archive")
		}
	}

	var pub *session.Publisher
	if cfg.RedisAddr != "" {
		pub, err = session.NewPublisher(session.PublisherConfig{
			Addr:   cfg.RedisAddr,
			Stream: cfg.RedisStream,
		})
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "redis.connect_failed").
				Str("addr", cfg.RedisAddr).
				Msg("failed to connect the session stream publisher")
		}
	}

	scoringCfg := scoring.Default()
	if cfg.ScoringConfigPath != "" {
		scoringCfg, err = scoring.Load(cfg.ScoringConfigPath)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "scoring.load_failed").
				Str("path", cfg.ScoringConfigPath).
				Msg("failed to load scoring overrides")
		}
		logger.Info().
			Str("path", cfg.ScoringConfigPath).
			Msg("scoring overrides loaded")
	}

	tracingService := ""
	if otelEnabled {
		tracingService = "clnp"
	}

	srv, err := api.New(api.Deps{
		Generator:      challenge.NewGenerator(cfg.ChallengeTTL, cfg.EmbedChallengeTTL()),
		Store:          st,
		Signer:         signer,
		Scorer:         scoring.New(scoringCfg),
		Sessions:       sessions,
		Archive:        arch,
		Publisher:      pub,
		Stats:          admin.New(cfg.SessionLogPath(), arch),
		AdminToken:     cfg.AdminToken,
		TracingService: tracingService,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "api.init_failed").
			Msg("failed to assemble the API server")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.ListenAddr).
		Msg("starting clnp")

	// Log key configuration
	logger.Info().Msgf("→ Challenge TTL: %s (embed: %s)", cfg.ChallengeTTL, cfg.EmbedChallengeTTL())
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	if cfg.AdminToken != "" {
		logger.Info().Msg("→ Admin API: configured")
	} else {
		logger.Warn().
			Str("security", "weak").
			Msg("→ Admin API: NOT configured (endpoints disabled). Set CLNP_ADMIN_TOKEN to enable.")
	}
	if cfg.SQLitePath != "" {
		logger.Info().Msgf("→ Archive: %s", cfg.SQLitePath)
	} else {
		logger.Info().Msg("→ Archive: disabled")
	}
	if cfg.RedisAddr != "" {
		logger.Info().Msgf("→ Redis stream: %s on %s", cfg.RedisStream, cfg.RedisAddr)
	} else {
		logger.Info().Msg("→ Redis stream: disabled")
	}
	if otelEnabled {
		logger.Info().Msgf("→ Tracing: %s exporter to %s (ratio %.2f)", cfg.OTelExporter, cfg.OTelEndpoint, cfg.OTelSampleRatio)
	} else {
		logger.Info().Msg("→ Tracing: disabled")
	}

	mgr, err := daemon.NewManager(daemon.ServerConfig{
		ListenAddr:      cfg.ListenAddr,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, daemon.Deps{
		Logger:  logger,
		Handler: srv.Router(),
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	mgr.RegisterShutdownHook("telemetry", provider.Shutdown)
	if arch != nil {
		mgr.RegisterShutdownHook("archive", func(context.Context) error {
			return arch.Close()
		})
	}
	if pub != nil {
		mgr.RegisterShutdownHook("publisher", func(context.Context) error {
			return pub.Close()
		})
	}

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon manager failed")
	}

	logger.Info().Msg("server exiting")
}
