package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/swchat/pkg/engine"
	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/server"
	"github.com/germanamz/swchat/pkg/telemetry"
	"github.com/germanamz/swchat/pkg/tools/mcpserver"
)

func runServe(configPath, envFile, addr string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	logger := serviceLogger(cfg, logging.New(cfg.Logging()))
	slog.SetDefault(logger)

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "swchat",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		Stdout:         cfg.Tracing.Stdout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	eng, err := engine.New(ctx, cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	mcp := mcpserver.New("swchat", version)
	mcp.Register(eng.Tools())

	srv := server.New(eng, server.Options{
		Logger: logger,
		MCP:    mcp.Handler(),
	})

	return srv.ListenAndServe(ctx, cfg.Addr)
}

// loadConfig resolves configuration as defaults, then the optional YAML
// file, then the environment (after .env has been loaded).
func loadConfig(path, envFile string) (engine.Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return engine.Config{}, err
	}

	cfg := engine.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = engine.LoadConfig(path); err != nil {
			return engine.Config{}, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return engine.Config{}, err
	}

	return cfg, nil
}

// serviceLogger binds the deployment fields every log line carries.
func serviceLogger(cfg engine.Config, base *slog.Logger) *slog.Logger {
	l := base.With("env", cfg.Env, "provider", cfg.Provider, "model", cfg.Model())
	if cfg.Provider == engine.ProviderBedrock && cfg.Bedrock.Region != "" {
		l = l.With("region", cfg.Bedrock.Region)
	}
	return l
}
