package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/tools/mcpserver"
	"github.com/germanamz/swchat/pkg/tools/swapi"
)

// runMCP exposes the SWAPI tools to MCP clients over stdio. It needs no
// inference provider, so only the tool settings of the config are used.
func runMCP(configPath, envFile string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return err
	}

	// Stdout carries the protocol.
	opts := cfg.Logging()
	opts.Writer = os.Stderr
	logger := logging.New(opts)

	swOpts := swapi.Options{
		BaseURL:     cfg.Tools.SWAPIBase,
		Timeout:     cfg.Tools.Timeout,
		ResultLimit: cfg.Tools.ResultLimit,
		CacheTTL:    cfg.Cache.TTL,
	}
	if cfg.Cache.RedisURL != "" {
		cache, err := swapi.NewRedisCache(cfg.Cache.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		swOpts.Cache = cache
	}

	srv := mcpserver.New("swchat", version)
	srv.Register(swapi.New(swOpts).ToolBox())

	logger.InfoContext(ctx, "serving mcp over stdio", "tools", []string{swapi.PeopleTool, swapi.StarshipsTool})

	return srv.ServeStdio(ctx)
}
