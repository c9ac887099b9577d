package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/app"
	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/mcptools"
)

var (
	configPath   = flag.String("config", "", "Configuration file path (default: quill.toml if present)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Quill version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence:
	// 1. Load config (defaults -> file -> env)
	// 2. Initialize logger
	// 3. Print banner
	// 4. Wire services and serve MCP over stdio
	path := *configPath
	if path == "" {
		if env := os.Getenv("QUILL_CONFIG"); env != "" {
			path = env
		} else if _, err := os.Stat("quill.toml"); err == nil {
			path = "quill.toml"
		}
	}

	config, err := common.LoadFromFile(path)
	if err != nil {
		arbor.NewLogger().Fatal().Str("path", path).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("config", path).
		Str("version", common.GetVersion()).
		Msg("Starting Quill MCP server")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start background services")
		os.Exit(1)
	}

	mcpServer := mcptools.NewServer(application.MCPServices(), config, common.GetVersion(), logger)

	// ServeStdio blocks until stdin closes or the process receives SIGINT or
	// SIGTERM; log output goes to stderr so the protocol stream stays clean
	serveErr := server.ServeStdio(mcpServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	application.Close(shutdownCtx)

	if serveErr != nil {
		logger.Error().Err(serveErr).Msg("MCP server terminated with error")
		os.Exit(1)
	}
}
