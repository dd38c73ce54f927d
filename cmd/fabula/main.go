// -----------------------------------------------------------------------
// Last Modified: Saturday, 29th August 2026 5:45:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/app"
	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/server"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Fabula version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Merge shorthand flags (shorthand takes precedence)
	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}
	finalConfig := *configFile
	if *configFileC != "" {
		finalConfig = *configFileC
	}

	// Auto-discover config file if not specified
	if finalConfig == "" {
		if _, err := os.Stat("fabula.toml"); err == nil {
			finalConfig = "fabula.toml"
		}
	}

	// Startup sequence: defaults -> file -> env -> CLI, then logger, then banner
	config, err := common.LoadFromFile(finalConfig)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Str("path", finalConfig).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	// A bad configuration is fatal before any pipeline work starts
	if err := config.Validate(); err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger := common.SetupLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("config_file", finalConfig).
		Int("port", config.Server.Port).
		Str("host", config.Server.Host).
		Str("llm_provider", string(config.LLM.Provider)).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	if err := application.StartBackground(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start background scheduler")
		os.Exit(1)
	}

	srv := server.New(application)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				common.WriteCrashFile(r, common.GetStackTrace())
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Give goroutine a moment to start
	time.Sleep(100 * time.Millisecond)

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
