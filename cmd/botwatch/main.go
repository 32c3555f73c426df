// Command botwatch is the terminal client for monitoring a fleet of trading
// bots. It loads configuration, validates it, opens the session channel to
// the monitoring server, and renders the live state until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"botwatch/internal/app"
	"botwatch/internal/config"
	"botwatch/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	encryptToken := flag.Bool("encrypt-token", false, "read a token and password from the environment, print the encrypted blob, and exit")
	flag.Parse()

	// Setup structured JSON logger on stderr; stdout belongs to the renderer.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *encryptToken {
		if err := runEncryptToken(); err != nil {
			logger.Error("token encryption failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("botwatch starting",
		slog.String("user_id", cfg.Server.UserID),
		slog.String("config", *configPath),
	)

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application.
	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if err == context.Canceled {
			logger.Info("shut down gracefully")
		} else {
			logger.Error("exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("botwatch stopped")
}

// runEncryptToken encrypts BOTWATCH_TOKEN with BOTWATCH_TOKEN_PASSWORD and
// prints the JSON blob to stdout, ready to be written next to the config.
func runEncryptToken() error {
	token := os.Getenv("BOTWATCH_TOKEN")
	password := os.Getenv("BOTWATCH_TOKEN_PASSWORD")
	if token == "" || password == "" {
		return fmt.Errorf("both BOTWATCH_TOKEN and BOTWATCH_TOKEN_PASSWORD must be set")
	}

	blob, err := crypto.EncryptToken(token, password)
	if err != nil {
		return err
	}
	fmt.Println(string(blob))
	return nil
}
