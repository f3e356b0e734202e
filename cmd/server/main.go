package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iudanet/fieldsync/internal/config"
	"github.com/iudanet/fieldsync/internal/server"
	"github.com/iudanet/fieldsync/internal/server/jwt"
	"github.com/iudanet/fieldsync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "fieldsync.yaml", "Path to configuration file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	issueToken := flag.String("issue-token", "", "Print a token for SUBJECT and exit")
	scopes := flag.String("scopes", jwt.ScopeRead+","+jwt.ScopeWrite, "Comma-separated scopes for -issue-token")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *configPath, *addr, *dbPath, *issueToken, *scopes); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, addr, dbPath, issueToken, scopes string) error {
	cfg, err := config.Load(configPath, true)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Server.DBPath = dbPath
	}
	if secret := os.Getenv("FIELDSYNC_JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}

	tokens, err := jwt.NewService(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to configure tokens: %w", err)
	}

	if issueToken != "" {
		token, err := tokens.Issue(issueToken, strings.Split(scopes, ",")...)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	logger.Info("Starting fieldsync server", "version", Version, "db", cfg.Server.DBPath)
	return server.New(cfg.Server, store, tokens, reg, logger).Run(ctx)
}

func printVersion() {
	fmt.Printf("Fieldsync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
