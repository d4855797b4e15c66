package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielkropka/social-flow-sub001/internal/bootstrap"
	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/logger"
	"github.com/danielkropka/social-flow-sub001/internal/version"

	"go.uber.org/zap"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		os.Exit(run(runServer))
	case "refresh-stats":
		os.Exit(run(runRefreshStats))
	case "refresh-tokens":
		os.Exit(run(runRefreshTokens))
	case "disable-user", "enable-user":
		if len(args) < 2 {
			fmt.Printf("Usage: %s %s USER_ID\n", os.Args[0], args[0])
			os.Exit(1)
		}
		os.Exit(run(setUserActive(args[1], args[0] == "enable-user")))
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Social account connect service")
	fmt.Println("\nCommands:")
	fmt.Println("  server            Start the HTTP server")
	fmt.Println("  refresh-stats     Refresh follower and post counts of every active account once")
	fmt.Println("  refresh-tokens    Renew provider tokens that are about to expire")
	fmt.Println("  disable-user ID   Block login for a user and end their sessions")
	fmt.Println("  enable-user ID    Allow a disabled user to log in again")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

type command func(ctx context.Context, cfg *config.Config, log *zap.Logger) error

// run loads configuration, builds the logger and runs cmd. It returns the
// process exit code.
func run(cmd command) int {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting",
		zap.String("app", version.App),
		zap.String("version", version.String()),
		zap.String("environment", cfg.Environment))

	if err := cmd(context.Background(), cfg, log); err != nil {
		log.Error("command failed", zap.Error(err))
		return 1
	}
	return 0
}

func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	return bootstrap.Run(ctx, cfg, log)
}

func runRefreshStats(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := bootstrap.RunRefreshStats(ctx, cfg, log)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"targets": len(results),
		"results": results,
	})
}

func runRefreshTokens(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := bootstrap.RunRefreshTokens(ctx, cfg, log)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"targets": len(results),
		"results": results,
	})
}

func setUserActive(userID string, active bool) command {
	return func(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
		if err := bootstrap.RunSetUserActive(ctx, cfg, log, userID, active); err != nil {
			return err
		}
		return printJSON(map[string]any{"user_id": userID, "active": active})
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
