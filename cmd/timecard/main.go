package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/timecard/internal/app"
	"github.com/felixgeelhaar/timecard/internal/config"
	"github.com/felixgeelhaar/timecard/internal/guard"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "login":
		err = cmdLogin(ctx, args)
	case "register":
		err = cmdRegister(ctx, args)
	case "logout":
		err = cmdLogout(ctx)
	case "whoami":
		err = cmdWhoami(ctx)
	case "projects":
		err = cmdProjects(ctx, args)
	case "clock":
		err = cmdClock(ctx, args)
	case "entries":
		err = cmdEntries(ctx)
	case "overview":
		err = cmdOverview(ctx, args)
	case "config":
		err = cmdConfig()
	case "mcp":
		err = cmdMCP(ctx)
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("timecard %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Timecard - Time tracking for contractors

Usage:
  timecard <command> [arguments]

Account Commands:
  login <email> [password]            Log in
  register <email> <password> <again> Create an account
  logout                              Log out
  whoami                              Show the logged in user

Clock Commands:
  clock [status]                      Show the running timer
  clock start <project-id>            Start the timer for a project
  clock stop                          Stop the running timer
  clock watch                         Show the timer live until interrupted
  entries                             List the most recent entries

Project Commands:
  projects [list]                     List projects
  projects add <name> <client> <rate> Create a project
  projects archive <project-id>       Archive a project

Overview Commands:
  overview [week|month|year]          Hours, revenue and mileage totals

Other:
  config                              Show current configuration
  mcp                                 Start MCP server on stdio
  help                                Show this help message
  version                             Show version information

Environment:
  TIMECARD_API_BASE_URL, TIMECARD_ENV, TIMECARD_LOG_LEVEL,
  TIMECARD_AMQP_URL, TIMECARD_STORAGE_BACKEND`)
}

// openApp loads the configuration, sets up logging and builds the service
// graph with the persisted session restored.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dir, err := config.EnsureDir()
	if err != nil {
		return nil, fmt.Errorf("ensure timecard dir: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	return app.New(ctx, app.Options{
		Config:    cfg,
		Dir:       dir,
		Navigator: loginNotice{},
		Logger:    logger,
	})
}

// requireScreen runs the route guard for the screen a command shows.
func requireScreen(a *app.App, path string) error {
	d := a.Authorize(path)
	if d.Action == guard.Redirect && d.Location != guard.HomePath {
		return fmt.Errorf("not logged in (run 'timecard login' first)")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loginNotice is the CLI's login surface: it tells the user to log in.
type loginNotice struct{}

func (loginNotice) ToLogin(_ context.Context, reason string) {
	fmt.Fprintf(os.Stderr, "Signed out: %s\nRun 'timecard login' to continue.\n", reason)
}
