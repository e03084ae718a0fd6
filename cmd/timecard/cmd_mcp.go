package main

import (
	"context"
	"fmt"
	"log/slog"

	mcpserver "github.com/felixgeelhaar/timecard/internal/mcp"
)

// cmdMCP serves the timer tools over stdio. Logging already goes to
// stderr, so stdout carries only the protocol.
func cmdMCP(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Session.IsAuthenticated() {
		return fmt.Errorf("not logged in (run 'timecard login' first)")
	}
	if err := a.Clock.Load(ctx); err != nil {
		slog.Warn("load active timer", "error", err)
	}

	srv := mcpserver.NewServer(mcpserver.Config{
		Clock:    a.Clock,
		Lists:    a.Cache,
		Reports:  a.Overview,
		Sessions: a.Session,
		Version:  Version,
	})
	return srv.ServeStdio(ctx)
}
