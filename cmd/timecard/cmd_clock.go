package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/felixgeelhaar/timecard/internal/app"
	"github.com/felixgeelhaar/timecard/internal/clock"
	"github.com/felixgeelhaar/timecard/internal/domain"
	"github.com/felixgeelhaar/timecard/internal/overview"
)

const (
	clockPath   = "/clock"
	entriesPath = "/entries"
)

// cmdClock drives the timer
func cmdClock(ctx context.Context, args []string) error {
	subCmd := "status"
	if len(args) > 0 {
		subCmd = args[0]
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireScreen(a, clockPath); err != nil {
		return err
	}

	// the server is the source of truth; load before acting
	if err := a.Clock.Load(ctx); err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			return err
		}
		fmt.Printf("Warning: %v\n", err)
	}

	switch subCmd {
	case "status", "":
		printStatus(a, a.Clock.Status())
		return nil
	case "start":
		if len(args) < 2 {
			return fmt.Errorf("usage: timecard clock start <project-id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[1])
		}
		st, err := a.Clock.Start(ctx, id)
		if err != nil {
			return err
		}
		printStatus(a, st)
		return printRecent(ctx, a)
	case "stop":
		entry, err := a.Clock.Stop(ctx)
		if err != nil {
			return err
		}
		if entry != nil {
			fmt.Printf("Stopped after %s\n", domain.FormatHMS(entry.DurationSeconds(time.Now())))
		} else {
			fmt.Println("Stopped")
		}
		return printRecent(ctx, a)
	case "watch":
		return watch(ctx, a)
	default:
		return fmt.Errorf("unknown clock command: %s (valid: status, start, stop, watch)", subCmd)
	}
}

// watch redraws the elapsed time on every tick until interrupted or the
// timer stops elsewhere.
func watch(ctx context.Context, a *app.App) error {
	st := a.Clock.Status()
	if !st.Running() {
		printStatus(a, st)
		return nil
	}

	name := projectName(ctx, a, st.ProjectID)
	ticks := make(chan clock.Status, 1)
	unsub := a.Clock.Subscribe(func(ev clock.Event) {
		select {
		case ticks <- ev.Status:
		default:
		}
	})
	defer unsub()

	fmt.Printf("%s  %s", name, st.Display)
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case st := <-ticks:
			if !st.Running() {
				fmt.Println("\nTimer stopped")
				return nil
			}
			fmt.Printf("\r%s  %s", name, st.Display)
		}
	}
}

func cmdEntries(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireScreen(a, entriesPath); err != nil {
		return err
	}
	return printRecent(ctx, a)
}

func printStatus(a *app.App, st clock.Status) {
	if !st.Running() {
		fmt.Println("Timer: not running")
		if !st.GatewayAvailable {
			fmt.Println("API not available, check your connection")
		}
		return
	}
	fmt.Printf("Timer:   running (#%d)\n", st.TimerID)
	fmt.Printf("Project: %s\n", projectName(context.Background(), a, st.ProjectID))
	fmt.Printf("Started: %s\n", st.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Elapsed: %s\n", st.Display)
}

// printRecent lists the latest entries. Stale data is marked.
func printRecent(ctx context.Context, a *app.App) error {
	entries, err := a.Cache.Entries(ctx)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	projects, _ := a.Cache.Projects(ctx)

	fmt.Println("\nRecent entries")
	fmt.Println("--------------")
	if entries.Stale {
		fmt.Printf("(offline, cached %s)\n", entries.CachedAt.Local().Format("2006-01-02 15:04"))
	}
	recent := overview.Recent(entries.Items, projects.Items, time.Now(), overview.RecentLimit)
	if len(recent) == 0 {
		fmt.Println("No entries yet")
		return nil
	}
	for _, r := range recent {
		open := ""
		if !r.Entry.Closed() {
			open = " (running)"
		}
		fmt.Printf("%-16s %-24s %s%s\n",
			r.Entry.StartedAt.Local().Format("2006-01-02 15:04"), r.ProjectName, r.Duration, open)
	}
	return nil
}

func projectName(ctx context.Context, a *app.App, id int64) string {
	projects, err := a.Cache.Projects(ctx)
	if err != nil {
		return domain.UnknownProjectName
	}
	return domain.ProjectName(projects.Items, id)
}
