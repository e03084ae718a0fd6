package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/timecard/internal/api"
)

const projectsPath = "/projects"

// cmdProjects manages projects
func cmdProjects(ctx context.Context, args []string) error {
	subCmd := "list"
	if len(args) > 0 {
		subCmd = args[0]
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireScreen(a, projectsPath); err != nil {
		return err
	}

	switch subCmd {
	case "list", "":
		snap, err := a.Cache.Projects(ctx)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		if snap.Stale {
			fmt.Printf("(offline, cached %s)\n", snap.CachedAt.Local().Format("2006-01-02 15:04"))
		}
		if len(snap.Items) == 0 {
			fmt.Println("No projects yet (add one with 'timecard projects add')")
			return nil
		}
		fmt.Printf("%-6s %-24s %-20s %8s  %s\n", "ID", "NAME", "CLIENT", "RATE", "STATUS")
		for _, p := range snap.Items {
			status := "active"
			if !p.IsActive {
				status = "archived"
			}
			fmt.Printf("%-6d %-24s %-20s %8.2f  %s\n", p.ID, p.Name, p.Client, p.HourlyRate, status)
		}
		return nil
	case "add":
		if len(args) < 4 {
			return fmt.Errorf("usage: timecard projects add <name> <client> <hourly-rate>")
		}
		rate, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("invalid hourly rate %q", args[3])
		}
		p, err := a.API.CreateProject(ctx, api.NewProject{Name: args[1], Client: args[2], HourlyRate: rate})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		fmt.Printf("Created project %d: %s\n", p.ID, p.Name)
		return nil
	case "archive":
		if len(args) < 2 {
			return fmt.Errorf("usage: timecard projects archive <project-id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[1])
		}
		if err := a.API.ArchiveProject(ctx, id); err != nil {
			return fmt.Errorf("archive project: %w", err)
		}
		fmt.Printf("Archived project %d\n", id)
		return nil
	default:
		return fmt.Errorf("unknown projects command: %s (valid: list, add, archive)", subCmd)
	}
}
