package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/felixgeelhaar/timecard/internal/app"
	"github.com/felixgeelhaar/timecard/internal/domain"
	"github.com/felixgeelhaar/timecard/internal/guard"
)

// cmdLogin exchanges email and password for a credential
func cmdLogin(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: timecard login <email> [password]")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Authorize(guard.LoginPath).Action == guard.Redirect {
		fmt.Printf("Already logged in as %s\n", a.Session.Snapshot().Identity.DisplayName())
		return nil
	}

	password := ""
	if len(args) > 1 {
		password = args[1]
	} else if password, err = prompt(os.Stdin, "Password: "); err != nil {
		return err
	}

	token, err := a.API.Login(ctx, args[0], password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := a.Session.Login(ctx, token); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Printf("Logged in as %s\n", a.Session.Snapshot().Identity.DisplayName())
	return printTimer(ctx, a)
}

// cmdRegister creates an account and logs in when the server hands out a
// credential right away
func cmdRegister(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: timecard register <email> <password> <password-again>")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Authorize(guard.RegisterPath).Action == guard.Redirect {
		fmt.Printf("Already logged in as %s\n", a.Session.Snapshot().Identity.DisplayName())
		return nil
	}

	reg, err := a.API.Register(ctx, args[0], args[1], args[2])
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if reg.Token == "" {
		msg := reg.Message
		if msg == "" {
			msg = "Registration successful"
		}
		fmt.Printf("%s. Run 'timecard login %s' to continue.\n", msg, args[0])
		return nil
	}
	if err := a.Session.Login(ctx, reg.Token); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	fmt.Printf("Registered and logged in as %s\n", a.Session.Snapshot().Identity.DisplayName())
	return nil
}

func cmdLogout(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Session.Logout(ctx)
	return nil
}

func cmdWhoami(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireScreen(a, guard.HomePath); err != nil {
		return err
	}

	snap := a.Session.Snapshot()
	if !snap.Authenticated {
		return fmt.Errorf("not logged in (run 'timecard login' first)")
	}
	fmt.Printf("User:  %s\n", snap.Identity.ID)
	fmt.Printf("Email: %s\n", snap.Identity.Email)
	if exp := snap.Identity.ExpiresAt; exp != nil {
		fmt.Printf("Token: expires %s\n", exp.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// printTimer loads the active timer after login. An unreachable API is
// reported but not fatal.
func printTimer(ctx context.Context, a *app.App) error {
	err := a.Clock.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		return err
	case err != nil:
		fmt.Printf("Timer: unknown (%v)\n", err)
		return nil
	}
	printStatus(a, a.Clock.Status())
	return nil
}

func prompt(r io.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
