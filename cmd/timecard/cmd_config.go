package main

import (
	"fmt"

	"github.com/felixgeelhaar/timecard/internal/config"
)

// cmdConfig shows the effective configuration, environment included
func cmdConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	fmt.Println("Timecard Configuration")
	fmt.Println("======================")
	fmt.Printf("Config file:   %s/config.yaml\n", dir)
	fmt.Printf("API:           %s (timeout %s)\n", cfg.API.BaseURL, cfg.Timeout())
	fmt.Printf("Production:    %t\n", cfg.Session.Production)
	fmt.Printf("Cookie:        %s (%d days)\n", cfg.Session.CookieName, cfg.Session.CookieDays)
	fmt.Printf("Storage:       %s\n", cfg.Storage.Backend)
	fmt.Printf("Breaker/retry: %t/%t (max %d attempts)\n",
		cfg.Resilience.CircuitBreaker, cfg.Resilience.Retry, cfg.Resilience.MaxAttempts)
	if cfg.Events.AMQPURL != "" {
		fmt.Printf("Events:        exchange %s\n", cfg.Events.Exchange)
	} else {
		fmt.Println("Events:        disabled")
	}
	fmt.Printf("Log level:     %s\n", cfg.Log.Level)
	return nil
}
