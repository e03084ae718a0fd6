package main

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/timecard/internal/domain"
)

const overviewPath = "/overview"

// cmdOverview shows hours and mileage totals for a period
func cmdOverview(ctx context.Context, args []string) error {
	period := domain.PeriodWeek
	if len(args) > 0 {
		period = domain.Period(args[0])
	}
	if !period.IsValid() {
		return fmt.Errorf("unknown period: %s (valid: week, month, year)", period)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := requireScreen(a, overviewPath); err != nil {
		return err
	}

	report, err := a.Overview.Report(ctx, period)
	if err != nil {
		return err
	}

	fmt.Printf("Overview (%s)\n", period)
	fmt.Println("==============")
	fmt.Printf("Hours:         %8.2f\n", report.Totals.Hours)
	fmt.Printf("Revenue:       %8.2f EUR\n", report.Totals.Revenue)
	fmt.Printf("Kilometers:    %8.1f\n", report.Totals.Kilometers)
	fmt.Printf("Compensation:  %8.2f EUR\n", report.Totals.MileageCompensation)

	if len(report.Hours) > 0 {
		fmt.Println("\nHours")
		fmt.Println("-----")
		for _, h := range report.Hours {
			fmt.Printf("%-12s %-24s %6.2f x %6.2f\n", h.Date, h.Project, h.Hours, h.Rate)
		}
	}
	if len(report.Mileage) > 0 {
		fmt.Println("\nMileage")
		fmt.Println("-------")
		for _, m := range report.Mileage {
			fmt.Printf("%-12s %-24s %6.1f km\n", m.Date, m.Project, m.Kilometers)
		}
	}
	return nil
}
