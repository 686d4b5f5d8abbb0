package api

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/djlord-it/eventcron/internal/crontab"
	"github.com/djlord-it/eventcron/internal/domain"
)

var planParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func validateEvent(ev domain.Event) error {
	if ev.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !ev.FinishAt.After(ev.StartAt) {
		return fmt.Errorf("finish_at must be after start_at")
	}
	return nil
}

func validateGenerator(g domain.Generator) error {
	if g.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := validatePlan(g.Plan); err != nil {
		return err
	}
	if !g.FinishAt.After(g.StartAt) {
		return fmt.Errorf("finish_at must be after start_at")
	}
	return nil
}

func validatePool(p domain.Pool) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !p.RunScheme.Valid() {
		return fmt.Errorf("run_scheme must be %q or %q", domain.RunSchemeAny, domain.RunSchemeAll)
	}
	return validatePlan(p.Plan)
}

func validateCategory(c domain.Category) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func validatePlan(plan string) error {
	if plan == "" {
		return fmt.Errorf("plan is required")
	}
	if _, err := crontab.Parse(plan); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	if _, err := planParser.Parse(plan); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	return nil
}
