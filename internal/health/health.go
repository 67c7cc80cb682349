// Package health periodically checks the dependencies the rotation cannot
// work without.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Reporter interface {
	Report(ctx context.Context, text string) error
}

type Check struct {
	Name   string
	Pinger Pinger
}

type Checker struct {
	log      *slog.Logger
	checks   []Check
	reporter Reporter
	interval time.Duration
	timeout  time.Duration
	// failures only reach the operators channel in prod
	notify bool
}

func NewChecker(log *slog.Logger, reporter Reporter, interval time.Duration, notify bool, checks ...Check) *Checker {
	return &Checker{
		log:      log,
		checks:   checks,
		reporter: reporter,
		interval: interval,
		timeout:  10 * time.Second,
		notify:   notify,
	}
}

// Run checks once right away and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.CheckAndReport(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Checker) CheckAndReport(ctx context.Context) {
	err := c.Check(ctx)
	if err == nil {
		c.log.Debug("health check passed")
		return
	}
	if ctx.Err() != nil {
		return
	}

	c.log.Error("health check failed", slog.Any("error", err))
	if !c.notify {
		return
	}
	if err := c.reporter.Report(ctx, "Health check failed:\n```"+err.Error()+"```"); err != nil {
		c.log.Error("failed to report health check failure", slog.Any("error", err))
	}
}

// Check pings every dependency and joins the failures.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var errs []error
	for _, check := range c.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", check.Name, err))
		}
	}
	return errors.Join(errs...)
}
