package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type recordingReporter struct {
	texts []string
}

func (r *recordingReporter) Report(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func ok() pingFunc { return func(context.Context) error { return nil } }

func failing(msg string) pingFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCheck_AllHealthy(t *testing.T) {
	c := NewChecker(discard(), &recordingReporter{}, time.Hour, true,
		Check{Name: "database", Pinger: ok()},
		Check{Name: "slack", Pinger: ok()},
	)

	assert.NoError(t, c.Check(context.Background()))
}

func TestCheck_JoinsFailures(t *testing.T) {
	c := NewChecker(discard(), &recordingReporter{}, time.Hour, true,
		Check{Name: "database", Pinger: failing("connection refused")},
		Check{Name: "slack", Pinger: failing("invalid_auth")},
	)

	err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database: connection refused")
	assert.Contains(t, err.Error(), "slack: invalid_auth")
}

func TestCheckAndReport_ReportsOnlyWhenEnabled(t *testing.T) {
	reporter := &recordingReporter{}
	quiet := NewChecker(discard(), reporter, time.Hour, false, Check{Name: "slack", Pinger: failing("invalid_auth")})
	quiet.CheckAndReport(context.Background())
	assert.Empty(t, reporter.texts)

	loud := NewChecker(discard(), reporter, time.Hour, true, Check{Name: "slack", Pinger: failing("invalid_auth")})
	loud.CheckAndReport(context.Background())
	require.Len(t, reporter.texts, 1)
	assert.Equal(t, "Health check failed:\n```slack: invalid_auth```", reporter.texts[0])
}

func TestRun_ChecksImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := NewChecker(discard(), &recordingReporter{}, time.Hour, false, Check{Name: "database", Pinger: pingFunc(func(context.Context) error {
		calls++
		cancel()
		return nil
	})})

	c.Run(ctx)
	assert.Equal(t, 1, calls)
}
