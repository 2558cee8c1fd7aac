package connector

import (
	"context"
	"log/slog"
	"time"
)

// Run executes cycles until ctx is cancelled, sleeping the configured
// constant interval between them. A failed cycle is logged and recorded but
// never stops the loop — operators detect systemic upstream failure from
// repeated error lines, not from a process exit. Returns nil on shutdown.
func (c *Connector) Run(ctx context.Context) error {
	interval := time.Duration(c.cfg.SleepSeconds) * time.Second
	slog.Info("connector started",
		"poll_minutes", c.cfg.PollMinutes,
		"sleep", interval,
		"top_report", c.cfg.TopReport,
		"response_format", c.cfg.ResponseFormat)

	for {
		c.runOnce(ctx)
		if err := c.sleep(ctx, interval); err != nil {
			slog.Info("connector stopping")
			return nil
		}
	}
}

// RunOnce executes exactly one cycle and reports its outcome. Used by the
// `once` subcommand for operator smoke tests.
func (c *Connector) RunOnce(ctx context.Context) error {
	return c.runOnce(ctx)
}

func (c *Connector) runOnce(ctx context.Context) error {
	report, err := c.RunCycle(ctx)
	now := c.now()
	cyclesTotal.Inc()
	lastCycleTime.Set(float64(now.Unix()))

	if err != nil {
		cycleFailures.Inc()
		c.status.recordFailure(now, err)
		slog.Error("cycle failed", "error", err)
		return err
	}

	c.status.recordSuccess(now, report)
	if report.NoOp() {
		slog.Info("cycle complete, nothing to import",
			"window_start", report.Window.StartISO(),
			"window_end", report.Window.EndISO())
		return nil
	}
	slog.Info("cycle complete",
		"bundles", report.Bundles,
		"objects", report.Objects,
		"top_report", report.PageSize,
		"window_start", report.Window.StartISO(),
		"window_end", report.Window.EndISO())
	return nil
}
