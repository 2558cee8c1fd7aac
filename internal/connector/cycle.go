package connector

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jemik/tv1-opencti/internal/feed"
	"github.com/jemik/tv1-opencti/internal/feed/tv1"
)

// fallbackSizes is the fixed descending page-size sequence tried after the
// configured size. Tenants reject large topReport values inconsistently, so
// a failed attempt restarts the whole window fetch at the next smaller size.
var fallbackSizes = [...]int{200, 100, 50, 25, 10}

// errAllAttemptsFailed is returned when every candidate size failed without
// any attempt producing a recordable error.
var errAllAttemptsFailed = errors.New("connector: all fetch attempts failed")

// Report describes the outcome of one successful cycle.
type Report struct {
	Window   tv1.Window
	PageSize int // the size the winning attempt used
	Bundles  int
	Objects  int
}

// NoOp reports whether the cycle found nothing to import.
func (r Report) NoOp() bool { return r.Bundles == 0 }

// RunCycle executes one full poll cycle: it computes the window, then walks
// the candidate page sizes until one attempt's complete fetch-flatten-import
// sequence succeeds. The first success ends the cycle immediately — a zero-
// object window is a successful no-op, not a reason to try another size.
// When every candidate fails the cycle fails with the last attempt's error.
//
// A failed attempt may already have imported some bundles before erroring;
// the next size retries the entire window. The downstream import is
// update-idempotent, so those partial imports are absorbed, not duplicated.
func (c *Connector) RunCycle(ctx context.Context) (Report, error) {
	window := tv1.NewWindow(c.now(), c.cfg.PollMinutes)

	var lastErr error
	tried := make(map[int]bool)
	for _, size := range append([]int{c.cfg.TopReport}, fallbackSizes[:]...) {
		if tried[size] {
			continue
		}
		tried[size] = true

		report, err := c.attempt(ctx, window, size)
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown, not an upstream failure: stop the cascade.
				return Report{}, err
			}
			slog.Debug("cycle attempt failed",
				"top_report", size,
				"window_start", window.StartISO(),
				"window_end", window.EndISO(),
				"error", err)
			lastErr = err
			continue
		}
		return report, nil
	}

	if lastErr != nil {
		return Report{}, lastErr
	}
	return Report{}, errAllAttemptsFailed
}

// attempt runs the full pipeline for one candidate page size. Bundles are
// imported sequentially in slice order; the first import failure aborts the
// attempt.
func (c *Connector) attempt(ctx context.Context, window tv1.Window, size int) (Report, error) {
	fetcher := c.newFetcher()

	entries, err := fetcher.Collect(ctx, window, size)
	if err != nil {
		return Report{}, err
	}

	objects := feed.Flatten(entries)
	if len(objects) == 0 {
		slog.Warn("no STIX objects found in window",
			"entries", len(entries),
			"window_start", window.StartISO(),
			"window_end", window.EndISO())
		return Report{Window: window, PageSize: size}, nil
	}

	bundles := feed.Chunk(objects, c.cfg.MaxObjectsPerBundle)
	for _, bundle := range bundles {
		if err := c.importer.ImportBundle(ctx, bundle); err != nil {
			return Report{}, err
		}
		bundlesImported.Inc()
		objectsImported.Add(float64(len(bundle.Objects)))
	}

	return Report{
		Window:   window,
		PageSize: size,
		Bundles:  len(bundles),
		Objects:  len(objects),
	}, nil
}
