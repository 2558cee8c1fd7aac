// Package connector drives the poll-normalize-import pipeline: each cycle
// computes a fresh time window, fetches every feed page through a descending
// page-size fallback cascade, flattens the collected entries into STIX
// objects, re-chunks them into size-bounded bundles, and imports each bundle
// downstream in order. The outer loop runs cycles forever with a constant
// sleep, isolating any cycle-level failure so it never terminates the
// process.
package connector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jemik/tv1-opencti/internal/config"
	"github.com/jemik/tv1-opencti/internal/feed"
	"github.com/jemik/tv1-opencti/internal/feed/tv1"
)

// Fetcher retrieves all collected entries for one window at one requested
// page size. *tv1.Adapter is the production implementation.
type Fetcher interface {
	Collect(ctx context.Context, w tv1.Window, top int) ([]json.RawMessage, error)
}

// Importer commits one bundle downstream. *opencti.Client is the production
// implementation.
type Importer interface {
	ImportBundle(ctx context.Context, b feed.Bundle) error
}

// Connector owns one sequential pipeline. No cycle overlaps another; the
// only cross-cycle state is the status snapshot and metrics.
type Connector struct {
	cfg        *config.Config
	newFetcher func() Fetcher
	importer   Importer
	status     *Status

	// now and sleep are injectable so tests run without a wall clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Connector. newFetcher is called at the start of every cycle
// so each cycle runs on fresh request plumbing, matching the
// one-session-per-cycle behavior the upstream tenant expects.
func New(cfg *config.Config, newFetcher func() Fetcher, importer Importer) *Connector {
	return &Connector{
		cfg:        cfg,
		newFetcher: newFetcher,
		importer:   importer,
		status:     &Status{},
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Status returns the connector's live status snapshot holder.
func (c *Connector) Status() *Status {
	return c.status
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
