package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jemik/tv1-opencti/internal/feed/tv1"
)

// TestPipelineEndToEnd drives the real adapter against a scripted two-page
// feed: page 1 carries indicator--1 and a continuation link, page 2 carries
// indicator--2. With a one-object bundle cap the cycle must import exactly
// two single-object bundles in page order.
func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	mux.HandleFunc("/v3.0/threatintel/feeds", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w,
			`{"value":[{"envelope":{"objects":[{"id":"indicator--1"}]}}],"nextLink":%q}`,
			srv.URL+"/page2")
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w,
			`{"value":[{"envelope":{"objects":[{"id":"indicator--2"}]}}],"nextLink":null}`)
	})

	cfg := testConfig()
	cfg.MaxObjectsPerBundle = 1

	imp := &fakeImporter{}
	c := New(cfg, func() Fetcher {
		return tv1.New(srv.Client(), tv1.Params{
			APIRoot:        srv.URL,
			APIKey:         "test-key",
			ResponseFormat: cfg.ResponseFormat,
			MaxRetries:     cfg.FetchMaxRetries,
		})
	}, imp)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	report, err := c.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if report.Bundles != 2 || report.Objects != 2 {
		t.Errorf("report = %+v, want 2 bundles of 2 objects total", report)
	}
	if imp.calls != 2 {
		t.Fatalf("importer called %d times, want 2", imp.calls)
	}
	for i, want := range []string{"indicator--1", "indicator--2"} {
		b := imp.bundles[i]
		if len(b.Objects) != 1 {
			t.Fatalf("bundle %d holds %d objects, want 1", i, len(b.Objects))
		}
		if !strings.Contains(string(b.Objects[0]), want) {
			t.Errorf("bundle %d object = %s, want %s", i, b.Objects[0], want)
		}
	}
}
