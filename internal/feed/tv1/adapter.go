// Package tv1 implements the Trend Vision One threat-intel feed adapter.
//
// One Collect call retrieves every page of the feeds endpoint for a given
// window and requested page size, following nextLink continuation links to
// exhaustion. Transient upstream statuses (429 and the retryable 5xx family)
// are retried in place with bounded exponential backoff; any other non-2xx
// status fails immediately with a truncated response body for diagnosis.
package tv1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// feedPath is the threat-intel feeds endpoint under the tenant API root.
	feedPath = "/v3.0/threatintel/feeds"

	// backoffInitial and backoffCap bound the retry delay for transient
	// upstream statuses: 1s doubling to at most 16s.
	backoffInitial = 1 * time.Second
	backoffCap     = 16 * time.Second

	// bodyPreviewLimit caps how much of an error response body is carried
	// into the returned error.
	bodyPreviewLimit = 1000

	userAgent = "tv1-opencti-connector/1.0"
)

// ErrRetriesExhausted reports that every retry of a transient upstream
// failure was consumed without a successful response.
var ErrRetriesExhausted = errors.New("tv1: max retries exceeded")

// retryableStatus is the set of upstream statuses retried with backoff.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Params configures an Adapter.
type Params struct {
	APIRoot          string // tenant API root, no trailing slash
	APIKey           string
	ContextualFilter string // verbatim filter; overrides Location/Industry
	Location         string
	Industry         string
	ResponseFormat   string // "taxiiEnvelope" or "stixBundle"
	MaxRetries       int    // transient-status retry ceiling per request
}

// Adapter fetches feed pages from a Vision One tenant.
type Adapter struct {
	client      *http.Client
	rateLimiter *rate.Limiter
	params      Params

	// sleep is the backoff delay; replaced in tests to avoid wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Adapter. Pass nil client to use http.DefaultClient.
func New(client *http.Client, p Params) *Adapter {
	if client == nil {
		client = http.DefaultClient
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 5
	}
	return &Adapter{
		client: client,
		// The feeds endpoint is polled, not streamed; one request per second
		// is well under the tenant quota.
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		params:      p,
		sleep:       sleepCtx,
	}
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

// headers builds the per-request header set: bearer auth plus the contextual
// filter (explicit filter wins over the synthesized location/industry form).
func (a *Adapter) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+a.params.APIKey)
	h.Set("User-Agent", userAgent)
	h.Set("TMV1-Contextual-Filter",
		ContextualFilter(a.params.ContextualFilter, a.params.Location, a.params.Industry))
	return h
}

// query builds the first-page query parameters for window w at page size top.
func (a *Adapter) query(w Window, top int) url.Values {
	v := url.Values{}
	v.Set("startDateTime", w.StartISO())
	v.Set("endDateTime", w.EndISO())
	v.Set("responseObjectFormat", a.params.ResponseFormat)
	v.Set("topReport", fmt.Sprint(top))
	return v
}

// page is one decoded feed response.
type page struct {
	entries  []json.RawMessage
	nextLink string
}

// Collect fetches all pages for window w at requested page size top and
// returns the ordered concatenation of every page's entries. Continuation
// links are followed verbatim with no query parameters — the link is
// self-contained.
func (a *Adapter) Collect(ctx context.Context, w Window, top int) ([]json.RawMessage, error) {
	headers := a.headers()
	nextURL := a.params.APIRoot + feedPath
	query := a.query(w, top)

	var entries []json.RawMessage
	for pageNum := 1; ; pageNum++ {
		body, err := a.getJSON(ctx, nextURL, query, headers)
		if err != nil {
			return nil, err
		}
		if body == nil {
			// 204: empty page, no continuation.
			break
		}
		pg, err := decodePage(body)
		if err != nil {
			return nil, err
		}
		entries = append(entries, pg.entries...)
		slog.Debug("fetched feed page",
			"page", pageNum, "entries", len(pg.entries), "total", len(entries))
		if pg.nextLink == "" {
			break
		}
		nextURL = pg.nextLink
		query = nil
	}
	return entries, nil
}

// getJSON issues one GET with transient-status retries. A nil body with nil
// error means 204 No Content. Transport errors (including client timeouts)
// are treated as transient.
func (a *Adapter) getJSON(ctx context.Context, rawURL string, query url.Values, headers http.Header) ([]byte, error) {
	backoff := backoffInitial
	var lastErr error

	for attempt := 1; attempt <= a.params.MaxRetries; attempt++ {
		if err := a.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("tv1: rate limit: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("tv1: build request: %w", err)
		}
		req.Header = headers.Clone()
		if query != nil {
			req.URL.RawQuery = query.Encode()
		}

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("tv1: fetch: %w", err)
			}
			lastErr = fmt.Errorf("tv1: fetch: %w", err)
			slog.Warn("feed request failed, backing off",
				"attempt", attempt, "backoff", backoff, "error", err)
			if err := a.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = min(backoff*2, backoffCap)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return readJSONBody(resp)

		case resp.StatusCode == http.StatusNoContent:
			drain(resp)
			return nil, nil

		case retryableStatus[resp.StatusCode]:
			drain(resp)
			lastErr = fmt.Errorf("tv1: HTTP %d", resp.StatusCode)
			slog.Warn("transient feed status, backing off",
				"status", resp.StatusCode, "attempt", attempt, "backoff", backoff)
			if err := a.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = min(backoff*2, backoffCap)
			continue

		default:
			// Surface the server's error body for 400/401/403 and friends.
			preview, _ := io.ReadAll(io.LimitReader(resp.Body, bodyPreviewLimit))
			resp.Body.Close() //nolint:errcheck
			return nil, fmt.Errorf("tv1: HTTP %d: %s", resp.StatusCode, preview)
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
	}
	return nil, ErrRetriesExhausted
}

func readJSONBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close() //nolint:errcheck
	ct := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || !strings.Contains(mt, "json") {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, fmt.Errorf("tv1: unexpected content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tv1: read body: %w", err)
	}
	return body, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
	resp.Body.Close()                                    //nolint:errcheck
}

// decodePage decodes one feed response. The payload is one of: a bare entry
// array; an object carrying a "value" array plus optional "nextLink"; or a
// lone object with no array, kept as a single entry after stripping its
// nextLink. Any other valid JSON yields an empty page.
func decodePage(body []byte) (page, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err == nil {
		return page{entries: arr}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		if !json.Valid(body) {
			return page{}, fmt.Errorf("tv1: decode page: invalid JSON")
		}
		// Valid scalar payload: nothing to extract, no continuation.
		return page{}, nil
	}

	var nextLink string
	if raw, ok := obj["nextLink"]; ok {
		_ = json.Unmarshal(raw, &nextLink) // non-string nextLink means no continuation
	}

	if rawValue, ok := obj["value"]; ok {
		var value []json.RawMessage
		if err := json.Unmarshal(rawValue, &value); err == nil {
			return page{entries: value, nextLink: nextLink}, nil
		}
	}

	// No recognizable array: the whole object is one entry. The nextLink is
	// paging metadata, not content — strip it before keeping the entry.
	delete(obj, "nextLink")
	entry, err := json.Marshal(obj)
	if err != nil {
		return page{}, fmt.Errorf("tv1: re-encode page entry: %w", err)
	}
	return page{entries: []json.RawMessage{entry}, nextLink: nextLink}, nil
}
