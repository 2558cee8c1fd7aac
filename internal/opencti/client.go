// Package opencti is the downstream import client. It pushes serialized STIX
// bundles into an OpenCTI platform over its GraphQL API with update-mode
// semantics: re-importing a previously imported object updates it in place
// rather than duplicating it, which is what makes overlapping poll windows
// safe upstream.
package opencti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jemik/tv1-opencti/internal/feed"
)

const (
	graphqlPath = "/graphql"
	userAgent   = "tv1-opencti-connector/1.0"
)

// pushBundleMutation imports a serialized bundle. OpenCTI's bundle push is
// an upsert: existing objects are updated, new ones created.
const pushBundleMutation = `mutation PushBundle($bundle: String!) { stixBundlePush(bundle: $bundle) }`

const healthQuery = `query { about { version } }`

// Client is an OpenCTI API client scoped to bundle import.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a Client for the platform at baseURL authenticated with token.
// Pass nil client to use http.DefaultClient.
func New(client *http.Client, baseURL, token string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

// ImportBundle submits one bundle. The call is atomic from the connector's
// perspective: a nil return means the bundle is committed downstream, any
// error means this bundle (and therefore the cycle attempt) failed.
func (c *Client) ImportBundle(ctx context.Context, bundle feed.Bundle) error {
	serialized, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("opencti: serialize bundle %s: %w", bundle.ID, err)
	}
	if err := c.execute(ctx, pushBundleMutation, map[string]any{"bundle": string(serialized)}); err != nil {
		return fmt.Errorf("opencti: import bundle %s: %w", bundle.ID, err)
	}
	return nil
}

// HealthCheck verifies the platform is reachable and the token is accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.execute(ctx, healthQuery, nil); err != nil {
		return fmt.Errorf("opencti: health check: %w", err)
	}
	return nil
}

// execute POSTs one GraphQL operation and fails on transport errors, non-2xx
// statuses, or GraphQL-level errors in the response envelope.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any) error {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+graphqlPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", graphqlPath, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 1000))
	}

	var envelope struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql: %s", envelope.Errors[0].Message)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
