// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/library"
)

// userAgent identifies mdtex to external metadata services, per their
// API etiquette (CrossRef and arXiv both ask for a contactable UA).
const userAgent = "mdtex/1.0 (https://github.com/kraklabs/mdtex)"

// HTTPDoer is the minimal HTTP client surface the resolvers need.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver fetches reference metadata for one class of identifier.
type Resolver interface {
	// Name identifies the resolver in logs and plan items.
	Name() string
	// Applies reports whether this resolver handles the occurrence.
	Applies(occ citation.Occurrence) bool
	// CacheKey returns the canonical cache key, or "" to skip caching.
	CacheKey(occ citation.Occurrence) string
	// Resolve fetches the metadata. A nil record with nil error means
	// the service had nothing; an error means the fetch itself failed.
	Resolve(ctx context.Context, occ citation.Occurrence) (*library.Record, error)
}

// errRateLimited marks HTTP 429 responses so the retry loop backs off
// longer than for ordinary transient failures.
type errRateLimited struct{ after time.Duration }

func (e errRateLimited) Error() string {
	return fmt.Sprintf("rate limited (retry after %s)", e.after)
}

// fetchBody performs a GET with retries. Transient failures (network
// errors, 5xx, 429) back off exponentially with a bounded attempt count;
// rate-limit responses wait at least the server's Retry-After.
func fetchBody(ctx context.Context, client HTTPDoer, url string, accept string, maxAttempts uint) ([]byte, error) {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			if err != nil {
				return err
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			after := 10 * time.Second
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if d, err := time.ParseDuration(ra + "s"); err == nil {
					after = d
				}
			}
			select {
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			case <-time.After(after):
			}
			return errRateLimited{after: after}
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error: %s", resp.Status)
		default:
			// 4xx other than 429 will not improve on retry.
			return backoff.Permanent(fmt.Errorf("unexpected status %s", resp.Status))
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}
