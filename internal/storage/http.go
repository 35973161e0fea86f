// Package storage fetches report files from the external report store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/rpggio/opsdash/internal/codec"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/record"
)

const maxReportBytes = 64 << 20

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	BaseURL string
	// Token is sent as a bearer credential. Empty disables auth.
	Token   string
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker for
	// OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// HTTPFetcher reads reports with GET <base>/<key>.
type HTTPFetcher struct {
	base    *url.URL
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewHTTPFetcher validates opts and builds the client.
func NewHTTPFetcher(opts HTTPOptions, logger *slog.Logger) (*HTTPFetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid report store url %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = time.Minute
	}

	client := &http.Client{}
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})
		client = oauth2.NewClient(context.Background(), ts)
	}
	client.Timeout = opts.Timeout

	threshold := opts.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "report-store",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Missing reports are the caller's problem, not the store's.
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &HTTPFetcher{base: base, client: client, breaker: breaker, logger: logger}, nil
}

// Fetch downloads and decodes one report. Every failure is a
// *dashboard.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, key string) ([]record.Row, error) {
	ref, err := url.Parse(strings.TrimLeft(key, "/"))
	if err != nil {
		return nil, &dashboard.FetchError{Key: key, Err: err}
	}
	target := f.base.ResolveReference(ref)

	var contentType string
	data, err := f.breaker.Execute(func() ([]byte, error) {
		body, ct, err := f.get(ctx, target.String())
		contentType = ct
		return body, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrCircuitOpen
		}
		f.logger.Warn("report fetch failed", "key", key, "error", err)
		return nil, &dashboard.FetchError{Key: key, Err: err}
	}

	rows, err := codec.Decode(data, contentType)
	if err != nil {
		return nil, &dashboard.FetchError{Key: key, Err: err}
	}
	f.logger.Debug("report fetched", "key", key, "rows", len(rows), "bytes", len(data))
	return rows, nil
}

func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, "", fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", ErrNotFound
	case resp.StatusCode >= 300:
		return nil, "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
