// Package source fetches a user's active bookings from the parking backend.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"parking-lifecycle-backend/config"
	"parking-lifecycle-backend/internal/model"
)

// HTTPSource reads bookings over the backend's REST API.
type HTTPSource struct {
	cfg     config.SourceConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPSource creates a booking source for the configured backend.
func NewHTTPSource(cfg config.SourceConfig) *HTTPSource {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Booking source will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	limit := rate.Inf
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}

	return &HTTPSource{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// FetchActiveBookings returns the bookings the backend considers active for userID.
func (s *HTTPSource) FetchActiveBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/active-bookings/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var bookings []model.Booking
	if err := json.Unmarshal(body, &bookings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookings: %w", err)
	}

	// The endpoint is per user but older backends omit the field.
	for i := range bookings {
		if bookings[i].UserID == "" {
			bookings[i].UserID = userID
		}
	}
	return bookings, nil
}
