package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Resolver maps a site slug to its canonical slug.
type Resolver func(slug string) string

// Client reads the problem site's full status listing.
type Client struct {
	baseURL string
	session string
	csrf    string
	client  *http.Client
	limiter *rate.Limiter
	resolve Resolver
}

// NewClient creates a Client. resolve may be nil.
func NewClient(cfg Config, resolve Resolver) *Client {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = DefaultConfig().RatePerMinute
	}
	if resolve == nil {
		resolve = func(s string) string { return s }
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		session: cfg.Session,
		csrf:    cfg.CSRFToken,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		resolve: resolve,
	}
}

type statusPayload struct {
	StatStatusPairs []struct {
		Stat struct {
			Slug string `json:"question__title_slug"`
		} `json:"stat"`
		Status *string `json:"status"`
	} `json:"stat_status_pairs"`
}

func (c *Client) Statuses(ctx context.Context) (Statuses, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := c.baseURL + "/api/problems/all/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: "LEETCODE_SESSION", Value: c.session})
	}
	if c.csrf != "" {
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: c.csrf})
		req.Header.Set("X-CSRFToken", c.csrf)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ErrRateLimited{
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("HTTP 429 for %s", url),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &ErrStatus{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var payload statusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ErrInvalidResponse{Err: err}
	}

	out := make(Statuses, len(payload.StatStatusPairs))
	for _, pair := range payload.StatStatusPairs {
		if pair.Stat.Slug == "" || pair.Status == nil {
			continue
		}
		out[pair.Stat.Slug] = *pair.Status
		if canonical := c.resolve(pair.Stat.Slug); canonical != pair.Stat.Slug {
			out[canonical] = *pair.Status
		}
	}
	return out, nil
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}
