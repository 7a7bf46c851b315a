package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridian-civic/districtwatch/internal/model"
)

// Options configures the open-data client.
type Options struct {
	BaseURL    string
	UserAgent  string
	PageSize   int
	MaxRetries int
	Timeout    time.Duration
	RateLimit  rate.Limit
	Burst      int
}

// Client fetches incident pages with retry and rate limiting.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient creates a client with sane defaults for unset options.
func NewClient(opts Options) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "districtwatch/1.0"
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &Client{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		log:     zap.L().With(zap.String("component", "ingest")),
	}
}

// FetchPage retrieves one page of incidents at the given offset. The second
// return value is the raw record count before filtering; pagination must stop
// on that count, not on len(incidents), because records without an incident
// number are dropped here and a filtered record does not shorten the upstream
// page.
func (c *Client) FetchPage(ctx context.Context, offset int) ([]model.Incident, int, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return nil, 0, eris.Wrap(err, "ingest: parse base url")
	}
	q := u.Query()
	q.Set("$limit", fmt.Sprintf("%d", c.opts.PageSize))
	q.Set("$offset", fmt.Sprintf("%d", offset))
	u.RawQuery = q.Encode()

	body, err := c.getWithRetry(ctx, u.String())
	if err != nil {
		return nil, 0, err
	}

	var raw []rawRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, eris.Wrapf(err, "ingest: decode page at offset %d", offset)
	}

	incidents := make([]model.Incident, 0, len(raw))
	for _, r := range raw {
		if r.IncidentNumber == "" {
			continue
		}
		incidents = append(incidents, convertRecord(r))
	}
	return incidents, len(raw), nil
}

func convertRecord(r rawRecord) model.Incident {
	inc := model.Incident{IncidentNumber: r.IncidentNumber}
	if r.Address != "" {
		addr := r.Address
		inc.Address = &addr
	}
	if r.Latitude != nil {
		lat := float64(*r.Latitude)
		inc.Latitude = &lat
	}
	if r.Longitude != nil {
		lng := float64(*r.Longitude)
		inc.Longitude = &lng
	}
	if r.CrimeType != "" {
		ct := r.CrimeType
		inc.CrimeType = &ct
	}
	inc.OccurrenceDate = parseRecordDate(r.OccurrenceDate)
	inc.EntryDate = parseRecordDate(r.EntryDate)
	return inc
}

func (c *Client) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := range c.opts.MaxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ingest: rate limiter wait")
		}

		body, retryable, err := c.get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.log.Warn("request failed, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		c.backoff(ctx, attempt)
	}
	return nil, eris.Wrap(lastErr, "ingest: all retries exhausted")
}

func (c *Client) get(ctx context.Context, rawURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "ingest: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, eris.Wrap(err, "ingest: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, eris.Errorf("ingest: http 429 from %s", rawURL)
	case resp.StatusCode >= 500:
		return nil, true, eris.Errorf("ingest: http %d from %s", resp.StatusCode, rawURL)
	case resp.StatusCode != http.StatusOK:
		return nil, false, eris.Errorf("ingest: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, eris.Wrap(err, "ingest: read body")
	}
	return data, false, nil
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
