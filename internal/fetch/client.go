// Package fetch downloads historical article revisions and reduces their
// rendered HTML to plain text dumps. It feeds the dumps/ layout consumed
// by the shingling pipeline and stays entirely outside the hashing path.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftlab/revdrift/internal/metrics"
)

const (
	defaultAPI       = "https://en.wikipedia.org/w/api.php"
	defaultUserAgent = "revdrift/1.0 (revision similarity study)"
	requestTimeout   = 30 * time.Second
)

// Revision is one entry of an article's history, newest first.
type Revision struct {
	RevID     int64  `json:"revid"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Size      int    `json:"size"`
	Comment   string `json:"comment"`
}

// Client talks to a MediaWiki API. All requests go through a shared rate
// limiter so revision listing and HTML fetching together stay under the
// polite request budget.
type Client struct {
	http    *http.Client
	api     string
	ua      string
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithAPI points the client at a different API endpoint (tests, mirrors,
// other-language wikis).
func WithAPI(api string) Option {
	return func(c *Client) { c.api = api }
}

// WithRateLimit overrides the default 2 req/s budget.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithMetrics attaches request/error counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a MediaWiki client with polite defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: requestTimeout},
		api:     defaultAPI,
		ua:      defaultUserAgent,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.FetchRequests.Inc()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.FetchErrors.Inc()
		}
		return nil, fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if c.metrics != nil {
			c.metrics.FetchErrors.Inc()
		}
		return nil, fmt.Errorf("api request: unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Revisions lists up to maxCount revisions of title, newest to oldest,
// following rvcontinue paging.
func (c *Client) Revisions(ctx context.Context, title string, maxCount int) ([]Revision, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"prop":          {"revisions"},
		"titles":        {title},
		"rvprop":        {"ids|timestamp|user|size|comment"},
		"rvslots":       {"main"},
		"rvlimit":       {"50"}, // non-bot cap
		"rvdir":         {"older"},
		"maxlag":        {"5"},
	}

	var out []Revision
	cont := ""
	for len(out) < maxCount {
		if cont != "" {
			params.Set("rvcontinue", cont)
		}
		body, err := c.get(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list revisions of %q: %w", title, err)
		}

		var payload struct {
			Continue struct {
				RvContinue string `json:"rvcontinue"`
			} `json:"continue"`
			Query struct {
				Pages []struct {
					Revisions []Revision `json:"revisions"`
				} `json:"pages"`
			} `json:"query"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode revision list: %w", err)
		}

		if len(payload.Query.Pages) == 0 || len(payload.Query.Pages[0].Revisions) == 0 {
			break
		}
		out = append(out, payload.Query.Pages[0].Revisions...)

		cont = payload.Continue.RvContinue
		if cont == "" {
			break
		}
	}

	if len(out) > maxCount {
		out = out[:maxCount]
	}
	return out, nil
}

// RevisionHTML fetches the rendered HTML of one historical revision.
func (c *Client) RevisionHTML(ctx context.Context, oldid int64) (string, error) {
	params := url.Values{
		"action":        {"parse"},
		"format":        {"json"},
		"formatversion": {"2"},
		"prop":          {"text"},
		"oldid":         {fmt.Sprintf("%d", oldid)},
		"maxlag":        {"5"},
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return "", fmt.Errorf("fetch revision %d: %w", oldid, err)
	}

	var payload struct {
		Parse struct {
			Text string `json:"text"`
		} `json:"parse"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode revision %d: %w", oldid, err)
	}
	if payload.Parse.Text == "" {
		return "", fmt.Errorf("no HTML returned for oldid=%d", oldid)
	}
	return payload.Parse.Text, nil
}
