// Package httpsource implements source.Source against a JSON HTTP API:
//
//	GET {base}/users/show?user={id or handle}              -> {"id","name","screen_name"}
//	GET {base}/users/{id}/{outbound|inbound}?cursor=&count= -> {"users":[...],"next_cursor":""}
//	GET {base}/rate_limit?relation={outbound|inbound}      -> {"remaining":N,"reset":unix}
//
// Status 429 (and the legacy 420) map to source.ErrThrottled, 404 to source.ErrNotFound.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/alvmarrod/hub-weaver/internal/graph"
	"github.com/alvmarrod/hub-weaver/internal/source"
)

const statusEnhanceYourCalm = 420

// Config holds the connection parameters of the HTTP source
type Config struct {
	BaseURL           string
	Token             string
	UserAgent         string
	RequestTimeout    time.Duration
	RequestsPerSecond float64 // 0 disables client-side pacing
	UserCacheSize     int
}

// Client fetches users and relationship pages over HTTP
type Client struct {
	baseURL   string
	token     string
	collector *colly.Collector
	limiter   *rate.Limiter
	users     *lru.Cache[string, source.User]
}

type quotaResponse struct {
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// New creates an HTTP source client
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("source base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid source base URL: %w", err)
	}

	cacheSize := cfg.UserCacheSize
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, source.User](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create user cache: %w", err)
	}

	options := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
	}
	if cfg.UserAgent != "" {
		options = append(options, colly.UserAgent(cfg.UserAgent))
	}
	collector := colly.NewCollector(options...)
	if cfg.RequestTimeout > 0 {
		collector.SetRequestTimeout(cfg.RequestTimeout)
	}

	c := &Client{
		baseURL:   base,
		token:     cfg.Token,
		collector: collector,
		users:     cache,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// GetUser resolves a numeric id or a handle, serving repeated lookups from cache
func (c *Client) GetUser(ctx context.Context, ref string) (source.User, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ref), "@"))
	if u, ok := c.users.Get(key); ok {
		return u, nil
	}

	var u source.User
	if err := c.get(ctx, "/users/show", url.Values{"user": {key}}, &u); err != nil {
		return source.User{}, fmt.Errorf("failed to get user %q: %w", ref, err)
	}

	c.users.Add(key, u)
	c.users.Add(strconv.FormatInt(int64(u.ID), 10), u)
	return u, nil
}

// ListRelations fetches one page of a relation listing
func (c *Client) ListRelations(ctx context.Context, rel source.Relation, id graph.UserID, cursor string, count int) (source.Page, error) {
	query := url.Values{"count": {strconv.Itoa(count)}}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var page source.Page
	path := fmt.Sprintf("/users/%d/%s", id, rel)
	if err := c.get(ctx, path, query, &page); err != nil {
		return source.Page{}, err
	}

	for _, u := range page.Users {
		c.users.Add(strconv.FormatInt(int64(u.ID), 10), u)
	}
	return page, nil
}

// RemainingQuota queries the rate limit status of a relation endpoint
func (c *Client) RemainingQuota(ctx context.Context, rel source.Relation) (source.Quota, error) {
	var q quotaResponse
	if err := c.get(ctx, "/rate_limit", url.Values{"relation": {rel.String()}}, &q); err != nil {
		return source.Quota{}, err
	}
	return source.Quota{
		Remaining: q.Remaining,
		ResetAt:   time.Unix(q.Reset, 0),
	}, nil
}

// get performs a single paced GET and decodes the JSON body into out
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	// Callbacks are not copied by Clone, so each request gets its own capture
	col := c.collector.Clone()
	col.Context = ctx

	var (
		status int
		body   []byte
	)
	col.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		if c.token != "" {
			r.Headers.Set("Authorization", "Bearer "+c.token)
		}
	})
	col.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	col.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
			body = r.Body
		}
	})

	visitErr := col.Visit(target)

	switch {
	case status == http.StatusTooManyRequests || status == statusEnhanceYourCalm:
		return fmt.Errorf("GET %s: %w", path, source.ErrThrottled)
	case status == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, source.ErrNotFound)
	case visitErr != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("GET %s: %w", path, visitErr)
	case status != http.StatusOK:
		return fmt.Errorf("GET %s: unexpected status %d", path, status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	logrus.Debugf("GET %s -> %d (%d bytes)", path, status, len(body))
	return nil
}
