package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"gamestats-pipeline/internal/config"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrUnsupportedGame    = errors.New("game not served by source")
)

// Connector pulls raw records for one game from one upstream API.
type Connector interface {
	SourceName() string
	FetchData(ctx context.Context, gameID string, limit int) ([]domain.RawRecord, error)
}

// DetailFetcher is implemented by sources whose list endpoint omits per-player
// data and expose it on a separate match endpoint.
type DetailFetcher interface {
	FetchMatchDetail(ctx context.Context, gameID, matchID string) (domain.RawRecord, error)
}

type RateLimitInfo struct {
	Bucket    string `json:"bucket"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d from %s", e.Status, e.URL)
}

func retryableStatus(status int) bool {
	return status == fasthttp.StatusTooManyRequests || status >= fasthttp.StatusInternalServerError
}

// Client is the HTTP transport shared by every connector. Each connector owns
// its own Client, so the minimum spacing between requests is per source.
type Client struct {
	source    string
	baseURL   string
	apiKey    string
	timeout   time.Duration
	retries   uint64
	baseDelay time.Duration
	limiter   *rate.Limiter
	client    *fasthttp.Client

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo

	missingKeyOnce sync.Once
	logger         zerolog.Logger
}

func NewClient(source string, cfg config.SourceConfig, logger zerolog.Logger) *Client {
	limit := rate.Inf
	if interval := cfg.MinInterval(); interval > 0 {
		limit = rate.Every(interval)
	}

	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		source:    source,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		timeout:   timeout,
		retries:   uint64(retries),
		baseDelay: baseDelay,
		// burst of one: a request is never admitted earlier than
		// MinInterval after the previous one
		limiter: rate.NewLimiter(limit, 1),
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		rateLimit: RateLimitInfo{
			Limit:     cfg.RateLimit,
			Remaining: cfg.RateLimit,
			Reset:     int(cfg.RateWindow.Seconds()),
			UpdatedAt: time.Now(),
		},
		logger: logger.With().Str("source", source).Logger(),
	}
}

func (c *Client) Source() string { return c.source }

func (c *Client) HasKey() bool { return c.apiKey != "" }

// RequireKey reports whether a credential is configured and logs its absence
// once per client.
func (c *Client) RequireKey() bool {
	if c.apiKey != "" {
		return true
	}
	c.missingKeyOnce.Do(func() {
		c.logger.Warn().Msg("no API key configured, source will return no data")
	})
	return false
}

func (c *Client) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *Client) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if bucket := string(resp.Header.Peek("X-Ratelimit-Bucket")); bucket != "" {
		c.rateLimit.Bucket = bucket
	}
	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

// Get issues a rate-limited GET against path, retrying 429, 5xx and transport
// failures with exponential backoff. Any other non-200 status fails at once.
func (c *Client) Get(ctx context.Context, path string, query url.Values, headers map[string]string) ([]byte, error) {
	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.baseDelay))

	var body []byte
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		status, payload, err := c.do(ctx, uri, headers)
		if err != nil {
			c.logger.Debug().Err(err).Int("attempt", attempt).Str("url", uri).Msg("request failed, retrying")
			return retry.RetryableError(err)
		}
		if retryableStatus(status) {
			c.logger.Debug().Int("status", status).Int("attempt", attempt).Str("url", uri).Msg("retryable status")
			return retry.RetryableError(&StatusError{Status: status, URL: uri})
		}
		if status != fasthttp.StatusOK {
			return &StatusError{Status: status, URL: uri}
		}

		body = payload
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", path, attempt, err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, uri string, headers map[string]string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}

	c.updateRateLimit(resp)

	// resp is recycled on return
	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}

func doRequest[T any](ctx context.Context, client *Client, path string, query url.Values, headers map[string]string) (*T, error) {
	body, err := client.Get(ctx, path, query, headers)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", client.source, err)
	}
	return &result, nil
}

func newRecord(gameID, source string, payload []byte, fetchedAt time.Time) domain.RawRecord {
	return domain.RawRecord{
		GameID:    gameID,
		Source:    source,
		Payload:   payload,
		FetchedAt: fetchedAt,
	}
}
