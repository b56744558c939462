package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"myhome_scrooper/config"
	"myhome_scrooper/models"
)

const logSource = "myhome"

// Client talks to the announcement API: paginated list pages and the
// per-listing phone endpoint.
type Client struct {
	site    *config.SiteConfig
	cfg     config.ScraperConfig
	http    *http.Client
	limiter *rate.Limiter
	logf    LogFunc
}

func NewClient(httpClient *http.Client, site *config.SiteConfig, cfg config.ScraperConfig) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.DefaultScraper().MaxBodyBytes
	}

	c := &Client{
		site: site,
		cfg:  cfg,
		http: httpClient,
		logf: StdLogger,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

func (c *Client) SetLogger(fn LogFunc) {
	if fn != nil {
		c.logf = fn
	}
}

type listResponse struct {
	Data []json.RawMessage `json:"data"`
	Meta *struct {
		LastPage int `json:"last_page"`
	} `json:"meta"`
}

// PageCount returns meta.last_page for a category, or 0 when it could not be
// determined.
func (c *Client) PageCount(ctx context.Context, category models.Category) int {
	res := c.FetchWithRetry(ctx, c.site.ListURL(category.Code(), 1), c.site.Headers)
	if !res.OK() {
		c.logf(models.LogLevelError, logSource, fmt.Sprintf("%s: page count request failed: %s", category, res))
		return 0
	}

	var body listResponse
	if err := json.Unmarshal(res.Payload, &body); err != nil || body.Meta == nil {
		c.logf(models.LogLevelError, logSource, fmt.Sprintf("%s: response has no pagination metadata", category))
		return 0
	}
	return body.Meta.LastPage
}

// FetchPage never fails loudly: a failed page comes back empty with its
// outcome set.
func (c *Client) FetchPage(ctx context.Context, category models.Category, page int) Page {
	res := c.FetchWithRetry(ctx, c.site.ListURL(category.Code(), page), c.site.Headers)
	if !res.OK() {
		c.logf(models.LogLevelWarn, logSource, fmt.Sprintf("%s page %d: %s", category, page, res))
		return Page{Number: page, Outcome: res.Kind}
	}

	var body listResponse
	if err := json.Unmarshal(res.Payload, &body); err != nil {
		c.logf(models.LogLevelWarn, logSource, fmt.Sprintf("%s page %d: unexpected payload: %v", category, page, err))
		return Page{Number: page, Outcome: OutcomePermanent}
	}
	return Page{Number: page, Listings: body.Data, Outcome: OutcomeOK}
}

// FetchPhone makes a single request to the phone endpoint and returns the
// numbers joined with ", ". Any failure yields "".
func (c *Client) FetchPhone(ctx context.Context, listingID int64) string {
	if err := c.wait(ctx); err != nil {
		return ""
	}

	status, body, err := c.get(ctx, c.site.PhoneURL(listingID), c.site.PhoneHeaders)
	if err != nil {
		c.logf(models.LogLevelWarn, logSource, fmt.Sprintf("phone %d: %v", listingID, err))
		return ""
	}
	if status != http.StatusOK {
		c.logf(models.LogLevelWarn, logSource, fmt.Sprintf("phone %d: HTTP %d", listingID, status))
		return ""
	}

	text, _, err := decodeText(body)
	if err != nil {
		c.logf(models.LogLevelWarn, logSource, fmt.Sprintf("phone %d: %v", listingID, err))
		return ""
	}
	return normalizePhones(text)
}

func normalizePhones(text string) string {
	var phones []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if p := strings.TrimSpace(line); p != "" {
			phones = append(phones, p)
		}
	}
	return strings.Join(phones, ", ")
}

// FetchWithRetry performs a GET that must yield JSON. Every attempt is
// preceded by the fixed request delay; transient failures back off
// attempt*RetryBackoff, 429s back off attempt*RateLimitBackoff.
func (c *Client) FetchWithRetry(ctx context.Context, url string, headers map[string]string) Result {
	var last Result

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.wait(ctx); err != nil {
			return Result{Kind: OutcomePermanent, Attempts: attempt - 1, Err: err}
		}

		last = c.attempt(ctx, url, headers)
		last.Attempts = attempt

		if last.OK() || !last.Kind.Retryable() {
			return last
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		backoff := c.backoff(last.Kind, attempt)
		c.logf(models.LogLevelWarn, logSource,
			fmt.Sprintf("attempt %d/%d for %s: %s, retrying in %v", attempt, c.cfg.MaxRetries, url, last.Kind, backoff))
		if err := sleepCtx(ctx, backoff); err != nil {
			return Result{Kind: OutcomePermanent, Status: last.Status, Attempts: attempt, Err: err}
		}
	}

	if errors.Is(last.Err, errUndecodable) {
		last.Kind = OutcomePermanent
	} else {
		last.Kind = OutcomeExhausted
	}
	return last
}

func (c *Client) backoff(kind OutcomeKind, attempt int) time.Duration {
	if kind == OutcomeRateLimited {
		return time.Duration(attempt) * c.cfg.RateLimitBackoff
	}
	return time.Duration(attempt) * c.cfg.RetryBackoff
}

func (c *Client) attempt(ctx context.Context, url string, headers map[string]string) Result {
	status, body, err := c.get(ctx, url, headers)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Kind: OutcomePermanent, Err: ctx.Err()}
		}
		return Result{Kind: OutcomeTransient, Status: status, Err: err}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return Result{Kind: OutcomeRateLimited, Status: status}
	case status >= 500:
		return Result{Kind: OutcomeTransient, Status: status, Err: fmt.Errorf("HTTP %d", status)}
	case status != http.StatusOK:
		return Result{Kind: OutcomePermanent, Status: status, Err: fmt.Errorf("HTTP %d", status)}
	}

	payload, enc, err := decodeJSON(body)
	if err != nil {
		return Result{Kind: OutcomeTransient, Status: status, Err: err}
	}
	return Result{Kind: OutcomeOK, Status: status, Payload: payload, Encoding: enc}
}

// get issues one request and returns the decompressed body. A non-nil error
// means the transport failed or the body could not be read or decompressed.
func (c *Client) get(ctx context.Context, url string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return resp.StatusCode, nil, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > c.cfg.MaxBodyBytes {
		return resp.StatusCode, nil, errBodyTooLarge
	}

	body, err := decompress(resp.Header.Get("Content-Encoding"), raw, c.cfg.MaxBodyBytes)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decompress: %w", err)
	}
	return resp.StatusCode, body, nil
}

// wait applies the fixed per-request delay and, when configured, the global
// request limiter.
func (c *Client) wait(ctx context.Context) error {
	if err := sleepCtx(ctx, c.cfg.RequestDelay); err != nil {
		return err
	}
	if c.limiter != nil {
		return c.limiter.Wait(ctx)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
