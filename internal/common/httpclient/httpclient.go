package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

// ErrClosed is returned for requests issued after Close.
var ErrClosed = errors.New("http client is closed")

// Config holds transport settings.
type Config struct {
	Timeout       time.Duration // per request, covering all retry attempts
	MaxInFlight   int           // concurrent asynchronous requests
	RetryAttempts uint          // attempts for GET requests failing at the network level; 1 disables retries
	RetryDelay    time.Duration // initial backoff between attempts
	RateLimit     float64       // requests per second across all calls; 0 is unlimited
	RateBurst     int           // requests allowed at once when RateLimit is set
	UserAgent     string
}

// DefaultConfig returns the transport defaults: a 20 second timeout, 64 concurrent
// asynchronous requests and no retries.
func DefaultConfig() Config {
	return Config{
		Timeout:       20 * time.Second,
		MaxInFlight:   64,
		RetryAttempts: 1,
		RetryDelay:    200 * time.Millisecond,
		UserAgent:     "tansive-httprpc",
	}
}

// HTTPClient executes requests over net/http.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	slots      chan struct{}
	limiter    *rate.Limiter // nil when unlimited

	ctx    context.Context // done once Close is called
	cancel context.CancelFunc

	mu     sync.RWMutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// ClientOption customizes an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a transport. Zero values in cfg fall back to DefaultConfig.
func NewClient(cfg Config, opts ...ClientOption) *HTTPClient {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		slots:      make(chan struct{}, cfg.MaxInFlight),
		ctx:        ctx,
		cancel:     cancel,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective transport configuration.
func (c *HTTPClient) Config() Config {
	return c.cfg
}

// Do executes the request synchronously.
func (c *HTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return c.do(ctx, req)
}

// DoAsync schedules the request on the client's goroutine pool.
func (c *HTTPClient) DoAsync(ctx context.Context, req *Request, h Handler) error {
	if h == nil {
		return fmt.Errorf("async request requires a handler")
	}
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClosed
	}
	c.wg.Add(1)
	c.mu.RUnlock()

	go func() {
		defer c.wg.Done()

		select {
		case c.slots <- struct{}{}:
		case <-c.ctx.Done():
			h.Cancelled()
			return
		}
		defer func() { <-c.slots }()

		reqCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(c.ctx, cancel)
		defer stop()

		resp, err := c.do(reqCtx, req)
		if err != nil {
			if c.ctx.Err() != nil {
				h.Cancelled()
				return
			}
			h.Failed(err)
			return
		}
		h.Completed(resp)
	}()
	return nil
}

// Close stops the client. Pending asynchronous requests are cancelled and their
// handlers receive Cancelled.
func (c *HTTPClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if c.cfg.RetryAttempts <= 1 || req.Method != http.MethodGet {
		return c.doOnce(ctx, req)
	}

	var resp *Response
	err := retry.Do(func() error {
		var err error
		resp, err = c.doOnce(ctx, req)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(c.cfg.RetryAttempts),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) doOnce(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", "gzip, deflate, zstd")
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	decoded, err := decodeBody(raw, resp.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       decoded,
	}, nil
}

func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// zstdDecoder is shared; DecodeAll is safe for concurrent use.
var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// decodeBody undoes the content encoding we asked for and converts the payload to UTF-8.
func decodeBody(raw []byte, header http.Header) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	body := raw
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if body, err = io.ReadAll(zr); err != nil {
			return nil, err
		}
	case "deflate":
		// RFC 9110 deflate is zlib-wrapped, but raw deflate streams are common.
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			defer zr.Close()
			if body, err = io.ReadAll(zr); err != nil {
				return nil, err
			}
		} else {
			fr := flate.NewReader(bytes.NewReader(raw))
			defer fr.Close()
			if body, err = io.ReadAll(fr); err != nil {
				return nil, err
			}
		}
	case "zstd":
		var err error
		if body, err = zstdDecoder.DecodeAll(raw, nil); err != nil {
			return nil, err
		}
	case "x-snappy-framed":
		var err error
		if body, err = io.ReadAll(snappy.NewReader(bytes.NewReader(raw))); err != nil {
			return nil, err
		}
	}
	return toUTF8(body, header.Get("Content-Type"))
}

func toUTF8(body []byte, contentType string) ([]byte, error) {
	if len(body) == 0 || contentType == "" {
		return body, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body, nil
	}
	charset := strings.ToLower(strings.Trim(params["charset"], `"`))
	switch charset {
	case "", "utf-8", "utf8":
		return body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		// unknown charsets pass through untouched
		return body, nil
	}
	return enc.NewDecoder().Bytes(body)
}
