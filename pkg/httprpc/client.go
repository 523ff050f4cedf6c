package httprpc

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tansive/httprpc/internal/common/httpclient"
	"github.com/tansive/httprpc/pkg/httprpc/config"
)

// Client dispatches calls described by method descriptors. A Client is safe for concurrent
// use and holds no per-call state.
type Client struct {
	transport     Transport
	ownsTransport bool
	config        ConfigSource
	serializer    Serializer
	signer        Signer
	validator     Validator
	logger        zerolog.Logger
	statusPolicy  StatusPolicy
	hooks         []ExecutionHook
	headers       map[string]string

	transportConfig httpclient.Config
	httpClient      *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport replaces the default net/http transport. The client does not close it.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient sets the *http.Client used by the default transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithConfigSource sets the source resolving url configuration keys.
func WithConfigSource(src ConfigSource) ClientOption {
	return func(c *Client) {
		c.config = src
	}
}

// WithSerializer replaces the JSON serializer.
func WithSerializer(s Serializer) ClientOption {
	return func(c *Client) {
		if s != nil {
			c.serializer = s
		}
	}
}

// WithSigner sets the signer used by methods declaring a signing key.
func WithSigner(s Signer) ClientOption {
	return func(c *Client) {
		c.signer = s
	}
}

// WithValidator replaces the argument validator. A nil validator disables validation.
func WithValidator(v Validator) ClientOption {
	return func(c *Client) {
		c.validator = v
	}
}

// WithLogger sets the logger receiving execution records.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithStatusPolicy sets which response statuses are treated as success.
func WithStatusPolicy(p StatusPolicy) ClientOption {
	return func(c *Client) {
		c.statusPolicy = p
	}
}

// WithHook adds an execution hook. Hooks start in registration order and end in reverse.
func WithHook(h ExecutionHook) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// WithHeaders sets headers sent with every request unless the method or an argument sets
// the same header.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		maps.Copy(c.headers, headers)
	}
}

// WithTimeout sets the request timeout of the default transport.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.transportConfig.Timeout = d
	}
}

// WithMaxInFlight bounds the number of concurrent asynchronous requests of the default
// transport.
func WithMaxInFlight(n int) ClientOption {
	return func(c *Client) {
		c.transportConfig.MaxInFlight = n
	}
}

// WithSettings applies file based client settings.
func WithSettings(s config.ClientSettings) ClientOption {
	return func(c *Client) {
		if s.Timeout > 0 {
			c.transportConfig.Timeout = s.Timeout
		}
		if s.MaxInFlight > 0 {
			c.transportConfig.MaxInFlight = s.MaxInFlight
		}
		if s.RetryAttempts > 0 {
			c.transportConfig.RetryAttempts = s.RetryAttempts
		}
		if s.RetryDelay > 0 {
			c.transportConfig.RetryDelay = s.RetryDelay
		}
		if s.RateLimit > 0 {
			c.transportConfig.RateLimit = s.RateLimit
			c.transportConfig.RateBurst = s.RateBurst
		}
		if s.UserAgent != "" {
			c.transportConfig.UserAgent = s.UserAgent
		}
		if s.StatusPolicy != "" {
			if p, err := ParseStatusPolicy(s.StatusPolicy); err == nil {
				c.statusPolicy = p
			} else {
				c.logger.Warn().Str("status_policy", s.StatusPolicy).Msg("ignoring unknown status policy")
			}
		}
		maps.Copy(c.headers, s.Headers)
	}
}

// NewClient creates a client. Without WithTransport it owns a net/http transport, released
// by Close.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		serializer:      NewJSONSerializer(),
		validator:       NewValidator(),
		logger:          log.Logger,
		headers:         make(map[string]string),
		transportConfig: httpclient.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = newHTTPTransport(c.transportConfig, c.httpClient)
		c.ownsTransport = true
	}
	return c
}

// Close releases the default transport. Pending asynchronous calls are cancelled.
func (c *Client) Close() error {
	if !c.ownsTransport {
		return nil
	}
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Call invokes a synchronous method and decodes its result into T, which must be the
// declared result type.
func Call[T any](ctx context.Context, c *Client, d *MethodDescriptor, args ...any) (T, error) {
	var zero T
	if d.isAsync {
		return zero, ErrConfiguration.Msg(fmt.Sprintf("%s is asynchronous, use CallAsync or CallWithCallback", d.FullName()))
	}
	if err := checkResultType[T](d); err != nil {
		return zero, err
	}
	p, err := c.prepare(ctx, d, args)
	if err != nil {
		return zero, err
	}
	resp, err := c.execute(ctx, p)
	if err != nil {
		return zero, err
	}
	return convertResponse[T](d, c.serializer, resp.Body)
}

// Invoke calls a synchronous method without a result.
func Invoke(ctx context.Context, c *Client, d *MethodDescriptor, args ...any) error {
	_, err := Call[Void](ctx, c, d, args...)
	return err
}

// CallAsync invokes an asynchronous method and returns immediately. Every failure, including
// invalid arguments, is delivered through the returned future. Cancelling ctx does not abort
// the request.
func CallAsync[T any](ctx context.Context, c *Client, d *MethodDescriptor, args ...any) *Future[T] {
	f := NewFuture[T]()
	switch {
	case !d.isAsync:
		f.Fail(ErrConfiguration.Msg(fmt.Sprintf("%s is synchronous, use Call", d.FullName())))
		return f
	case d.hasInlineCallback:
		f.Fail(ErrConfiguration.Msg(fmt.Sprintf("%s takes a callback, use CallWithCallback", d.FullName())))
		return f
	}
	if err := checkResultType[T](d); err != nil {
		f.Fail(err)
		return f
	}

	dispatchAsync(ctx, c, d, d, args, f, func(err error) { f.Fail(err) })
	return f
}

// CallWithCallback invokes an asynchronous method declaring an inline callback. cb receives
// exactly one notification, never on the calling goroutine: failures detected before the
// request is scheduled are delivered from a new goroutine. T selects how the response is
// handed over: *Response passes it through, text types receive the body and other types
// are decoded.
func CallWithCallback[T any](ctx context.Context, c *Client, d *MethodDescriptor, cb Callback[T], args ...any) error {
	if cb == nil {
		return ErrConfiguration.Msg(fmt.Sprintf("%s: callback is nil", d.FullName()))
	}
	f := NewFuture[T]()
	f.Then(cb)
	failLater := func(err error) {
		go f.Fail(err)
	}
	if !d.isAsync || !d.hasInlineCallback {
		failLater(ErrConfiguration.Msg(fmt.Sprintf("%s does not declare a callback", d.FullName())))
		return nil
	}

	// The callback's type decides the conversion.
	conv := *d
	conv.returns = ReturnShape{Kind: ReturnGeneric, Inner: reflect.TypeFor[T]()}
	dispatchAsync(ctx, c, d, &conv, args, f, failLater)
	return nil
}

var responseType = reflect.TypeFor[*Response]()

// dispatchAsync prepares and schedules the call. fail receives errors raised before the
// request reaches the transport.
func dispatchAsync[T any](ctx context.Context, c *Client, d, conv *MethodDescriptor, args []any, f *Future[T], fail func(error)) {
	p, err := c.prepare(ctx, d, args)
	if err != nil {
		fail(err)
		return
	}
	c.executeAsync(ctx, p, func(resp *Response, err error, cancelled bool) {
		switch {
		case cancelled:
			f.Cancel()
		case err != nil:
			f.Fail(err)
		case conv.returns.Inner == responseType:
			f.Complete(any(resp).(T))
		default:
			v, err := convertResponse[T](conv, c.serializer, resp.Body)
			if err != nil {
				f.Fail(err)
				return
			}
			f.Complete(v)
		}
	})
}
