package httprpc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tansive/httprpc/internal/common/logtrace"
	"github.com/tansive/httprpc/internal/common/uuid"
)

// RequestIDHeader carries the request id of every execution.
const RequestIDHeader = "X-Request-Id"

const (
	contentTypeForm = "application/x-www-form-urlencoded; charset=UTF-8"
	contentTypeJSON = "application/json; charset=UTF-8"

	maxLoggedBody = 4096
)

// StatusPolicy decides which response statuses count as success.
type StatusPolicy int

const (
	// StatusOKOnly accepts 200 only.
	StatusOKOnly StatusPolicy = iota
	// Status2xx accepts any 2xx status.
	Status2xx
)

func (p StatusPolicy) accepts(code int) bool {
	if p == Status2xx {
		return code >= 200 && code < 300
	}
	return code == http.StatusOK
}

func (p StatusPolicy) String() string {
	if p == Status2xx {
		return "2xx"
	}
	return "ok"
}

// ParseStatusPolicy parses "ok" (or "200") and "2xx".
func ParseStatusPolicy(s string) (StatusPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ok", "200":
		return StatusOKOnly, nil
	case "2xx":
		return Status2xx, nil
	}
	return StatusOKOnly, ErrConfiguration.Msg(fmt.Sprintf("unknown status policy %q", s))
}

// plan is a request ready to be executed.
type plan struct {
	d         *MethodDescriptor
	url       string
	headers   map[string]string
	form      map[string]string
	body      []byte
	hasBody   bool
	requestID string
	async     bool
	bindings  []Binding
}

// prepare validates and binds args, resolves the url and signs the request. Nothing is
// sent before prepare succeeds.
func (c *Client) prepare(ctx context.Context, d *MethodDescriptor, args []any) (*plan, error) {
	if len(args) != len(d.params) {
		return nil, ErrInvalidArguments.Msg(fmt.Sprintf("%s expects %d arguments, got %d", d.FullName(), len(d.params), len(args)))
	}
	if err := validateArgs(c.validator, d.params, args); err != nil {
		return nil, err
	}
	st, err := newBinder(d, c.serializer).bind(args)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		if _, ok := st.headers[k]; !ok {
			st.headers[k] = v
		}
	}

	u, err := resolveURL(d, c.config, st)
	if err != nil {
		return nil, err
	}

	p := &plan{
		d:       d,
		url:     u,
		headers:  st.headers,
		form:     st.form,
		bindings: st.bindings,
	}
	if d.verb == POSTJSON && st.hasBody {
		if p.body, err = c.serializer.Marshal(st.body); err != nil {
			return nil, ErrInvalidArguments.MsgErr(fmt.Sprintf("failed to serialize request body: %v", err), err)
		}
		p.hasBody = true
	}

	if err := signRequest(d, c.signer, st, p.body); err != nil {
		return nil, err
	}

	p.requestID = st.headers[RequestIDHeader]
	if p.requestID == "" {
		p.requestID = logtrace.RequestIdFromContext(ctx)
	}
	if p.requestID == "" {
		p.requestID = uuid.NewRequestID()
	}
	st.headers[RequestIDHeader] = p.requestID
	return p, nil
}

func (p *plan) info() ExecutionInfo {
	return ExecutionInfo{
		Method:    p.d.FullName(),
		Verb:      p.d.verb,
		URL:       p.url,
		RequestID: p.requestID,
		Async:     p.async,
		Headers:   p.headers,
		Bindings:  p.bindings,
	}
}

// request encodes the plan for the wire. GET sends the form as the query string, POST as
// an url-encoded body, POSTJSON sends the serialized body.
func (p *plan) request() *Request {
	req := &Request{
		Method: p.d.verb.HTTPMethod(),
		URL:    p.url,
		Header: make(http.Header, len(p.headers)+1),
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	switch p.d.verb {
	case GET:
		if q := encodeForm(p.form); q != "" {
			req.URL = appendRawQuery(p.url, q)
		}
	case POST:
		req.Body = []byte(encodeForm(p.form))
		req.Header.Set("Content-Type", contentTypeForm)
	case POSTJSON:
		if p.hasBody {
			req.Body = p.body
		}
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	return req
}

func encodeForm(form map[string]string) string {
	if len(form) == 0 {
		return ""
	}
	values := make(url.Values, len(form))
	for k, v := range form {
		values.Set(k, v)
	}
	return values.Encode()
}

func appendRawQuery(u, q string) string {
	switch {
	case strings.HasSuffix(u, "?"), strings.HasSuffix(u, "&"):
		return u + q
	case strings.Contains(u, "?"):
		return u + "&" + q
	}
	return u + "?" + q
}

// execute runs the plan synchronously.
func (c *Client) execute(ctx context.Context, p *plan) (*Response, error) {
	if p.d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.d.timeout)
		defer cancel()
	}

	info := p.info()
	ctx, hooks := startHooks(ctx, c.logger, c.hooks, info)
	req := p.request()

	start := time.Now()
	resp, err := c.transport.Execute(ctx, req)
	latency := time.Since(start)

	return c.finish(p, info, hooks, req, resp, err, latency)
}

// executeAsync dispatches the plan and calls done exactly once from the transport's
// goroutine, or from a new goroutine when the request cannot be scheduled.
func (c *Client) executeAsync(ctx context.Context, p *plan, done func(resp *Response, err error, cancelled bool)) {
	p.async = true
	ctx = context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if p.d.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.d.timeout)
	}

	info := p.info()
	ctx, hooks := startHooks(ctx, c.logger, c.hooks, info)
	req := p.request()
	start := time.Now()

	h := &asyncCompletion{
		complete: func(resp *Response, err error, cancelled bool) {
			defer cancel()
			latency := time.Since(start)
			if cancelled {
				c.logExecution(p, req, nil, ErrCancelled, latency)
				endHooks(c.logger, hooks, info, ExecutionResult{Latency: latency, Err: ErrCancelled})
				done(nil, nil, true)
				return
			}
			resp, err = c.finish(p, info, hooks, req, resp, err, latency)
			done(resp, err, false)
		},
	}
	if err := c.transport.ExecuteAsync(ctx, req, h); err != nil {
		go h.Failed(err)
	}
}

// finish classifies the outcome, logs it and ends the hooks.
func (c *Client) finish(p *plan, info ExecutionInfo, hooks []hookState, req *Request, resp *Response, err error, latency time.Duration) (*Response, error) {
	status := 0
	switch {
	case err != nil:
		err = ErrTransport.MsgErr(fmt.Sprintf("%s %s: %v", req.Method, p.url, err), err)
		resp = nil
	case resp == nil:
		err = ErrTransport.Msg(fmt.Sprintf("%s %s: transport returned no response", req.Method, p.url))
	default:
		status = resp.StatusCode
		if !c.statusPolicy.accepts(status) {
			err = remoteStatusError(status, resp.Body)
		}
	}

	c.logExecution(p, req, resp, err, latency)
	endHooks(c.logger, hooks, info, ExecutionResult{StatusCode: status, Latency: latency, Err: err})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// logExecution emits one record per execution.
func (c *Client) logExecution(p *plan, req *Request, resp *Response, err error, latency time.Duration) {
	var ev *zerolog.Event
	if err != nil {
		ev = c.logger.Error().Err(err)
	} else {
		ev = c.logger.Info()
	}
	if !ev.Enabled() {
		return
	}

	ev = ev.Str("method", p.d.FullName()).
		Str("verb", p.d.verb.String()).
		Str("url", req.URL).
		Str("request_id", p.requestID).
		Bool("async", p.async).
		Dict("headers", redactedHeaders(p.headers)).
		Float64("latency_ms", float64(latency.Microseconds())/1000)

	if p.d.verb == POSTJSON {
		ev = ev.Str("params", truncate(string(p.body)))
	} else {
		ev = ev.Interface("params", p.form)
	}
	if resp != nil {
		ev = ev.Int("status", resp.StatusCode).Str("response", truncate(string(resp.Body)))
	} else if code, ok := RemoteStatus(err); ok {
		ev = ev.Int("status", code)
	}
	ev.Msg("rpc executed")
}

var redacted = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
}

func redactedHeaders(headers map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range headers {
		if redacted[strings.ToLower(k)] {
			v = "[REDACTED]"
		}
		d = d.Str(k, v)
	}
	return d
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}

// asyncCompletion forwards the first transport notification and drops the rest.
type asyncCompletion struct {
	once     sync.Once
	complete func(resp *Response, err error, cancelled bool)
}

func (a *asyncCompletion) Completed(resp *Response) {
	a.once.Do(func() { a.complete(resp, nil, false) })
}

func (a *asyncCompletion) Failed(err error) {
	a.once.Do(func() { a.complete(nil, err, false) })
}

func (a *asyncCompletion) Cancelled() {
	a.once.Do(func() { a.complete(nil, nil, true) })
}
