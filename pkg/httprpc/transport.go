package httprpc

import (
	"context"
	"net/http"

	"github.com/tansive/httprpc/internal/common/httpclient"
)

// Request is a fully built HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a received HTTP response with its body already decoded to UTF-8.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// AsyncHandler receives the outcome of an asynchronous execution. Transports call exactly
// one method; the engine tolerates duplicates and keeps the first.
type AsyncHandler interface {
	Completed(resp *Response)
	Failed(err error)
	Cancelled()
}

// Transport executes requests. ExecuteAsync must not block on the network; it reports
// an error only when the request cannot be scheduled.
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
	ExecuteAsync(ctx context.Context, req *Request, h AsyncHandler) error
}

// httpTransport adapts the net/http client to Transport.
type httpTransport struct {
	client *httpclient.HTTPClient
}

func newHTTPTransport(cfg httpclient.Config, hc *http.Client) *httpTransport {
	return &httpTransport{client: httpclient.NewClient(cfg, httpclient.WithHTTPClient(hc))}
}

func (t *httpTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	resp, err := t.client.Do(ctx, toClientRequest(req))
	if err != nil {
		return nil, err
	}
	return fromClientResponse(resp), nil
}

func (t *httpTransport) ExecuteAsync(ctx context.Context, req *Request, h AsyncHandler) error {
	return t.client.DoAsync(ctx, toClientRequest(req), handlerAdapter{h})
}

func (t *httpTransport) Close() error {
	return t.client.Close()
}

type handlerAdapter struct {
	h AsyncHandler
}

func (a handlerAdapter) Completed(resp *httpclient.Response) { a.h.Completed(fromClientResponse(resp)) }
func (a handlerAdapter) Failed(err error)                    { a.h.Failed(err) }
func (a handlerAdapter) Cancelled()                          { a.h.Cancelled() }

func toClientRequest(req *Request) *httpclient.Request {
	return &httpclient.Request{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header,
		Body:   req.Body,
	}
}

func fromClientResponse(resp *httpclient.Response) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}
}
