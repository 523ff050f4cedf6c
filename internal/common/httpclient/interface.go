// Package httpclient is the HTTP transport behind the httprpc dispatch engine.
// It executes fully-buffered requests synchronously or on a bounded pool of goroutines,
// decodes compressed and non UTF-8 response bodies, and optionally retries idempotent
// requests that failed at the network level. It never interprets status codes.
package httpclient

import (
	"context"
	"net/http"
)

// Request is a fully-buffered outgoing request.
type Request struct {
	Method string      // HTTP method (GET, POST)
	URL    string      // absolute URL including the query string
	Header http.Header // request headers; may be nil
	Body   []byte      // optional request body
}

// Response is the fully-buffered result of a request. Body is already decompressed
// and converted to UTF-8.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Handler receives the outcome of an asynchronous request. Exactly one method is
// invoked, on the goroutine that executed the request.
type Handler interface {
	Completed(resp *Response)
	Failed(err error)
	Cancelled()
}

// Executor defines the operations the dispatch engine needs from a transport.
type Executor interface {
	// Do executes the request and blocks until the response is read or the request fails.
	Do(ctx context.Context, req *Request) (*Response, error)

	// DoAsync schedules the request and returns immediately. The outcome is delivered
	// to h. An error is returned only if the request could not be scheduled.
	DoAsync(ctx context.Context, req *Request, h Handler) error

	// Close stops accepting requests, cancels queued and in-flight asynchronous
	// requests and waits for their handlers to return.
	Close() error
}

var _ Executor = &HTTPClient{}
