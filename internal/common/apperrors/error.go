// Package apperrors provides chainable errors with status codes. Errors created from a
// template keep the template in their chain, so callers can match whole families of
// failures with errors.Is while still reporting a precise message.
package apperrors

// Error extends the standard error interface with derivation and wrapping helpers.
// All derivation methods return a new Error and never mutate the receiver.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // derives a new error using the receiver as template
	Msg(msg string) Error                  // new message, keeps the receiver wrapped
	MsgErr(msg string, err ...error) Error // new message, wraps the receiver and extra errors
	Err(err ...error) Error                // same message, attaches extra errors
	SetExpandError(bool) Error             // controls whether ErrorAll expands wrapped errors
	SetStatusCode(int) Error               // attaches a status code
	StatusCode() int                       // returns the attached status code
	ErrorAll() string                      // message including wrapped errors when expanded
	UnwrapAll() []error                    // all wrapped errors in order
}
