package httprpc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tansive/httprpc/internal/common/apperrors"
)

var (
	// ErrHTTPRPC is the root of every error produced by the dispatch engine.
	ErrHTTPRPC apperrors.Error = apperrors.New("httprpc error")

	// ErrConfiguration is returned when a method declaration is self-contradictory, or when
	// a call site does not match the declaration (sync vs async, result type, missing signer).
	ErrConfiguration apperrors.Error = ErrHTTPRPC.New("invalid method configuration").SetExpandError(true)

	// ErrMissingEndpointConfiguration is returned when the request URL cannot be resolved.
	// It is raised before any network operation.
	ErrMissingEndpointConfiguration apperrors.Error = ErrHTTPRPC.New("endpoint url is not configured")

	// ErrInvalidArguments is returned when call arguments violate the binding contract.
	ErrInvalidArguments apperrors.Error = ErrHTTPRPC.New("invalid arguments").SetStatusCode(http.StatusBadRequest).SetExpandError(true)

	// ErrUnsupportedParameterType is returned for arguments whose type cannot be bound.
	ErrUnsupportedParameterType apperrors.Error = ErrInvalidArguments.New("unsupported parameter type")

	// ErrFormatRequired is returned for date arguments bound without a layout.
	ErrFormatRequired apperrors.Error = ErrInvalidArguments.New("date parameter requires a format")

	// ErrParameterConflict is returned when a flattened body object key collides with an
	// explicitly bound field.
	ErrParameterConflict apperrors.Error = ErrInvalidArguments.New("conflicting parameter keys")

	// ErrSigning is returned when the signer fails to produce a signature.
	ErrSigning apperrors.Error = ErrHTTPRPC.New("request signing failed").SetExpandError(true)

	// ErrTransport is returned when the request could not be executed or its response read.
	ErrTransport apperrors.Error = ErrHTTPRPC.New("transport error").SetExpandError(true)

	// ErrRemoteStatus is returned when the response status is not accepted by the status
	// policy. The status code is available through StatusCode() or RemoteStatus.
	ErrRemoteStatus apperrors.Error = ErrHTTPRPC.New("remote status error")

	// ErrResponseDecode is returned when the response payload cannot be converted to the
	// declared return type.
	ErrResponseDecode apperrors.Error = ErrHTTPRPC.New("failed to decode response").SetExpandError(true)

	// ErrAsyncTimeout is returned by a waiter whose deadline expired. The future is unchanged.
	ErrAsyncTimeout apperrors.Error = ErrHTTPRPC.New("timed out waiting for async result")

	// ErrCancelled is returned by waiters of a cancelled future.
	ErrCancelled apperrors.Error = ErrHTTPRPC.New("async call cancelled")
)

// RemoteStatus reports the HTTP status code carried by an ErrRemoteStatus error.
func RemoteStatus(err error) (int, bool) {
	if !errors.Is(err, ErrRemoteStatus) {
		return 0, false
	}
	return apperrors.StatusCodeOf(err)
}

func remoteStatusError(code int, body []byte) apperrors.Error {
	msg := fmt.Sprintf("unexpected http status %d", code)
	if len(body) > 0 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256] + "..."
		}
		msg += ": " + snippet
	}
	return ErrRemoteStatus.Msg(msg).SetStatusCode(code)
}
