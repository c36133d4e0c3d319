package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/logview/internal/types"
)

// Error mapping for both surfaces:
// invalid views and parameters map to 400 / INVALID_ARGUMENT,
// unknown stored views to 404 / NOT_FOUND,
// read failures to 500 / UNAVAILABLE,
// context timeouts to 504 / DEADLINE_EXCEEDED.
// Auth errors are mapped in the auth package.

// ErrorMessage is the JSON body of every HTTP error response.
type ErrorMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the {code, message} envelope. Its signature matches
// auth.Authenticator.Middleware so auth failures share the envelope.
func WriteError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, ErrorMessage{Code: code, Message: err.Error()})
}

// httpStatus maps a service error to an HTTP status code.
// Read failures and anything unrecognized are internal errors.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidView),
		errors.Is(err, types.ErrInvalidPattern),
		errors.Is(err, types.ErrPatternTooLong),
		errors.Is(err, types.ErrViewTooDeep),
		errors.Is(err, types.ErrTooManyOperations),
		errors.Is(err, types.ErrInvalidViewName),
		errors.Is(err, ErrBadOffset),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrViewNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrViewExists):
		return http.StatusConflict
	case errors.Is(err, ErrViewsDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// grpcStatus maps a service error to a gRPC status error.
func grpcStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var readErr *types.ReadError
	code := codes.Internal
	switch httpStatus(err) {
	case http.StatusBadRequest:
		code = codes.InvalidArgument
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusNotImplemented:
		code = codes.Unimplemented
	case http.StatusGatewayTimeout:
		code = codes.DeadlineExceeded
	}
	if errors.As(err, &readErr) {
		code = codes.Unavailable
	}
	if errors.Is(err, context.Canceled) {
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}

// ErrBadRequest marks malformed request bodies and parameters.
var ErrBadRequest = errors.New("bad request")
