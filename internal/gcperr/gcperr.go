// Package gcperr classifies errors returned by Google Cloud client
// libraries into a small set of kinds so tool handlers can report them
// uniformly, and provides a retry wrapper for the transient ones.
package gcperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is a coarse error category.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindNotFound   Kind = "not_found"
	KindRateLimit  Kind = "rate_limit"
	KindInvalid    Kind = "invalid_argument"
	KindTransient  Kind = "transient"
	KindUnknown    Kind = "unknown"
)

// Error wraps an SDK error with its classification and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify wraps err with the kind derived from its googleapi or gRPC
// status details. A nil err returns nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: kindOf(err), Op: op, Err: err}
}

// KindOf reports the classification of err, classifying on the fly if it
// has not passed through Classify.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return kindOf(err)
}

func kindOf(err error) Kind {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return kindOfHTTP(gerr)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		return kindOfGRPC(st.Code())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

func kindOfHTTP(gerr *googleapi.Error) Kind {
	switch gerr.Code {
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		for _, item := range gerr.Errors {
			switch item.Reason {
			case "rateLimitExceeded", "quotaExceeded", "userRateLimitExceeded":
				return KindRateLimit
			}
		}
		return KindPermission
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest:
		return KindInvalid
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindTransient
	}
	return KindUnknown
}

func kindOfGRPC(code codes.Code) Kind {
	switch code {
	case codes.Unauthenticated:
		return KindAuth
	case codes.PermissionDenied:
		return KindPermission
	case codes.NotFound:
		return KindNotFound
	case codes.ResourceExhausted:
		return KindRateLimit
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return KindInvalid
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return KindTransient
	}
	return KindUnknown
}

// Retryable reports whether err is worth retrying.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimit:
		return true
	}
	return false
}
