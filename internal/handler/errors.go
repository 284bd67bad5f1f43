// internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SyedDaiam9101/breed-classifier/internal/classifier"
	"github.com/SyedDaiam9101/breed-classifier/internal/preprocess"
)

var (
	errNoFile   = errors.New("no image file uploaded")
	errTooLarge = errors.New("uploaded image is too large")
	errNotReady = errors.New("classifier not initialized")
)

// httpStatus maps pipeline errors to HTTP status codes
func httpStatus(err error) int {
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile),
		errors.Is(err, preprocess.ErrDecode),
		errors.Is(err, preprocess.ErrUnsupportedMode):
		return http.StatusBadRequest
	case errors.Is(err, errNotReady), errors.Is(err, classifier.ErrStartup):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// grpcError maps pipeline errors to gRPC status errors
func grpcError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, errNoFile),
		errors.Is(err, preprocess.ErrDecode),
		errors.Is(err, preprocess.ErrUnsupportedMode):
		return status.Errorf(codes.InvalidArgument, "invalid image: %v", err)

	case errors.Is(err, errNotReady), errors.Is(err, classifier.ErrStartup):
		return status.Errorf(codes.FailedPrecondition, "%v", err)

	case errors.Is(err, classifier.ErrInference):
		return status.Errorf(codes.Internal, "inference execution failed: %v", err)

	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
