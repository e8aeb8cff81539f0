package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassValidation
	ClassUnavailable
	ClassArchive
	ClassRateLimit
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassUnavailable:
		return "unavailable"
	case ClassArchive:
		return "archive"
	case ClassRateLimit:
		return "rate_limit"
	default:
		return "internal"
	}
}

type ClassifiedError struct {
	Class         ErrorClass
	InternalError error
	ClientMessage string
	OperationName string
	Metadata      map[string]any
}

type ErrorClassifier struct {
	logger *slog.Logger
}

func NewErrorClassifier(logger *slog.Logger) *ErrorClassifier {
	return &ErrorClassifier{logger: logger}
}

var errorPool = sync.Pool{
	New: func() any {
		return &ClassifiedError{
			Metadata: make(map[string]any, 4),
		}
	},
}

// Classify maps err onto an ErrorClass. Validation messages are passed through to the client
// because they only ever describe the caller's own input.
func (ec *ErrorClassifier) Classify(err error, operation string) *ClassifiedError {
	classified := errorPool.Get().(*ClassifiedError)
	classified.InternalError = err
	classified.OperationName = operation

	switch {
	case errors.Is(err, ErrValidation):
		classified.Class = ClassValidation
		classified.ClientMessage = err.Error()
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrChainConflict):
		classified.Class = ClassUnavailable
		classified.ClientMessage = "The audit store is temporarily unavailable"
	case errors.Is(err, ErrArchive):
		classified.Class = ClassArchive
		classified.ClientMessage = err.Error()
	case errors.Is(err, ErrRateLimit):
		classified.Class = ClassRateLimit
		classified.ClientMessage = "You have exceeded the rate limit"
	default:
		classified.Class = ClassInternal
		classified.ClientMessage = "An unexpected internal error occurred"
	}

	return classified
}

// LogAndSanitize logs the internal error and returns a gRPC status carrying only the client
// message.
func (ec *ErrorClassifier) LogAndSanitize(ctx context.Context, classified *ClassifiedError) error {
	defer ec.putError(classified)

	ec.log(ctx, classified)
	return status.Error(GRPCCode(classified.Class), classified.ClientMessage)
}

// HTTPStatus logs the internal error and returns the HTTP status and client message for it.
func (ec *ErrorClassifier) HTTPStatus(ctx context.Context, classified *ClassifiedError) (int, string) {
	defer ec.putError(classified)

	ec.log(ctx, classified)
	return HTTPCode(classified.Class), classified.ClientMessage
}

func (ec *ErrorClassifier) log(ctx context.Context, classified *ClassifiedError) {
	level := slog.LevelError
	if classified.Class == ClassValidation || classified.Class == ClassRateLimit {
		level = slog.LevelWarn
	}
	ec.logger.Log(ctx, level, "operation failed",
		"operation", classified.OperationName,
		"error_class", classified.Class.String(),
		"internal_error", classified.InternalError.Error(),
		"metadata", classified.Metadata,
	)
}

func GRPCCode(class ErrorClass) codes.Code {
	switch class {
	case ClassValidation:
		return codes.InvalidArgument
	case ClassUnavailable:
		return codes.Unavailable
	case ClassRateLimit:
		return codes.ResourceExhausted
	case ClassArchive:
		return codes.Aborted
	default:
		return codes.Internal
	}
}

func HTTPCode(class ErrorClass) int {
	switch class {
	case ClassValidation:
		return http.StatusBadRequest
	case ClassUnavailable:
		return http.StatusServiceUnavailable
	case ClassRateLimit:
		return http.StatusTooManyRequests
	case ClassArchive:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (ec *ErrorClassifier) putError(err *ClassifiedError) {
	err.InternalError = nil
	for k := range err.Metadata {
		delete(err.Metadata, k)
	}
	err.OperationName = ""
	err.ClientMessage = ""
	errorPool.Put(err)
}
