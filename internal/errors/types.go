package errors

import (
	"errors"

	"github.com/spounge-ai/auditchain/internal/domain"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrStorageUnavailable   = errors.New("audit storage unavailable")
	ErrArchive              = errors.New("archive failed")
	ErrMissingSigningSecret = errors.New("signing secret is not configured")
	ErrWeakSigningSecret    = errors.New("signing secret is too short")
	ErrRateLimit            = errors.New("rate limit exceeded")

	// ErrChainConflict is re-exported so callers need not import domain for errors.Is checks.
	ErrChainConflict = domain.ErrChainConflict
)
