package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
)

const (
	MaxQueryLimit     = 1000
	DefaultQueryLimit = 50
	MaxSearchLen      = 256
)

type QueryValidator struct{}

func NewQueryValidator() *QueryValidator {
	return &QueryValidator{}
}

// NormalizeQuery validates filter, page and sort and fills in defaults: limit 50, sort by
// timestamp descending.
func (qv *QueryValidator) NormalizeQuery(filter domain.QueryFilter, page domain.Page, sort domain.Sort) (domain.Page, domain.Sort, error) {
	switch {
	case page.Limit < 0:
		return page, sort, fmt.Errorf("%w: limit cannot be negative", app_errors.ErrValidation)
	case page.Limit == 0:
		page.Limit = DefaultQueryLimit
	case page.Limit > MaxQueryLimit:
		return page, sort, fmt.Errorf("%w: limit %d exceeds maximum of %d", app_errors.ErrValidation, page.Limit, MaxQueryLimit)
	}
	if page.Offset < 0 {
		return page, sort, fmt.Errorf("%w: offset cannot be negative", app_errors.ErrValidation)
	}

	switch sort.Field {
	case "":
		sort.Field = domain.SortByTimestamp
	case domain.SortByTimestamp, domain.SortBySeverity, domain.SortByEventType:
	default:
		return page, sort, fmt.Errorf("%w: unsupported sort field %q", app_errors.ErrValidation, sort.Field)
	}

	if err := qv.ValidateFilter(filter); err != nil {
		return page, sort, err
	}
	return page, sort, nil
}

func (qv *QueryValidator) ValidateFilter(filter domain.QueryFilter) error {
	if filter.EventType != "" && !filter.EventType.Valid() {
		return fmt.Errorf("%w: unknown event type %q", app_errors.ErrValidation, filter.EventType)
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", app_errors.ErrValidation, filter.Category)
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", app_errors.ErrValidation, filter.Severity)
	}
	if len(filter.Search) > MaxSearchLen {
		return fmt.Errorf("%w: search exceeds maximum length of %d", app_errors.ErrValidation, MaxSearchLen)
	}
	if strings.ContainsRune(filter.Search, 0) {
		return fmt.Errorf("%w: search contains invalid characters", app_errors.ErrValidation)
	}
	if filter.Start != nil && filter.End != nil {
		return ValidateRange(*filter.Start, *filter.End)
	}
	return nil
}

// ValidateRange rejects inverted ranges. Equal bounds are a valid single-instant range.
func ValidateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", app_errors.ErrValidation)
	}
	if start.After(end) {
		return fmt.Errorf("%w: start must not be after end", app_errors.ErrValidation)
	}
	return nil
}
