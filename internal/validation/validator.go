package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	pkgvalidator "github.com/spounge-ai/auditchain/pkg/validator"
)

const (
	MaxPayloadSize  = 256 * 1024 // 256KB across changes, request context and metadata
	MaxMetadataKeys = 64
)

// RequestValidator checks collaborator input before anything is signed. Every error it returns
// wraps app_errors.ErrValidation.
type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() (*RequestValidator, error) {
	v := validator.New()

	if err := pkgvalidator.RegisterCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register custom validators: %w", err)
	}

	return &RequestValidator{validator: v}, nil
}

func (rv *RequestValidator) ValidateIngestRequest(req *domain.IngestRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is required", app_errors.ErrValidation)
	}

	if err := rv.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", app_errors.ErrValidation, describe(err))
	}

	if strings.TrimSpace(req.Action) == "" {
		return fmt.Errorf("%w: action must not be blank", app_errors.ErrValidation)
	}

	if len(req.Metadata) > MaxMetadataKeys {
		return fmt.Errorf("%w: metadata has %d keys, maximum is %d", app_errors.ErrValidation, len(req.Metadata), MaxMetadataKeys)
	}

	if err := rv.validatePayloadSize(req); err != nil {
		return err
	}

	return nil
}

func (rv *RequestValidator) validatePayloadSize(req *domain.IngestRequest) error {
	data, err := json.Marshal(struct {
		Changes  *domain.Changes        `json:"changes,omitempty"`
		Request  *domain.RequestContext `json:"request,omitempty"`
		Metadata map[string]any         `json:"metadata,omitempty"`
	}{req.Changes, req.Request, req.Metadata})
	if err != nil {
		return fmt.Errorf("%w: payload is not serializable: %v", app_errors.ErrValidation, err)
	}

	if len(data) > MaxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum of %d bytes", app_errors.ErrValidation, len(data), MaxPayloadSize)
	}

	return nil
}

// describe flattens validator errors into one line naming each failed field and rule.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "event_type" {
			parts = append(parts, fmt.Sprintf("unknown event type %q", fe.Value()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
