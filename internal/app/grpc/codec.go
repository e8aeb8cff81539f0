package grpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	app_errors "github.com/spounge-ai/auditchain/internal/errors"
)

// decode unmarshals a Struct payload into dst through its JSON form. Unknown fields are
// rejected so typos in filter names do not silently widen a query.
func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		return nil
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: malformed payload: %v", app_errors.ErrValidation, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", app_errors.ErrValidation, err)
	}
	return nil
}

// encode converts any JSON-serializable value into a Struct. Values that do not serialize to
// a JSON object are wrapped under key.
func encode(key string, v any) (*structpb.Struct, error) {
	if key != "" {
		v = map[string]any{key: v}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return out, nil
}

// rangeRequest is shared by the range-scoped methods.
type rangeRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	TopN  int       `json:"topN,omitempty"`
}

type anomaliesRequest struct {
	// Window is a Go duration string such as "30m"; empty uses the configured window.
	Window string `json:"window,omitempty"`
}

func (r anomaliesRequest) duration() (time.Duration, error) {
	if r.Window == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(r.Window)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid window %q", app_errors.ErrValidation, r.Window)
	}
	return d, nil
}

type archiveRequest struct {
	DaysOld int `json:"daysOld"`
}
