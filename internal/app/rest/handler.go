package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/service"
	"github.com/spounge-ai/auditchain/pkg/patterns/lifecycle"
)

// HealthFunc reports overall readiness and per-component detail.
type HealthFunc func(r *http.Request) (bool, map[string]lifecycle.HealthStatus)

type Handler struct {
	svc        service.AuditService
	health     HealthFunc
	classifier *app_errors.ErrorClassifier
}

func NewHandler(svc service.AuditService, health HealthFunc, classifier *app_errors.ErrorClassifier) *Handler {
	return &Handler{svc: svc, health: health, classifier: classifier}
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	ok, components := h.health(r)
	status, code := "ok", http.StatusOK
	if !ok {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{"status": status, "components": components})
}

// Export handles GET /v1/audit/export. Query parameters mirror QueryFilter; format is json
// (default) or csv.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := core.ParseExportFormat(q.Get("format"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter, err := filterFromQuery(q.Get)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sort := domain.Sort{Field: domain.SortField(q.Get("sort"))}
	if v := q.Get("ascending"); v != "" {
		if sort.Ascending, err = strconv.ParseBool(v); err != nil {
			h.fail(w, r, fmt.Errorf("%w: ascending must be a boolean", app_errors.ErrValidation))
			return
		}
	}

	// Entries are buffered through the service before anything is written, so a storage
	// failure still produces a clean error response.
	var buf bytes.Buffer
	n, err := h.svc.Export(r.Context(), &buf, filter, sort, format)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	contentType := "application/json"
	if format == core.ExportCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="audit-%s.%s"`, time.Now().UTC().Format("20060102T150405Z"), format))
	w.Header().Set("X-Export-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := h.classifier.HTTPStatus(r.Context(), h.classifier.Classify(err, r.Method+" "+r.URL.Path))
	respondError(w, status, msg)
}

// filterFromQuery reads the QueryFilter fields from URL parameters. Times are RFC 3339.
func filterFromQuery(get func(string) string) (domain.QueryFilter, error) {
	f := domain.QueryFilter{
		EventType: domain.EventType(get("eventType")),
		Category:  domain.Category(get("eventCategory")),
		Severity:  domain.Severity(get("severity")),
		ActorID:   get("actorId"),
		IPAddress: get("ipAddress"),
		Search:    get("search"),
		ArchiveID: get("archiveId"),
	}
	for name, dst := range map[string]**time.Time{"start": &f.Start, "end": &f.End} {
		v := get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", app_errors.ErrValidation, name)
		}
		*dst = &t
	}
	if v := get("excludeArchived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("%w: excludeArchived must be a boolean", app_errors.ErrValidation)
		}
		f.ExcludeArchived = b
	}
	return f, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
