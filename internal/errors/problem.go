package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]any `json:"-"`
}

// Render implements the render.Renderer interface.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON includes the extension fields alongside the standard
// ones.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]any, 5+len(pd.Extensions))
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	for k, v := range pd.Extensions {
		data[k] = v
	}
	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error body.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]any),
	}
}

// WithExtension adds an extension field to the problem details.
func (pd *ProblemDetails) WithExtension(key string, value any) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// statusForKind maps pipeline error kinds to HTTP statuses: bad
// configuration is the caller's fault, bad data is unprocessable,
// everything else is on us.
func statusForKind(kind Kind) int {
	switch kind {
	case KindConfig:
		return http.StatusBadRequest
	case KindFormat, KindSchema:
		return http.StatusUnprocessableEntity
	case KindMetric, KindClassification, KindExport:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ProblemFromError converts a pipeline error into RFC 7807 problem
// details, keyed by the error's kind.
func ProblemFromError(err error, instance, traceID string) *ProblemDetails {
	kind := KindOf(err)
	status := statusForKind(kind)

	problemType := "/errors/internal"
	title := "Internal Server Error"
	if kind != "" {
		problemType = "/errors/" + string(kind)
		title = http.StatusText(status)
	}

	pd := NewProblemDetails(status, problemType, title, err.Error(), instance)
	if traceID != "" {
		pd.WithExtension("trace_id", traceID)
	}
	if kind != "" {
		pd.WithExtension("kind", string(kind))
	}
	return pd
}
