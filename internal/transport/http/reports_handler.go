package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/infrastructure"
	"reportcli/internal/services"
)

// ReportsHandler lists exported report files.
type ReportsHandler struct {
	service RunService
	logger  *slog.Logger
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(service RunService, logger *slog.Logger) *ReportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "reports")),
	}
}

// List answers the report files in the reports directory, newest
// first.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	reports, err := h.service.Reports()
	if err != nil {
		h.logger.ErrorContext(ctx, "listing reports failed", slog.String("error", err.Error()))
		problem := pipeerrors.NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal",
			"Internal Server Error",
			"could not list reports",
			r.URL.Path,
		).WithExtension("trace_id", infrastructure.GetTraceID(ctx))
		render.Render(w, r, problem)
		return
	}
	if reports == nil {
		reports = []services.ReportInfo{}
	}
	render.JSON(w, r, reports)
}
