package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/infrastructure"
	"reportcli/internal/pipeline"
	"reportcli/internal/services"
)

// RunService is the service surface the handlers depend on.
type RunService interface {
	Trigger(ctx context.Context, jobName string) (pipeline.RunSnapshot, error)
	Run(id string) (pipeline.RunSnapshot, bool)
	List() []pipeline.RunSnapshot
	Jobs() []string
	Reports() ([]services.ReportInfo, error)
}

// RunsHandler handles run-related requests.
type RunsHandler struct {
	service RunService
	logger  *slog.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(service RunService, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "runs")),
	}
}

// TriggerRequest is the body of POST /api/runs.
type TriggerRequest struct {
	Job string `json:"job"`
}

// Bind implements render.Binder.
func (req *TriggerRequest) Bind(r *http.Request) error {
	if req.Job == "" {
		return errors.New("job is required")
	}
	return nil
}

// Trigger starts a job in the background and answers 202 with the
// run's initial snapshot.
func (h *RunsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &TriggerRequest{}
	if err := render.Bind(r, req); err != nil {
		problem := pipeerrors.NewProblemDetails(
			http.StatusBadRequest,
			"/errors/invalid-request",
			"Invalid Request",
			err.Error(),
			r.URL.Path,
		).WithExtension("trace_id", infrastructure.GetTraceID(ctx))
		render.Render(w, r, problem)
		return
	}

	snap, err := h.service.Trigger(ctx, req.Job)
	if err != nil {
		h.logger.WarnContext(ctx, "trigger rejected",
			slog.String("job", req.Job),
			slog.String("error", err.Error()))
		render.Render(w, r, pipeerrors.ProblemFromError(err, r.URL.Path, infrastructure.GetTraceID(ctx)))
		return
	}

	h.logger.InfoContext(ctx, "run triggered",
		slog.String("job", req.Job),
		slog.String("run_id", snap.ID))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, snap)
}

// Get answers the snapshot of one run.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, ok := h.service.Run(id)
	if !ok {
		problem := pipeerrors.NewProblemDetails(
			http.StatusNotFound,
			"/errors/run-not-found",
			"Run Not Found",
			"no run with ID "+id,
			r.URL.Path,
		).WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
		render.Render(w, r, problem)
		return
	}

	render.JSON(w, r, snap)
}

// List answers snapshots of all tracked runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs := h.service.List()
	if runs == nil {
		runs = []pipeline.RunSnapshot{}
	}
	render.JSON(w, r, runs)
}

// Jobs answers the configured job names.
func (h *RunsHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.Jobs()
	if jobs == nil {
		jobs = []string{}
	}
	render.JSON(w, r, jobs)
}
