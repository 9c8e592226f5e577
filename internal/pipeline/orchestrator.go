package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"reportcli/internal/cleaner"
	"reportcli/internal/config"
	"reportcli/internal/infrastructure"
	"reportcli/internal/loader"
	"reportcli/internal/metrics"
	"reportcli/internal/report"
)

// Orchestrator executes pipeline jobs. It is safe for concurrent use;
// each Execute call gets its own Run.
type Orchestrator struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	instruments *infrastructure.PipelineMetrics

	loader   *loader.Loader
	cleaner  *cleaner.Cleaner
	engine   *metrics.Engine
	renderer *report.Renderer
}

// Config carries the orchestrator's dependencies. Zero fields fall
// back to defaults (global logger, global otel providers).
type Config struct {
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Instruments *infrastructure.PipelineMetrics
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.MeterName)
	}
	instruments := cfg.Instruments
	if instruments == nil {
		// The global meter is a no-op unless a provider was installed,
		// so instrument creation cannot fail here.
		instruments, _ = infrastructure.CreatePipelineMetrics(otel.Meter(infrastructure.MeterName))
	}

	return &Orchestrator{
		logger:      logger,
		tracer:      tracer,
		instruments: instruments,
		loader:      loader.New(logger),
		cleaner:     cleaner.New(logger),
		engine:      metrics.NewEngine(logger),
		renderer:    report.NewRenderer(logger),
	}
}

// buildStages assembles the stage sequence for a job. Load and clean
// always run; classify, metrics and export only when configured.
func (o *Orchestrator) buildStages(job config.JobConfig) ([]Stage, error) {
	stages := []Stage{
		&loadStage{loader: o.loader, src: job.Source},
		&cleanStage{cleaner: o.cleaner, rules: job.Clean},
	}

	if job.Classify != nil {
		classifier, err := job.Classify.Build(o.logger)
		if err != nil {
			return nil, err
		}
		stages = append(stages, &classifyStage{classifier: classifier})
	}

	if len(job.Metrics) > 0 {
		stages = append(stages, &metricsStage{engine: o.engine, specs: job.Metrics})
	}

	if job.Output.Report != "" || job.Output.CleanData != "" {
		stages = append(stages, &exportStage{
			renderer:   o.renderer,
			layout:     job.Report,
			reportPath: job.Output.Report,
			cleanPath:  job.Output.CleanData,
		})
	}

	return stages, nil
}

// Execute runs the job to completion. The returned Run always reflects
// the final state, also on failure; the error keeps the failing
// stage's kind so callers can distinguish bad input from bad config.
func (o *Orchestrator) Execute(ctx context.Context, job config.JobConfig) (*Run, error) {
	run := NewRun(job.Name)
	return run, o.ExecuteRun(ctx, job, run)
}

// ExecuteRun runs the job against a caller-created Run, so callers can
// publish the run's state before execution finishes.
func (o *Orchestrator) ExecuteRun(ctx context.Context, job config.JobConfig, run *Run) error {
	ctx = infrastructure.WithTraceID(ctx, run.ID)
	logger := o.logger.With(
		slog.String("job", job.Name),
		slog.String("run_id", run.ID))

	stages, err := o.buildStages(job)
	if err != nil {
		run.Fail(err)
		o.recordRun(ctx, job.Name, "failed", 0)
		logger.ErrorContext(ctx, "run setup failed", slog.String("error", err.Error()))
		return err
	}
	run.registerStages(stages)

	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("run.job", job.Name),
		),
	)
	defer span.End()

	o.instruments.ActiveRuns.Add(ctx, 1,
		otelmetric.WithAttributes(attribute.String("job", job.Name)))
	defer o.instruments.ActiveRuns.Add(ctx, -1,
		otelmetric.WithAttributes(attribute.String("job", job.Name)))

	run.Start()
	logger.InfoContext(ctx, "run started", slog.Int("stages", len(stages)))

	for _, stage := range stages {
		if err := o.runStage(ctx, run, stage, logger); err != nil {
			run.Fail(err)
			span.SetStatus(codes.Error, "run failed")
			o.recordRun(ctx, job.Name, "failed", run.Duration())
			logger.ErrorContext(ctx, "run failed",
				slog.String("stage", stage.ID()),
				slog.String("error", err.Error()))
			return err
		}
	}

	run.Complete()
	span.SetStatus(codes.Ok, "run completed")
	o.recordRun(ctx, job.Name, "completed", run.Duration())
	o.instruments.RowsProcessed.Add(ctx, int64(run.CleanReport().RowsOut),
		otelmetric.WithAttributes(attribute.String("job", job.Name)))

	logger.InfoContext(ctx, "run completed",
		slog.Duration("duration", run.Duration()),
		slog.Int("rows_in", run.CleanReport().RowsIn),
		slog.Int("rows_out", run.CleanReport().RowsOut),
		slog.String("report", run.ReportPath()))
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, run *Run, stage Stage, logger *slog.Logger) error {
	state := run.StageState(stage.ID())
	state.Start()

	stageCtx, span := o.tracer.Start(ctx, "pipeline.stage."+stage.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("stage.id", stage.ID()),
		),
	)
	defer span.End()

	logger.InfoContext(stageCtx, "stage started", slog.String("stage", stage.ID()))
	start := time.Now()
	err := stage.Run(stageCtx, run)
	elapsed := time.Since(start)

	status := "completed"
	if err != nil {
		status = "failed"
	}
	o.instruments.StageDuration.Record(stageCtx, elapsed.Seconds(),
		otelmetric.WithAttributes(attribute.String("stage", stage.ID())))
	o.instruments.StageExecutions.Add(stageCtx, 1,
		otelmetric.WithAttributes(
			attribute.String("stage", stage.ID()),
			attribute.String("status", status),
		))

	if err != nil {
		state.Fail(err)
		infrastructure.RecordError(stageCtx, err)
		span.SetStatus(codes.Error, "stage failed")
		return err
	}

	state.Complete()
	span.SetStatus(codes.Ok, "stage completed")
	logger.InfoContext(stageCtx, "stage completed",
		slog.String("stage", stage.ID()),
		slog.Duration("duration", elapsed))
	return nil
}

func (o *Orchestrator) recordRun(ctx context.Context, job, status string, elapsed time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("job", job),
		attribute.String("status", status),
	)
	o.instruments.RunsTotal.Add(ctx, 1, attrs)
	if elapsed > 0 {
		o.instruments.RunDuration.Record(ctx, elapsed.Seconds(),
			otelmetric.WithAttributes(attribute.String("job", job)))
	}
}
