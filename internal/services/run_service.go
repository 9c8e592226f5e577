// Package services holds the application services sitting between the
// transport layer and the pipeline: triggering runs, tracking their
// state and listing produced reports.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"reportcli/internal/config"
	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/pipeline"
)

// RunService triggers pipeline runs and answers status queries. Runs
// are kept in memory for the lifetime of the process; overlapping runs
// of the same job are allowed.
type RunService struct {
	cfg          *config.Config
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger

	mu    sync.RWMutex
	runs  map[string]*pipeline.Run
	order []string // run IDs, oldest first
}

// NewRunService creates a run service.
func NewRunService(cfg *config.Config, orchestrator *pipeline.Orchestrator, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		cfg:          cfg,
		orchestrator: orchestrator,
		logger:       logger,
		runs:         make(map[string]*pipeline.Run),
	}
}

// Trigger starts the named job in the background and returns the run's
// initial snapshot. Unknown job names are a config error.
func (s *RunService) Trigger(ctx context.Context, jobName string) (pipeline.RunSnapshot, error) {
	job, ok := s.cfg.Job(jobName)
	if !ok {
		return pipeline.RunSnapshot{}, pipeerrors.ConfigError("services",
			fmt.Sprintf("unknown job %q", jobName), nil)
	}
	job = s.resolveOutputs(job)

	run := pipeline.NewRun(job.Name)
	s.register(run)

	// The run outlives the triggering request.
	go func() {
		if err := s.orchestrator.ExecuteRun(context.WithoutCancel(ctx), job, run); err != nil {
			s.logger.Error("background run failed",
				slog.String("job", job.Name),
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()))
		}
	}()

	return run.Snapshot(), nil
}

// RunJob executes the named job synchronously and returns its final
// state. Used by the CLI and the scheduler.
func (s *RunService) RunJob(ctx context.Context, jobName string) (*pipeline.Run, error) {
	job, ok := s.cfg.Job(jobName)
	if !ok {
		return nil, pipeerrors.ConfigError("services",
			fmt.Sprintf("unknown job %q", jobName), nil)
	}
	job = s.resolveOutputs(job)

	run := pipeline.NewRun(job.Name)
	s.register(run)
	err := s.orchestrator.ExecuteRun(ctx, job, run)
	return run, err
}

// Run returns the snapshot of a tracked run.
func (s *RunService) Run(id string) (pipeline.RunSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return pipeline.RunSnapshot{}, false
	}
	return run.Snapshot(), true
}

// List returns snapshots of all tracked runs, newest first.
func (s *RunService) List() []pipeline.RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.RunSnapshot, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.runs[s.order[i]].Snapshot())
	}
	return out
}

// Jobs returns the names of the configured jobs.
func (s *RunService) Jobs() []string {
	names := make([]string, 0, len(s.cfg.Jobs))
	for _, j := range s.cfg.Jobs {
		names = append(names, j.Name)
	}
	return names
}

func (s *RunService) register(run *pipeline.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
}

// resolveOutputs anchors relative output paths at the reports
// directory. The source path is taken as configured.
func (s *RunService) resolveOutputs(job config.JobConfig) config.JobConfig {
	if job.Output.Report != "" {
		job.Output.Report = s.cfg.ReportPath(job.Output.Report)
	}
	if job.Output.CleanData != "" {
		job.Output.CleanData = s.cfg.ReportPath(job.Output.CleanData)
	}
	return job
}

// ReportInfo describes one exported report file.
type ReportInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Reports lists the report files in the reports directory, newest
// first. A missing directory is an empty listing, not an error.
func (s *RunService) Reports() ([]ReportInfo, error) {
	entries, err := os.ReadDir(s.cfg.Paths.ReportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var reports []ReportInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".xlsx", ".pdf", ".csv":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		reports = append(reports, ReportInfo{
			Name:     entry.Name(),
			Path:     filepath.Join(s.cfg.Paths.ReportsDir, entry.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Modified.After(reports[j].Modified)
	})
	return reports, nil
}
