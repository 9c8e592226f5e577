// Package pipeline orchestrates a job end to end: load, clean,
// classify, compute metrics and export the report. A run executes its
// stages sequentially and stops at the first failure, leaving the
// failing stage's error kind intact for callers to inspect.
package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"reportcli/internal/cleaner"
	"reportcli/internal/metrics"
	"reportcli/internal/table"
)

// Status is the overall state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StageStatus is the state of one stage within a run.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// StageState is the runtime state of a stage.
type StageState struct {
	mu        sync.RWMutex
	id        string
	name      string
	status    StageStatus
	startTime *time.Time
	endTime   *time.Time
	err       error
}

// NewStageState creates a pending stage state.
func NewStageState(id, name string) *StageState {
	return &StageState{id: id, name: name, status: StageStatusPending}
}

// Start marks the stage active.
func (s *StageState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.startTime = &now
	s.status = StageStatusActive
}

// Complete marks the stage completed.
func (s *StageState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.endTime = &now
	s.status = StageStatusCompleted
}

// Fail marks the stage failed with the given error.
func (s *StageState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.endTime = &now
	s.status = StageStatusFailed
	s.err = err
}

// Status returns the current stage status.
func (s *StageState) Status() StageStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Duration returns how long the stage has been, or was, running.
func (s *StageState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime == nil {
		return 0
	}
	if s.endTime != nil {
		return s.endTime.Sub(*s.startTime)
	}
	return time.Since(*s.startTime)
}

// StageSnapshot is a point-in-time copy of a stage state, safe to
// serialize.
type StageSnapshot struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

func (s *StageState) snapshot() StageSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StageSnapshot{
		ID:         s.id,
		Name:       s.name,
		Status:     s.status,
		StartedAt:  s.startTime,
		FinishedAt: s.endTime,
	}
	if s.startTime != nil && s.endTime != nil {
		snap.DurationMS = s.endTime.Sub(*s.startTime).Milliseconds()
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// Run is the complete state of one pipeline execution, including the
// intermediate artifacts the stages hand to each other.
type Run struct {
	mu sync.RWMutex

	ID        string
	Job       string
	status    Status
	startTime time.Time
	endTime   *time.Time
	err       error
	stages    []*StageState

	// Artifacts produced by the stages. The working table is the
	// output of the most recent transforming stage; named tables are
	// addressable from report layouts.
	working     *table.Table
	tables      map[string]*table.Table
	cleanReport cleaner.Report
	computed    map[string]metrics.Metric
	reportPath  string
}

// NewRun creates a pending run with a fresh UUID.
func NewRun(job string) *Run {
	return &Run{
		ID:       uuid.New().String(),
		Job:      job,
		status:   StatusPending,
		tables:   make(map[string]*table.Table),
		computed: make(map[string]metrics.Metric),
	}
}

func (r *Run) registerStages(stages []Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range stages {
		r.stages = append(r.stages, NewStageState(st.ID(), st.Name()))
	}
}

// StageState returns the state of the stage with the given ID.
func (r *Run) StageState(id string) *StageState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stages {
		if s.id == id {
			return s
		}
	}
	return nil
}

// Start marks the run as running.
func (r *Run) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusRunning
	r.startTime = time.Now()
}

// Complete marks the run as completed.
func (r *Run) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.endTime = &now
	r.status = StatusCompleted
}

// Fail marks the run as failed.
func (r *Run) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.endTime = &now
	r.status = StatusFailed
	r.err = err
}

// Status returns the current run status.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Err returns the failure, if the run failed.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Duration returns how long the run has been, or was, running.
func (r *Run) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.startTime.IsZero() {
		return 0
	}
	if r.endTime != nil {
		return r.endTime.Sub(r.startTime)
	}
	return time.Since(r.startTime)
}

// Working returns the current working table.
func (r *Run) Working() *table.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.working
}

// SetWorking replaces the working table.
func (r *Run) SetWorking(t *table.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.working = t
}

// Table returns a named table artifact.
func (r *Run) Table(name string) (*table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

// SetTable stores a named table artifact.
func (r *Run) SetTable(name string, t *table.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[name] = t
}

// Tables returns a copy of the named table artifacts.
func (r *Run) Tables() map[string]*table.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*table.Table, len(r.tables))
	for k, v := range r.tables {
		out[k] = v
	}
	return out
}

// CleanReport returns the cleaning summary.
func (r *Run) CleanReport() cleaner.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cleanReport
}

// SetCleanReport stores the cleaning summary.
func (r *Run) SetCleanReport(rep cleaner.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanReport = rep
}

// Computed returns a copy of the computed metrics.
func (r *Run) Computed() map[string]metrics.Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]metrics.Metric, len(r.computed))
	for k, v := range r.computed {
		out[k] = v
	}
	return out
}

// SetComputed stores the computed metrics.
func (r *Run) SetComputed(m map[string]metrics.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.computed = m
}

// ReportPath returns where the exported report was written, if any.
func (r *Run) ReportPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reportPath
}

// SetReportPath records where the exported report was written.
func (r *Run) SetReportPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reportPath = path
}

// RunSnapshot is a point-in-time copy of a run, safe to serialize.
type RunSnapshot struct {
	ID         string          `json:"id"`
	Job        string          `json:"job"`
	Status     Status          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
	ReportPath string          `json:"report_path,omitempty"`
	RowsIn     int             `json:"rows_in"`
	RowsOut    int             `json:"rows_out"`
	Stages     []StageSnapshot `json:"stages"`
}

// Snapshot copies the run state for serialization.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := RunSnapshot{
		ID:         r.ID,
		Job:        r.Job,
		Status:     r.status,
		StartedAt:  r.startTime,
		FinishedAt: r.endTime,
		ReportPath: r.reportPath,
		RowsIn:     r.cleanReport.RowsIn,
		RowsOut:    r.cleanReport.RowsOut,
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	for _, s := range r.stages {
		snap.Stages = append(snap.Stages, s.snapshot())
	}
	return snap
}
