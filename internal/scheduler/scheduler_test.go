package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportcli/internal/config"
	"reportcli/internal/loader"
	"reportcli/internal/pipeline"
	"reportcli/internal/services"
	"reportcli/internal/table"
)

func scheduledService(t *testing.T, schedule *config.ScheduleConfig) (*config.Config, *services.RunService) {
	t.Helper()

	srcPath := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(srcPath, []byte("id,v\n1,2\n"), 0644))

	cfg := config.Default()
	cfg.Paths.ReportsDir = t.TempDir()
	cfg.Jobs = []config.JobConfig{{
		Name: "tick",
		Source: loader.Source{
			Path: srcPath,
			Schema: table.Schema{Columns: []table.ColumnSpec{
				{Name: "id", Kind: table.KindInt, Required: true},
			}},
		},
		Schedule: schedule,
	}}

	return cfg, services.NewRunService(cfg, pipeline.New(pipeline.Config{}), nil)
}

func TestScheduler_IntervalTriggersRuns(t *testing.T) {
	cfg, svc := scheduledService(t, &config.ScheduleConfig{
		Every: config.Duration(20 * time.Millisecond),
	})
	sched := New(cfg, svc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, sched.Run(ctx))

	// Several ticks fit in 150ms; runs must have been triggered.
	assert.NotEmpty(t, svc.List())
}

func TestScheduler_NoScheduledJobs(t *testing.T) {
	cfg, svc := scheduledService(t, nil)
	sched := New(cfg, svc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, sched.Run(ctx))
	assert.Empty(t, svc.List())
}

func TestNextDaily(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		at   string
		want time.Time
	}{
		{"10:30", time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"09:00", time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)},
		// Exactly now rolls to tomorrow: strictly after.
		{"10:00", time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextDaily(now, tt.at), tt.at)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "none", Describe(nil))
	assert.Equal(t, "every 1h0m0s", Describe(&config.ScheduleConfig{Every: config.Duration(time.Hour)}))
	assert.Equal(t, "daily at 06:30 UTC", Describe(&config.ScheduleConfig{DailyAt: "06:30"}))
}
