// Command reporter runs one configured job from the command line:
// load, clean, classify, compute and export in a single pass, then
// exit. Exit code 1 signals a failed run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"reportcli/internal/config"
	"reportcli/internal/infrastructure"
	"reportcli/internal/pipeline"
	"reportcli/internal/services"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	jobName := flag.String("job", "", "name of the job to run")
	outPath := flag.String("out", "", "override the job's report output path")
	listJobs := flag.Bool("list", false, "list configured jobs and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *listJobs {
		for _, job := range cfg.Jobs {
			fmt.Println(job.Name)
		}
		return
	}

	if *jobName == "" {
		fmt.Fprintln(os.Stderr, "usage: reporter -job <name> [-config <file>] [-out <path>]")
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("failed to create directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *outPath != "" {
		if !overrideReport(cfg, *jobName, *outPath) {
			logger.Error("unknown job", slog.String("job", *jobName))
			os.Exit(1)
		}
	}

	orchestrator := pipeline.New(pipeline.Config{Logger: logger})
	service := services.NewRunService(cfg, orchestrator, logger)

	run, err := service.RunJob(context.Background(), *jobName)
	if err != nil {
		logger.Error("run failed",
			slog.String("job", *jobName),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	snap := run.Snapshot()
	logger.Info("run completed",
		slog.String("job", snap.Job),
		slog.String("run_id", snap.ID),
		slog.Int("rows_in", snap.RowsIn),
		slog.Int("rows_out", snap.RowsOut),
		slog.Duration("duration", run.Duration()))
	if snap.ReportPath != "" {
		fmt.Println(snap.ReportPath)
	}
}

// overrideReport replaces the report output path of the named job.
func overrideReport(cfg *config.Config, name, path string) bool {
	for i := range cfg.Jobs {
		if cfg.Jobs[i].Name == name {
			cfg.Jobs[i].Output.Report = path
			return true
		}
	}
	return false
}
