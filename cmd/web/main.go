package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"reportcli/internal/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	application, err := app.New(*configPath)
	if err != nil {
		slog.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		application.Logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
