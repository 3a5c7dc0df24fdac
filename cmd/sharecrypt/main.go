package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Davincible/sharecrypt/internal/cli"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	version := fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	if err := cli.Execute(version); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
