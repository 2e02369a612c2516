package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/s-hosono/stamprally/internal/cli"
	"github.com/s-hosono/stamprally/internal/logger"
)

func main() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger.Init(level, "development")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
