package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/slash-mnt/krar/cmd/krar/app"
	"github.com/slash-mnt/krar/internal/config"
	"github.com/slash-mnt/krar/internal/logx"
	"github.com/slash-mnt/krar/internal/orchestrator"
)

// Main entry point of the program. Commands return errors rather than
// exiting directly; main maps the error's type to an exit code: 0
// success/no-op, 1 configuration error, 2 capability error.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := app.NewKrarCommand()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		os.Exit(0)
	}

	logx.LogError(err)

	var configErr *config.ConfigError
	var capabilityErr *orchestrator.CapabilityError
	switch {
	case errors.As(err, &configErr):
		os.Exit(1)
	case errors.As(err, &capabilityErr):
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
