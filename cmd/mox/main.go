// Package main is the entry point for the mox environment matrix runner.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/mox/cmd/mox/commands"
	"go.trai.ch/mox/internal/app"
	"go.trai.ch/mox/internal/core/domain"
	_ "go.trai.ch/mox/internal/wiring"
)

func main() {
	os.Exit(run())
}

func run(opts ...func(*app.App)) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// Logger is not available yet if initialization failed.
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	components.App.Apply(opts...)

	cli := commands.New(components)

	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, domain.ErrRunFailed) {
			// The summary already named the failing environments.
			return 1
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
