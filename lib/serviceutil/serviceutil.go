package serviceutil

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

// ErrInterrupted is the cancellation cause of a SignalContext after Ctrl+C.
var ErrInterrupted = errors.New("interrupted")

// Returns a context that will live until Ctrl+C is pressed
func SignalContext() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel(ErrInterrupted)
	}()

	return ctx
}

// ExitCode is the process exit code for a command that returned err under ctx.
func ExitCode(ctx context.Context, err error) int {
	if errors.Is(context.Cause(ctx), ErrInterrupted) {
		return 130
	}
	if err != nil {
		return 1
	}
	return 0
}
