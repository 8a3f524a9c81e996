package serviceutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(context.Background(), nil))
	require.Equal(t, 1, ExitCode(context.Background(), errors.New("broken")))

	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(ErrInterrupted)
	require.Equal(t, 130, ExitCode(ctx, context.Canceled))

	ctx, cancel = context.WithCancelCause(context.Background())
	cancel(nil)
	require.Equal(t, 1, ExitCode(ctx, context.Canceled))
}
