package main

import (
	"log/slog"
	"os"

	"clubprogress/cmd/clubprogress/commands"
	"clubprogress/lib/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	err := commands.ExecuteContext(ctx)
	if err != nil {
		slog.Error("clubprogress failed", "err", err)
	}
	os.Exit(serviceutil.ExitCode(ctx, err))
}
