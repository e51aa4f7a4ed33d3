package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ParentPollInterval is how often WatchParent checks the parent PID.
var ParentPollInterval = 2 * time.Second

// WatchParent cancels the server when the launching process goes away, so
// an orphaned stdio server does not linger. It never reads stdin: the SDK's
// StdioTransport owns it.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, logger *slog.Logger, cancel context.CancelFunc) {
	watchPID(ctx, logger, cancel, os.Getppid)
}

func watchPID(ctx context.Context, logger *slog.Logger, cancel context.CancelFunc, ppid func() int) {
	if logger == nil {
		logger = slog.Default()
	}
	start := ppid()
	interval := ParentPollInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ppid() != start {
					logger.Warn("parent process exited, shutting down", "parent_pid", start)
					cancel()
					return
				}
			}
		}
	}()
}
