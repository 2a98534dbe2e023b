// Package safego runs best-effort work off the request path, such as audit
// writes and API key bookkeeping.
package safego

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/civicdata/portal-api/internal/telemetry"
)

// Timeout bounds the context handed to every task.
const Timeout = 5 * time.Second

// Go runs fn in its own goroutine with a context detached from any request
// and cancelled after Timeout. A panic in fn is recovered, logged with the
// task name and stack, and counted in background_task_panics_total.
func Go(task string, fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), Timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				telemetry.BackgroundTaskPanicsTotal.WithLabelValues(task).Inc()
				slog.Error("background task panicked",
					"task", task,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn(ctx)
	}()
}
