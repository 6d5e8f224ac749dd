package runtime

import (
	"github.com/hyperterse/tablescope/core/runtime/server"
)

// Runtime is the serving process: HTTP transport, reaper and config watcher.
type Runtime = server.Runtime

var (
	NewRuntime      = server.NewRuntime
	WithConfigWatch = server.WithConfigWatch
)
