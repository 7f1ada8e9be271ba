package port

import "github.com/berfenger/wattpilot2ess/internal/core/domain"

// StatusSink receives what the control loop is doing. Implementations must not block.
type StatusSink interface {
	ConnectionChanged(state domain.ConnectionState)
	TickCompleted(report domain.TickReport)
}
