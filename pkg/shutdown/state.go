package shutdown

import "time"

// Phase identifies one stage of the shutdown sequence. Phases advance
// strictly forward; Failed is reachable from any of them.
type Phase string

const (
	PhaseInitiated                Phase = "initiated"
	PhaseStoppingNewRequests      Phase = "stopping_new_requests"
	PhaseWaitingForActiveRequests Phase = "waiting_for_active_requests"
	PhaseCleaningUpResources      Phase = "cleaning_up_resources"
	PhaseClosingConnections       Phase = "closing_connections"
	PhaseSavingState              Phase = "saving_state"
	PhaseCompleted                Phase = "completed"
	PhaseFailed                   Phase = "failed"
)

// progress returns the fixed milestone for a phase. The optional
// save-state phase shares the closing-connections milestone, so
// progress stays non-decreasing whether or not it runs.
func (p Phase) progress() int {
	switch p {
	case PhaseInitiated:
		return 10
	case PhaseStoppingNewRequests:
		return 30
	case PhaseWaitingForActiveRequests:
		return 50
	case PhaseCleaningUpResources:
		return 70
	case PhaseClosingConnections, PhaseSavingState:
		return 90
	case PhaseCompleted:
		return 100
	default:
		return 0
	}
}

// Status is a point-in-time view of the shutdown sequence, queryable
// mid-flight.
type Status struct {
	Phase    Phase
	Progress int
	Message  string

	// Reason is the descriptive string passed to InitiateShutdown
	Reason string

	StartTime time.Time

	// ActiveConnections and PendingOperations are resampled from the
	// streaming manager and admission controller at every phase
	// transition
	ActiveConnections int
	PendingOperations int
}
