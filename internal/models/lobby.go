// internal/models/lobby.go
package models

// Phase is the informational lifecycle label carried by a lobby.
// Nothing in the lobby coordinator advances it yet.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseInProgress Phase = "in_progress"
	PhaseEnded      Phase = "ended"
)
