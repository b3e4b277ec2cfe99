package core

import "time"

// SessionEventKind tells the UI collaborator why the session changed
type SessionEventKind string

const (
	EventLoggedIn  SessionEventKind = "session.logged_in"
	EventLoggedOut SessionEventKind = "session.logged_out"
	EventExpired   SessionEventKind = "session.expired"
)

// SessionEvent is published on every session state transition
type SessionEvent struct {
	Kind   SessionEventKind `json:"kind"`
	At     time.Time        `json:"at"`
	Reason string           `json:"reason,omitempty"`
}
