package domain

import "time"

// Login attempt outcomes recorded on the audit trail.
const (
	AuthOutcomeSuccess     = "success"
	AuthOutcomeBadPassword = "bad_password"
	AuthOutcomeLocked      = "locked"
)

// AuthEvent is one audited authentication attempt.
type AuthEvent struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Username string    `json:"username"`
	Outcome  string    `json:"outcome"`
}

func (e AuthEvent) RecordID() string { return e.ID }
