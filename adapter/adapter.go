// Package adapter defines the completion-event publication boundary.
//
// Adapters publish attempt-completion events to downstream systems:
// the hook the surrounding application uses to persist completion
// records and trigger certificate issuance. The service owns adapter
// lifecycle; users provide configuration only.
package adapter

import "context"

// EventTypeAttemptCompleted is the fixed event type value.
const EventTypeAttemptCompleted = "attempt_completed"

// AttemptCompletedEvent is the payload published when a completion
// payload has been processed into a verdict.
type AttemptCompletedEvent struct {
	EventType      string         `json:"event_type"` // always "attempt_completed"
	PackageRef     string         `json:"package_ref,omitempty"`
	LearnerID      string         `json:"learner_id,omitempty"`
	AttemptID      string         `json:"attempt_id,omitempty"`
	Status         string         `json:"status"` // passed, failed
	Score          int            `json:"score"`
	PassMark       int            `json:"pass_mark"`
	ElapsedSeconds int64          `json:"elapsed_seconds"`
	SessionData    map[string]any `json:"session_data,omitempty"`
	Timestamp      string         `json:"timestamp"` // ISO 8601
	Version        string         `json:"version"`
}

// Adapter publishes attempt completion events to a downstream system.
type Adapter interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *AttemptCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
