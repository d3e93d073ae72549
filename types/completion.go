package types

// CompletionStatus is the final verdict status of a processed attempt.
type CompletionStatus string

const (
	// CompletionPassed indicates the attempt score met the pass mark.
	CompletionPassed CompletionStatus = "passed"
	// CompletionFailed indicates the attempt score fell below the pass mark.
	CompletionFailed CompletionStatus = "failed"
)

// CompletionPayload is the raw completion data supplied by the host when
// finalizing an attempt. All fields are optional; missing fields degrade
// to defaults during processing, never to an error.
type CompletionPayload struct {
	// Score is the raw score reported by the content, if any.
	Score *int `json:"score,omitempty"`

	// ElapsedSeconds is the session duration reported by the content.
	ElapsedSeconds *int64 `json:"elapsed_seconds,omitempty"`

	// SessionData carries arbitrary pass-through state captured by the
	// runtime bridge. Opaque to the processor.
	SessionData map[string]any `json:"session_data,omitempty"`
}

// CompletionVerdict is the derived, immutable result of processing a
// completion payload against a pass mark. The caller owns persistence.
type CompletionVerdict struct {
	Score          int              `json:"score"`
	Status         CompletionStatus `json:"status"`
	ElapsedSeconds int64            `json:"elapsed_seconds"`
}
