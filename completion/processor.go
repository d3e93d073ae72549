// Package completion derives pass/fail verdicts from raw attempt
// completion payloads.
//
// Process is deliberately total: it has no I/O and no failure path.
// It sits on the certification-issuance path, where an error would
// block certificate generation, so malformed or missing fields degrade
// to defaults instead.
package completion

import (
	"encoding/json"

	"github.com/lmsfoundry/scormhost/types"
)

// DefaultScore is the score assumed when the payload carries none.
// Zero, so an attempt that never reported a score fails any positive
// pass mark rather than passing vacuously.
const DefaultScore = 0

// Process derives the verdict for payload against passMark (percent).
// Status is passed iff score >= passMark. Elapsed time passes through,
// defaulting to zero.
func Process(payload types.CompletionPayload, passMark int) types.CompletionVerdict {
	score := DefaultScore
	if payload.Score != nil {
		score = *payload.Score
	}

	var elapsed int64
	if payload.ElapsedSeconds != nil && *payload.ElapsedSeconds > 0 {
		elapsed = *payload.ElapsedSeconds
	}

	status := types.CompletionFailed
	if score >= passMark {
		status = types.CompletionPassed
	}

	return types.CompletionVerdict{
		Score:          score,
		Status:         status,
		ElapsedSeconds: elapsed,
	}
}

// ParseRaw decodes a raw completion payload. Malformed JSON degrades to
// the empty payload; the processor's no-failure contract starts here.
func ParseRaw(raw []byte) types.CompletionPayload {
	var payload types.CompletionPayload
	if len(raw) == 0 {
		return payload
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return types.CompletionPayload{}
	}
	return payload
}
