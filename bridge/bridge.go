// Package bridge implements the content runtime API state machine: the
// SCORM 1.2 style calling convention exposed to embedded course content.
//
// The protocol is strictly linear: Initialize moves a session from
// NotInitialized to Active, Finish moves it to Terminated, and the data
// operations (GetValue, SetValue, Commit) are only valid while Active.
// Calls outside their valid states return the "false" result string and
// set a recognizable error code; content relies on that feedback to
// retry or abort gracefully, so violations are reported through the
// protocol's own error calls rather than ignored or thrown.
//
// The state machine is independent of how the player document embeds
// it: the injected browser shim mirrors this protocol and shares its
// key and error-code tables.
package bridge

// State is the session lifecycle state.
type State int

const (
	// StateNotInitialized is the initial state, before Initialize.
	StateNotInitialized State = iota
	// StateActive spans Initialize to Finish.
	StateActive
	// StateTerminated is terminal, after Finish.
	StateTerminated
)

// String returns the lifecycle state name.
func (s State) String() string {
	switch s {
	case StateNotInitialized:
		return "not-initialized"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Result strings of the calling convention. Every operation answers one
// of these; detail travels through GetLastError.
const (
	ResultTrue  = "true"
	ResultFalse = "false"
)

// Error codes of the calling convention. String-typed because the
// protocol passes codes as strings end to end.
const (
	// CodeNoError is the fixed success sentinel.
	CodeNoError = "0"
	// CodeGeneralException covers invalid state transitions such as a
	// second Initialize.
	CodeGeneralException = "101"
	// CodeInvalidArgument covers malformed values, e.g. a non-numeric
	// raw score.
	CodeInvalidArgument = "201"
	// CodeNotInitialized is returned for data operations outside the
	// Initialize/Finish window.
	CodeNotInitialized = "301"
)

// errorStrings maps protocol error codes to their diagnostic text.
var errorStrings = map[string]string{
	CodeNoError:          "No error",
	CodeGeneralException: "General exception",
	CodeInvalidArgument:  "Invalid argument error",
	CodeNotInitialized:   "Not initialized",
}

// Recognized session data keys, after the legacy data model.
const (
	KeyLessonStatus   = "cmi.core.lesson_status"
	KeyScoreRaw       = "cmi.core.score.raw"
	KeyLessonLocation = "cmi.core.lesson_location"
	KeySessionTime    = "cmi.core.session_time"
	KeyStudentID      = "cmi.core.student_id"
	KeyStudentName    = "cmi.core.student_name"
)

// Lesson status tokens. Setting one of the terminal tokens emits the
// completion notification to the host.
const (
	StatusNotAttempted = "not attempted"
	StatusIncomplete   = "incomplete"
	StatusCompleted    = "completed"
	StatusPassed       = "passed"
	StatusFailed       = "failed"
)

// terminalStatuses are the lesson-status tokens that mark the content
// as finished from the host's point of view.
var terminalStatuses = map[string]bool{
	StatusCompleted: true,
	StatusPassed:    true,
	StatusFailed:    true,
}

// IsTerminalStatus reports whether token marks a finished attempt.
func IsTerminalStatus(token string) bool {
	return terminalStatuses[token]
}

// Operation names as exposed to embedded content.
const (
	OpInitialize     = "LMSInitialize"
	OpGetValue       = "LMSGetValue"
	OpSetValue       = "LMSSetValue"
	OpCommit         = "LMSCommit"
	OpFinish         = "LMSFinish"
	OpGetLastError   = "LMSGetLastError"
	OpGetErrorString = "LMSGetErrorString"
	OpGetDiagnostic  = "LMSGetDiagnostic"
)
