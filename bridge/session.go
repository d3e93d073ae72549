package bridge

import (
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Snapshot is the session state carried on a completion notification.
type Snapshot struct {
	// Status is the lesson-status token that triggered the notification.
	Status string `json:"status"`
	// Score is the raw score, nil if the content never reported one.
	Score *int `json:"score,omitempty"`
	// ElapsedSeconds is the session time at the moment of notification.
	ElapsedSeconds int64 `json:"elapsed_seconds"`
	// Location is the bookmark location, if any.
	Location string `json:"location,omitempty"`
	// Extra carries unrecognized keys the content stored, passed through
	// untouched for the host to persist alongside the attempt.
	Extra map[string]string `json:"extra,omitempty"`
}

// NotifyFunc receives the one-way completion notification emitted when
// the content sets a terminal lesson status.
type NotifyFunc func(Snapshot)

// Session is one learner attempt's runtime state. Created fresh per
// player document load; safe for concurrent use, though content calls
// are serial in practice.
type Session struct {
	mu sync.Mutex

	state     State
	clock     clock.Clock
	startedAt time.Time

	learnerID   string
	learnerName string

	lessonStatus string
	score        *int
	location     string
	finished     int64 // elapsed seconds, fixed at Finish
	extra        map[string]string

	lastError string
	notify    NotifyFunc
}

// Option configures a Session.
type Option func(*Session)

// WithClock injects the session clock, used by tests to make elapsed
// time deterministic.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithNotify registers the completion notification receiver.
func WithNotify(fn NotifyFunc) Option {
	return func(s *Session) { s.notify = fn }
}

// NewSession creates a session for the given learner identity, in the
// NotInitialized state.
func NewSession(learnerID, learnerName string, opts ...Option) *Session {
	s := &Session{
		state:        StateNotInitialized,
		clock:        clock.New(),
		learnerID:    learnerID,
		learnerName:  learnerName,
		lessonStatus: StatusNotAttempted,
		extra:        make(map[string]string),
		lastError:    CodeNoError,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize begins the session. Valid only in NotInitialized; a second
// call fails with CodeGeneralException per the strict linear protocol.
func (s *Session) Initialize(string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateNotInitialized {
		return s.fail(CodeGeneralException)
	}
	s.state = StateActive
	s.startedAt = s.clock.Now()
	s.lessonStatus = StatusIncomplete
	return s.ok()
}

// GetValue returns the session field for key, or the empty string for
// unrecognized keys. Outside Active it returns empty and sets
// CodeNotInitialized so content can distinguish the miss.
func (s *Session) GetValue(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		s.lastError = s.stateCode()
		return ""
	}

	s.lastError = CodeNoError
	switch key {
	case KeyLessonStatus:
		return s.lessonStatus
	case KeyScoreRaw:
		if s.score == nil {
			return ""
		}
		return strconv.Itoa(*s.score)
	case KeyLessonLocation:
		return s.location
	case KeySessionTime:
		return formatSessionTime(s.elapsedLocked())
	case KeyStudentID:
		return s.learnerID
	case KeyStudentName:
		return s.learnerName
	default:
		if v, ok := s.extra[key]; ok {
			return v
		}
		return ""
	}
}

// SetValue updates the session field for key. Unrecognized keys are
// stored verbatim and travel on the completion snapshot as pass-through
// data. Setting a terminal lesson status additionally emits the
// completion notification.
func (s *Session) SetValue(key, value string) string {
	s.mu.Lock()

	if s.state != StateActive {
		s.lastError = s.stateCode()
		s.mu.Unlock()
		return ResultFalse
	}

	var snapshot *Snapshot
	switch key {
	case KeyLessonStatus:
		s.lessonStatus = value
		if IsTerminalStatus(value) && s.notify != nil {
			snap := s.snapshotLocked()
			snapshot = &snap
		}
	case KeyScoreRaw:
		n, err := strconv.Atoi(value)
		if err != nil {
			s.lastError = CodeInvalidArgument
			s.mu.Unlock()
			return ResultFalse
		}
		s.score = &n
	case KeyLessonLocation:
		s.location = value
	case KeySessionTime, KeyStudentID, KeyStudentName:
		// Read-only fields; the legacy convention tolerates the write
		// but does not apply it.
	default:
		s.extra[key] = value
	}

	s.lastError = CodeNoError
	notify := s.notify
	s.mu.Unlock()

	// Notification runs outside the lock: the host callback may call
	// back into the session.
	if snapshot != nil {
		notify(*snapshot)
	}
	return ResultTrue
}

// Commit signals durable-intent for the current state. Persistence is
// the host's concern; the session only validates protocol state.
func (s *Session) Commit(string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return s.fail(s.stateCode())
	}
	return s.ok()
}

// Finish fixes the elapsed session time and terminates the session.
func (s *Session) Finish(string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return s.fail(s.stateCode())
	}
	s.finished = s.elapsedLocked()
	s.state = StateTerminated
	return s.ok()
}

// GetLastError returns the error code of the most recent operation,
// CodeNoError on the success path.
func (s *Session) GetLastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// GetErrorString returns the diagnostic text for a protocol error code.
func (s *Session) GetErrorString(code string) string {
	if text, ok := errorStrings[code]; ok {
		return text
	}
	return ""
}

// GetDiagnostic returns vendor diagnostic text. The success-path
// sentinel is the empty string; with a code it mirrors GetErrorString.
func (s *Session) GetDiagnostic(code string) string {
	if code == "" {
		return ""
	}
	return s.GetErrorString(code)
}

// ElapsedSeconds returns the session duration: live while Active, fixed
// after Finish, zero before Initialize.
func (s *Session) ElapsedSeconds() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

// Call dispatches an operation by its content-facing name, enabling
// table-driven protocol handling. Unknown operations return ResultFalse
// with CodeGeneralException.
func (s *Session) Call(op string, args ...string) string {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch op {
	case OpInitialize:
		return s.Initialize(arg(0))
	case OpGetValue:
		return s.GetValue(arg(0))
	case OpSetValue:
		return s.SetValue(arg(0), arg(1))
	case OpCommit:
		return s.Commit(arg(0))
	case OpFinish:
		return s.Finish(arg(0))
	case OpGetLastError:
		return s.GetLastError()
	case OpGetErrorString:
		return s.GetErrorString(arg(0))
	case OpGetDiagnostic:
		return s.GetDiagnostic(arg(0))
	default:
		s.setError(CodeGeneralException)
		return ResultFalse
	}
}

// snapshotLocked builds the completion snapshot. Caller holds the lock.
func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:         s.lessonStatus,
		ElapsedSeconds: s.elapsedLocked(),
		Location:       s.location,
	}
	if s.score != nil {
		v := *s.score
		snap.Score = &v
	}
	if len(s.extra) > 0 {
		snap.Extra = make(map[string]string, len(s.extra))
		for k, v := range s.extra {
			snap.Extra[k] = v
		}
	}
	return snap
}

func (s *Session) elapsedLocked() int64 {
	switch s.state {
	case StateActive:
		return int64(s.clock.Since(s.startedAt) / time.Second)
	case StateTerminated:
		return s.finished
	default:
		return 0
	}
}

// stateCode picks the violation code for a data operation attempted in
// the current (non-Active) state.
func (s *Session) stateCode() string {
	if s.state == StateNotInitialized {
		return CodeNotInitialized
	}
	return CodeGeneralException
}

func (s *Session) ok() string {
	s.lastError = CodeNoError
	return ResultTrue
}

func (s *Session) fail(code string) string {
	s.lastError = code
	return ResultFalse
}

func (s *Session) setError(code string) {
	s.mu.Lock()
	s.lastError = code
	s.mu.Unlock()
}

// formatSessionTime renders elapsed seconds in the HH:MM:SS convention
// the legacy data model uses for session time.
func formatSessionTime(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	return pad2(h) + ":" + pad2(m) + ":" + pad2(sec)
}

func pad2(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
