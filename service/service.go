// Package service exposes the subsystem's two external entry points:
// hosted runtime documents and completion verdicts.
//
// The surrounding application talks to this subsystem only through the
// Service facade. GetRuntimeDocument never fails toward the caller;
// ProcessCompletion always returns a verdict. Completion events are
// published to configured adapters asynchronously and best-effort: a
// slow or broken downstream never delays or blocks the verdict.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/lmsfoundry/scormhost/adapter"
	"github.com/lmsfoundry/scormhost/completion"
	"github.com/lmsfoundry/scormhost/content"
	"github.com/lmsfoundry/scormhost/log"
	"github.com/lmsfoundry/scormhost/metrics"
	"github.com/lmsfoundry/scormhost/player"
	"github.com/lmsfoundry/scormhost/types"
)

// DefaultPassMark is the pass-mark percentage applied when neither the
// configuration nor the completion request carries one.
const DefaultPassMark = 80

// DefaultPublishTimeout bounds one asynchronous event publication,
// including adapter-internal retries.
const DefaultPublishTimeout = 30 * time.Second

// Config configures the service facade.
type Config struct {
	// PassMark is the default pass-mark percentage (default 80).
	// Per-request pass marks override it.
	PassMark int
	// PublishTimeout bounds one completion-event publication (default 30s).
	PublishTimeout time.Duration
}

// Service is the application facade over the content cache, the
// document synthesizer, the completion processor, and the
// completion-event adapters.
type Service struct {
	config    Config
	cache     *content.Cache
	synth     *player.Synthesizer
	adapters  []adapter.Adapter
	logger    *log.Logger
	collector *metrics.Collector
	clock     clock.Clock

	publishes sync.WaitGroup
}

// Option customizes service construction.
type Option func(*Service)

// WithClock substitutes the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// New creates the service facade. Adapters may be empty; completion
// events are then processed without publication.
func New(cfg Config, cache *content.Cache, synth *player.Synthesizer, adapters []adapter.Adapter, collector *metrics.Collector, logger *log.Logger, opts ...Option) *Service {
	if cfg.PassMark <= 0 {
		cfg.PassMark = DefaultPassMark
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	s := &Service{
		config:    cfg,
		cache:     cache,
		synth:     synth,
		adapters:  adapters,
		logger:    logger,
		collector: collector,
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocumentRequest identifies the package and the learner attempt a
// runtime document is requested for.
type DocumentRequest struct {
	Ref         types.PackageRef
	LearnerID   string
	LearnerName string
	AttemptID   string
}

// GetRuntimeDocument resolves the package through the extraction cache
// and synthesizes the hosting document. It never fails toward the
// caller: pipeline failures come back as the fallback failure document.
func (s *Service) GetRuntimeDocument(ctx context.Context, req DocumentRequest) []byte {
	pkg := s.cache.Resolve(ctx, req.Ref)

	doc := s.synth.Render(pkg, player.Params{
		LearnerID:   req.LearnerID,
		LearnerName: req.LearnerName,
		AttemptID:   req.AttemptID,
	})

	s.collector.IncDocumentServed()
	if pkg.Fallback {
		s.collector.IncFallbackServed()
	}
	return doc
}

// CompletionRequest carries one raw completion payload and its attempt
// identity. PassMark overrides the configured default when non-nil;
// zero is a valid override.
type CompletionRequest struct {
	Ref       types.PackageRef
	LearnerID string
	AttemptID string
	Payload   []byte
	PassMark  *int
}

// ProcessCompletion derives the verdict for the payload and fires the
// completion event toward the configured adapters. The verdict is
// returned synchronously; publication happens in the background and
// never influences the result.
func (s *Service) ProcessCompletion(ctx context.Context, req CompletionRequest) types.CompletionVerdict {
	passMark := s.config.PassMark
	if req.PassMark != nil {
		passMark = *req.PassMark
	}

	payload := completion.ParseRaw(req.Payload)
	verdict := completion.Process(payload, passMark)
	s.collector.IncCompletion()

	s.logger.Info("completion processed", map[string]any{
		"ref":        string(req.Ref),
		"attempt_id": req.AttemptID,
		"status":     string(verdict.Status),
		"score":      verdict.Score,
		"pass_mark":  passMark,
	})

	if len(s.adapters) > 0 {
		event := s.buildEvent(req, payload, verdict, passMark)
		s.publishes.Add(1)
		// The event outlives the request: a caller disconnecting after
		// receiving the verdict must not cancel publication.
		publishCtx := context.WithoutCancel(ctx)
		go func() {
			defer s.publishes.Done()
			s.publish(publishCtx, event)
		}()
	}

	return verdict
}

// ResolvePackage resolves ref through the extraction cache without
// rendering a document. Used by the asset endpoint and the inspect
// command.
func (s *Service) ResolvePackage(ctx context.Context, ref types.PackageRef) *types.ExtractedPackage {
	return s.cache.Resolve(ctx, ref)
}

// Stats returns the current metrics snapshot.
func (s *Service) Stats() metrics.Snapshot {
	return s.collector.Snapshot()
}

// CacheLen returns the number of live extraction cache entries.
func (s *Service) CacheLen() int {
	return s.cache.Len()
}

// Invalidate drops the cached extraction for ref.
func (s *Service) Invalidate(ref types.PackageRef) {
	s.cache.Invalidate(ref)
}

// Close waits for in-flight event publications, then releases the
// adapters and the extraction cache.
func (s *Service) Close() error {
	s.publishes.Wait()
	for _, a := range s.adapters {
		if err := a.Close(); err != nil {
			s.logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
		}
	}
	return s.cache.Close()
}

func (s *Service) buildEvent(req CompletionRequest, payload types.CompletionPayload, verdict types.CompletionVerdict, passMark int) *adapter.AttemptCompletedEvent {
	return &adapter.AttemptCompletedEvent{
		EventType:      adapter.EventTypeAttemptCompleted,
		PackageRef:     string(req.Ref),
		LearnerID:      req.LearnerID,
		AttemptID:      req.AttemptID,
		Status:         string(verdict.Status),
		Score:          verdict.Score,
		PassMark:       passMark,
		ElapsedSeconds: verdict.ElapsedSeconds,
		SessionData:    payload.SessionData,
		Timestamp:      s.clock.Now().UTC().Format(time.RFC3339),
		Version:        types.Version,
	}
}

// publish fans the event out to every adapter. Each failure is logged
// and counted; one broken adapter does not stop the others.
func (s *Service) publish(ctx context.Context, event *adapter.AttemptCompletedEvent) {
	ctx, cancel := context.WithTimeout(ctx, s.config.PublishTimeout)
	defer cancel()

	for _, a := range s.adapters {
		if err := a.Publish(ctx, event); err != nil {
			s.collector.IncEventPublishFailure()
			s.logger.Error("completion event publish failed", map[string]any{
				"attempt_id": event.AttemptID,
				"error":      err.Error(),
			})
			continue
		}
		s.collector.IncEventPublished()
	}
}
