package service

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/lmsfoundry/scormhost/adapter"
	"github.com/lmsfoundry/scormhost/bridge"
	"github.com/lmsfoundry/scormhost/content"
	"github.com/lmsfoundry/scormhost/fetch"
	"github.com/lmsfoundry/scormhost/log"
	"github.com/lmsfoundry/scormhost/metrics"
	"github.com/lmsfoundry/scormhost/player"
	"github.com/lmsfoundry/scormhost/types"
)

const fixtureManifest = `<?xml version="1.0"?>
<manifest>
  <metadata><schemaversion>1.2</schemaversion></metadata>
  <organizations default="ORG">
    <organization identifier="ORG">
      <title>Fire Safety Basics</title>
      <item identifier="ITEM" identifierref="RES"><title>Lesson</title></item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="RES" href="lesson.html"/>
  </resources>
</manifest>`

// buildZip writes a zip archive with the given entries and returns a
// file:// reference to it.
func buildZip(t *testing.T, entries map[string]string) types.PackageRef {
	t.Helper()
	path := filepath.Join(t.TempDir(), "course.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return types.PackageRef("file://" + path)
}

type captureAdapter struct {
	mu     sync.Mutex
	events []*adapter.AttemptCompletedEvent
	err    error
}

func (c *captureAdapter) Publish(_ context.Context, event *adapter.AttemptCompletedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *captureAdapter) Close() error { return nil }

func (c *captureAdapter) captured() []*adapter.AttemptCompletedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*adapter.AttemptCompletedEvent(nil), c.events...)
}

func newService(t *testing.T, cfg Config, adapters ...adapter.Adapter) (*Service, *metrics.Collector) {
	t.Helper()
	logger := log.NewLogger("service-test").WithOutput(io.Discard)
	collector := metrics.NewCollector()

	fetcher := fetch.New(fetch.Config{}, logger)
	cache, err := content.NewCache(content.CacheConfig{
		ScratchDir: t.TempDir(),
	}, fetcher, logger, collector)
	if err != nil {
		t.Fatal(err)
	}

	svc := New(cfg, cache, player.NewSynthesizer(logger), adapters, collector, logger)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, collector
}

func TestGetRuntimeDocument_ValidPackage(t *testing.T) {
	ref := buildZip(t, map[string]string{
		"imsmanifest.xml": fixtureManifest,
		"lesson.html":     `<div id="lesson">Extinguisher types</div>`,
	})
	svc, collector := newService(t, Config{})

	doc := string(svc.GetRuntimeDocument(context.Background(), DocumentRequest{
		Ref:         ref,
		LearnerID:   "learner-9",
		LearnerName: "Ada Lovelace",
		AttemptID:   "attempt-42",
	}))

	if !strings.Contains(doc, `<div id="lesson">Extinguisher types</div>`) {
		t.Error("entry-point content missing from document")
	}
	if !strings.Contains(doc, "<title>Fire Safety Basics</title>") {
		t.Error("manifest title missing from document")
	}
	if !strings.Contains(doc, `"attempt_id":"attempt-42"`) {
		t.Error("attempt identity missing from shim configuration")
	}

	snap := collector.Snapshot()
	if snap.DocumentsServed != 1 {
		t.Errorf("expected 1 document served, got %d", snap.DocumentsServed)
	}
	if snap.FallbacksServed != 0 {
		t.Errorf("expected 0 fallbacks served, got %d", snap.FallbacksServed)
	}
}

func TestGetRuntimeDocument_FallbackOnBrokenRef(t *testing.T) {
	svc, collector := newService(t, Config{})

	doc := string(svc.GetRuntimeDocument(context.Background(), DocumentRequest{
		Ref: types.PackageRef("file:///nonexistent/course.zip"),
	}))

	if !strings.Contains(doc, types.FailureTitle) {
		t.Error("expected the fallback failure document")
	}

	snap := collector.Snapshot()
	if snap.DocumentsServed != 1 {
		t.Errorf("expected 1 document served, got %d", snap.DocumentsServed)
	}
	if snap.FallbacksServed != 1 {
		t.Errorf("expected 1 fallback served, got %d", snap.FallbacksServed)
	}
}

func TestGetRuntimeDocument_SecondRequestHitsCache(t *testing.T) {
	ref := buildZip(t, map[string]string{"index.html": "<p>hello</p>"})
	svc, collector := newService(t, Config{})

	svc.GetRuntimeDocument(context.Background(), DocumentRequest{Ref: ref})
	svc.GetRuntimeDocument(context.Background(), DocumentRequest{Ref: ref})

	snap := collector.Snapshot()
	if snap.Fetches != 1 {
		t.Errorf("expected 1 fetch, got %d", snap.Fetches)
	}
	if snap.CacheHits != 1 {
		t.Errorf("expected 1 cache hit, got %d", snap.CacheHits)
	}
	if svc.CacheLen() != 1 {
		t.Errorf("expected 1 cache entry, got %d", svc.CacheLen())
	}
}

func TestProcessCompletion_PassedAndPublished(t *testing.T) {
	capture := &captureAdapter{}
	svc, collector := newService(t, Config{}, capture)

	verdict := svc.ProcessCompletion(context.Background(), CompletionRequest{
		Ref:       "https://content.example.com/course.zip",
		LearnerID: "learner-9",
		AttemptID: "attempt-42",
		Payload:   []byte(`{"score":85,"elapsed_seconds":930,"session_data":{"cmi.core.lesson_location":"page-4"}}`),
	})

	if verdict.Status != types.CompletionPassed {
		t.Errorf("expected passed, got %s", verdict.Status)
	}
	if verdict.Score != 85 {
		t.Errorf("expected score 85, got %d", verdict.Score)
	}
	if verdict.ElapsedSeconds != 930 {
		t.Errorf("expected 930 elapsed seconds, got %d", verdict.ElapsedSeconds)
	}

	// Close waits for the async publish.
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := capture.captured()
	if len(events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events))
	}
	event := events[0]
	if event.EventType != adapter.EventTypeAttemptCompleted {
		t.Errorf("expected attempt_completed, got %s", event.EventType)
	}
	if event.Status != "passed" || event.Score != 85 {
		t.Errorf("unexpected event verdict: %s/%d", event.Status, event.Score)
	}
	if event.PassMark != DefaultPassMark {
		t.Errorf("expected default pass mark %d, got %d", DefaultPassMark, event.PassMark)
	}
	if event.SessionData["cmi.core.lesson_location"] != "page-4" {
		t.Error("session data missing from event")
	}

	snap := collector.Snapshot()
	if snap.CompletionsTotal != 1 {
		t.Errorf("expected 1 completion, got %d", snap.CompletionsTotal)
	}
	if snap.EventsPublished != 1 {
		t.Errorf("expected 1 event published, got %d", snap.EventsPublished)
	}
}

func TestProcessCompletion_PassMarkOverride(t *testing.T) {
	svc, _ := newService(t, Config{})

	passMark := 90
	verdict := svc.ProcessCompletion(context.Background(), CompletionRequest{
		Payload:  []byte(`{"score":85}`),
		PassMark: &passMark,
	})

	if verdict.Status != types.CompletionFailed {
		t.Errorf("expected failed under pass mark 90, got %s", verdict.Status)
	}
}

func TestProcessCompletion_ZeroPassMarkOverride(t *testing.T) {
	svc, _ := newService(t, Config{})

	passMark := 0
	verdict := svc.ProcessCompletion(context.Background(), CompletionRequest{
		Payload:  []byte(`{}`),
		PassMark: &passMark,
	})

	if verdict.Status != types.CompletionPassed {
		t.Errorf("expected passed under pass mark 0, got %s", verdict.Status)
	}
}

func TestProcessCompletion_MalformedPayloadDefaults(t *testing.T) {
	svc, _ := newService(t, Config{})

	verdict := svc.ProcessCompletion(context.Background(), CompletionRequest{
		Payload: []byte(`{not json`),
	})

	if verdict.Status != types.CompletionFailed {
		t.Errorf("expected failed for defaulted score, got %s", verdict.Status)
	}
	if verdict.Score != 0 {
		t.Errorf("expected default score 0, got %d", verdict.Score)
	}
}

func TestProcessCompletion_AdapterFailureDoesNotAffectVerdict(t *testing.T) {
	broken := &captureAdapter{err: errors.New("downstream unavailable")}
	svc, collector := newService(t, Config{}, broken)

	verdict := svc.ProcessCompletion(context.Background(), CompletionRequest{
		Payload: []byte(`{"score":100}`),
	})

	if verdict.Status != types.CompletionPassed {
		t.Errorf("expected passed, got %s", verdict.Status)
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	snap := collector.Snapshot()
	if snap.EventPublishFailures != 1 {
		t.Errorf("expected 1 publish failure, got %d", snap.EventPublishFailures)
	}
	if snap.EventsPublished != 0 {
		t.Errorf("expected 0 events published, got %d", snap.EventsPublished)
	}
}

func TestProcessCompletion_NoAdaptersConfigured(t *testing.T) {
	svc, collector := newService(t, Config{})

	svc.ProcessCompletion(context.Background(), CompletionRequest{
		Payload: []byte(`{"score":50}`),
	})
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	snap := collector.Snapshot()
	if snap.EventsPublished != 0 || snap.EventPublishFailures != 0 {
		t.Error("expected no publish activity without adapters")
	}
}

// TestCompletionFromRuntimeSession drives a runtime session the way the
// embedded shim does and feeds its completion snapshot through the
// processor, covering the content-to-verdict path end to end.
func TestCompletionFromRuntimeSession(t *testing.T) {
	capture := &captureAdapter{}
	svc, _ := newService(t, Config{}, capture)

	mock := clock.NewMock()
	var snap bridge.Snapshot
	session := bridge.NewSession("learner-9", "Ada Lovelace",
		bridge.WithClock(mock),
		bridge.WithNotify(func(s bridge.Snapshot) { snap = s }),
	)

	session.Initialize("")
	session.SetValue(bridge.KeyScoreRaw, "85")
	session.SetValue(bridge.KeyLessonLocation, "page-4")
	mock.Add(15*time.Minute + 30*time.Second)
	session.SetValue(bridge.KeyLessonStatus, bridge.StatusPassed)
	session.Finish("")

	if snap.Status != bridge.StatusPassed {
		t.Fatalf("expected a passed snapshot, got %q", snap.Status)
	}

	payload, err := json.Marshal(map[string]any{
		"score":           snap.Score,
		"elapsed_seconds": snap.ElapsedSeconds,
		"session_data": map[string]string{
			"cmi.core.lesson_location": snap.Location,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	verdict := svc.ProcessCompletion(context.Background(), CompletionRequest{
		Ref:       "https://content.example.com/course.zip",
		LearnerID: "learner-9",
		AttemptID: "attempt-42",
		Payload:   payload,
	})

	if verdict.Status != types.CompletionPassed {
		t.Errorf("expected passed, got %s", verdict.Status)
	}
	if verdict.Score != 85 {
		t.Errorf("expected score 85, got %d", verdict.Score)
	}
	if verdict.ElapsedSeconds != 930 {
		t.Errorf("expected 930 elapsed seconds, got %d", verdict.ElapsedSeconds)
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	events := capture.captured()
	if len(events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(events))
	}
	if events[0].SessionData["cmi.core.lesson_location"] != "page-4" {
		t.Error("session data missing from event")
	}
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	ref := buildZip(t, map[string]string{"index.html": "<p>v1</p>"})
	svc, collector := newService(t, Config{})

	svc.GetRuntimeDocument(context.Background(), DocumentRequest{Ref: ref})
	svc.Invalidate(ref)
	svc.GetRuntimeDocument(context.Background(), DocumentRequest{Ref: ref})

	if got := collector.Snapshot().Fetches; got != 2 {
		t.Errorf("expected 2 fetches after invalidation, got %d", got)
	}
}
