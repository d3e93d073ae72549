// Package metrics provides process-level counters for the ingestion
// pipeline and the serving surfaces.
//
// The Collector accumulates counters for the process lifetime. It is a
// leaf package with no internal dependencies; the stats endpoint and the
// inspect command read it through Snapshot.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Ingestion pipeline
	Fetches            int64 `json:"fetches"`
	FetchFailures      int64 `json:"fetch_failures"`
	Extractions        int64 `json:"extractions"`
	ExtractionFailures int64 `json:"extraction_failures"`

	// Operational alerts, counted separately from ordinary
	// malformed-package failures.
	TraversalRejections int64 `json:"traversal_rejections"`
	Timeouts            int64 `json:"timeouts"`

	// Extraction cache
	CacheHits      int64 `json:"cache_hits"`
	CacheMisses    int64 `json:"cache_misses"`
	CacheEvictions int64 `json:"cache_evictions"`

	// Serving
	DocumentsServed  int64 `json:"documents_served"`
	FallbacksServed  int64 `json:"fallbacks_served"`
	CompletionsTotal int64 `json:"completions_processed"`

	// Completion event publication
	EventsPublished      int64 `json:"events_published"`
	EventPublishFailures int64 `json:"event_publish_failures"`
}

// Collector accumulates counters for the process lifetime.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver
// safe so wiring a collector stays optional for library callers.
type Collector struct {
	mu sync.Mutex

	fetches            int64
	fetchFailures      int64
	extractions        int64
	extractionFailures int64

	traversalRejections int64
	timeouts            int64

	cacheHits      int64
	cacheMisses    int64
	cacheEvictions int64

	documentsServed  int64
	fallbacksServed  int64
	completionsTotal int64

	eventsPublished      int64
	eventPublishFailures int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) inc(field *int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// IncFetch counts a fetch attempt.
func (c *Collector) IncFetch() {
	if c == nil {
		return
	}
	c.inc(&c.fetches)
}

// IncFetchFailure counts a classified fetch failure.
func (c *Collector) IncFetchFailure() {
	if c == nil {
		return
	}
	c.inc(&c.fetchFailures)
}

// IncExtraction counts a completed extraction.
func (c *Collector) IncExtraction() {
	if c == nil {
		return
	}
	c.inc(&c.extractions)
}

// IncExtractionFailure counts a failed extraction.
func (c *Collector) IncExtractionFailure() {
	if c == nil {
		return
	}
	c.inc(&c.extractionFailures)
}

// IncTraversalRejection counts a rejected path-traversal entry.
func (c *Collector) IncTraversalRejection() {
	if c == nil {
		return
	}
	c.inc(&c.traversalRejections)
}

// IncTimeout counts a pipeline timeout.
func (c *Collector) IncTimeout() {
	if c == nil {
		return
	}
	c.inc(&c.timeouts)
}

// IncCacheHit counts an extraction cache hit.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.inc(&c.cacheHits)
}

// IncCacheMiss counts an extraction cache miss.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.inc(&c.cacheMisses)
}

// IncCacheEviction counts a cache entry eviction.
func (c *Collector) IncCacheEviction() {
	if c == nil {
		return
	}
	c.inc(&c.cacheEvictions)
}

// IncDocumentServed counts a served runtime document.
func (c *Collector) IncDocumentServed() {
	if c == nil {
		return
	}
	c.inc(&c.documentsServed)
}

// IncFallbackServed counts a served fallback failure document.
func (c *Collector) IncFallbackServed() {
	if c == nil {
		return
	}
	c.inc(&c.fallbacksServed)
}

// IncCompletion counts a processed completion payload.
func (c *Collector) IncCompletion() {
	if c == nil {
		return
	}
	c.inc(&c.completionsTotal)
}

// IncEventPublished counts a published completion event.
func (c *Collector) IncEventPublished() {
	if c == nil {
		return
	}
	c.inc(&c.eventsPublished)
}

// IncEventPublishFailure counts a failed completion event publish.
func (c *Collector) IncEventPublishFailure() {
	if c == nil {
		return
	}
	c.inc(&c.eventPublishFailures)
}

// Snapshot returns an immutable view of the current counters.
// Nil-receiver safe: returns the zero snapshot.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Fetches:              c.fetches,
		FetchFailures:        c.fetchFailures,
		Extractions:          c.extractions,
		ExtractionFailures:   c.extractionFailures,
		TraversalRejections:  c.traversalRejections,
		Timeouts:             c.timeouts,
		CacheHits:            c.cacheHits,
		CacheMisses:          c.cacheMisses,
		CacheEvictions:       c.cacheEvictions,
		DocumentsServed:      c.documentsServed,
		FallbacksServed:      c.fallbacksServed,
		CompletionsTotal:     c.completionsTotal,
		EventsPublished:      c.eventsPublished,
		EventPublishFailures: c.eventPublishFailures,
	}
}
