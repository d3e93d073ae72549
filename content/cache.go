// Package content runs the package ingestion pipeline and memoizes its
// results: fetch the archive, unpack it, recover metadata, resolve the
// launch file.
//
// The cache is the only shared mutable state in the subsystem. It is an
// explicit object with injected lifetime, constructed once per content
// service and passed to callers. Concurrent Resolve calls for the same
// reference coalesce onto one in-flight extraction; calls for distinct
// references proceed independently. Failed pipelines are memoized as
// fallback failure packages so a broken upload does not re-run the
// pipeline on every request.
package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/lmsfoundry/scormhost/archive"
	"github.com/lmsfoundry/scormhost/fetch"
	"github.com/lmsfoundry/scormhost/log"
	"github.com/lmsfoundry/scormhost/manifest"
	"github.com/lmsfoundry/scormhost/metrics"
	"github.com/lmsfoundry/scormhost/types"
)

// Cache sizing defaults. Entries hold on-disk extraction trees, so both
// bounds exist to keep the scratch volume from growing without limit.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 128
	// DefaultPipelineTimeout bounds one fetch-and-extract run.
	DefaultPipelineTimeout = 2 * time.Minute
)

// Fetcher retrieves a package archive into a scratch file. Satisfied by
// *fetch.Fetcher; tests substitute counting fakes.
type Fetcher interface {
	Fetch(ctx context.Context, ref types.PackageRef, dest string) (int64, error)
}

// CacheConfig configures the extraction cache.
type CacheConfig struct {
	// ScratchDir is the directory extraction trees live under (required).
	ScratchDir string
	// TTL is the entry lifetime (default 24h).
	TTL time.Duration
	// MaxEntries bounds the number of live extractions (default 128).
	MaxEntries int
	// PipelineTimeout bounds one fetch-and-extract run (default 2m).
	PipelineTimeout time.Duration
}

// Cache memoizes the ingestion pipeline per package reference.
type Cache struct {
	config    CacheConfig
	fetcher   Fetcher
	logger    *log.Logger
	collector *metrics.Collector

	entries *expirable.LRU[string, *types.ExtractedPackage]
	group   singleflight.Group
}

// NewCache creates the cache and its scratch directory.
func NewCache(cfg CacheConfig, fetcher Fetcher, logger *log.Logger, collector *metrics.Collector) (*Cache, error) {
	if cfg.ScratchDir == "" {
		return nil, errors.New("content cache requires a scratch directory")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = DefaultPipelineTimeout
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	c := &Cache{
		config:    cfg,
		fetcher:   fetcher,
		logger:    logger,
		collector: collector,
	}
	c.entries = expirable.NewLRU[string, *types.ExtractedPackage](cfg.MaxEntries, c.onEvict, cfg.TTL)
	return c, nil
}

// Resolve returns the extracted package for ref, running the pipeline
// on a cold reference and memoizing the outcome. It never returns an
// error: pipeline failures come back as a fallback failure package. At
// most one extraction is in flight per reference; concurrent callers
// for the same cold reference share the single result.
func (c *Cache) Resolve(ctx context.Context, ref types.PackageRef) *types.ExtractedPackage {
	key := string(ref)
	if pkg, ok := c.entries.Get(key); ok {
		c.collector.IncCacheHit()
		return pkg
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		// Losers of the singleflight race land here after the winner
		// populated the entry.
		if pkg, ok := c.entries.Get(key); ok {
			c.collector.IncCacheHit()
			return pkg, nil
		}
		c.collector.IncCacheMiss()

		// The extraction outlives any single request: a caller
		// abandoning its request must not cancel the shared pipeline.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.PipelineTimeout)
		defer cancel()

		pkg := c.runPipeline(runCtx, ref)
		c.entries.Add(key, pkg)
		return pkg, nil
	})
	return v.(*types.ExtractedPackage)
}

// Invalidate drops the entry for ref, forcing re-extraction on the next
// Resolve. The evicted scratch tree is removed.
func (c *Cache) Invalidate(ref types.PackageRef) {
	c.entries.Remove(string(ref))
}

// Len returns the number of live cache entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Close drops all entries and their scratch trees.
func (c *Cache) Close() error {
	c.entries.Purge()
	return nil
}

// onEvict removes the evicted entry's scratch tree. Root is the content
// directory inside the per-entry scratch dir; the whole dir goes.
func (c *Cache) onEvict(key string, pkg *types.ExtractedPackage) {
	c.collector.IncCacheEviction()
	if pkg.Root == "" {
		return
	}
	dir := filepath.Dir(pkg.Root)
	if err := os.RemoveAll(dir); err != nil {
		c.logger.Warn("scratch cleanup failed", map[string]any{
			"ref":   key,
			"dir":   dir,
			"error": err.Error(),
		})
		return
	}
	c.logger.Debug("cache entry evicted", map[string]any{
		"ref": key,
		"dir": dir,
	})
}

// runPipeline executes fetch → extract → resolve for ref. Failures are
// absorbed into a fallback failure package; steps are strictly
// sequential within one entry.
func (c *Cache) runPipeline(ctx context.Context, ref types.PackageRef) *types.ExtractedPackage {
	dir := filepath.Join(c.config.ScratchDir, uuid.New().String())
	contentDir := filepath.Join(dir, "content")
	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		return c.fallback(ref, contentDir, err)
	}

	archivePath := filepath.Join(dir, "package.zip")
	c.collector.IncFetch()
	if _, err := c.fetcher.Fetch(ctx, ref, archivePath); err != nil {
		c.collector.IncFetchFailure()
		if errors.Is(err, fetch.ErrTimeout) {
			c.collector.IncTimeout()
			c.logger.Error("fetch timeout", map[string]any{"ref": string(ref)})
		}
		return c.fallback(ref, contentDir, err)
	}

	result, err := archive.Extract(archivePath, contentDir)
	// The archive is spent either way; only the extracted tree is kept.
	_ = os.Remove(archivePath)
	if err != nil {
		c.collector.IncExtractionFailure()
		if errors.Is(err, archive.ErrPathTraversal) {
			c.collector.IncTraversalRejection()
			c.logger.Error("path traversal entry rejected", map[string]any{
				"ref":   string(ref),
				"error": err.Error(),
			})
		}
		return c.fallback(ref, contentDir, err)
	}
	c.collector.IncExtraction()

	meta := manifest.Parse(contentDir)
	entry, err := manifest.ResolveEntryPoint(contentDir, meta.LaunchHref)
	if err != nil {
		return c.fallback(ref, contentDir, err)
	}

	c.logger.Info("package extracted", map[string]any{
		"ref":         string(ref),
		"entries":     result.Entries,
		"bytes":       result.Bytes,
		"entry_point": entry,
		"title":       meta.Title,
	})

	return &types.ExtractedPackage{
		Ref:        ref,
		Root:       contentDir,
		Manifest:   meta,
		EntryPoint: entry,
	}
}
