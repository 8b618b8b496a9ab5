// Package cache is the two-tier artifact and version-metadata cache the
// downloader stores through: a time-bounded in-memory tier in front of an
// unbounded, append-only disk tier backed by a transactional key/value store.
//
// Negative downloader results are never persisted here; the resolver memoizes
// those per invocation only.
package cache

import (
	"fmt"
	"sync"

	"github.com/pomgraph/pomgraph/internal/metrics"
)

const Realm = "maven.cache"

const (
	metricsNamespace = "pomgraph"
	metricsSubsystem = "maven_cache"

	layerMemory = "memory"
	layerDisk   = "disk"
)

// sizeGauge tracks the number of cached entries per tier. [layer].
var sizeGauge = metrics.MustRegisterGaugeVec(
	metricsNamespace,
	metricsSubsystem,
	"size",
	"Number of cached entries per cache tier.",
	"layer",
)

// hitCounter counts lookups answered by a tier. [layer].
var hitCounter = metrics.MustRegisterCounterVec(
	metricsNamespace,
	metricsSubsystem,
	"hits_total",
	"Number of cache lookups answered per tier.",
	"layer",
)

// missCounter counts lookups no tier could answer.
var missCounter = metrics.MustRegisterCounter(
	metricsNamespace,
	metricsSubsystem,
	"misses_total",
	"Number of cache lookups no tier could answer.",
)

// Artifact is the cache key: the coordinate tuple an artifact or its version
// metadata is stored under.
type Artifact struct {
	GroupID    string
	ArtifactID string
	Classifier string
	Extension  string
	Version    string
}

func (a Artifact) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", a.GroupID, a.ArtifactID, a.Classifier, a.Extension, a.Version)
}

// Tier is one storage layer of the cache.
type Tier interface {
	Lookup(artifact Artifact) ([]byte, bool, error)
	Store(artifact Artifact, data []byte) error
	LookupVersions(artifact Artifact) ([]string, bool, error)
	StoreVersions(artifact Artifact, versions []string) error

	// Len reports the number of entries currently held, for the size gauge.
	Len() int
	Close() error
}

// Cache is the facade over the memory and disk tiers. It is safe for
// concurrent use; it is the only state shared between concurrently running
// resolvers.
type Cache struct {
	memory Tier
	disk   Tier // nil for purely in-memory caches
}

// InMemory creates a cache with only the time-bounded memory tier.
func InMemory() *Cache {
	return &Cache{memory: newMemoryTier(defaultMemoryTTL)}
}

// tiers returns the configured tiers in lookup order.
func (c *Cache) tiers() []tierWithLayer {
	t := []tierWithLayer{{c.memory, layerMemory}}
	if c.disk != nil {
		t = append(t, tierWithLayer{c.disk, layerDisk})
	}
	return t
}

type tierWithLayer struct {
	Tier
	layer string
}

// Lookup returns the cached bytes for an artifact, consulting the memory
// tier first. A disk hit is promoted into the memory tier.
func (c *Cache) Lookup(artifact Artifact) ([]byte, bool) {
	for i, tier := range c.tiers() {
		data, ok, err := tier.Lookup(artifact)
		if err != nil || !ok {
			continue
		}
		hitCounter.WithLabelValues(tier.layer).Inc()
		if i > 0 {
			_ = c.memory.Store(artifact, data)
		}
		return data, true
	}
	missCounter.Inc()
	return nil, false
}

// Store writes the artifact bytes through every tier.
func (c *Cache) Store(artifact Artifact, data []byte) error {
	for _, tier := range c.tiers() {
		if err := tier.Store(artifact, data); err != nil {
			return fmt.Errorf("storing %s in %s tier failed: %w", artifact, tier.layer, err)
		}
		sizeGauge.WithLabelValues(tier.layer).Set(float64(tier.Len()))
	}
	return nil
}

// LookupVersions returns the cached version list for a coordinate.
func (c *Cache) LookupVersions(artifact Artifact) ([]string, bool) {
	for i, tier := range c.tiers() {
		versions, ok, err := tier.LookupVersions(artifact)
		if err != nil || !ok {
			continue
		}
		hitCounter.WithLabelValues(tier.layer).Inc()
		if i > 0 {
			_ = c.memory.StoreVersions(artifact, versions)
		}
		return versions, true
	}
	missCounter.Inc()
	return nil, false
}

// StoreVersions writes the version list through every tier.
func (c *Cache) StoreVersions(artifact Artifact, versions []string) error {
	for _, tier := range c.tiers() {
		if err := tier.StoreVersions(artifact, versions); err != nil {
			return fmt.Errorf("storing versions of %s in %s tier failed: %w", artifact, tier.layer, err)
		}
		sizeGauge.WithLabelValues(tier.layer).Set(float64(tier.Len()))
	}
	return nil
}

// Close releases the underlying tiers.
func (c *Cache) Close() error {
	var err error
	for _, tier := range c.tiers() {
		if cerr := tier.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// cacheByWorkspace holds the process-wide cache per workspace path. The disk
// store allows one writer per file, so everything in the process resolving
// against the same workspace must share the same handle.
var (
	cacheByWorkspaceMu sync.Mutex
	cacheByWorkspace   = map[string]*Cache{}
)

// ForWorkspace returns the shared cache for a workspace path, creating it on
// first use. The empty path yields a fresh memory-only cache.
func ForWorkspace(workspace string) (*Cache, error) {
	if workspace == "" {
		return InMemory(), nil
	}

	cacheByWorkspaceMu.Lock()
	defer cacheByWorkspaceMu.Unlock()

	if cache, ok := cacheByWorkspace[workspace]; ok {
		return cache, nil
	}

	disk, err := openDiskTier(workspace)
	if err != nil {
		return nil, fmt.Errorf("opening workspace cache at %q failed: %w", workspace, err)
	}
	cache := &Cache{
		memory: newMemoryTier(defaultMemoryTTL),
		disk:   disk,
	}
	cacheByWorkspace[workspace] = cache
	return cache, nil
}

// CloseAll closes every workspace cache. Intended for process shutdown.
func CloseAll() error {
	cacheByWorkspaceMu.Lock()
	defer cacheByWorkspaceMu.Unlock()

	var err error
	for workspace, cache := range cacheByWorkspace {
		if cerr := cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(cacheByWorkspace, workspace)
	}
	return err
}
