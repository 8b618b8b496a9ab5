package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// defaultMemoryTTL bounds how long the memory tier keeps an entry.
const defaultMemoryTTL = 10 * time.Minute

// memoryTier keeps artifact bytes and version lists in expiring in-memory
// maps. It never reports errors.
type memoryTier struct {
	artifacts *expirable.LRU[string, []byte]
	versions  *expirable.LRU[string, []string]
}

var _ Tier = (*memoryTier)(nil)

func newMemoryTier(ttl time.Duration) *memoryTier {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	return &memoryTier{
		artifacts: expirable.NewLRU[string, []byte](0, nil, ttl),
		versions:  expirable.NewLRU[string, []string](0, nil, ttl),
	}
}

func (m *memoryTier) Lookup(artifact Artifact) ([]byte, bool, error) {
	data, ok := m.artifacts.Get(string(encodeArtifactKey(artifact)))
	return data, ok, nil
}

func (m *memoryTier) Store(artifact Artifact, data []byte) error {
	m.artifacts.Add(string(encodeArtifactKey(artifact)), data)
	return nil
}

func (m *memoryTier) LookupVersions(artifact Artifact) ([]string, bool, error) {
	versions, ok := m.versions.Get(string(encodeArtifactKey(artifact)))
	return versions, ok, nil
}

func (m *memoryTier) StoreVersions(artifact Artifact, versions []string) error {
	m.versions.Add(string(encodeArtifactKey(artifact)), versions)
	return nil
}

func (m *memoryTier) Len() int {
	return m.artifacts.Len() + m.versions.Len()
}

func (m *memoryTier) Close() error {
	m.artifacts.Purge()
	m.versions.Purge()
	return nil
}
