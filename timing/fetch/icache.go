package fetch

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig holds the instruction-cache presence model parameters.
type CacheConfig struct {
	// Size in bytes.
	Size int `json:"size"`
	// Associativity (number of ways).
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size).
	BlockSize int `json:"block_size"`
	// MissPenalty in cycles the fetch stream stalls on a miss.
	MissPenalty int `json:"miss_penalty"`
}

// DefaultCacheConfig returns the default L1 instruction cache geometry:
// 192KB, 6-way, 64B lines, 12-cycle miss penalty.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:          192 * 1024,
		Associativity: 6,
		BlockSize:     64,
		MissPenalty:   12,
	}
}

// CacheStats holds presence-model statistics.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// HitRate returns the hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// PresenceCache models whether a fetch block's instructions are resident
// in the L1 instruction cache. It tracks tags and LRU state only; no data
// payload is stored, since the fetch-prediction path only needs the
// hit/miss timing.
type PresenceCache struct {
	config CacheConfig

	// Akita cache directory for tag/state management.
	directory *akitacache.DirectoryImpl

	stats CacheStats
}

// NewPresenceCache creates a presence model with the given configuration.
func NewPresenceCache(config CacheConfig) *PresenceCache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &PresenceCache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *PresenceCache) Config() CacheConfig {
	return c.config
}

// Stats returns the presence-model statistics.
func (c *PresenceCache) Stats() CacheStats {
	return c.stats
}

// Probe checks whether the line holding addr is resident. On a miss the
// line is filled (evicting the LRU victim) so the next probe hits.
func (c *PresenceCache) Probe(addr uint64) bool {
	blockAddr := (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return true
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim != nil {
		victim.Tag = blockAddr
		victim.IsValid = true
		victim.IsDirty = false
		c.directory.Visit(victim)
	}

	return false
}

// Reset invalidates every line and clears the statistics.
func (c *PresenceCache) Reset() {
	c.directory.Reset()
	c.stats = CacheStats{}
}
