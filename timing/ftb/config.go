package ftb

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
)

// Config holds the geometry of the branch target buffer.
type Config struct {
	// NumSets is the number of sets in the table. Must be a power of 2.
	// Default: 512.
	NumSets int `json:"num_sets"`

	// NumWays is the associativity of the table. Must be a power of 2.
	// Default: 4.
	NumWays int `json:"num_ways"`

	// TagBits is the width of the stored tag in bits. Addresses whose
	// high-order bits agree after truncation alias to the same tag.
	// Default: 20.
	TagBits int `json:"tag_bits"`

	// BlockBytes is the width of one fetch block in bytes. The fallback
	// prediction on a miss is the next sequential block. Must be a power
	// of 2. Default: 32.
	BlockBytes int `json:"block_bytes"`

	// InstShift is the number of low-order instruction-alignment bits
	// dropped from an address before deriving index and tag.
	// Default: 1 (2-byte minimum instruction size).
	InstShift int `json:"inst_shift"`

	// UpdateRingSize is the capacity of the recently-updated address ring
	// used for update classification. Default: 64.
	UpdateRingSize int `json:"update_ring_size"`
}

// DefaultConfig returns the default 2048-entry (512-set, 4-way) geometry.
func DefaultConfig() Config {
	return Config{
		NumSets:        512,
		NumWays:        4,
		TagBits:        20,
		BlockBytes:     32,
		InstShift:      1,
		UpdateRingSize: 64,
	}
}

// LoadConfig loads a configuration from a JSON file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks that the configuration describes a realizable table.
func (c Config) Validate() error {
	if c.NumSets <= 0 || bits.OnesCount(uint(c.NumSets)) != 1 {
		return fmt.Errorf("num_sets must be a positive power of 2, got %d", c.NumSets)
	}
	if c.NumWays <= 0 || bits.OnesCount(uint(c.NumWays)) != 1 {
		return fmt.Errorf("num_ways must be a positive power of 2, got %d", c.NumWays)
	}
	if c.TagBits <= 0 || c.TagBits > 64 {
		return fmt.Errorf("tag_bits must be in 1..64, got %d", c.TagBits)
	}
	if c.BlockBytes <= 0 || bits.OnesCount(uint(c.BlockBytes)) != 1 {
		return fmt.Errorf("block_bytes must be a positive power of 2, got %d", c.BlockBytes)
	}
	if c.InstShift < 0 || c.BlockBytes>>uint(c.InstShift) == 0 {
		return fmt.Errorf("inst_shift must be in 0..log2(block_bytes), got %d", c.InstShift)
	}
	if c.UpdateRingSize <= 0 {
		return fmt.Errorf("update_ring_size must be positive, got %d", c.UpdateRingSize)
	}
	return nil
}

// indexBits returns the number of address bits consumed by the set index.
func (c Config) indexBits() int {
	return bits.TrailingZeros(uint(c.NumSets))
}

// wayBits returns the number of bits needed to name a way.
func (c Config) wayBits() int {
	return bits.TrailingZeros(uint(c.NumWays))
}

// Index derives the set index for an address. The instruction-alignment
// bits are dropped first, then the low-order bits select the set.
func (c Config) Index(addr uint64) int {
	return int((addr >> uint(c.InstShift)) & uint64(c.NumSets-1))
}

// Tag derives the truncated tag for an address from the bits above the
// set index. Distinct addresses may alias after truncation; the table
// relies on the configured tag width making that negligible.
func (c Config) Tag(addr uint64) uint64 {
	shift := uint(c.InstShift + c.indexBits())
	return (addr >> shift) & ((1 << uint(c.TagBits)) - 1)
}

// NextBlock returns the address of the fetch block following addr, the
// fallback prediction used on a miss.
func (c Config) NextBlock(addr uint64) uint64 {
	return addr + uint64(c.BlockBytes)
}

// offsetBits returns the width of the in-entry fallthrough offset field:
// enough to express any offset within the current or the next fetch block.
func (c Config) offsetBits() int {
	return bits.TrailingZeros(uint(c.BlockBytes)>>uint(c.InstShift)) + 1
}

// FallthroughCarry reports whether a fallthrough address crosses the
// addressing boundary of the entry's offset field, i.e. whether the bits
// above the in-block offset differ between the fetch address and the
// fallthrough address.
func (c Config) FallthroughCarry(addr, ftAddr uint64) bool {
	shift := uint(c.InstShift + c.offsetBits())
	return (addr >> shift) != (ftAddr >> shift)
}
