// Package predictor provides the per-block direction predictor that
// supplies taken-mask guesses to the branch target buffer.
package predictor

import (
	"github.com/sarchlab/ftbsim/timing/ftb"
)

// Config holds configuration for the direction predictor.
type Config struct {
	// TableSize is the number of per-block counter rows.
	// Must be a power of 2. Default is 4096.
	TableSize uint32 `json:"table_size"`

	// InstShift is the number of low-order alignment bits dropped from a
	// block address before indexing. Should match the FTB geometry.
	// Default is 1.
	InstShift int `json:"inst_shift"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		TableSize: 4096,
		InstShift: 1,
	}
}

// Stats holds statistics for the direction predictor.
type Stats struct {
	// Predictions is the total number of slot directions resolved.
	Predictions uint64
	// Correct is the number of correct direction calls.
	Correct uint64
	// Mispredictions is the number of incorrect direction calls.
	Mispredictions uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s Stats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s Stats) MispredictionRate() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Predictions) * 100
}

// Predictor is a bimodal direction predictor: one 2-bit saturating counter
// per fetch block and branch slot.
// States: 0=Strongly Not Taken, 1=Weakly Not Taken,
//         2=Weakly Taken, 3=Strongly Taken
type Predictor struct {
	counters [][ftb.NumBranchSlots]uint8

	tableSize uint32
	instShift int

	stats Stats
}

// New creates a direction predictor with every counter weakly taken.
func New(config Config) *Predictor {
	tableSize := config.TableSize
	if tableSize == 0 {
		tableSize = 4096
	}

	p := &Predictor{
		counters:  make([][ftb.NumBranchSlots]uint8, tableSize),
		tableSize: tableSize,
		instShift: config.InstShift,
	}

	// Bias towards taken, like the BHT reset state.
	for i := range p.counters {
		for s := range p.counters[i] {
			p.counters[i][s] = 2
		}
	}

	return p
}

// index computes the counter row for a fetch-block address.
func (p *Predictor) index(addr uint64) uint32 {
	return uint32((addr >> uint(p.instShift)) & uint64(p.tableSize-1))
}

// TakenMask returns the direction guess for a fetch block: one bit per
// branch slot, with the jump bit always set because jumps are
// unconditional. Implements ftb.TakenMaskSource.
func (p *Predictor) TakenMask(addr uint64) uint8 {
	row := p.counters[p.index(addr)]

	mask := uint8(1) << uint(ftb.JumpBit)
	for s := 0; s < ftb.NumBranchSlots; s++ {
		if row[s] >= 2 {
			mask |= 1 << uint(s)
		}
	}

	return mask
}

// Update trains one slot counter with the actual branch outcome.
func (p *Predictor) Update(addr uint64, slot int, taken bool) {
	if slot < 0 || slot >= ftb.NumBranchSlots {
		return
	}

	idx := p.index(addr)
	counter := p.counters[idx][slot]

	predicted := counter >= 2
	p.stats.Predictions++
	if predicted == taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}

	if taken {
		if counter < 3 {
			p.counters[idx][slot] = counter + 1
		}
	} else {
		if counter > 0 {
			p.counters[idx][slot] = counter - 1
		}
	}
}

// Stats returns the predictor statistics.
func (p *Predictor) Stats() Stats {
	return p.stats
}

// Reset restores every counter to weakly taken and clears the statistics.
func (p *Predictor) Reset() {
	for i := range p.counters {
		for s := range p.counters[i] {
			p.counters[i][s] = 2
		}
	}
	p.stats = Stats{}
}
