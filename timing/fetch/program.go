package fetch

import (
	"math/rand"

	"github.com/sarchlab/ftbsim/timing/ftb"
)

// BlockInfo is the resolved ground truth for one visit to a fetch block:
// its recorded branch structure plus the directions the conditional
// branches actually took this visit. It stands in for the decode and
// commit stages that a full front end would provide.
type BlockInfo struct {
	// Brs are the conditional branches in the block, by slot.
	Brs [ftb.NumBranchSlots]ftb.BranchSlot

	// Taken records, per slot, whether the branch was taken this visit.
	Taken [ftb.NumBranchSlots]bool

	// Jmp is the unconditional jump terminating the block, if any.
	Jmp ftb.BranchSlot

	// Jump type flags.
	IsCall     bool
	IsRet      bool
	IsIndirect bool

	// Fallthrough is the next sequential address past the block.
	Fallthrough uint64

	// LastInstCompressed marks a compressed final instruction.
	LastInstCompressed bool
}

// NextAddr returns the address control flow actually continued at: the
// lowest-offset taken conditional branch wins, then the jump, then the
// fallthrough.
func (b BlockInfo) NextAddr() uint64 {
	haveBr := false
	var best ftb.BranchSlot
	for i := range b.Brs {
		if !b.Brs[i].Valid || !b.Taken[i] {
			continue
		}
		if !haveBr || b.Brs[i].Offset < best.Offset {
			best = b.Brs[i]
			haveBr = true
		}
	}
	if haveBr {
		return best.Target
	}
	if b.Jmp.Valid {
		return b.Jmp.Target
	}
	return b.Fallthrough
}

// A Program supplies ground truth for fetch blocks. Block is called once
// per resolved fetch, so implementations may sample per-visit outcomes.
type Program interface {
	Block(addr uint64) BlockInfo
}

// syntheticBlock is the static shape of one generated block; outcomes are
// sampled per visit.
type syntheticBlock struct {
	brs       [ftb.NumBranchSlots]ftb.BranchSlot
	takenProb [ftb.NumBranchSlots]float64
	jmp       ftb.BranchSlot
	isCall    bool
	isRet     bool
}

// SyntheticProgram generates a deterministic pseudo-random control-flow
// graph over a contiguous range of fetch blocks. Block structure is fixed
// at construction; per-visit branch outcomes are drawn from the seeded
// generator, so a given seed always produces the same fetch stream.
type SyntheticProgram struct {
	base       uint64
	blockBytes uint64
	blocks     []syntheticBlock
	rng        *rand.Rand
}

// NewSyntheticProgram builds a program of numBlocks fetch blocks starting
// at base, shaped for the given table geometry.
func NewSyntheticProgram(numBlocks int, seed int64, base uint64, cfg ftb.Config) *SyntheticProgram {
	rng := rand.New(rand.NewSource(seed))
	blockBytes := uint64(cfg.BlockBytes)
	instPerBlock := cfg.BlockBytes >> uint(cfg.InstShift)

	randomTarget := func() uint64 {
		return base + uint64(rng.Intn(numBlocks))*blockBytes
	}

	blocks := make([]syntheticBlock, numBlocks)
	for i := range blocks {
		b := &blocks[i]

		// Most blocks carry at least one conditional branch. A block may
		// hold a single instruction, in which case offset 0 is the only
		// legal position.
		if rng.Float64() < 0.8 {
			off := 0
			if instPerBlock > 1 {
				off = rng.Intn(instPerBlock - 1)
			}
			b.brs[0] = ftb.BranchSlot{
				Offset: uint8(off),
				Target: randomTarget(),
				Valid:  true,
			}
			b.takenProb[0] = rng.Float64()
		}
		if b.brs[0].Valid && int(b.brs[0].Offset)+1 < instPerBlock && rng.Float64() < 0.3 {
			b.brs[1] = ftb.BranchSlot{
				Offset: b.brs[0].Offset + 1,
				Target: randomTarget(),
				Valid:  true,
			}
			b.takenProb[1] = rng.Float64()
		}

		if rng.Float64() < 0.25 {
			b.jmp = ftb.BranchSlot{
				Offset: uint8(instPerBlock - 1),
				Target: randomTarget(),
				Valid:  true,
			}
			b.isCall = rng.Float64() < 0.3
			b.isRet = !b.isCall && rng.Float64() < 0.2
		}
	}

	return &SyntheticProgram{
		base:       base,
		blockBytes: blockBytes,
		blocks:     blocks,
		rng:        rng,
	}
}

// Block resolves one visit to the block containing addr.
func (p *SyntheticProgram) Block(addr uint64) BlockInfo {
	idx := int((addr - p.base) / p.blockBytes)
	idx = ((idx % len(p.blocks)) + len(p.blocks)) % len(p.blocks)
	b := p.blocks[idx]

	blockAddr := p.base + uint64(idx)*p.blockBytes
	info := BlockInfo{
		Brs:         b.brs,
		Jmp:         b.jmp,
		IsCall:      b.isCall,
		IsRet:       b.isRet,
		Fallthrough: blockAddr + p.blockBytes,
	}

	for i := range b.brs {
		if b.brs[i].Valid {
			info.Taken[i] = p.rng.Float64() < b.takenProb[i]
		}
	}

	return info
}
