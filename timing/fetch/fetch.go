// Package fetch drives the branch target buffer from a modeled fetch
// stream: it generates fetch-block addresses, probes the instruction
// cache, consumes the staged predictions, and feeds resolved outcomes
// back as training updates.
package fetch

import (
	"github.com/sarchlab/ftbsim/timing/ftb"
	"github.com/sarchlab/ftbsim/timing/predictor"
)

// Config holds the fetch-unit configuration.
type Config struct {
	// FTB is the branch-target-buffer geometry.
	FTB ftb.Config `json:"ftb"`

	// Predictor is the direction-predictor configuration.
	Predictor predictor.Config `json:"predictor"`

	// ICache is the instruction-cache presence model configuration.
	ICache CacheConfig `json:"icache"`

	// ResolveDelay is the number of cycles between a prediction being
	// resolved and its training update reaching the table, modeling the
	// distance to the commit stage. Default: 4.
	ResolveDelay int `json:"resolve_delay"`

	// MispredictPenalty is the number of cycles the fetch stream stalls
	// after a predicted target disagrees with the resolved one.
	// Default: 12.
	MispredictPenalty int `json:"mispredict_penalty"`
}

// DefaultConfig returns the default fetch-unit configuration.
func DefaultConfig() Config {
	return Config{
		FTB:               ftb.DefaultConfig(),
		Predictor:         predictor.DefaultConfig(),
		ICache:            DefaultCacheConfig(),
		ResolveDelay:      4,
		MispredictPenalty: 12,
	}
}

// Stats holds fetch-unit statistics.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Blocks is the number of fetch blocks resolved.
	Blocks uint64
	// FTBHits is the number of resolved blocks whose lookup hit.
	FTBHits uint64
	// FTBMisses is the number of resolved blocks whose lookup missed.
	FTBMisses uint64
	// TargetMispredicts is the number of blocks whose predicted target
	// disagreed with the resolved next address.
	TargetMispredicts uint64
	// StallCycles counts cycles lost to cache misses and redirects.
	StallCycles uint64
	// LookupRetries counts lookups deferred by a busy storage port.
	LookupRetries uint64
}

// FTBHitRate returns the buffer hit rate over resolved blocks as a
// percentage.
func (s Stats) FTBHitRate() float64 {
	total := s.FTBHits + s.FTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.FTBHits) / float64(total) * 100
}

// CyclesPerBlock returns the average number of cycles per resolved block.
func (s Stats) CyclesPerBlock() float64 {
	if s.Blocks == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Blocks)
}

// pendingUpdate is a resolved outcome waiting out the commit distance
// before it trains the table.
type pendingUpdate struct {
	due   uint64
	addr  uint64
	entry ftb.Entry
	meta  ftb.Meta
}

// FetchUnit ties the branch target buffer, the direction predictor, and
// the instruction-cache presence model into a sequential fetch loop. One
// block is in flight at a time: a lookup is issued, its S3 prediction
// consumed three cycles later, and the resolved outcome queued as a
// training update.
type FetchUnit struct {
	config Config

	buffer *ftb.FTB
	dir    *predictor.Predictor
	icache *PresenceCache
	prog   Program

	pc     uint64
	cycle  uint64
	probed bool
	stall  int

	awaiting bool
	s3Wait   int

	resolveQueue []pendingUpdate

	stats Stats
}

// New creates a fetch unit over the given program.
func New(config Config, prog Program) *FetchUnit {
	dir := predictor.New(config.Predictor)

	return &FetchUnit{
		config: config,
		buffer: ftb.New(config.FTB, ftb.WithTakenMaskSource(dir)),
		dir:    dir,
		icache: NewPresenceCache(config.ICache),
		prog:   prog,
	}
}

// SetPC sets the next fetch-block address.
func (u *FetchUnit) SetPC(pc uint64) {
	u.pc = pc
}

// PC returns the current fetch-block address.
func (u *FetchUnit) PC() uint64 {
	return u.pc
}

// FTB returns the underlying branch target buffer.
func (u *FetchUnit) FTB() *ftb.FTB {
	return u.buffer
}

// Predictor returns the direction predictor.
func (u *FetchUnit) Predictor() *predictor.Predictor {
	return u.dir
}

// ICache returns the instruction-cache presence model.
func (u *FetchUnit) ICache() *PresenceCache {
	return u.icache
}

// Stats returns the fetch-unit statistics.
func (u *FetchUnit) Stats() Stats {
	return u.stats
}

// Run advances the unit by the given number of cycles.
func (u *FetchUnit) Run(cycles int) {
	for i := 0; i < cycles; i++ {
		u.Tick()
	}
}

// Tick advances the fetch unit by one cycle.
func (u *FetchUnit) Tick() {
	u.cycle++
	u.stats.Cycles++

	u.buffer.Tick()

	// At most one training write reaches the table per cycle.
	if len(u.resolveQueue) > 0 && u.resolveQueue[0].due <= u.cycle {
		up := u.resolveQueue[0]
		u.resolveQueue = u.resolveQueue[1:]
		u.buffer.Update(up.addr, up.entry, up.meta)
	}

	if u.awaiting {
		u.s3Wait--
		if u.s3Wait <= 0 {
			u.resolve(u.buffer.PredictionAt(ftb.S3))
			u.awaiting = false
		}
		return
	}

	if u.stall > 0 {
		u.stall--
		u.stats.StallCycles++
		return
	}

	u.issue()
}

// issue starts the next block fetch: presence probe first, then the
// buffer lookup. A lookup deferred by the write port is retried next
// cycle.
func (u *FetchUnit) issue() {
	if !u.probed {
		u.probed = true
		if !u.icache.Probe(u.pc) {
			u.stall = u.config.ICache.MissPenalty
			return
		}
	}

	if !u.buffer.Lookup(u.pc) {
		u.stats.LookupRetries++
		return
	}

	u.probed = false
	u.awaiting = true
	u.s3Wait = 3
}

// resolve compares the S3 prediction against the program's ground truth,
// trains the direction predictor, queues the table update, and redirects
// the fetch stream.
func (u *FetchUnit) resolve(pred ftb.Prediction) {
	info := u.prog.Block(pred.Addr)
	actualNext := info.NextAddr()

	for i := range info.Brs {
		if info.Brs[i].Valid {
			u.dir.Update(pred.Addr, i, info.Taken[i])
		}
	}

	u.resolveQueue = append(u.resolveQueue, pendingUpdate{
		due:   u.cycle + uint64(u.config.ResolveDelay),
		addr:  pred.Addr,
		entry: buildEntry(u.config.FTB, pred.Addr, info),
		meta:  pred.Meta,
	})

	u.stats.Blocks++
	if pred.Hit {
		u.stats.FTBHits++
	} else {
		u.stats.FTBMisses++
	}
	if pred.Target != actualNext {
		u.stats.TargetMispredicts++
		u.stall = u.config.MispredictPenalty
	}

	u.pc = actualNext
}

// buildEntry assembles the training entry for a resolved block. Validity
// and tag are left to the update path, which re-derives both.
func buildEntry(cfg ftb.Config, addr uint64, info BlockInfo) ftb.Entry {
	return ftb.Entry{
		Brs:                info.Brs,
		Jmp:                info.Jmp,
		Fallthrough:        info.Fallthrough,
		CarryFallthrough:   cfg.FallthroughCarry(addr, info.Fallthrough),
		IsCall:             info.IsCall,
		IsRet:              info.IsRet,
		IsIndirect:         info.IsIndirect,
		Oversized:          info.Fallthrough > cfg.NextBlock(addr),
		LastInstCompressed: info.LastInstCompressed,
	}
}
