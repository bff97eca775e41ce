package ftb

// Stage names one of the lookup pipeline stages. A lookup accepted at
// cycle T produces its S1 result at T+1, S2 at T+2, and S3 at T+3.
type Stage int

// Pipeline stages. S0, the request stage, has no externally visible
// snapshot.
const (
	S1 Stage = iota + 1
	S2
	S3
)

// Meta is the prediction metadata carried alongside a prediction and
// consumed by the training stage. It tells the update path exactly which
// way to overwrite and whether the original lookup hit, without
// re-deriving either.
type Meta struct {
	// WriteWay is the one-hot way the lookup hit in, or the way the
	// allocation policy chose on a miss.
	WriteWay uint8
	// Hit records whether the original lookup was a hit.
	Hit bool
	// Cycle is the cycle the lookup result was formed in.
	Cycle uint64
}

// Prediction is the snapshot held by each pipeline stage.
type Prediction struct {
	// Valid indicates the stage holds a result.
	Valid bool

	// Addr is the fetch-block address the lookup was issued for.
	Addr uint64

	// Hit indicates the tag compare matched a valid way.
	Hit bool

	// Entry is the matched entry content. Zero-valued on a miss.
	Entry Entry

	// TakenMask is the reconciled taken-mask: the external direction
	// guess intersected with the entry's recorded slots. Forced to zero
	// on a miss; a miss never asserts a taken branch.
	TakenMask uint8

	// Target is the predicted target address.
	Target uint64

	// Fallthrough is the address execution continues at when nothing is
	// taken. From S2 on it is recomputed as the next sequential block
	// whenever the registered hit flag is false.
	Fallthrough uint64

	// IsBr flags which conditional-branch slots carry a recorded branch.
	IsBr [NumBranchSlots]bool

	// Jump-slot type flags, from the matched entry.
	IsJmp      bool
	IsIndirect bool
	IsCall     bool
	IsRet      bool

	// Meta is the metadata captured when this result was formed. It is
	// delivered in lockstep with the stage snapshots so the training
	// stage can report results against the same-cycle prediction.
	Meta Meta
}

// TakenMaskSource supplies the external per-block direction guess: one bit
// per conditional-branch slot plus the jump bit (bit JumpBit). A nil
// source predicts every conditional branch not-taken; valid jump slots
// still redirect through the reconciliation fallback.
type TakenMaskSource interface {
	TakenMask(addr uint64) uint8
}

// TakenMaskFunc adapts a plain function to a TakenMaskSource.
type TakenMaskFunc func(addr uint64) uint8

// TakenMask calls fn(addr).
func (fn TakenMaskFunc) TakenMask(addr uint64) uint8 {
	return fn(addr)
}

// Stats holds branch-target-buffer statistics.
type Stats struct {
	// Lookups is the number of accepted lookup requests.
	Lookups uint64
	// LookupRejects is the number of lookup requests refused, either
	// because the storage port was busy with a write or because a lookup
	// was already accepted in the same cycle.
	LookupRejects uint64
	// Hits is the number of lookups that matched a valid entry.
	Hits uint64
	// Misses is the number of lookups that matched nothing.
	Misses uint64
	// Updates is the number of training updates accepted.
	Updates uint64
	// UpdateNewAddr counts updates whose address was not in the
	// recently-updated ring (first seen).
	UpdateNewAddr uint64
	// UpdateRepeatAddr counts updates whose address was already in the
	// recently-updated ring.
	UpdateRepeatAddr uint64
}

// HitRate returns the lookup hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// LookupResultFunc is invoked exactly once per accepted lookup, one cycle
// after acceptance, with the raw read entries, the hit indicator, and the
// hit (or allocation) way in one-hot form.
type LookupResultFunc func(entries []Entry, hit bool, wayOneHot uint8)

// request is the S0 pipeline register: an accepted read with the expected
// tag registered from the request cycle.
type request struct {
	valid bool
	addr  uint64
	tag   uint64
}

// bankWrite is an update registered for one cycle before it reaches the
// storage array.
type bankWrite struct {
	setIdx  int
	wayMask uint8
	entry   Entry
}

// FTB is a fixed-capacity, set-associative branch target buffer with a
// three-stage lookup pipeline and a one-cycle-delayed training path.
// It is fully synchronous: callers issue at most one lookup and one
// update per cycle and advance it with Tick.
type FTB struct {
	cfg  Config
	bank *Bank

	s0         request
	s1, s2, s3 Prediction

	pending *bankWrite

	maskSource     TakenMaskSource
	onLookupResult LookupResultFunc

	ring  updateRing
	cycle uint64
	stats Stats
}

// Option configures an FTB.
type Option func(*FTB)

// WithTakenMaskSource sets the external direction-guess source consulted
// when a lookup result is formed.
func WithTakenMaskSource(src TakenMaskSource) Option {
	return func(f *FTB) {
		f.maskSource = src
	}
}

// WithLookupResultFunc registers a callback delivered once per accepted
// lookup, one cycle after acceptance.
func WithLookupResultFunc(fn LookupResultFunc) Option {
	return func(f *FTB) {
		f.onLookupResult = fn
	}
}

// New creates a branch target buffer with every entry invalid.
func New(cfg Config, opts ...Option) *FTB {
	f := &FTB{
		cfg:  cfg,
		bank: NewBank(cfg.NumSets, cfg.NumWays),
		ring: newUpdateRing(cfg.UpdateRingSize),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Config returns the table geometry.
func (f *FTB) Config() Config {
	return f.cfg
}

// Cycle returns the current cycle number.
func (f *FTB) Cycle() uint64 {
	return f.cycle
}

// Stats returns the accumulated statistics.
func (f *FTB) Stats() Stats {
	return f.stats
}

// Lookup requests a read for the given fetch-block address. It returns
// false, and the caller must re-issue, when the storage port is busy with
// a write this cycle or a request was already accepted this cycle.
func (f *FTB) Lookup(addr uint64) bool {
	if f.s0.valid || !f.bank.ReadReady() {
		f.stats.LookupRejects++
		return false
	}

	f.s0 = request{
		valid: true,
		addr:  addr,
		tag:   f.cfg.Tag(addr),
	}
	f.stats.Lookups++

	return true
}

// Update submits a training record. It is always accepted and completes
// its masked write one cycle later, at which point the storage port is
// busy and a same-cycle lookup is deferred. The supplied entry content is
// re-tagged: validity is forced true and the tag recomputed from addr.
// At most one update may be submitted per cycle.
func (f *FTB) Update(addr uint64, entry Entry, meta Meta) {
	entry.Valid = true
	entry.Tag = f.cfg.Tag(addr)

	f.pending = &bankWrite{
		setIdx:  f.cfg.Index(addr),
		wayMask: meta.WriteWay,
		entry:   entry,
	}

	f.stats.Updates++
	if f.ring.observe(addr) {
		f.stats.UpdateRepeatAddr++
	} else {
		f.stats.UpdateNewAddr++
	}
}

// PredictionAt returns the snapshot currently held by a pipeline stage.
func (f *FTB) PredictionAt(stage Stage) Prediction {
	switch stage {
	case S1:
		return f.s1
	case S2:
		return f.s2
	default:
		return f.s3
	}
}

// Tick advances the pipeline by one cycle: S2 and S3 re-latch the previous
// stage, the read issued last cycle completes into S1, and a registered
// update reaches the storage array.
func (f *FTB) Tick() {
	f.cycle++

	f.s3 = f.s2
	f.s2 = f.s1
	if f.s2.Valid && !f.s2.Hit {
		// Miss-safety holds even after further latching: a stale
		// fallthrough from an unmatched entry never survives past S2.
		f.s2.Fallthrough = f.cfg.NextBlock(f.s2.Addr)
	}

	if f.s0.valid {
		f.s1 = f.compare(f.s0)
		f.s0.valid = false
	} else {
		f.s1 = Prediction{}
	}

	f.bank.Tick()

	if f.pending != nil {
		f.bank.Write(f.pending.setIdx, f.pending.wayMask, f.pending.entry)
		f.pending = nil
	}
}

// Reset restores the table, the pipeline, the ring, and the statistics to
// their initial zero state.
func (f *FTB) Reset() {
	f.bank.Reset()
	f.s0 = request{}
	f.s1 = Prediction{}
	f.s2 = Prediction{}
	f.s3 = Prediction{}
	f.pending = nil
	f.ring = newUpdateRing(f.cfg.UpdateRingSize)
	f.cycle = 0
	f.stats = Stats{}
}

// compare completes the read issued last cycle: tag compare, way
// selection, and target reconciliation against the external taken-mask.
func (f *FTB) compare(req request) Prediction {
	entries := f.bank.ReadSet(f.cfg.Index(req.addr))

	var hitVec uint8
	for w := range entries {
		if entries[w].Valid && entries[w].Tag == req.tag {
			hitVec |= 1 << uint(w)
		}
	}
	hit := hitVec != 0

	var entry Entry
	var way uint8
	if hit {
		// At most one way should match; pick the lowest-indexed one if
		// the allocation discipline was ever violated.
		w := lowestSetBit(hitVec)
		entry = entries[w]
		way = oneHot(w)
	} else {
		way = oneHot(allocWay(entries, req.tag, f.cfg.TagBits, f.cfg.wayBits()))
	}

	pred := Prediction{
		Valid: true,
		Addr:  req.addr,
		Hit:   hit,
		Entry: entry,
		Meta: Meta{
			WriteWay: way,
			Hit:      hit,
			Cycle:    f.cycle,
		},
	}

	if hit {
		mask := uint8(0)
		if f.maskSource != nil {
			mask = f.maskSource.TakenMask(req.addr)
		}
		f.reconcile(&pred, mask)
		f.stats.Hits++
	} else {
		pred.Target = f.cfg.NextBlock(req.addr)
		f.stats.Misses++
	}

	if f.onLookupResult != nil {
		f.onLookupResult(entries, hit, way)
	}

	return pred
}

// reconcile computes the predicted target for a hit by intersecting the
// external taken-mask with the entry's recorded slots. The lowest-offset
// intersecting slot wins; with an empty intersection a valid jump slot
// redirects unconditionally; otherwise the block falls through.
func (f *FTB) reconcile(pred *Prediction, mask uint8) {
	entry := &pred.Entry

	inter := mask & entry.slotValidMask()
	pred.TakenMask = inter

	switch slot, taken := entry.takenSlot(inter); {
	case taken:
		pred.Target = slot.Target
	case entry.Jmp.Valid:
		pred.Target = entry.Jmp.Target
	default:
		pred.Target = entry.Fallthrough
	}

	pred.Fallthrough = entry.Fallthrough
	for i := range entry.Brs {
		pred.IsBr[i] = entry.Brs[i].Valid
	}
	pred.IsJmp = entry.Jmp.Valid
	pred.IsIndirect = entry.IsIndirect
	pred.IsCall = entry.IsCall
	pred.IsRet = entry.IsRet
}

// updateRing tracks the most recently updated addresses so updates can be
// classified as first-seen or repeats. Diagnostics only: membership never
// blocks or fails a write.
type updateRing struct {
	addrs []uint64
	used  []bool
	ptr   int
}

func newUpdateRing(size int) updateRing {
	return updateRing{
		addrs: make([]uint64, size),
		used:  make([]bool, size),
	}
}

// observe reports whether addr is already tracked. When absent it is
// inserted at the current ring pointer, which then advances.
func (r *updateRing) observe(addr uint64) bool {
	for i := range r.addrs {
		if r.used[i] && r.addrs[i] == addr {
			return true
		}
	}

	r.addrs[r.ptr] = addr
	r.used[r.ptr] = true
	r.ptr = (r.ptr + 1) % len(r.addrs)

	return false
}
