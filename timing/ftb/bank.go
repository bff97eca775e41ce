package ftb

// Bank is the set-associative storage array backing the branch target
// buffer. It is single-ported: a write performed in a cycle occupies the
// port, and a read request arriving in the same cycle must be deferred by
// the caller (signaled through ReadReady). Reads have a one-cycle latency,
// which the lookup pipeline models; the bank itself returns the array
// state as of the request cycle.
type Bank struct {
	numSets int
	numWays int

	sets [][]Entry

	// busy is set for the remainder of the current cycle after a write
	// is served, and cleared by Tick.
	busy bool
}

// NewBank creates a zero-initialized bank. Every entry of every set
// begins invalid.
func NewBank(numSets, numWays int) *Bank {
	b := &Bank{
		numSets: numSets,
		numWays: numWays,
	}
	b.Reset()
	return b
}

// ReadReady reports whether a read request can be accepted this cycle.
// It is false while a write occupies the port.
func (b *Bank) ReadReady() bool {
	return !b.busy
}

// ReadSet returns a copy of all ways of the given set.
func (b *Bank) ReadSet(setIdx int) []Entry {
	ways := make([]Entry, b.numWays)
	copy(ways, b.sets[setIdx])
	return ways
}

// Write overwrites exactly the ways of setIdx named by the one-hot (or
// multi-hot) wayMask with entry, and occupies the port for the rest of
// the cycle.
func (b *Bank) Write(setIdx int, wayMask uint8, entry Entry) {
	for w := 0; w < b.numWays; w++ {
		if wayMask&(1<<uint(w)) != 0 {
			b.sets[setIdx][w] = entry
		}
	}
	b.busy = true
}

// Tick advances the bank to the next cycle, releasing the port.
func (b *Bank) Tick() {
	b.busy = false
}

// Reset invalidates every entry and releases the port.
func (b *Bank) Reset() {
	b.sets = make([][]Entry, b.numSets)
	for i := range b.sets {
		b.sets[i] = make([]Entry, b.numWays)
	}
	b.busy = false
}
