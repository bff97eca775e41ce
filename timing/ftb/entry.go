// Package ftb models a set-associative branch target buffer with a
// fixed-latency lookup pipeline and a delayed training path.
package ftb

// NumBranchSlots is the number of conditional-branch slots recorded per
// entry. Each entry additionally carries one unconditional-jump slot.
const NumBranchSlots = 2

// JumpBit is the taken-mask bit position of the implicit jump slot. Bits
// 0..NumBranchSlots-1 correspond to the conditional-branch slots.
const JumpBit = NumBranchSlots

// BranchSlot records one control-flow instruction within a fetch block.
type BranchSlot struct {
	// Offset is the instruction offset of the branch within the block.
	Offset uint8
	// Target is the branch target address.
	Target uint64
	// Valid indicates whether this slot carries a recorded branch.
	Valid bool
}

// Entry is one cache line of the branch target buffer. Zero-valued entries
// are invalid and carry no semantic content.
type Entry struct {
	// Valid indicates whether this entry holds recorded branch structure.
	Valid bool

	// Tag is the truncated high-order address tag.
	Tag uint64

	// Brs are the conditional-branch slots, ordered by slot index.
	Brs [NumBranchSlots]BranchSlot

	// Jmp is the unconditional-jump slot.
	Jmp BranchSlot

	// Fallthrough is the address execution continues at when no branch in
	// the block is taken.
	Fallthrough uint64

	// CarryFallthrough indicates the fallthrough address crosses the
	// addressing boundary of the offset field.
	CarryFallthrough bool

	// IsCall indicates the jump is a function call.
	IsCall bool
	// IsRet indicates the jump is a function return.
	IsRet bool
	// IsIndirect indicates the jump target comes from a register.
	IsIndirect bool

	// Oversized indicates the block's fallthrough lies beyond one full
	// fetch-block width.
	Oversized bool

	// LastInstCompressed indicates the last instruction of the block is a
	// compressed encoding.
	LastInstCompressed bool

	// CallCompressed is reserved for return-address-stack integration and
	// is currently never set.
	CallCompressed bool
}

// slotValidMask returns the branch-slot valid bits padded with the jump
// validity as the trailing bit, the vector the taken-mask is intersected
// with during target reconciliation.
func (e *Entry) slotValidMask() uint8 {
	var mask uint8
	for i, br := range e.Brs {
		if br.Valid {
			mask |= 1 << uint(i)
		}
	}
	if e.Jmp.Valid {
		mask |= 1 << uint(JumpBit)
	}
	return mask
}

// takenSlot selects, among the slots named by mask, the one with the
// lowest instruction offset. Earlier-in-block branches dominate. Returns
// false if the mask names no slot.
func (e *Entry) takenSlot(mask uint8) (BranchSlot, bool) {
	var best BranchSlot
	found := false
	for i := 0; i < NumBranchSlots; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if !found || e.Brs[i].Offset < best.Offset {
			best = e.Brs[i]
			found = true
		}
	}
	if mask&(1<<uint(JumpBit)) != 0 {
		if !found || e.Jmp.Offset < best.Offset {
			best = e.Jmp
			found = true
		}
	}
	return best, found
}
