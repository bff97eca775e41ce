package ftb

// allocWay picks the way a new entry for reqTag should be written into.
// If any way is invalid, the lowest-indexed invalid way is chosen.
// Otherwise the victim is derived by XOR-folding all way tags concatenated
// with the requested tag into log2(numWays)-bit chunks. The result depends
// only on the arguments, so identical set state always yields the same
// victim.
func allocWay(ways []Entry, reqTag uint64, tagBits, wayBits int) int {
	for i := range ways {
		if !ways[i].Valid {
			return i
		}
	}

	if wayBits == 0 {
		return 0
	}

	words := make([]uint64, 0, len(ways)+1)
	for i := range ways {
		words = append(words, ways[i].Tag)
	}
	words = append(words, reqTag)

	return int(foldedXOR(words, tagBits, wayBits))
}

// foldedXOR folds the concatenation of words (each width bits wide,
// low-order bits first) into chunk-bit pieces and XOR-reduces them.
func foldedXOR(words []uint64, width, chunk int) uint64 {
	var acc, cur uint64
	pos := 0
	for _, w := range words {
		for b := 0; b < width; b++ {
			cur |= ((w >> uint(b)) & 1) << uint(pos)
			pos++
			if pos == chunk {
				acc ^= cur
				cur = 0
				pos = 0
			}
		}
	}
	acc ^= cur
	return acc
}

// oneHot converts a way index to its one-hot vector form.
func oneHot(way int) uint8 {
	return 1 << uint(way)
}

// lowestSetBit returns the index of the lowest set bit of v, or -1 when v
// is zero. Used as the protective tie-break when more than one way
// reports a tag match.
func lowestSetBit(v uint8) int {
	for i := 0; i < 8; i++ {
		if v&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}
