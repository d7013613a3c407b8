package t1

// Coding pass types, in the order they appear within a bit plane.
const (
	PassSigProp = 0
	PassMagRef  = 1
	PassCleanup = 2
)

// Pass describes one terminated coding pass of a code block.
type Pass struct {
	Index    int
	Bitplane int
	Type     int

	// Len is the codeword segment length of this pass; CumLen the
	// cumulative byte count through it. Contributions are sliced from
	// the block data by contribution order, never by block index.
	Len    int
	CumLen int

	// Distortion is the cumulative weighted distortion decrease after
	// this pass, used by the rate allocator.
	Distortion float64
}

// Block is the Tier-1 output for one code block.
type Block struct {
	Width  int
	Height int

	// NumBitplanes is the number of magnitude planes actually coded (P);
	// the zero-bit-plane count signalled in the packet header is
	// Mb - NumBitplanes.
	NumBitplanes int

	Passes []Pass
	Data   []byte
}

// MaxPasses returns the pass count for p coded bit planes: the first plane
// has only a cleanup pass, every further plane has all three.
func MaxPasses(planes int) int {
	if planes <= 0 {
		return 0
	}
	return 3*planes - 2
}

// isRawPass reports whether a pass runs in selective arithmetic bypass:
// SPP and MRP of the planes below the four most significant ones.
func isRawPass(bitplane, maxBitplane, passType, style int) bool {
	if style&StyleBypass == 0 {
		return false
	}
	if passType == PassCleanup {
		return false
	}
	return bitplane < maxBitplane-3
}

// nextPass advances the (bitplane, passType) cursor through the standard
// sequence: cleanup on the top plane, then SPP/MRP/cleanup per plane.
func nextPass(bitplane, passType int) (int, int) {
	if passType == PassCleanup {
		return bitplane - 1, PassSigProp
	}
	return bitplane, passType + 1
}
