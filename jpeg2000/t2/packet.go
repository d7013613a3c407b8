package t2

import "github.com/cocosip/go-j2k/jpeg2000/t1"

// CodeBlock is the Tier-2 view of a code block: its geometry within the
// subband, the Tier-1 result on the encoder side, the accumulated
// contributions on the decoder side, and the header state shared by both.
type CodeBlock struct {
	// Subband-relative geometry.
	X0, Y0, X1, Y1 int
	Orient         int

	// Encoder side: Tier-1 output plus the cumulative pass count chosen
	// for each quality layer by the rate allocator.
	Passes       []t1.Pass
	EncData      []byte
	NumBitplanes int
	LayerPasses  []int

	// Zero-bit-plane count signalled on first inclusion (Mb - P).
	ZeroBitPlanes int

	// Decoder side: contributions in arrival order.
	SegLens []int
	Data    []byte

	// Packet header state, persistent across layers.
	included  bool
	lblock    int
	passesSig int // passes signalled in previous packets
	bytesSig  int // bytes emitted in previous packets (encoder)
}

// Width returns the block width.
func (cb *CodeBlock) Width() int { return cb.X1 - cb.X0 }

// Height returns the block height.
func (cb *CodeBlock) Height() int { return cb.Y1 - cb.Y0 }

// TotalPasses returns the number of passes received so far (decoder side).
func (cb *CodeBlock) TotalPasses() int { return cb.passesSig }

// firstLayer returns the first layer this block contributes to, or
// tagTreeMax if it never contributes.
func (cb *CodeBlock) firstLayer() int {
	prev := 0
	for l, n := range cb.LayerPasses {
		if n > prev {
			return l
		}
		prev = n
	}
	return tagTreeMax
}

// Band groups the code blocks of one subband orientation inside a
// precinct, together with the band's two tag trees.
type Band struct {
	Orient int
	NumCBX int
	NumCBY int
	Blocks []*CodeBlock // raster order, NumCBX*NumCBY entries

	incl   *TagTree
	zbp    *TagTree
	seeded bool
}

// NewBand creates a band over a grid of code blocks.
func NewBand(orient, numCBX, numCBY int, blocks []*CodeBlock) *Band {
	return &Band{
		Orient: orient,
		NumCBX: numCBX,
		NumCBY: numCBY,
		Blocks: blocks,
		incl:   NewTagTree(numCBX, numCBY),
		zbp:    NewTagTree(numCBX, numCBY),
	}
}

// Precinct is the packetisation unit: the bands of one resolution that
// share a spatial region. Packet headers are stateful per precinct.
type Precinct struct {
	Index int
	Bands []*Band
}

// Blocks iterates all blocks of the precinct in header order.
func (p *Precinct) blocks(fn func(b *Band, cbx, cby int, cb *CodeBlock) error) error {
	for _, band := range p.Bands {
		if band == nil || band.NumCBX <= 0 || band.NumCBY <= 0 {
			continue
		}
		for cby := 0; cby < band.NumCBY; cby++ {
			for cbx := 0; cbx < band.NumCBX; cbx++ {
				if err := fn(band, cbx, cby, band.Blocks[cby*band.NumCBX+cbx]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
