package t1

import (
	"fmt"

	"github.com/cocosip/go-j2k/jpeg2000/mqc"
)

// Decoder reconstructs code-block coefficients from terminated coding
// passes. Each pass is an independent codeword segment; context states
// carry across segments unless the RESET style is active.
type Decoder struct {
	width  int
	height int
	orient int
	style  int

	data  []int32
	flags []uint32

	mq       *mqc.Decoder
	bitplane int
}

// NewDecoder creates a Tier-1 decoder for blocks of the given geometry.
func NewDecoder(width, height, orient, style int) *Decoder {
	pw := width + 2
	return &Decoder{
		width:  width,
		height: height,
		orient: orient,
		style:  style,
		data:   make([]int32, pw*(height+2)),
		flags:  make([]uint32, pw*(height+2)),
	}
}

// Decode runs the pass sequence over the concatenated segments in data.
// passLens holds the codeword segment length of each pass in contribution
// order; startBitplane is the most significant coded plane (P-1). A
// truncated pass list simply stops early.
func (d *Decoder) Decode(data []byte, passLens []int, startBitplane int) error {
	if len(passLens) == 0 {
		return nil
	}

	resetStates := d.style&StyleReset != 0
	var carried []uint8

	off := 0
	passIdx := 0
	bp, passType := startBitplane, PassCleanup

	for bp >= 0 && passIdx < len(passLens) {
		if passType == PassSigProp || passIdx == 0 {
			d.clearVisited()
		}

		segLen := passLens[passIdx]
		if segLen < 0 || off+segLen > len(data) {
			return fmt.Errorf("t1: pass %d segment length %d exceeds block data (%d of %d)",
				passIdx, segLen, off, len(data))
		}
		seg := data[off : off+segLen]
		off += segLen

		raw := isRawPass(bp, startBitplane, passType, d.style)
		switch {
		case raw:
			d.mq = mqc.NewRawDecoder(seg)
		case passIdx == 0 || resetStates || carried == nil:
			d.mq = mqc.NewDecoder(seg, numContexts)
			d.initStates()
		default:
			d.mq = mqc.NewDecoderWithStates(seg, carried)
		}

		d.bitplane = bp
		switch passType {
		case PassSigProp:
			d.sigPropPass(raw)
		case PassMagRef:
			d.magRefPass(raw)
		case PassCleanup:
			d.cleanupPass()
			if d.style&StyleSegsym != 0 {
				if err := d.checkSegmark(); err != nil {
					return err
				}
			}
		}

		if !raw && !resetStates {
			carried = d.mq.States()
		}

		passIdx++
		bp, passType = nextPass(bp, passType)
	}

	return nil
}

// Coefficients returns the decoded sign-magnitude values without padding.
func (d *Decoder) Coefficients() []int32 {
	out := make([]int32, d.width*d.height)
	pw := d.width + 2
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			out[y*d.width+x] = d.data[(y+1)*pw+x+1]
		}
	}
	return out
}

func (d *Decoder) initStates() {
	d.mq.SetState(ctxUniform, 46)
	d.mq.SetState(ctxRunLen, 3)
	d.mq.SetState(ctxZCStart, 4)
}

func (d *Decoder) clearVisited() {
	for i := range d.flags {
		d.flags[i] &^= flagVisit
	}
}

func (d *Decoder) checkSegmark() error {
	sym := 0
	for i := 0; i < 4; i++ {
		sym = sym<<1 | d.mq.Decode(ctxUniform)
	}
	if sym != 0xA {
		return fmt.Errorf("t1: segmentation symbol mismatch (got %#x)", sym)
	}
	return nil
}

func (d *Decoder) sigPropPass(raw bool) {
	pw := d.width + 2
	for k := 0; k < d.height; k += 4 {
		for x := 0; x < d.width; x++ {
			for dy := 0; dy < 4 && k+dy < d.height; dy++ {
				y := k + dy
				idx := (y+1)*pw + x + 1
				flags := d.flags[idx]

				if flags&flagSig != 0 || flags&flagSigAny == 0 {
					continue
				}

				var bit int
				if raw {
					bit = d.mq.RawDecode()
				} else {
					bit = d.mq.Decode(zcContext(flags, d.orient))
				}
				d.flags[idx] |= flagVisit

				if bit != 0 {
					d.decodeSign(x, y, idx, flags, raw)
				}
			}
		}
	}
}

func (d *Decoder) magRefPass(raw bool) {
	pw := d.width + 2
	for k := 0; k < d.height; k += 4 {
		for x := 0; x < d.width; x++ {
			for dy := 0; dy < 4 && k+dy < d.height; dy++ {
				y := k + dy
				idx := (y+1)*pw + x + 1
				flags := d.flags[idx]

				if flags&flagSig == 0 || flags&flagVisit != 0 {
					continue
				}

				var bit int
				if raw {
					bit = d.mq.RawDecode()
				} else {
					bit = d.mq.Decode(mrContext(flags))
				}
				if bit != 0 {
					if d.data[idx] >= 0 {
						d.data[idx] += 1 << uint(d.bitplane)
					} else {
						d.data[idx] -= 1 << uint(d.bitplane)
					}
				}
				d.flags[idx] |= flagRefine
			}
		}
	}
}

func (d *Decoder) cleanupPass() {
	pw := d.width + 2
	for k := 0; k < d.height; k += 4 {
		for x := 0; x < d.width; x++ {
			if k+3 < d.height && d.columnIsQuiet(k, x) {
				if d.mq.Decode(ctxRunLen) == 0 {
					continue
				}
				runAt := d.mq.Decode(ctxUniform) << 1
				runAt |= d.mq.Decode(ctxUniform)

				implicit := true
				for dy := runAt; dy < 4; dy++ {
					y := k + dy
					idx := (y+1)*pw + x + 1
					flags := d.flags[idx]

					if flags&flagVisit != 0 || flags&flagSig != 0 {
						d.flags[idx] &^= flagVisit
						continue
					}

					sig := 0
					if implicit {
						sig = 1
						implicit = false
					} else {
						sig = d.mq.Decode(zcContext(flags, d.orient))
					}
					if sig != 0 {
						d.decodeSign(x, y, idx, flags, false)
					}
					d.flags[idx] &^= flagVisit
				}
				continue
			}

			for dy := 0; dy < 4 && k+dy < d.height; dy++ {
				y := k + dy
				idx := (y+1)*pw + x + 1
				flags := d.flags[idx]

				if flags&flagVisit != 0 || flags&flagSig != 0 {
					d.flags[idx] &^= flagVisit
					continue
				}

				if d.mq.Decode(zcContext(flags, d.orient)) != 0 {
					d.decodeSign(x, y, idx, flags, false)
				}
				d.flags[idx] &^= flagVisit
			}
		}
	}
}

func (d *Decoder) columnIsQuiet(k, x int) bool {
	pw := d.width + 2
	for dy := 0; dy < 4; dy++ {
		f := d.flags[(k+dy+1)*pw+x+1]
		if f&flagVisit != 0 || f&flagSig != 0 || f&flagSigAny != 0 {
			return false
		}
	}
	return true
}

func (d *Decoder) decodeSign(x, y, idx int, flags uint32, raw bool) {
	var sign int
	if raw {
		sign = d.mq.RawDecode()
	} else {
		sign = d.mq.Decode(scContext(flags)) ^ signPredict(flags)
	}

	v := int32(1) << uint(d.bitplane)
	if sign != 0 {
		d.flags[idx] |= flagSign
		v = -v
	}
	d.data[idx] = v
	d.flags[idx] |= flagSig
	d.markNeighbours(x, y, idx)
}

func (d *Decoder) markNeighbours(x, y, idx int) {
	pw := d.width + 2
	neg := d.flags[idx]&flagSign != 0

	n := y*pw + x + 1
	d.flags[n] |= flagSigS
	if neg {
		d.flags[n] |= flagSignS
	}
	s := (y+2)*pw + x + 1
	d.flags[s] |= flagSigN
	if neg {
		d.flags[s] |= flagSignN
	}
	w := (y+1)*pw + x
	d.flags[w] |= flagSigE
	if neg {
		d.flags[w] |= flagSignE
	}
	e := (y+1)*pw + x + 2
	d.flags[e] |= flagSigW
	if neg {
		d.flags[e] |= flagSignW
	}
	d.flags[y*pw+x] |= flagSigSE
	d.flags[y*pw+x+2] |= flagSigSW
	d.flags[(y+2)*pw+x] |= flagSigNE
	d.flags[(y+2)*pw+x+2] |= flagSigNW
}
