package t1

import (
	"fmt"

	"github.com/cocosip/go-j2k/jpeg2000/mqc"
)

// Encoder codes one code block into a sequence of terminated coding
// passes. Every pass ends as its own codeword segment, so Tier-2 can
// carry exact per-pass lengths and the rate allocator can truncate at any
// pass boundary.
type Encoder struct {
	width  int
	height int
	orient int
	style  int

	data  []int32  // padded (w+2)x(h+2), sign-magnitude source values
	flags []uint32 // padded per-sample state

	mq       *mqc.Encoder
	bitplane int

	weight  float64 // subband distortion weight
	distAcc float64
}

// NewEncoder creates a Tier-1 encoder for blocks of the given geometry.
// orient is the subband orientation (0=LL, 1=HL, 2=LH, 3=HH); style is a
// combination of the Table A.18 flags.
func NewEncoder(width, height, orient, style int) *Encoder {
	return &Encoder{
		width:  width,
		height: height,
		orient: orient,
		style:  style,
	}
}

// Encode codes the block coefficients (two's-complement int32) and returns
// the pass list plus the concatenated codeword segments. weight scales the
// distortion estimates recorded per pass.
func (e *Encoder) Encode(coeffs []int32, weight float64) (*Block, error) {
	if len(coeffs) != e.width*e.height {
		return nil, fmt.Errorf("t1: coefficient count %d does not match %dx%d block",
			len(coeffs), e.width, e.height)
	}

	pw := e.width + 2
	e.data = make([]int32, pw*(e.height+2))
	e.flags = make([]uint32, pw*(e.height+2))
	for y := 0; y < e.height; y++ {
		for x := 0; x < e.width; x++ {
			e.data[(y+1)*pw+x+1] = coeffs[y*e.width+x]
		}
	}

	maxBP := e.maxBitplane()
	blk := &Block{Width: e.width, Height: e.height}
	if maxBP < 0 {
		return blk, nil
	}
	blk.NumBitplanes = maxBP + 1

	e.weight = weight
	e.distAcc = 0
	e.mq = mqc.NewEncoder(numContexts)
	e.initStates()

	pterm := e.style&StylePterm != 0
	passIdx := 0
	prevCum := 0
	bp, passType := maxBP, PassCleanup

	for bp >= 0 {
		if passType == PassSigProp || passIdx == 0 {
			e.clearVisited()
		}

		raw := isRawPass(bp, maxBP, passType, e.style)
		if passIdx > 0 {
			if raw {
				e.mq.BypassStart()
			} else {
				e.mq.Restart()
			}
		}

		e.bitplane = bp
		switch passType {
		case PassSigProp:
			e.sigPropPass(raw)
		case PassMagRef:
			e.magRefPass(raw)
		case PassCleanup:
			e.cleanupPass()
			if e.style&StyleSegsym != 0 {
				e.mq.Segmark(ctxUniform)
			}
		}

		// Terminate every pass so Tier-2 signals one segment per pass.
		switch {
		case raw:
			e.mq.BypassTerminate(pterm)
		case pterm:
			e.mq.TerminatePredictable()
		default:
			e.mq.Terminate()
		}

		cum := e.mq.Len()
		blk.Passes = append(blk.Passes, Pass{
			Index:      passIdx,
			Bitplane:   bp,
			Type:       passType,
			Len:        cum - prevCum,
			CumLen:     cum,
			Distortion: e.distAcc,
		})
		prevCum = cum

		if e.style&StyleReset != 0 {
			e.mq.ResetStates()
			e.initStates()
		}

		passIdx++
		bp, passType = nextPass(bp, passType)
	}

	blk.Data = append([]byte(nil), e.mq.Bytes()...)
	return blk, nil
}

// initStates applies the Annex D initial context states.
func (e *Encoder) initStates() {
	e.mq.SetState(ctxUniform, 46)
	e.mq.SetState(ctxRunLen, 3)
	e.mq.SetState(ctxZCStart, 4)
}

func (e *Encoder) clearVisited() {
	for i := range e.flags {
		e.flags[i] &^= flagVisit
	}
}

func (e *Encoder) maxBitplane() int {
	var m int32
	for _, v := range e.data {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	if m == 0 {
		return -1
	}
	bp := -1
	for m > 0 {
		m >>= 1
		bp++
	}
	return bp
}

// sigPropPass codes samples that are insignificant but have a significant
// neighbour, in stripe order.
func (e *Encoder) sigPropPass(raw bool) {
	pw := e.width + 2
	for k := 0; k < e.height; k += 4 {
		for x := 0; x < e.width; x++ {
			for dy := 0; dy < 4 && k+dy < e.height; dy++ {
				y := k + dy
				idx := (y+1)*pw + x + 1
				flags := e.flags[idx]

				if flags&flagSig != 0 || flags&flagSigAny == 0 {
					continue
				}

				v := e.data[idx]
				if v < 0 {
					v = -v
				}
				bit := int(v>>uint(e.bitplane)) & 1

				if raw {
					e.mq.BypassEncode(bit)
				} else {
					e.mq.Encode(bit, zcContext(flags, e.orient))
				}
				e.flags[idx] |= flagVisit

				if bit != 0 {
					e.codeSign(x, y, idx, flags, raw)
					e.distAcc += e.weight * sigDelta(e.bitplane)
				}
			}
		}
	}
}

// magRefPass refines already-significant samples.
func (e *Encoder) magRefPass(raw bool) {
	pw := e.width + 2
	for k := 0; k < e.height; k += 4 {
		for x := 0; x < e.width; x++ {
			for dy := 0; dy < 4 && k+dy < e.height; dy++ {
				y := k + dy
				idx := (y+1)*pw + x + 1
				flags := e.flags[idx]

				if flags&flagSig == 0 || flags&flagVisit != 0 {
					continue
				}

				v := e.data[idx]
				if v < 0 {
					v = -v
				}
				bit := int(v>>uint(e.bitplane)) & 1

				if raw {
					e.mq.BypassEncode(bit)
				} else {
					e.mq.Encode(bit, mrContext(flags))
				}
				e.flags[idx] |= flagRefine
				e.distAcc += e.weight * refDelta(e.bitplane)
			}
		}
	}
}

// cleanupPass codes everything the other passes skipped. Columns of four
// untouched samples with silent neighbourhoods use run-length coding.
func (e *Encoder) cleanupPass() {
	pw := e.width + 2
	for k := 0; k < e.height; k += 4 {
		for x := 0; x < e.width; x++ {
			if k+3 < e.height && e.columnIsQuiet(k, x) {
				runAt := -1
				for dy := 0; dy < 4; dy++ {
					idx := (k+dy+1)*pw + x + 1
					v := e.data[idx]
					if v < 0 {
						v = -v
					}
					if (v>>uint(e.bitplane))&1 != 0 {
						runAt = dy
						break
					}
				}

				if runAt < 0 {
					e.mq.Encode(0, ctxRunLen)
					continue
				}
				e.mq.Encode(1, ctxRunLen)
				e.mq.Encode((runAt>>1)&1, ctxUniform)
				e.mq.Encode(runAt&1, ctxUniform)

				implicit := true
				for dy := runAt; dy < 4; dy++ {
					y := k + dy
					idx := (y+1)*pw + x + 1
					flags := e.flags[idx]

					sig := 0
					if implicit {
						sig = 1
						implicit = false
					} else {
						v := e.data[idx]
						if v < 0 {
							v = -v
						}
						sig = int(v>>uint(e.bitplane)) & 1
						e.mq.Encode(sig, zcContext(flags, e.orient))
					}
					if sig != 0 {
						e.codeSign(x, y, idx, flags, false)
						e.distAcc += e.weight * sigDelta(e.bitplane)
					}
					e.flags[idx] &^= flagVisit
				}
				continue
			}

			for dy := 0; dy < 4 && k+dy < e.height; dy++ {
				y := k + dy
				idx := (y+1)*pw + x + 1
				flags := e.flags[idx]

				if flags&flagVisit != 0 || flags&flagSig != 0 {
					e.flags[idx] &^= flagVisit
					continue
				}

				v := e.data[idx]
				if v < 0 {
					v = -v
				}
				sig := int(v>>uint(e.bitplane)) & 1
				e.mq.Encode(sig, zcContext(flags, e.orient))
				if sig != 0 {
					e.codeSign(x, y, idx, flags, false)
					e.distAcc += e.weight * sigDelta(e.bitplane)
				}
				e.flags[idx] &^= flagVisit
			}
		}
	}
}

// columnIsQuiet reports whether the 4-sample column at (k..k+3, x) is
// eligible for run-length coding.
func (e *Encoder) columnIsQuiet(k, x int) bool {
	pw := e.width + 2
	for dy := 0; dy < 4; dy++ {
		f := e.flags[(k+dy+1)*pw+x+1]
		if f&flagVisit != 0 || f&flagSig != 0 || f&flagSigAny != 0 {
			return false
		}
	}
	return true
}

// codeSign emits the sign of a sample that just became significant and
// propagates significance to its neighbours.
func (e *Encoder) codeSign(x, y, idx int, flags uint32, raw bool) {
	sign := 0
	if e.data[idx] < 0 {
		sign = 1
		e.flags[idx] |= flagSign
	}
	if raw {
		e.mq.BypassEncode(sign)
	} else {
		e.mq.Encode(sign^signPredict(flags), scContext(flags))
	}
	e.flags[idx] |= flagSig
	e.markNeighbours(x, y, idx)
}

func (e *Encoder) markNeighbours(x, y, idx int) {
	pw := e.width + 2
	neg := e.flags[idx]&flagSign != 0

	n := y*pw + x + 1
	e.flags[n] |= flagSigS
	if neg {
		e.flags[n] |= flagSignS
	}
	s := (y+2)*pw + x + 1
	e.flags[s] |= flagSigN
	if neg {
		e.flags[s] |= flagSignN
	}
	w := (y+1)*pw + x
	e.flags[w] |= flagSigE
	if neg {
		e.flags[w] |= flagSignE
	}
	ee := (y+1)*pw + x + 2
	e.flags[ee] |= flagSigW
	if neg {
		e.flags[ee] |= flagSignW
	}
	e.flags[y*pw+x] |= flagSigSE
	e.flags[y*pw+x+2] |= flagSigSW
	e.flags[(y+2)*pw+x] |= flagSigNE
	e.flags[(y+2)*pw+x+2] |= flagSigNW
}

// sigDelta approximates the squared-error decrease when a sample becomes
// significant at the given plane; refDelta the decrease for a refinement.
func sigDelta(bitplane int) float64 {
	return 2.25 * float64(uint64(1)<<uint(2*bitplane))
}

func refDelta(bitplane int) float64 {
	return 0.25 * float64(uint64(1)<<uint(2*bitplane))
}
