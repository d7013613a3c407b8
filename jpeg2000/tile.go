package jpeg2000

import (
	"github.com/cocosip/go-j2k/jpeg2000/codestream"
	"github.com/cocosip/go-j2k/jpeg2000/t2"
	"github.com/cocosip/go-j2k/jpeg2000/wavelet"
)

// Tile and subband geometry shared by the encoder and decoder. Tiles are
// cut from the reference grid; each tile-component carries a flat list of
// subbands indexed in QCD order, and per-resolution precinct partitions
// of code blocks.

// tileRect is a tile's region on the reference grid.
type tileRect struct {
	index          int
	x0, y0, x1, y1 int
}

// tileGrid returns the tile counts along each axis.
func tileGrid(siz *codestream.SIZ) (tx, ty int) {
	return siz.NumTiles()
}

// tileRectAt returns tile t (row-major) clipped to the image.
func tileRectAt(siz *codestream.SIZ, t int) tileRect {
	tx, _ := siz.NumTiles()
	i := t % tx
	j := t / tx
	x0 := int(siz.XTOsiz) + i*int(siz.XTsiz)
	y0 := int(siz.YTOsiz) + j*int(siz.YTsiz)
	x1 := x0 + int(siz.XTsiz)
	y1 := y0 + int(siz.YTsiz)
	return tileRect{
		index: t,
		x0:    maxInt(x0, int(siz.XOsiz)),
		y0:    maxInt(y0, int(siz.YOsiz)),
		x1:    minInt(x1, int(siz.Xsiz)),
		y1:    minInt(y1, int(siz.Ysiz)),
	}
}

// subbandInfo places one subband inside the tile-component array.
type subbandInfo struct {
	Res    int // resolution this band belongs to (0 = LL)
	Orient int // 0 LL, 1 HL, 2 LH, 3 HH
	Level  int // decomposition level for norm lookup
	X0, Y0 int // offset in the tile-component array
	W, H   int

	Step   float64 // quantization step (1 for reversible)
	Numbps int     // Mb: guard + exponent - 1 (+ ROI shift)
	Weight float64 // distortion weight for the rate allocator
}

// tileCompGeom is the geometry of one component within one tile.
type tileCompGeom struct {
	X0, Y0, X1, Y1 int // component-grid coordinates
	W, H           int
	Levels         int

	// Subbands indexed in QCD order (LL, then HL/LH/HH per resolution).
	Subbands []subbandInfo

	// Per-resolution window sizes and origins, index 0..Levels.
	ResW, ResH   []int
	ResX0, ResY0 []int
}

// buildTileCompGeom lays out the subband tree of a tile-component.
func buildTileCompGeom(tcx0, tcy0, tcx1, tcy1, levels int) *tileCompGeom {
	g := &tileCompGeom{
		X0: tcx0, Y0: tcy0, X1: tcx1, Y1: tcy1,
		W: tcx1 - tcx0, H: tcy1 - tcy0,
		Levels: levels,
		ResW:   make([]int, levels+1),
		ResH:   make([]int, levels+1),
		ResX0:  make([]int, levels+1),
		ResY0:  make([]int, levels+1),
	}
	g.Subbands = make([]subbandInfo, 3*levels+1)

	cw, ch, cx, cy := g.W, g.H, tcx0, tcy0
	g.ResW[levels], g.ResH[levels] = cw, ch
	g.ResX0[levels], g.ResY0[levels] = cx, cy

	for l := 1; l <= levels; l++ {
		snx := wavelet.SplitLow(cw, cx&1 == 0)
		sny := wavelet.SplitLow(ch, cy&1 == 0)
		res := levels - l + 1

		g.Subbands[qcdIndex(res, 1)] = subbandInfo{
			Res: res, Orient: 1, Level: l - 1,
			X0: snx, Y0: 0, W: cw - snx, H: sny,
		}
		g.Subbands[qcdIndex(res, 2)] = subbandInfo{
			Res: res, Orient: 2, Level: l - 1,
			X0: 0, Y0: sny, W: snx, H: ch - sny,
		}
		g.Subbands[qcdIndex(res, 3)] = subbandInfo{
			Res: res, Orient: 3, Level: l - 1,
			X0: snx, Y0: sny, W: cw - snx, H: ch - sny,
		}

		cw, ch = snx, sny
		cx, cy = (cx+1)>>1, (cy+1)>>1
		g.ResW[res-1], g.ResH[res-1] = cw, ch
		g.ResX0[res-1], g.ResY0[res-1] = cx, cy
	}

	g.Subbands[0] = subbandInfo{
		Res: 0, Orient: 0, Level: levels,
		X0: 0, Y0: 0, W: cw, H: ch,
	}
	return g
}

// precinctExponents resolves the PPx/PPy exponents for a resolution.
// Without explicit precincts the maximal 2^15 partition applies.
func precinctExponents(cod *codestream.COD, res int) (ppx, ppy int) {
	if cod.Scod&codestream.ScodPrecincts == 0 || res >= len(cod.PrecinctSizes) {
		return 15, 15
	}
	return int(cod.PrecinctSizes[res].PPx), int(cod.PrecinctSizes[res].PPy)
}

// numPrecincts returns the precinct count of one resolution.
func (g *tileCompGeom) numPrecincts(cod *codestream.COD, res int) int {
	if res > g.Levels {
		return 0
	}
	if g.ResW[res] == 0 || g.ResH[res] == 0 {
		return 0
	}
	ppx, ppy := precinctExponents(cod, res)
	return ceilDiv(g.ResW[res], 1<<uint(ppx)) * ceilDiv(g.ResH[res], 1<<uint(ppy))
}

// buildPrecincts partitions one resolution into precincts of code blocks.
// Grids anchor at the resolution origin sample; the encoder and decoder
// share this function, so both sides see identical packet structure.
func (g *tileCompGeom) buildPrecincts(cod *codestream.COD, res int) []*t2.Precinct {
	if res > g.Levels || g.ResW[res] == 0 || g.ResH[res] == 0 {
		return nil
	}
	ppx, ppy := precinctExponents(cod, res)
	cbw, cbh := cod.CodeBlockSize()

	// Precinct cells in band coordinates: halved above resolution 0.
	cellW, cellH := 1<<uint(ppx), 1<<uint(ppy)
	if res > 0 {
		cellW >>= 1
		cellH >>= 1
	}
	ebw := minInt(cbw, cellW)
	ebh := minInt(cbh, cellH)

	npx := ceilDiv(g.ResW[res], 1<<uint(ppx))
	npy := ceilDiv(g.ResH[res], 1<<uint(ppy))

	orients := []int{0}
	if res > 0 {
		orients = []int{1, 2, 3}
	}

	precincts := make([]*t2.Precinct, 0, npx*npy)
	for py := 0; py < npy; py++ {
		for px := 0; px < npx; px++ {
			p := &t2.Precinct{Index: py*npx + px}
			for _, orient := range orients {
				sb := g.Subbands[qcdIndex(res, orient)]
				bx0 := px * cellW
				by0 := py * cellH
				bx1 := minInt(bx0+cellW, sb.W)
				by1 := minInt(by0+cellH, sb.H)
				if bx0 >= bx1 || by0 >= by1 {
					p.Bands = append(p.Bands, t2.NewBand(orient, 0, 0, nil))
					continue
				}
				cbx0 := bx0 / ebw
				cbx1 := ceilDiv(bx1, ebw)
				cby0 := by0 / ebh
				cby1 := ceilDiv(by1, ebh)
				numCBX := cbx1 - cbx0
				numCBY := cby1 - cby0

				blocks := make([]*t2.CodeBlock, 0, numCBX*numCBY)
				for cy := cby0; cy < cby1; cy++ {
					for cx := cbx0; cx < cbx1; cx++ {
						blocks = append(blocks, &t2.CodeBlock{
							X0:     cx * ebw,
							Y0:     cy * ebh,
							X1:     minInt(cx*ebw+ebw, sb.W),
							Y1:     minInt(cy*ebh+ebh, sb.H),
							Orient: orient,
						})
					}
				}
				p.Bands = append(p.Bands, t2.NewBand(orient, numCBX, numCBY, blocks))
			}
			precincts = append(precincts, p)
		}
	}
	return precincts
}

// applyQuant fills Step/Numbps/Weight for each subband from the resolved
// quantization segment, the component's dynamic range and the ROI shift.
// mctBump is 1 when a component transform widens the range by one bit.
func (g *tileCompGeom) applyQuant(qcd *codestream.QCD, depth, mctBump, roiShift int, reversible bool) {
	guard := qcd.GuardBits()
	rb := depth + mctBump
	for i := range g.Subbands {
		sb := &g.Subbands[i]
		idx := qcdIndex(sb.Res, sb.Orient)
		gain := bandGain(sb.Orient)

		switch qcd.Style() {
		case codestream.QuantNone:
			sb.Step = 1
			expn := qcd.Exponent(idx)
			if expn == 0 {
				expn = rb + gain
			}
			sb.Numbps = guard + expn - 1 + roiShift
		case codestream.QuantDerived:
			// Derived: one base value, exponent scaled by level.
			base := qcd.StepValue(0)
			expn := int(base>>11)&0x1F - (g.Levels - sb.Level)
			if expn < 0 {
				expn = 0
			}
			enc := uint16(expn)<<11 | base&0x7FF
			sb.Step = decodeStepSize(enc, rb+gain)
			sb.Numbps = guard + expn - 1 + roiShift
		default: // scalar expounded
			enc := qcd.StepValue(idx)
			sb.Step = decodeStepSize(enc, rb+gain)
			sb.Numbps = guard + int(enc>>11)&0x1F - 1 + roiShift
		}

		if reversible {
			sb.Weight = 1
		} else {
			n := dwtNorm97(sb.Level, sb.Orient)
			sb.Weight = n * n * sb.Step * sb.Step
		}
	}
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
