package jpeg2000

import (
	"context"
	"errors"
	"fmt"

	"github.com/cocosip/go-j2k/jpeg2000/codestream"
	"github.com/cocosip/go-j2k/jpeg2000/colorspace"
	"github.com/cocosip/go-j2k/jpeg2000/t1"
	"github.com/cocosip/go-j2k/jpeg2000/t2"
	"github.com/cocosip/go-j2k/jpeg2000/wavelet"
)

// Decoder turns a Part 1 codestream back into sample planes.
type Decoder struct {
	// BestEffort keeps decoding after a tile fails: the failing tile
	// reconstructs as zero samples and the error lands in Warnings.
	BestEffort bool

	cs       *codestream.Codestream
	data     [][]int32
	warnings []error
}

// NewDecoder creates a decoder with default (strict) behaviour.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode parses and decodes a complete codestream.
func (d *Decoder) Decode(data []byte) error {
	return d.DecodeContext(context.Background(), data)
}

// DecodeContext decodes, checking the context at tile boundaries.
func (d *Decoder) DecodeContext(ctx context.Context, data []byte) error {
	cs, err := codestream.Parse(data)
	if err != nil {
		return err
	}
	d.cs = cs
	d.warnings = nil

	siz := cs.SIZ
	for c, comp := range siz.Components {
		if comp.BitDepth() > 31 {
			return codestream.Unsupportedf(-1,
				"component %d depth %d exceeds this implementation's 31-bit sample range", c, comp.BitDepth())
		}
	}
	w := int(siz.Xsiz) - int(siz.XOsiz)
	h := int(siz.Ysiz) - int(siz.YOsiz)
	d.data = make([][]int32, siz.Csiz)
	for c := range d.data {
		d.data[c] = make([]int32, w*h)
	}

	tx, ty := tileGrid(siz)
	for t := 0; t < tx*ty; t++ {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		tile := cs.TileByIndex(t)
		if tile == nil {
			err := codestream.Truncatedf(-1, "tile %d absent from codestream", t)
			if !d.BestEffort {
				return err
			}
			d.warnings = append(d.warnings, err)
			continue
		}
		if err := d.decodeTile(tile); err != nil {
			if !d.BestEffort {
				return fmt.Errorf("tile %d: %w", t, err)
			}
			d.warnings = append(d.warnings, fmt.Errorf("tile %d: %w", t, err))
			d.zeroTile(t)
		}
	}

	d.inverseMCT()
	d.levelUnshift()
	return nil
}

// Warnings returns the per-tile errors collected in best-effort mode.
func (d *Decoder) Warnings() []error { return d.warnings }

// Width returns the decoded image width.
func (d *Decoder) Width() int {
	return int(d.cs.SIZ.Xsiz) - int(d.cs.SIZ.XOsiz)
}

// Height returns the decoded image height.
func (d *Decoder) Height() int {
	return int(d.cs.SIZ.Ysiz) - int(d.cs.SIZ.YOsiz)
}

// Components returns the component count.
func (d *Decoder) Components() int { return int(d.cs.SIZ.Csiz) }

// BitDepth returns the first component's sample precision.
func (d *Decoder) BitDepth() int { return d.cs.SIZ.Components[0].BitDepth() }

// Signed reports whether the first component is signed.
func (d *Decoder) Signed() bool { return d.cs.SIZ.Components[0].Signed() }

// ComponentData returns one decoded plane.
func (d *Decoder) ComponentData(c int) ([]int32, error) {
	if c < 0 || c >= len(d.data) {
		return nil, codestream.InvalidParameterf("component %d out of range", c)
	}
	return d.data[c], nil
}

// PixelData returns interleaved little-endian samples.
func (d *Decoder) PixelData() []byte {
	depth := d.BitDepth()
	bytesPer := (depth + 7) / 8
	if bytesPer > 2 {
		bytesPer = 4
	}
	n := d.Width() * d.Height()
	out := make([]byte, n*len(d.data)*bytesPer)
	pos := 0
	for i := 0; i < n; i++ {
		for c := range d.data {
			v := uint32(d.data[c][i])
			for b := 0; b < bytesPer; b++ {
				out[pos] = byte(v >> uint(8*b))
				pos++
			}
		}
	}
	return out
}

func (d *Decoder) decodeTile(tile *codestream.Tile) error {
	cs := d.cs
	siz := cs.SIZ
	rect := tileRectAt(siz, tile.Index)
	if rect.x0 >= rect.x1 || rect.y0 >= rect.y1 {
		return codestream.Malformedf(-1, "tile region is empty")
	}

	numComps := int(siz.Csiz)
	geoms := make([]*tileCompGeom, numComps)
	precincts := make([][][]*t2.Precinct, numComps)
	cods := make([]*codestream.COD, numComps)

	maxRes := 0
	for c := 0; c < numComps; c++ {
		cod := cs.ComponentCOD(tile, c)
		qcd := cs.ComponentQCD(tile, c)
		if cod == nil || qcd == nil {
			return codestream.MissingMarkerf(-1, "no COD/QCD for component %d", c)
		}
		cods[c] = cod

		g := buildTileCompGeom(rect.x0, rect.y0, rect.x1, rect.y1, int(cod.NumLevels))
		mctBump := 0
		if cod.MCT == 1 {
			mctBump = 1
		}
		g.applyQuant(qcd, siz.Components[c].BitDepth(), mctBump, cs.ROIShift(tile, c), cod.Transform == 1)
		geoms[c] = g

		precincts[c] = make([][]*t2.Precinct, int(cod.NumLevels)+1)
		for r := 0; r <= int(cod.NumLevels); r++ {
			precincts[c][r] = g.buildPrecincts(cod, r)
		}
		if int(cod.NumLevels)+1 > maxRes {
			maxRes = int(cod.NumLevels) + 1
		}
	}

	baseCOD := cs.COD
	if tile.COD != nil {
		baseCOD = tile.COD
	}
	numLayers := int(baseCOD.NumLayers)
	numPrec := func(c, r int) int {
		if r >= len(precincts[c]) {
			return 0
		}
		return len(precincts[c][r])
	}

	var seq *t2.Sequence
	pocs := tile.POC
	if len(pocs) == 0 {
		pocs = cs.POC
	}
	if len(pocs) > 0 {
		vols := make([]t2.Volume, len(pocs))
		for i, e := range pocs {
			vols[i] = t2.Volume{
				Order:     int(e.Ppoc),
				LayerEnd:  int(e.LYEpoc),
				ResStart:  int(e.RSpoc),
				ResEnd:    int(e.REpoc),
				CompStart: int(e.CSpoc),
				CompEnd:   int(e.CEpoc),
			}
		}
		seq = t2.NewSequenceVolumes(numComps, numLayers, maxRes, numPrec, vols)
	} else {
		seq = t2.NewSequence(numComps, numLayers, maxRes, numPrec, int(baseCOD.ProgressionOrder))
	}

	style := int(baseCOD.CodeBlockStyle)
	pd := t2.NewPacketDecoder(tile.Data,
		style&styleTermAll != 0,
		baseCOD.Scod&codestream.ScodSOP != 0,
		baseCOD.Scod&codestream.ScodEPH != 0)

	for {
		coord, ok := seq.Next()
		if !ok {
			break
		}
		if coord.Resolution >= len(precincts[coord.Component]) {
			continue
		}
		prec := precincts[coord.Component][coord.Resolution]
		if coord.Precinct >= len(prec) {
			continue
		}
		if err := pd.DecodePacket(prec[coord.Precinct], coord.Layer); err != nil {
			if errors.Is(err, t2.ErrTruncatedPacket) {
				return codestream.Truncatedf(int64(pd.Pos()), "packet %v", coord)
			}
			return codestream.Corruptf(int64(pd.Pos()), "packet %v: %v", coord, err)
		}
	}

	// Tier-1 per component, then dequantize and inverse DWT.
	for c := 0; c < numComps; c++ {
		if err := d.reconstructComponent(tile, c, geoms[c], precincts[c], cods[c]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) reconstructComponent(tile *codestream.Tile, c int, g *tileCompGeom, precincts [][]*t2.Precinct, cod *codestream.COD) error {
	cs := d.cs
	siz := cs.SIZ
	reversible := cod.Transform == 1
	style := int(cod.CodeBlockStyle)
	roiShift := cs.ROIShift(tile, c)
	tw, th := g.W, g.H

	coeffs := make([]int32, tw*th)
	for r := 0; r < len(precincts); r++ {
		for _, prec := range precincts[r] {
			for _, band := range prec.Bands {
				sb := g.Subbands[qcdIndex(r, band.Orient)]
				for _, cb := range band.Blocks {
					if cb.TotalPasses() == 0 {
						continue
					}
					bw, bh := cb.Width(), cb.Height()
					dec := t1.NewDecoder(bw, bh, band.Orient, style)
					start := sb.Numbps - 1 - cb.ZeroBitPlanes
					if start < 0 {
						return codestream.Corruptf(-1,
							"zero-bit-plane count %d exceeds dynamic range %d", cb.ZeroBitPlanes, sb.Numbps)
					}
					if err := dec.Decode(cb.Data, cb.SegLens, start); err != nil {
						return codestream.Corruptf(-1, "code block: %v", err)
					}
					vals := dec.Coefficients()
					for y := 0; y < bh; y++ {
						dst := (sb.Y0+cb.Y0+y)*tw + sb.X0 + cb.X0
						copy(coeffs[dst:dst+bw], vals[y*bw:(y+1)*bw])
					}
				}
			}
		}
	}

	if roiShift > 0 {
		for i, v := range coeffs {
			if v >= 0 {
				coeffs[i] = v >> uint(roiShift)
			} else {
				coeffs[i] = -((-v) >> uint(roiShift))
			}
		}
	}

	levels := int(cod.NumLevels)
	if reversible {
		wavelet.Inverse53Multi(coeffs, tw, th, levels, g.X0, g.Y0)
	} else {
		fdata := make([]float64, tw*th)
		for i := range g.Subbands {
			sb := &g.Subbands[i]
			for y := 0; y < sb.H; y++ {
				row := (sb.Y0 + y) * tw
				for x := 0; x < sb.W; x++ {
					fdata[row+sb.X0+x] = dequantize(coeffs[row+sb.X0+x], sb.Step)
				}
			}
		}
		wavelet.Inverse97Multi(fdata, tw, th, levels, g.X0, g.Y0)
		for i, v := range fdata {
			if v >= 0 {
				coeffs[i] = int32(v + 0.5)
			} else {
				coeffs[i] = int32(v - 0.5)
			}
		}
	}

	// Place the tile into the image plane.
	imgW := d.Width()
	offX := g.X0 - int(siz.XOsiz)
	offY := g.Y0 - int(siz.YOsiz)
	for y := 0; y < th; y++ {
		dst := (offY+y)*imgW + offX
		copy(d.data[c][dst:dst+tw], coeffs[y*tw:(y+1)*tw])
	}
	return nil
}

func (d *Decoder) zeroTile(t int) {
	siz := d.cs.SIZ
	rect := tileRectAt(siz, t)
	imgW := d.Width()
	for c := range d.data {
		for y := rect.y0 - int(siz.YOsiz); y < rect.y1-int(siz.YOsiz); y++ {
			row := y*imgW + rect.x0 - int(siz.XOsiz)
			for x := 0; x < rect.x1-rect.x0; x++ {
				d.data[c][row+x] = 0
			}
		}
	}
}

func (d *Decoder) inverseMCT() {
	cs := d.cs
	if cs.COD == nil || cs.COD.MCT != 1 || len(d.data) < 3 {
		return
	}
	if cs.COD.Transform == 1 {
		colorspace.RCTInversePlanes(d.data[0], d.data[1], d.data[2])
	} else {
		colorspace.ICTInversePlanes(d.data[0], d.data[1], d.data[2])
	}
}

func (d *Decoder) levelUnshift() {
	siz := d.cs.SIZ
	for c := range d.data {
		comp := siz.Components[c]
		depth := comp.BitDepth()
		if comp.Signed() {
			lo := -(int32(1) << uint(depth-1))
			hi := int32(1)<<uint(depth-1) - 1
			clampPlane(d.data[c], lo, hi)
			continue
		}
		offset := int32(1) << uint(depth-1)
		for i := range d.data[c] {
			d.data[c][i] += offset
		}
		clampPlane(d.data[c], 0, int32(int64(1)<<uint(depth)-1))
	}
}

func clampPlane(p []int32, lo, hi int32) {
	for i := range p {
		if p[i] < lo {
			p[i] = lo
		} else if p[i] > hi {
			p[i] = hi
		}
	}
}
