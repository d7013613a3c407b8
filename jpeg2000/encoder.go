package jpeg2000

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cocosip/go-j2k/jpeg2000/codestream"
	"github.com/cocosip/go-j2k/jpeg2000/colorspace"
	"github.com/cocosip/go-j2k/jpeg2000/t1"
	"github.com/cocosip/go-j2k/jpeg2000/t2"
	"github.com/cocosip/go-j2k/jpeg2000/wavelet"
)

// Encoder turns sample planes into a Part 1 codestream.
type Encoder struct {
	params *EncodeParams
	data   [][]int32
}

// NewEncoder creates an encoder with the given parameters.
func NewEncoder(params *EncodeParams) *Encoder {
	return &Encoder{params: params}
}

// Encode encodes interleaved little-endian pixel data.
func (e *Encoder) Encode(pixelData []byte) ([]byte, error) {
	if err := e.params.Validate(); err != nil {
		return nil, err
	}
	comps, err := deinterleave(pixelData, e.params)
	if err != nil {
		return nil, err
	}
	return e.EncodeComponents(comps)
}

// EncodeComponents encodes planar component data.
func (e *Encoder) EncodeComponents(components [][]int32) ([]byte, error) {
	return e.EncodeComponentsContext(context.Background(), components)
}

// EncodeComponentsContext encodes planar component data, checking the
// context at tile boundaries and inside the rate allocator.
func (e *Encoder) EncodeComponentsContext(ctx context.Context, components [][]int32) ([]byte, error) {
	p := e.params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(components) != p.Components {
		return nil, codestream.InvalidParameterf("got %d component planes, want %d",
			len(components), p.Components)
	}
	for c, plane := range components {
		if len(plane) != p.Width*p.Height {
			return nil, codestream.InvalidParameterf("component %d has %d samples, want %d",
				c, len(plane), p.Width*p.Height)
		}
	}

	// Work on copies: the level shift and MCT mutate in place.
	e.data = make([][]int32, len(components))
	for c := range components {
		e.data[c] = append([]int32(nil), components[c]...)
	}

	e.levelShift()
	useMCT := p.EnableMCT && p.Components == 3
	if useMCT {
		if p.Lossless {
			colorspace.RCTForwardPlanes(e.data[0], e.data[1], e.data[2])
		} else {
			colorspace.ICTForwardPlanes(e.data[0], e.data[1], e.data[2])
		}
	}

	siz := e.buildSIZ()
	cod := e.buildCOD(useMCT)
	qcd := e.buildQCD(useMCT)

	tx, ty := tileGrid(siz)
	numTiles := tx * ty

	// Tiles are independent after the main header: encode them on
	// parallel workers, then concatenate in tile order.
	tileParts := make([][]byte, numTiles)
	g, gctx := errgroup.WithContext(ctx)
	for t := 0; t < numTiles; t++ {
		g.Go(func() error {
			if err := checkCancel(gctx); err != nil {
				return err
			}
			part, err := e.encodeTile(gctx, siz, cod, qcd, t)
			if err != nil {
				return fmt.Errorf("tile %d: %w", t, err)
			}
			tileParts[t] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sink := codestream.NewBufferSink()
	w := codestream.NewWriter(sink)
	if err := w.WriteSOC(); err != nil {
		return nil, err
	}
	if err := w.WriteSIZ(siz); err != nil {
		return nil, err
	}
	if err := w.WriteCOD(cod); err != nil {
		return nil, err
	}
	if err := w.WriteQCD(qcd); err != nil {
		return nil, err
	}
	for c, shift := range p.ROIShifts {
		if shift > 0 {
			rgn := &codestream.RGN{Crgn: uint16(c), Srgn: 0, SPrgn: uint8(shift)}
			if err := w.WriteRGN(rgn, p.Components); err != nil {
				return nil, err
			}
		}
	}
	if p.Comment != "" {
		com := &codestream.COM{Rcom: 1, Data: []byte(p.Comment)}
		if err := w.WriteCOM(com); err != nil {
			return nil, err
		}
	}
	if p.WriteTLM {
		idx := make([]uint16, numTiles)
		lens := make([]uint32, numTiles)
		for t := range tileParts {
			idx[t] = uint16(t)
			lens[t] = uint32(len(tileParts[t]))
		}
		if err := w.WriteTLM(0, idx, lens); err != nil {
			return nil, err
		}
	}
	for _, part := range tileParts {
		if err := w.WriteRaw(part); err != nil {
			return nil, err
		}
	}
	if err := w.WriteEOC(); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

func (e *Encoder) levelShift() {
	if e.params.IsSigned {
		return
	}
	offset := int32(1) << uint(e.params.BitDepth-1)
	for _, plane := range e.data {
		for i := range plane {
			plane[i] -= offset
		}
	}
}

func (e *Encoder) buildSIZ() *codestream.SIZ {
	p := e.params
	tw, th := p.TileWidth, p.TileHeight
	if tw <= 0 {
		tw = p.Width
	}
	if th <= 0 {
		th = p.Height
	}
	s := &codestream.SIZ{
		Rsiz:   0,
		Xsiz:   uint32(p.Width),
		Ysiz:   uint32(p.Height),
		XTsiz:  uint32(tw),
		YTsiz:  uint32(th),
		Csiz:   uint16(p.Components),
	}
	ssiz := uint8(p.BitDepth - 1)
	if p.IsSigned {
		ssiz |= 0x80
	}
	s.Components = make([]codestream.ComponentSIZ, p.Components)
	for c := range s.Components {
		s.Components[c] = codestream.ComponentSIZ{Ssiz: ssiz, XRsiz: 1, YRsiz: 1}
	}
	return s
}

func (e *Encoder) buildCOD(useMCT bool) *codestream.COD {
	p := e.params
	cod := &codestream.COD{
		ProgressionOrder: uint8(p.ProgressionOrder),
		NumLayers:        uint16(p.NumLayers),
		NumLevels:        uint8(p.NumLevels),
		CodeBlockWidth:   uint8(log2(p.CodeBlockWidth) - 2),
		CodeBlockHeight:  uint8(log2(p.CodeBlockHeight) - 2),
		CodeBlockStyle:   uint8(p.codeBlockStyle()),
	}
	if p.Lossless {
		cod.Transform = 1
	}
	if useMCT {
		cod.MCT = 1
	}
	if p.UseSOP {
		cod.Scod |= codestream.ScodSOP
	}
	if p.UseEPH {
		cod.Scod |= codestream.ScodEPH
	}
	if p.PrecinctWidth > 0 && p.PrecinctHeight > 0 {
		cod.Scod |= codestream.ScodPrecincts
		cod.PrecinctSizes = make([]codestream.PrecinctSize, p.NumLevels+1)
		for r := range cod.PrecinctSizes {
			cod.PrecinctSizes[r] = codestream.PrecinctSize{
				PPx: uint8(log2(p.PrecinctWidth)),
				PPy: uint8(log2(p.PrecinctHeight)),
			}
		}
	}
	return cod
}

func (e *Encoder) buildQCD(useMCT bool) *codestream.QCD {
	p := e.params
	numBands := 3*p.NumLevels + 1
	rb := p.BitDepth
	if useMCT {
		// The component transform widens the chroma range by one bit;
		// every band carries the bump so the QCD stays shared.
		rb++
	}
	if p.Lossless {
		q := &codestream.QCD{Sqcd: uint8(p.GuardBits) << 5}
		q.SPqcd = make([]byte, numBands)
		for idx := 0; idx < numBands; idx++ {
			_, orient, _ := subbandOrder(idx, p.NumLevels)
			q.SPqcd[idx] = uint8(rb+bandGain(orient)) << 3
		}
		return q
	}

	steps := stepSizes97(p.NumLevels, p.Quality)
	q := &codestream.QCD{Sqcd: uint8(codestream.QuantExpounded) | uint8(p.GuardBits)<<5}
	q.SPqcd = make([]byte, 2*numBands)
	for idx := 0; idx < numBands; idx++ {
		_, orient, _ := subbandOrder(idx, p.NumLevels)
		enc := encodeStepSize(steps[idx], rb+bandGain(orient))
		q.SPqcd[2*idx] = byte(enc >> 8)
		q.SPqcd[2*idx+1] = byte(enc)
	}
	return q
}

// encodeTile runs DWT, quantization, Tier-1, PCRD-opt and Tier-2 for one
// tile and returns its complete tile-part bytes (SOT through data).
func (e *Encoder) encodeTile(ctx context.Context, siz *codestream.SIZ, cod *codestream.COD, qcd *codestream.QCD, t int) ([]byte, error) {
	p := e.params
	rect := tileRectAt(siz, t)
	if rect.x0 >= rect.x1 || rect.y0 >= rect.y1 {
		return nil, codestream.InvalidParameterf("tile %d is empty", t)
	}

	style := p.codeBlockStyle()
	precincts := make([][][]*t2.Precinct, p.Components) // [comp][res][idx]
	var allBlocks []*t2.CodeBlock
	totalBytes := 0

	for c := 0; c < p.Components; c++ {
		g := buildTileCompGeom(rect.x0, rect.y0, rect.x1, rect.y1, p.NumLevels)
		roiShift := 0
		if c < len(p.ROIShifts) {
			roiShift = p.ROIShifts[c]
		}
		mctBump := 0
		if cod.MCT == 1 {
			mctBump = 1
		}
		g.applyQuant(qcd, p.BitDepth, mctBump, roiShift, p.Lossless)

		coeffs, err := e.transformTileComp(g, c, roiShift)
		if err != nil {
			return nil, err
		}

		precincts[c] = make([][]*t2.Precinct, p.NumLevels+1)
		for r := 0; r <= p.NumLevels; r++ {
			precincts[c][r] = g.buildPrecincts(cod, r)
			for _, prec := range precincts[c][r] {
				for _, band := range prec.Bands {
					sb := g.Subbands[qcdIndex(r, band.Orient)]
					for _, cb := range band.Blocks {
						if err := e.encodeBlock(cb, &sb, coeffs, g.W, style); err != nil {
							return nil, err
						}
						if n := len(cb.Passes); n > 0 {
							totalBytes += cb.Passes[n-1].CumLen
						}
						allBlocks = append(allBlocks, cb)
					}
				}
			}
		}
	}

	pixelBytes := (rect.x1 - rect.x0) * (rect.y1 - rect.y0) * p.Components * ((p.BitDepth + 7) / 8)
	budgets := layerBudgets(p, totalBytes, pixelBytes)
	if err := allocateLayers(ctx, allBlocks, budgets, 0.005); err != nil {
		return nil, err
	}

	// Tier-2: packets in progression order.
	numRes := p.NumLevels + 1
	numPrec := func(c, r int) int { return len(precincts[c][r]) }
	seq := t2.NewSequence(p.Components, p.NumLayers, numRes, numPrec, p.ProgressionOrder)

	pe := &t2.PacketEncoder{
		TermAll: true,
		UseSOP:  p.UseSOP,
		UseEPH:  p.UseEPH,
	}
	var body []byte
	for {
		coord, ok := seq.Next()
		if !ok {
			break
		}
		pkt, err := pe.EncodePacket(precincts[coord.Component][coord.Resolution][coord.Precinct], coord.Layer)
		if err != nil {
			return nil, err
		}
		body = append(body, pkt...)
	}

	// Tile-part: SOT segment (12 bytes) + SOD (2) + body.
	sink := codestream.NewBufferSink()
	w := codestream.NewWriter(sink)
	sot := &codestream.SOT{
		Isot:  uint16(t),
		Psot:  uint32(12 + 2 + len(body)),
		TPsot: 0,
		TNsot: 1,
	}
	if err := w.WriteSOT(sot); err != nil {
		return nil, err
	}
	if err := w.WriteSOD(); err != nil {
		return nil, err
	}
	if err := w.WriteRaw(body); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// transformTileComp extracts one tile-component, runs the wavelet
// transform, quantizes, and applies the ROI MaxShift scaling. The result
// uses the in-place subband layout of the geometry.
func (e *Encoder) transformTileComp(g *tileCompGeom, comp, roiShift int) ([]int32, error) {
	p := e.params
	plane := e.data[comp]
	tw, th := g.W, g.H

	tileData := make([]int32, tw*th)
	for y := 0; y < th; y++ {
		src := (g.Y0+y)*p.Width + g.X0
		copy(tileData[y*tw:(y+1)*tw], plane[src:src+tw])
	}

	if p.Lossless {
		wavelet.Forward53Multi(tileData, tw, th, g.Levels, g.X0, g.Y0)
	} else {
		fdata := make([]float64, tw*th)
		for i, v := range tileData {
			fdata[i] = float64(v)
		}
		wavelet.Forward97Multi(fdata, tw, th, g.Levels, g.X0, g.Y0)
		for i := range g.Subbands {
			sb := &g.Subbands[i]
			for y := 0; y < sb.H; y++ {
				row := (sb.Y0 + y) * tw
				for x := 0; x < sb.W; x++ {
					tileData[row+sb.X0+x] = quantize(fdata[row+sb.X0+x], sb.Step)
				}
			}
		}
	}

	if roiShift > 0 {
		for i, v := range tileData {
			if v >= 0 {
				tileData[i] = v << uint(roiShift)
			} else {
				tileData[i] = -((-v) << uint(roiShift))
			}
		}
	}
	return tileData, nil
}

// encodeBlock runs Tier-1 on one code block.
func (e *Encoder) encodeBlock(cb *t2.CodeBlock, sb *subbandInfo, coeffs []int32, stride, style int) error {
	bw, bh := cb.Width(), cb.Height()
	blockCoeffs := make([]int32, bw*bh)
	for y := 0; y < bh; y++ {
		src := (sb.Y0+cb.Y0+y)*stride + sb.X0 + cb.X0
		copy(blockCoeffs[y*bw:(y+1)*bw], coeffs[src:src+bw])
	}

	enc := t1.NewEncoder(bw, bh, sb.Orient, style)
	blk, err := enc.Encode(blockCoeffs, sb.Weight)
	if err != nil {
		return err
	}

	cb.Passes = blk.Passes
	cb.EncData = blk.Data
	cb.NumBitplanes = blk.NumBitplanes
	if blk.NumBitplanes > sb.Numbps {
		return codestream.InvalidParameterf(
			"subband dynamic range %d cannot hold %d coded planes (raise guard bits)",
			sb.Numbps, blk.NumBitplanes)
	}
	cb.ZeroBitPlanes = sb.Numbps - blk.NumBitplanes
	return nil
}

func deinterleave(pixelData []byte, p *EncodeParams) ([][]int32, error) {
	bytesPer := (p.BitDepth + 7) / 8
	if bytesPer > 2 {
		bytesPer = 4
	}
	want := p.Width * p.Height * p.Components * bytesPer
	if len(pixelData) != want {
		return nil, codestream.InvalidParameterf("pixel data is %d bytes, want %d", len(pixelData), want)
	}

	comps := make([][]int32, p.Components)
	for c := range comps {
		comps[c] = make([]int32, p.Width*p.Height)
	}
	pos := 0
	for i := 0; i < p.Width*p.Height; i++ {
		for c := 0; c < p.Components; c++ {
			var v uint32
			for b := 0; b < bytesPer; b++ {
				v |= uint32(pixelData[pos+b]) << uint(8*b)
			}
			pos += bytesPer
			if p.IsSigned {
				shift := uint(32 - 8*bytesPer)
				comps[c][i] = int32(v<<shift) >> shift
			} else {
				comps[c][i] = int32(v)
			}
		}
	}
	return comps, nil
}

func log2(v int) int {
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}
