package codestream

import "encoding/binary"

// Parser walks a codestream through the tile-part state machine:
//
//	EXPECT_SOC -> EXPECT_SIZ -> IN_MAIN_HEADER -> EXPECT_SOT|EOC ->
//	IN_TILE_PART_HEADER -> IN_TILE_DATA -> EXPECT_SOT|EOC
//
// Unknown length-prefixed markers are skipped; an unknown marker without
// a length field is fatal.
type Parser struct {
	src Source
}

// NewParser creates a parser over a byte source.
func NewParser(src Source) *Parser { return &Parser{src: src} }

// Parse parses a complete codestream from a byte slice.
func Parse(data []byte) (*Codestream, error) {
	return NewParser(NewBytesSource(data)).Parse()
}

// Parse runs the state machine to EOC.
func (p *Parser) Parse() (*Codestream, error) {
	cs := &Codestream{
		COC: make(map[uint16]*COC),
		QCC: make(map[uint16]*QCC),
	}

	// EXPECT_SOC
	m, err := p.readMarker()
	if err != nil {
		return nil, err
	}
	if m != MarkerSOC {
		return nil, MissingMarkerf(0, "SOC expected at start of codestream, found %#04x", m)
	}

	// EXPECT_SIZ
	off := p.src.Position()
	m, err = p.readMarker()
	if err != nil {
		return nil, err
	}
	if m != MarkerSIZ {
		return nil, MissingMarkerf(off, "SIZ must follow SOC, found %#04x", m)
	}
	if cs.SIZ, err = p.parseSIZ(); err != nil {
		return nil, err
	}

	// IN_MAIN_HEADER
	for {
		off = p.src.Position()
		m, err = p.readMarker()
		if err != nil {
			return nil, err
		}
		if m == MarkerSOT || m == MarkerEOC {
			break
		}
		if err := p.parseMainSegment(cs, m, off); err != nil {
			return nil, err
		}
	}

	if m == MarkerSOT && (cs.COD == nil || cs.QCD == nil) {
		missing := "COD"
		if cs.COD != nil {
			missing = "QCD"
		}
		return nil, MissingMarkerf(off, "%s absent from main header", missing)
	}

	// Tile-part loop.
	for m == MarkerSOT {
		if err := p.parseTilePart(cs, off); err != nil {
			return nil, err
		}
		off = p.src.Position()
		m, err = p.readMarker()
		if err != nil {
			return nil, err
		}
		if m != MarkerSOT && m != MarkerEOC {
			return nil, MissingMarkerf(off, "SOT or EOC expected after tile data, found %#04x", m)
		}
	}

	return cs, nil
}

func (p *Parser) parseMainSegment(cs *Codestream, m uint16, off int64) error {
	switch m {
	case MarkerCOD:
		cod, err := p.parseCOD()
		if err != nil {
			return err
		}
		cs.COD = cod
	case MarkerQCD:
		qcd, err := p.parseQCD()
		if err != nil {
			return err
		}
		cs.QCD = qcd
	case MarkerCOC:
		coc, err := p.parseCOC(cs.SIZ)
		if err != nil {
			return err
		}
		cs.COC[coc.Component] = coc
	case MarkerQCC:
		qcc, err := p.parseQCC(cs.SIZ)
		if err != nil {
			return err
		}
		cs.QCC[qcc.Component] = qcc
	case MarkerRGN:
		rgn, err := p.parseRGN(cs.SIZ)
		if err != nil {
			return err
		}
		cs.RGN = append(cs.RGN, *rgn)
	case MarkerPOC:
		poc, err := p.parsePOC(cs.SIZ)
		if err != nil {
			return err
		}
		cs.POC = append(cs.POC, poc...)
	case MarkerCOM:
		com, err := p.parseCOM()
		if err != nil {
			return err
		}
		cs.COM = append(cs.COM, *com)
	case MarkerCRG:
		crg, err := p.parseCRG(cs.SIZ)
		if err != nil {
			return err
		}
		cs.CRG = crg
	case MarkerTLM, MarkerPLM, MarkerPPM:
		// Pointer segments are advisory; validate length and move on.
		return p.skipSegment(m)
	case MarkerSIZ:
		return Malformedf(off, "duplicate SIZ in main header")
	case MarkerSOD:
		return MissingMarkerf(off, "SOD before any SOT")
	default:
		if !isMarker(m) || !HasLength(m) {
			return Malformedf(off, "unknown marker %#04x without length field", m)
		}
		return p.skipSegment(m)
	}
	return nil
}

func (p *Parser) parseTilePart(cs *Codestream, sotOff int64) error {
	sot, err := p.parseSOT()
	if err != nil {
		return err
	}

	tile := cs.TileByIndex(int(sot.Isot))
	if tile == nil {
		tile = &Tile{
			Index: int(sot.Isot),
			COC:   make(map[uint16]*COC),
			QCC:   make(map[uint16]*QCC),
		}
		cs.Tiles = append(cs.Tiles, tile)
	}
	if int(sot.TPsot) != len(tile.Parts) {
		return Malformedf(sotOff, "tile %d: tile-part index %d out of order (expected %d)",
			sot.Isot, sot.TPsot, len(tile.Parts))
	}
	tile.Parts = append(tile.Parts, *sot)

	// IN_TILE_PART_HEADER
	for {
		off := p.src.Position()
		m, err := p.readMarker()
		if err != nil {
			return err
		}
		if m == MarkerSOD {
			break
		}
		switch m {
		case MarkerCOD:
			cod, err := p.parseCOD()
			if err != nil {
				return err
			}
			tile.COD = cod
		case MarkerQCD:
			qcd, err := p.parseQCD()
			if err != nil {
				return err
			}
			tile.QCD = qcd
		case MarkerCOC:
			coc, err := p.parseCOC(cs.SIZ)
			if err != nil {
				return err
			}
			tile.COC[coc.Component] = coc
		case MarkerQCC:
			qcc, err := p.parseQCC(cs.SIZ)
			if err != nil {
				return err
			}
			tile.QCC[qcc.Component] = qcc
		case MarkerRGN:
			rgn, err := p.parseRGN(cs.SIZ)
			if err != nil {
				return err
			}
			tile.RGN = append(tile.RGN, *rgn)
		case MarkerPOC:
			poc, err := p.parsePOC(cs.SIZ)
			if err != nil {
				return err
			}
			tile.POC = append(tile.POC, poc...)
		case MarkerPLT, MarkerPPT, MarkerCOM:
			if err := p.skipSegment(m); err != nil {
				return err
			}
		default:
			if !isMarker(m) || !HasLength(m) {
				return Malformedf(off, "unknown marker %#04x in tile-part header", m)
			}
			if err := p.skipSegment(m); err != nil {
				return err
			}
		}
	}

	// IN_TILE_DATA
	headerLen := p.src.Position() - sotOff
	if sot.Psot == 0 {
		data, err := p.scanTileData()
		if err != nil {
			return err
		}
		tile.Data = append(tile.Data, data...)
		return nil
	}
	dataLen := int64(sot.Psot) - headerLen
	if dataLen < 0 {
		return Malformedf(sotOff, "tile %d: Psot %d smaller than tile-part header", sot.Isot, sot.Psot)
	}
	data, err := p.src.ReadExact(int(dataLen))
	if err != nil {
		return err
	}
	tile.Data = append(tile.Data, data...)
	return nil
}

// scanTileData handles Psot == 0 (length implied by the next SOT or EOC);
// only possible over an in-memory source.
func (p *Parser) scanTileData() ([]byte, error) {
	bs, ok := p.src.(*BytesSource)
	if !ok {
		return nil, Unsupportedf(p.src.Position(), "Psot=0 requires a seekable source")
	}
	var out []byte
	for bs.Remaining() >= 2 {
		b, _ := bs.ReadExact(1)
		if b[0] != 0xFF {
			out = append(out, b[0])
			continue
		}
		nxt, _ := bs.ReadExact(1)
		m := uint16(0xFF00) | uint16(nxt[0])
		if m == MarkerSOT || m == MarkerEOC {
			bs.pos -= 2
			return out, nil
		}
		out = append(out, 0xFF, nxt[0])
	}
	return nil, Truncatedf(p.src.Position(), "tile data with Psot=0 reached end of stream")
}

func (p *Parser) parseSIZ() (*SIZ, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerSIZ)
	if err != nil {
		return nil, err
	}
	if len(body) < 36 {
		return nil, Malformedf(off, "SIZ body too short (%d bytes)", len(body))
	}

	s := &SIZ{
		Rsiz:   binary.BigEndian.Uint16(body[0:]),
		Xsiz:   binary.BigEndian.Uint32(body[2:]),
		Ysiz:   binary.BigEndian.Uint32(body[6:]),
		XOsiz:  binary.BigEndian.Uint32(body[10:]),
		YOsiz:  binary.BigEndian.Uint32(body[14:]),
		XTsiz:  binary.BigEndian.Uint32(body[18:]),
		YTsiz:  binary.BigEndian.Uint32(body[22:]),
		XTOsiz: binary.BigEndian.Uint32(body[26:]),
		YTOsiz: binary.BigEndian.Uint32(body[30:]),
		Csiz:   binary.BigEndian.Uint16(body[34:]),
	}

	if s.Rsiz > 2 {
		return nil, Unsupportedf(off, "Rsiz %#04x signals an extension", s.Rsiz)
	}
	if s.Csiz == 0 || s.Csiz > 16384 {
		return nil, Malformedf(off, "Csiz %d outside [1, 16384]", s.Csiz)
	}
	if s.Xsiz <= s.XOsiz || s.Ysiz <= s.YOsiz {
		return nil, Malformedf(off, "image extent empty (%dx%d at %d,%d)", s.Xsiz, s.Ysiz, s.XOsiz, s.YOsiz)
	}
	if s.XTsiz == 0 || s.YTsiz == 0 {
		return nil, Malformedf(off, "tile size must be positive")
	}
	if len(body) != 36+3*int(s.Csiz) {
		return nil, Malformedf(off, "SIZ length %d inconsistent with Csiz %d", len(body)+2, s.Csiz)
	}

	s.Components = make([]ComponentSIZ, s.Csiz)
	for i := range s.Components {
		c := ComponentSIZ{
			Ssiz:  body[36+3*i],
			XRsiz: body[37+3*i],
			YRsiz: body[38+3*i],
		}
		if c.BitDepth() > 38 {
			return nil, Malformedf(off, "component %d depth %d exceeds 38", i, c.BitDepth())
		}
		if c.XRsiz == 0 || c.YRsiz == 0 {
			return nil, Malformedf(off, "component %d has zero subsampling", i)
		}
		s.Components[i] = c
	}
	return s, nil
}

func (p *Parser) parseCOD() (*COD, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerCOD)
	if err != nil {
		return nil, err
	}
	if len(body) < 10 {
		return nil, Malformedf(off, "COD body too short (%d bytes)", len(body))
	}
	c := &COD{
		Scod:             body[0],
		ProgressionOrder: body[1],
		NumLayers:        binary.BigEndian.Uint16(body[2:]),
		MCT:              body[4],
		NumLevels:        body[5],
		CodeBlockWidth:   body[6],
		CodeBlockHeight:  body[7],
		CodeBlockStyle:   body[8],
		Transform:        body[9],
	}
	if c.ProgressionOrder > 4 {
		return nil, Malformedf(off, "progression order %d out of range", c.ProgressionOrder)
	}
	if c.NumLayers == 0 {
		return nil, Malformedf(off, "layer count must be positive")
	}
	if c.NumLevels > 32 {
		return nil, Malformedf(off, "decomposition levels %d exceed 32", c.NumLevels)
	}
	if err := validateCodeBlockExponents(off, c.CodeBlockWidth, c.CodeBlockHeight); err != nil {
		return nil, err
	}
	if c.Scod&ScodPrecincts != 0 {
		want := int(c.NumLevels) + 1
		if len(body) < 10+want {
			return nil, Malformedf(off, "COD precinct list truncated")
		}
		c.PrecinctSizes = make([]PrecinctSize, want)
		for i := 0; i < want; i++ {
			c.PrecinctSizes[i] = PrecinctSize{PPx: body[10+i] & 0x0F, PPy: body[10+i] >> 4}
		}
	}
	return c, nil
}

func validateCodeBlockExponents(off int64, xcb, ycb uint8) error {
	// Exponents encode width/height as 2^(n+2); each dimension spans
	// 4..1024 and their product is capped at 4096.
	if xcb > 8 || ycb > 8 {
		return Malformedf(off, "code-block exponent out of range (%d, %d)", xcb, ycb)
	}
	if int(xcb)+int(ycb) > 8 {
		return Malformedf(off, "code-block area exceeds 4096 samples")
	}
	return nil
}

func (p *Parser) parseCOC(siz *SIZ) (*COC, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerCOC)
	if err != nil {
		return nil, err
	}
	wide := siz != nil && siz.Csiz >= 257
	idxLen := 1
	if wide {
		idxLen = 2
	}
	if len(body) < idxLen+6 {
		return nil, Malformedf(off, "COC body too short (%d bytes)", len(body))
	}
	c := &COC{}
	if wide {
		c.Component = binary.BigEndian.Uint16(body)
	} else {
		c.Component = uint16(body[0])
	}
	rest := body[idxLen:]
	c.Scoc = rest[0]
	c.NumLevels = rest[1]
	c.CodeBlockWidth = rest[2]
	c.CodeBlockHeight = rest[3]
	c.CodeBlockStyle = rest[4]
	c.Transform = rest[5]
	if err := validateCodeBlockExponents(off, c.CodeBlockWidth, c.CodeBlockHeight); err != nil {
		return nil, err
	}
	if c.Scoc&ScodPrecincts != 0 {
		want := int(c.NumLevels) + 1
		if len(rest) < 6+want {
			return nil, Malformedf(off, "COC precinct list truncated")
		}
		c.PrecinctSizes = make([]PrecinctSize, want)
		for i := 0; i < want; i++ {
			c.PrecinctSizes[i] = PrecinctSize{PPx: rest[6+i] & 0x0F, PPy: rest[6+i] >> 4}
		}
	}
	return c, nil
}

func (p *Parser) parseQCD() (*QCD, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerQCD)
	if err != nil {
		return nil, err
	}
	if len(body) < 1 {
		return nil, Malformedf(off, "QCD body empty")
	}
	return &QCD{Sqcd: body[0], SPqcd: append([]byte(nil), body[1:]...)}, nil
}

func (p *Parser) parseQCC(siz *SIZ) (*QCC, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerQCC)
	if err != nil {
		return nil, err
	}
	wide := siz != nil && siz.Csiz >= 257
	idxLen := 1
	if wide {
		idxLen = 2
	}
	if len(body) < idxLen+1 {
		return nil, Malformedf(off, "QCC body too short (%d bytes)", len(body))
	}
	q := &QCC{}
	if wide {
		q.Component = binary.BigEndian.Uint16(body)
	} else {
		q.Component = uint16(body[0])
	}
	q.Sqcc = body[idxLen]
	q.SPqcc = append([]byte(nil), body[idxLen+1:]...)
	return q, nil
}

func (p *Parser) parseRGN(siz *SIZ) (*RGN, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerRGN)
	if err != nil {
		return nil, err
	}
	wide := siz != nil && siz.Csiz >= 257
	idxLen := 1
	if wide {
		idxLen = 2
	}
	if len(body) < idxLen+2 {
		return nil, Malformedf(off, "RGN body too short (%d bytes)", len(body))
	}
	r := &RGN{}
	if wide {
		r.Crgn = binary.BigEndian.Uint16(body)
	} else {
		r.Crgn = uint16(body[0])
	}
	r.Srgn = body[idxLen]
	r.SPrgn = body[idxLen+1]
	if r.Srgn != 0 {
		return nil, Unsupportedf(off, "RGN style %d (only MaxShift is defined)", r.Srgn)
	}
	return r, nil
}

func (p *Parser) parsePOC(siz *SIZ) ([]POCEntry, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerPOC)
	if err != nil {
		return nil, err
	}
	wide := siz != nil && siz.Csiz >= 257
	entryLen := 7
	if wide {
		entryLen = 9
	}
	if len(body) == 0 || len(body)%entryLen != 0 {
		return nil, Malformedf(off, "POC length %d not a multiple of %d", len(body), entryLen)
	}
	var out []POCEntry
	for i := 0; i < len(body); i += entryLen {
		e := POCEntry{RSpoc: body[i]}
		j := i + 1
		if wide {
			e.CSpoc = binary.BigEndian.Uint16(body[j:])
			j += 2
		} else {
			e.CSpoc = uint16(body[j])
			j++
		}
		e.LYEpoc = binary.BigEndian.Uint16(body[j:])
		j += 2
		e.REpoc = body[j]
		j++
		if wide {
			e.CEpoc = binary.BigEndian.Uint16(body[j:])
			j += 2
		} else {
			e.CEpoc = uint16(body[j])
			j++
		}
		e.Ppoc = body[j]
		if e.Ppoc > 4 {
			return nil, Malformedf(off, "POC progression %d out of range", e.Ppoc)
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *Parser) parseCOM() (*COM, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerCOM)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, Malformedf(off, "COM body too short")
	}
	return &COM{
		Rcom: binary.BigEndian.Uint16(body),
		Data: append([]byte(nil), body[2:]...),
	}, nil
}

func (p *Parser) parseCRG(siz *SIZ) (*CRG, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerCRG)
	if err != nil {
		return nil, err
	}
	n := 1
	if siz != nil {
		n = int(siz.Csiz)
	}
	if len(body) != 4*n {
		return nil, Malformedf(off, "CRG length %d inconsistent with %d components", len(body), n)
	}
	c := &CRG{Xcrg: make([]uint16, n), Ycrg: make([]uint16, n)}
	for i := 0; i < n; i++ {
		c.Xcrg[i] = binary.BigEndian.Uint16(body[4*i:])
		c.Ycrg[i] = binary.BigEndian.Uint16(body[4*i+2:])
	}
	return c, nil
}

func (p *Parser) parseSOT() (*SOT, error) {
	off := p.src.Position()
	body, err := p.segmentBody(MarkerSOT)
	if err != nil {
		return nil, err
	}
	if len(body) != 8 {
		return nil, Malformedf(off, "SOT length %d, want 10", len(body)+2)
	}
	return &SOT{
		Isot:  binary.BigEndian.Uint16(body[0:]),
		Psot:  binary.BigEndian.Uint32(body[2:]),
		TPsot: body[6],
		TNsot: body[7],
	}, nil
}

// segmentBody reads the 2-byte length and returns the payload.
func (p *Parser) segmentBody(marker uint16) ([]byte, error) {
	off := p.src.Position()
	lb, err := p.src.ReadExact(2)
	if err != nil {
		return nil, Truncatedf(off, "%s length field", MarkerName(marker))
	}
	length := int(binary.BigEndian.Uint16(lb))
	if length < 2 {
		return nil, Malformedf(off, "%s length %d below minimum", MarkerName(marker), length)
	}
	body, err := p.src.ReadExact(length - 2)
	if err != nil {
		return nil, Truncatedf(off, "%s body (%d bytes)", MarkerName(marker), length-2)
	}
	return body, nil
}

func (p *Parser) skipSegment(marker uint16) error {
	_, err := p.segmentBody(marker)
	return err
}

func (p *Parser) readMarker() (uint16, error) {
	off := p.src.Position()
	b, err := p.src.ReadExact(2)
	if err != nil {
		return 0, Truncatedf(off, "marker")
	}
	return binary.BigEndian.Uint16(b), nil
}

// PeekSIZ parses just enough of a codestream prefix to describe the image
// without decoding anything else.
func PeekSIZ(data []byte) (*SIZ, error) {
	p := NewParser(NewBytesSource(data))
	m, err := p.readMarker()
	if err != nil {
		return nil, err
	}
	if m != MarkerSOC {
		return nil, MissingMarkerf(0, "SOC expected at start of codestream, found %#04x", m)
	}
	off := p.src.Position()
	m, err = p.readMarker()
	if err != nil {
		return nil, err
	}
	if m != MarkerSIZ {
		return nil, MissingMarkerf(off, "SIZ must follow SOC, found %#04x", m)
	}
	return p.parseSIZ()
}
