package codestream

import "encoding/binary"

// Writer emits marker segments onto a Sink. All fields are big-endian.
type Writer struct {
	sink Sink
}

// NewWriter creates a writer over a sink.
func NewWriter(sink Sink) *Writer { return &Writer{sink: sink} }

// Position returns the sink position.
func (w *Writer) Position() int64 { return w.sink.Position() }

// WriteRaw copies bytes through unchanged (packet bodies, tile data).
func (w *Writer) WriteRaw(p []byte) error {
	_, err := w.sink.Write(p)
	return err
}

func (w *Writer) writeMarker(marker uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], marker)
	_, err := w.sink.Write(b[:])
	return err
}

// writeSegment emits marker, length (inclusive of itself) and payload.
func (w *Writer) writeSegment(marker uint16, payload []byte) error {
	if err := w.writeMarker(marker); err != nil {
		return err
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(payload)+2))
	if _, err := w.sink.Write(b[:]); err != nil {
		return err
	}
	_, err := w.sink.Write(payload)
	return err
}

// WriteSOC emits the start-of-codestream marker.
func (w *Writer) WriteSOC() error { return w.writeMarker(MarkerSOC) }

// WriteEOC emits the end-of-codestream marker.
func (w *Writer) WriteEOC() error { return w.writeMarker(MarkerEOC) }

// WriteSOD emits the start-of-data marker.
func (w *Writer) WriteSOD() error { return w.writeMarker(MarkerSOD) }

// WriteSIZ emits the image and tile size segment.
func (w *Writer) WriteSIZ(s *SIZ) error {
	p := make([]byte, 0, 36+3*len(s.Components))
	p = be16(p, s.Rsiz)
	p = be32(p, s.Xsiz)
	p = be32(p, s.Ysiz)
	p = be32(p, s.XOsiz)
	p = be32(p, s.YOsiz)
	p = be32(p, s.XTsiz)
	p = be32(p, s.YTsiz)
	p = be32(p, s.XTOsiz)
	p = be32(p, s.YTOsiz)
	p = be16(p, s.Csiz)
	for _, c := range s.Components {
		p = append(p, c.Ssiz, c.XRsiz, c.YRsiz)
	}
	return w.writeSegment(MarkerSIZ, p)
}

// WriteCOD emits the coding style default segment.
func (w *Writer) WriteCOD(c *COD) error {
	p := []byte{c.Scod, c.ProgressionOrder}
	p = be16(p, c.NumLayers)
	p = append(p, c.MCT, c.NumLevels, c.CodeBlockWidth, c.CodeBlockHeight,
		c.CodeBlockStyle, c.Transform)
	if c.Scod&ScodPrecincts != 0 {
		for _, ps := range c.PrecinctSizes {
			p = append(p, ps.PPy<<4|ps.PPx&0x0F)
		}
	}
	return w.writeSegment(MarkerCOD, p)
}

// WriteCOC emits a per-component coding style override. Component index
// width follows Csiz as required by A.6.2.
func (w *Writer) WriteCOC(c *COC, csiz int) error {
	var p []byte
	if csiz < 257 {
		p = append(p, byte(c.Component))
	} else {
		p = be16(p, c.Component)
	}
	p = append(p, c.Scoc, c.NumLevels, c.CodeBlockWidth, c.CodeBlockHeight,
		c.CodeBlockStyle, c.Transform)
	if c.Scoc&ScodPrecincts != 0 {
		for _, ps := range c.PrecinctSizes {
			p = append(p, ps.PPy<<4|ps.PPx&0x0F)
		}
	}
	return w.writeSegment(MarkerCOC, p)
}

// WriteQCD emits the quantization default segment.
func (w *Writer) WriteQCD(q *QCD) error {
	p := append([]byte{q.Sqcd}, q.SPqcd...)
	return w.writeSegment(MarkerQCD, p)
}

// WriteQCC emits a per-component quantization override.
func (w *Writer) WriteQCC(q *QCC, csiz int) error {
	var p []byte
	if csiz < 257 {
		p = append(p, byte(q.Component))
	} else {
		p = be16(p, q.Component)
	}
	p = append(p, q.Sqcc)
	p = append(p, q.SPqcc...)
	return w.writeSegment(MarkerQCC, p)
}

// WriteRGN emits a region-of-interest segment.
func (w *Writer) WriteRGN(r *RGN, csiz int) error {
	var p []byte
	if csiz < 257 {
		p = append(p, byte(r.Crgn))
	} else {
		p = be16(p, r.Crgn)
	}
	p = append(p, r.Srgn, r.SPrgn)
	return w.writeSegment(MarkerRGN, p)
}

// WritePOC emits progression order change entries.
func (w *Writer) WritePOC(entries []POCEntry, csiz int) error {
	var p []byte
	for _, e := range entries {
		p = append(p, e.RSpoc)
		if csiz < 257 {
			p = append(p, byte(e.CSpoc))
		} else {
			p = be16(p, e.CSpoc)
		}
		p = be16(p, e.LYEpoc)
		p = append(p, e.REpoc)
		if csiz < 257 {
			p = append(p, byte(e.CEpoc))
		} else {
			p = be16(p, e.CEpoc)
		}
		p = append(p, e.Ppoc)
	}
	return w.writeSegment(MarkerPOC, p)
}

// WriteCOM emits a comment segment.
func (w *Writer) WriteCOM(c *COM) error {
	var p []byte
	p = be16(p, c.Rcom)
	p = append(p, c.Data...)
	return w.writeSegment(MarkerCOM, p)
}

// WriteCRG emits a component registration segment.
func (w *Writer) WriteCRG(c *CRG) error {
	var p []byte
	for i := range c.Xcrg {
		p = be16(p, c.Xcrg[i])
		p = be16(p, c.Ycrg[i])
	}
	return w.writeSegment(MarkerCRG, p)
}

// WriteTLM emits tile-part lengths (ST=01: 16-bit Ttlm, SP=1: 32-bit
// Ptlm).
func (w *Writer) WriteTLM(ztlm uint8, tileIndices []uint16, lengths []uint32) error {
	p := []byte{ztlm, 0x50} // Stlm: ST=01, SP=1
	for i := range tileIndices {
		p = be16(p, tileIndices[i])
		p = be32(p, lengths[i])
	}
	return w.writeSegment(MarkerTLM, p)
}

// WriteSOT emits a start-of-tile-part segment. Psot covers the tile-part
// from the SOT marker through the end of its data.
func (w *Writer) WriteSOT(s *SOT) error {
	var p []byte
	p = be16(p, s.Isot)
	p = be32(p, s.Psot)
	p = append(p, s.TPsot, s.TNsot)
	return w.writeSegment(MarkerSOT, p)
}

func be16(p []byte, v uint16) []byte {
	return append(p, byte(v>>8), byte(v))
}

func be32(p []byte, v uint32) []byte {
	return append(p, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
