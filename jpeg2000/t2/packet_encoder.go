package t2

import (
	"bytes"
	"fmt"
)

// PacketEncoder emits packets: an Annex B header followed by the new
// codeword segments of every contributing code block.
type PacketEncoder struct {
	// TermAll means every coding pass is its own codeword segment, so
	// headers carry one length per pass.
	TermAll bool
	// UseSOP/UseEPH emit the optional resync markers around the header.
	UseSOP bool
	UseEPH bool

	seq int // SOP packet sequence number
}

// EncodePacket builds the packet for (precinct, layer). The precinct's
// tag trees and block header state advance as a side effect, so packets
// of one precinct must be encoded in layer order.
func (pe *PacketEncoder) EncodePacket(p *Precinct, layer int) ([]byte, error) {
	pe.seed(p)

	var out bytes.Buffer
	if pe.UseSOP {
		out.Write([]byte{0xFF, 0x91, 0x00, 0x04, byte(pe.seq >> 8), byte(pe.seq)})
		pe.seq = (pe.seq + 1) & 0xFFFF
	}

	empty := true
	_ = p.blocks(func(_ *Band, _, _ int, cb *CodeBlock) error {
		if pe.newPasses(cb, layer) > 0 {
			empty = false
		}
		return nil
	})

	bw := newBitWriter()
	if empty {
		bw.writeBit(0)
		out.Write(bw.finish())
		if pe.UseEPH {
			out.Write([]byte{0xFF, 0x92})
		}
		return out.Bytes(), nil
	}
	bw.writeBit(1)

	var body bytes.Buffer
	err := p.blocks(func(band *Band, cbx, cby int, cb *CodeBlock) error {
		n := pe.newPasses(cb, layer)

		if !cb.included {
			band.incl.Encode(bw, cbx, cby, layer+1)
			if n == 0 {
				return nil
			}
			band.zbp.Encode(bw, cbx, cby, cb.ZeroBitPlanes+1)
			cb.included = true
			cb.lblock = 3
		} else {
			if n > 0 {
				bw.writeBit(1)
			} else {
				bw.writeBit(0)
				return nil
			}
		}

		if err := writeNumPasses(bw, n); err != nil {
			return err
		}

		first := cb.passesSig
		last := cb.passesSig + n // exclusive
		if last > len(cb.Passes) {
			return fmt.Errorf("t2: layer %d wants %d passes, block has %d", layer, last, len(cb.Passes))
		}

		if pe.TermAll {
			// One codeword segment per pass: raise Lblock until every
			// segment length fits, then write each length.
			need := cb.lblock
			for i := first; i < last; i++ {
				if b := bitLength(cb.Passes[i].Len); b > need {
					need = b
				}
			}
			for i := cb.lblock; i < need; i++ {
				bw.writeBit(1)
			}
			bw.writeBit(0)
			cb.lblock = need
			for i := first; i < last; i++ {
				bw.writeBits(cb.Passes[i].Len, cb.lblock)
			}
		} else {
			total := cb.Passes[last-1].CumLen - cb.bytesSig
			need := bitLength(total) - floorLog2(n)
			if need > cb.lblock {
				for i := cb.lblock; i < need; i++ {
					bw.writeBit(1)
				}
				cb.lblock = need
			}
			bw.writeBit(0)
			bw.writeBits(total, cb.lblock+floorLog2(n))
		}

		start := cb.bytesSig
		end := cb.Passes[last-1].CumLen
		body.Write(cb.EncData[start:end])

		cb.passesSig = last
		cb.bytesSig = end
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Write(bw.finish())
	if pe.UseEPH {
		out.Write([]byte{0xFF, 0x92})
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// seed loads the tag trees with first-inclusion layers and zero-bit-plane
// counts before the precinct's first packet.
func (pe *PacketEncoder) seed(p *Precinct) {
	for _, band := range p.Bands {
		if band == nil || band.seeded {
			continue
		}
		for cby := 0; cby < band.NumCBY; cby++ {
			for cbx := 0; cbx < band.NumCBX; cbx++ {
				cb := band.Blocks[cby*band.NumCBX+cbx]
				band.incl.SetValue(cbx, cby, cb.firstLayer())
				band.zbp.SetValue(cbx, cby, cb.ZeroBitPlanes)
			}
		}
		band.seeded = true
	}
}

// newPasses returns how many passes the layer adds for a block.
func (pe *PacketEncoder) newPasses(cb *CodeBlock, layer int) int {
	if layer >= len(cb.LayerPasses) {
		return 0
	}
	n := cb.LayerPasses[layer] - cb.passesSig
	if n < 0 {
		n = 0
	}
	return n
}

// writeNumPasses codes the pass count with the Annex B variable-length
// code: 1, 2, 3-5, 6-36, 37-164.
func writeNumPasses(bw *bitWriter, n int) error {
	switch {
	case n == 1:
		bw.writeBit(0)
	case n == 2:
		bw.writeBits(0x2, 2)
	case n <= 5:
		bw.writeBits(0xC|(n-3), 4)
	case n <= 36:
		bw.writeBits(0x1E0|(n-6), 9)
	case n <= 164:
		bw.writeBits(0xFF80|(n-37), 16)
	default:
		return fmt.Errorf("t2: pass count %d exceeds 164", n)
	}
	return nil
}
