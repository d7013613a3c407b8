package t2

import (
	"errors"
	"fmt"
)

// ErrTruncatedPacket reports that the tile data ended inside a packet.
var ErrTruncatedPacket = errors.New("t2: truncated packet")

// PacketDecoder walks the packet stream of one tile, parsing headers and
// distributing body bytes onto the contributing code blocks.
type PacketDecoder struct {
	data []byte
	pos  int

	TermAll bool
	UseSOP  bool
	UseEPH  bool
}

// NewPacketDecoder creates a decoder over a tile's packet bytes.
func NewPacketDecoder(data []byte, termAll, useSOP, useEPH bool) *PacketDecoder {
	return &PacketDecoder{data: data, TermAll: termAll, UseSOP: useSOP, UseEPH: useEPH}
}

// Pos returns the number of bytes consumed so far.
func (pd *PacketDecoder) Pos() int { return pd.pos }

// Done reports whether all bytes were consumed.
func (pd *PacketDecoder) Done() bool { return pd.pos >= len(pd.data) }

// contribution records one block's share of a packet in header order;
// body bytes and pass lengths are indexed by this order, never by block
// position.
type contribution struct {
	cb        *CodeBlock
	numPasses int
	segLens   []int
	numBytes  int
}

// DecodePacket parses the next packet for (precinct, layer) and appends
// each contribution's bytes and pass lengths to its code block.
func (pd *PacketDecoder) DecodePacket(p *Precinct, layer int) error {
	// Optional SOP marker before the header.
	if pd.UseSOP && pd.pos+2 <= len(pd.data) &&
		pd.data[pd.pos] == 0xFF && pd.data[pd.pos+1] == 0x91 {
		if pd.pos+6 > len(pd.data) {
			return ErrTruncatedPacket
		}
		pd.pos += 6
	}

	br := newBitReader(pd.data[pd.pos:])
	contribs, err := pd.parseHeader(br, p, layer)
	if err != nil {
		if errors.Is(err, errHeaderEOF) {
			return ErrTruncatedPacket
		}
		return err
	}
	pd.pos += br.bytesRead()

	if pd.UseEPH {
		if pd.pos+2 > len(pd.data) || pd.data[pd.pos] != 0xFF || pd.data[pd.pos+1] != 0x92 {
			return fmt.Errorf("t2: missing EPH marker at packet boundary")
		}
		pd.pos += 2
	}

	for _, c := range contribs {
		if pd.pos+c.numBytes > len(pd.data) {
			return ErrTruncatedPacket
		}
		c.cb.Data = append(c.cb.Data, pd.data[pd.pos:pd.pos+c.numBytes]...)
		c.cb.SegLens = append(c.cb.SegLens, c.segLens...)
		c.cb.passesSig += c.numPasses
		pd.pos += c.numBytes
	}
	return nil
}

func (pd *PacketDecoder) parseHeader(br *bitReader, p *Precinct, layer int) ([]contribution, error) {
	present, err := br.readBit()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		if err := br.align(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var contribs []contribution
	err = p.blocks(func(band *Band, cbx, cby int, cb *CodeBlock) error {
		var included bool
		firstInclusion := false

		if !cb.included {
			v, err := band.incl.Decode(br, cbx, cby, layer+1)
			if err != nil {
				return err
			}
			included = v <= layer
			firstInclusion = included
		} else {
			bit, err := br.readBit()
			if err != nil {
				return err
			}
			included = bit == 1
		}
		if !included {
			return nil
		}

		if firstInclusion {
			zbp, err := band.zbp.DecodeFull(br, cbx, cby)
			if err != nil {
				return err
			}
			cb.ZeroBitPlanes = zbp
			cb.included = true
			cb.lblock = 3
		}

		numPasses, err := readNumPasses(br)
		if err != nil {
			return err
		}

		// Comma code raising Lblock, shared by both length layouts.
		for {
			bit, err := br.readBit()
			if err != nil {
				return err
			}
			if bit == 0 {
				break
			}
			cb.lblock++
			if cb.lblock > 32 {
				return fmt.Errorf("t2: runaway Lblock for block at (%d,%d)", cbx, cby)
			}
		}

		c := contribution{cb: cb, numPasses: numPasses}
		if pd.TermAll {
			c.segLens = make([]int, numPasses)
			for i := 0; i < numPasses; i++ {
				segLen, err := br.readBits(cb.lblock)
				if err != nil {
					return err
				}
				c.segLens[i] = segLen
				c.numBytes += segLen
			}
		} else {
			total, err := br.readBits(cb.lblock + floorLog2(numPasses))
			if err != nil {
				return err
			}
			c.segLens = []int{total}
			c.numBytes = total
		}
		contribs = append(contribs, c)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := br.align(); err != nil {
		return nil, err
	}
	return contribs, nil
}

// readNumPasses decodes the Annex B pass-count code.
func readNumPasses(br *bitReader) (int, error) {
	bit, err := br.readBit()
	if err != nil {
		return 0, err
	}
	if bit == 0 {
		return 1, nil
	}
	bit, err = br.readBit()
	if err != nil {
		return 0, err
	}
	if bit == 0 {
		return 2, nil
	}
	v, err := br.readBits(2)
	if err != nil {
		return 0, err
	}
	if v != 3 {
		return 3 + v, nil
	}
	v, err = br.readBits(5)
	if err != nil {
		return 0, err
	}
	if v != 31 {
		return 6 + v, nil
	}
	v, err = br.readBits(7)
	if err != nil {
		return 0, err
	}
	return 37 + v, nil
}
