package mqc

// Encoder is the MQ arithmetic encoder (ISO/IEC 15444-1 C.3.3).
//
// The output buffer keeps one dummy byte at index 0 so BYTEOUT can apply
// carry propagation to "the previous byte" unconditionally; Bytes() slices
// it off.
type Encoder struct {
	buf   []byte
	start int
	bp    int

	a  uint32 // probability interval register
	c  uint32 // code register
	ct int    // countdown until the next BYTEOUT

	states []uint8
}

// rawCtUnset marks a bypass run that has not emitted its first bit yet;
// it compares above every termination threshold so closing an untouched
// run is a no-op.
const rawCtUnset = 1 << 30

// NewEncoder creates an encoder with numContexts coding contexts, all in
// their initial state (state 0, MPS 0). Callers set the non-default
// initial states of Annex D themselves via SetState.
func NewEncoder(numContexts int) *Encoder {
	return &Encoder{
		buf:    make([]byte, 1, 1024),
		start:  1,
		bp:     0,
		a:      0x8000,
		ct:     12,
		states: make([]uint8, numContexts),
	}
}

// Encode codes one binary decision in the given context.
func (e *Encoder) Encode(bit, cx int) {
	st := &e.states[cx]
	idx := *st & 0x7F
	mps := int(*st >> 7)
	q := qe[idx]

	if bit == mps {
		e.a -= q
		if e.a&0x8000 == 0 {
			// Conditional exchange before renormalisation.
			if e.a < q {
				e.a = q
			} else {
				e.c += q
			}
			*st = nmps[idx] | uint8(mps)<<7
			e.renorm()
		} else {
			e.c += q
		}
		return
	}

	e.a -= q
	if e.a < q {
		e.c += q
	} else {
		e.a = q
	}
	next := nlps[idx]
	if swtch[idx] == 1 {
		mps = 1 - mps
	}
	*st = next | uint8(mps)<<7
	e.renorm()
}

func (e *Encoder) renorm() {
	for e.a < 0x8000 {
		e.a <<= 1
		e.c <<= 1
		e.ct--
		if e.ct == 0 {
			e.byteOut()
		}
	}
}

// byteOut implements the BYTEOUT procedure with bit-stuffing: after any
// 0xFF byte the next byte carries only seven bits.
func (e *Encoder) byteOut() {
	e.grow(e.bp)

	if e.buf[e.bp] == 0xFF {
		e.bp++
		e.grow(e.bp)
		e.buf[e.bp] = byte(e.c >> 20)
		e.c &= 0xFFFFF
		e.ct = 7
		return
	}

	if e.c&0x8000000 == 0 {
		e.bp++
		e.grow(e.bp)
		e.buf[e.bp] = byte(e.c >> 19)
		e.c &= 0x7FFFF
		e.ct = 8
		return
	}

	// Carry into the previous byte.
	e.buf[e.bp]++
	if e.buf[e.bp] == 0xFF {
		e.c &= 0x7FFFFFF
		e.bp++
		e.grow(e.bp)
		e.buf[e.bp] = byte(e.c >> 20)
		e.c &= 0xFFFFF
		e.ct = 7
		return
	}

	e.bp++
	e.grow(e.bp)
	e.buf[e.bp] = byte(e.c >> 19)
	e.c &= 0x7FFFF
	e.ct = 8
}

// Terminate flushes the code register so the segment encoded so far can be
// decoded independently (FLUSH, C.3.4). Further symbols may be encoded
// after calling Restart.
func (e *Encoder) Terminate() {
	// SETBITS: load as many 1 bits as possible without changing the
	// decodable interval.
	limit := e.c + e.a
	e.c |= 0xFFFF
	if e.c >= limit {
		e.c -= 0x8000
	}

	e.c <<= uint(e.ct)
	e.byteOut()
	e.c <<= uint(e.ct)
	e.byteOut()

	// A codeword segment must not end with 0xFF.
	if e.buf[e.bp] != 0xFF {
		e.bp++
	}
}

// TerminatePredictable performs the ERTERM flush (C.3.7); the resulting
// segment end is predictable for error detection.
func (e *Encoder) TerminatePredictable() {
	k := 11 - e.ct + 1
	for k > 0 {
		e.c <<= uint(e.ct)
		e.ct = 0
		e.byteOut()
		k -= e.ct
	}
	if e.buf[e.bp] != 0xFF {
		e.byteOut()
	}
}

// Restart reinitialises the interval registers after a terminated pass,
// keeping the context states (C.2.8 RESTART).
func (e *Encoder) Restart() {
	e.a = 0x8000
	e.c = 0
	e.ct = 12
	if e.bp > e.start-1 {
		e.bp--
	}
	if e.bp >= 0 && e.bp < len(e.buf) && e.buf[e.bp] == 0xFF {
		e.ct = 13
	}
}

// BypassStart switches to raw (selective arithmetic bypass) emission.
func (e *Encoder) BypassStart() {
	e.c = 0
	e.ct = rawCtUnset
}

// BypassEncode appends one raw bit, stuffing a zero bit after 0xFF bytes.
func (e *Encoder) BypassEncode(bit int) {
	if e.ct == rawCtUnset {
		e.ct = 8
	}
	e.ct--
	e.c += uint32(bit) << uint(e.ct)
	if e.ct == 0 {
		e.grow(e.bp)
		e.buf[e.bp] = byte(e.c)
		e.ct = 8
		if e.buf[e.bp] == 0xFF {
			e.ct = 7
		}
		e.bp++
		e.c = 0
	}
}

// BypassTerminate closes a raw segment. With erterm the filler bits are the
// alternating pattern required for predictable termination.
func (e *Encoder) BypassTerminate(erterm bool) {
	if e.ct < 7 || (e.ct == 7 && (erterm || (e.bp > 0 && e.buf[e.bp-1] != 0xFF))) {
		fill := 0
		for e.ct > 0 {
			e.ct--
			e.c += uint32(fill) << uint(e.ct)
			fill = 1 - fill
		}
		e.grow(e.bp)
		e.buf[e.bp] = byte(e.c)
		e.bp++
	} else if e.ct == 7 && e.bp > 0 && e.buf[e.bp-1] == 0xFF {
		if !erterm {
			e.bp--
		}
	} else if e.ct == 8 && !erterm && e.bp > 1 && e.buf[e.bp-1] == 0x7F && e.buf[e.bp-2] == 0xFF {
		e.bp -= 2
	}
}

// Segmark codes the segmentation symbol 1010 in the uniform context.
func (e *Encoder) Segmark(uniformCx int) {
	for i := 1; i < 5; i++ {
		e.Encode(i%2, uniformCx)
	}
}

// Bytes returns the encoded output so far.
func (e *Encoder) Bytes() []byte {
	if e.bp < e.start {
		return nil
	}
	return e.buf[e.start:e.bp]
}

// Len returns the number of output bytes emitted so far.
func (e *Encoder) Len() int {
	if e.bp < e.start {
		return 0
	}
	return e.bp - e.start
}

// SetState forces a context to a given table state (used for the Annex D
// initial states of the uniform, run-length and first ZC contexts).
func (e *Encoder) SetState(cx int, state uint8) {
	e.states[cx] = state
}

// ResetStates returns every context to its initial state.
func (e *Encoder) ResetStates() {
	for i := range e.states {
		e.states[i] = 0
	}
}

func (e *Encoder) grow(idx int) {
	if idx < len(e.buf) {
		return
	}
	need := idx + 1
	if need <= cap(e.buf) {
		e.buf = e.buf[:need]
		return
	}
	next := cap(e.buf) * 2
	if next < need {
		next = need
	}
	nb := make([]byte, need, next)
	copy(nb, e.buf)
	e.buf = nb
}
