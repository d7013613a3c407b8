// Package wavelet implements the discrete wavelet transforms of
// ISO/IEC 15444-1 Annex F: the reversible 5/3 integer filter and the
// irreversible 9/7 float filter, with symmetric whole-point extension.
package wavelet

// The 5/3 lifting steps are
//
//	predict: d[n] -= (s[n] + s[n+1]) >> 1
//	update:  s[n] += (d[n-1] + d[n] + 2) >> 2
//
// applied on the interleaved signal, then deinterleaved to [L | H].
// Boundary samples use whole-point symmetric extension, which the closed
// forms below fold into their first/last terms. Lifting arithmetic runs
// on int64 so components deeper than 16 bits cannot overflow across
// levels; results are narrowed on store.

// Forward53 transforms one line in place. even reports whether the line's
// first sample sits on an even reference-grid coordinate (the low-pass
// phase); odd origins swap the roles of the two phases.
func Forward53(line []int32, even bool) {
	n := len(line)

	if even {
		if n <= 1 {
			return
		}
		sn := (n + 1) / 2
		dn := n - sn
		tmp := make([]int32, n)

		var i int
		for i = 0; i < sn-1; i++ {
			tmp[sn+i] = int32(int64(line[2*i+1]) - ((int64(line[2*i]) + int64(line[2*i+2])) >> 1))
		}
		if n%2 == 0 {
			tmp[sn+i] = int32(int64(line[2*i+1]) - int64(line[2*i]))
		}

		line[0] = int32(int64(line[0]) + ((int64(tmp[sn]) + int64(tmp[sn]) + 2) >> 2))
		for i = 1; i < dn; i++ {
			line[i] = int32(int64(line[2*i]) + ((int64(tmp[sn+i-1]) + int64(tmp[sn+i]) + 2) >> 2))
		}
		if n%2 == 1 {
			line[i] = int32(int64(line[2*i]) + ((int64(tmp[sn+i-1]) + int64(tmp[sn+i-1]) + 2) >> 2))
		}

		copy(line[sn:], tmp[sn:sn+dn])
		return
	}

	if n == 1 {
		line[0] *= 2
		return
	}
	sn := n / 2
	dn := n - sn
	tmp := make([]int32, n)

	tmp[sn] = line[0] - line[1]
	var i int
	for i = 1; i < sn; i++ {
		tmp[sn+i] = int32(int64(line[2*i]) - ((int64(line[2*i+1]) + int64(line[2*i-1])) >> 1))
	}
	if n%2 == 1 {
		tmp[sn+i] = int32(int64(line[2*i]) - int64(line[2*i-1]))
	}

	for i = 0; i < dn-1; i++ {
		line[i] = int32(int64(line[2*i+1]) + ((int64(tmp[sn+i]) + int64(tmp[sn+i+1]) + 2) >> 2))
	}
	if n%2 == 0 {
		line[i] = int32(int64(line[2*i+1]) + ((int64(tmp[sn+i]) + int64(tmp[sn+i]) + 2) >> 2))
	}

	copy(line[sn:], tmp[sn:sn+dn])
}

// Inverse53 reconstructs one line in place from [L | H] halves; bit-exact
// against Forward53.
func Inverse53(line []int32, even bool) {
	n := len(line)

	if even {
		if n <= 1 {
			return
		}
		sn := (n + 1) / 2
		tmp := make([]int32, n)

		s1n := int64(line[0])
		d1n := int64(line[sn])
		s0n := s1n - ((d1n + 1) >> 1)

		var i, j int
		var d1c, s0c int64
		for i, j = 0, 1; i < n-3; i, j = i+2, j+1 {
			d1c = d1n
			s0c = s0n
			s1n = int64(line[j])
			d1n = int64(line[sn+j])
			s0n = s1n - ((d1c + d1n + 2) >> 2)
			tmp[i] = int32(s0c)
			tmp[i+1] = int32(d1c + ((s0c + s0n) >> 1))
		}
		tmp[i] = int32(s0n)

		if n&1 != 0 {
			last := int64(line[(n-1)/2]) - ((d1n + 1) >> 1)
			tmp[n-1] = int32(last)
			tmp[n-2] = int32(d1n + ((s0n + last) >> 1))
		} else {
			tmp[n-1] = int32(d1n + s0n)
		}
		copy(line, tmp)
		return
	}

	if n == 1 {
		line[0] /= 2
		return
	}
	if n == 2 {
		out1 := int64(line[0]) - ((int64(line[1]) + 1) >> 1)
		out0 := int64(line[1]) + out1
		line[0] = int32(out0)
		line[1] = int32(out1)
		return
	}

	sn := n / 2
	tmp := make([]int32, n)

	s1 := int64(line[sn+1])
	dc := int64(line[0]) - ((int64(line[sn]) + s1 + 2) >> 2)
	tmp[0] = int32(int64(line[sn]) + dc)

	limit := n - 2
	if n&1 == 0 {
		limit--
	}
	var i, j int
	for i, j = 1, 1; i < limit; i, j = i+2, j+1 {
		s2 := int64(line[sn+j+1])
		dn := int64(line[j]) - ((s1 + s2 + 2) >> 2)
		tmp[i] = int32(dc)
		tmp[i+1] = int32(s1 + ((dn + dc) >> 1))
		dc = dn
		s1 = s2
	}
	tmp[i] = int32(dc)

	if n&1 == 0 {
		dn := int64(line[n/2-1]) - ((s1 + 1) >> 1)
		tmp[n-2] = int32(s1 + ((dn + dc) >> 1))
		tmp[n-1] = int32(dn)
	} else {
		tmp[n-1] = int32(s1 + dc)
	}
	copy(line, tmp)
}

// Forward53Tile applies one decomposition level to the w x h window of a
// tile array (row stride = stride): columns first, then rows, matching
// the inverse order below.
func Forward53Tile(data []int32, w, h, stride int, evenX, evenY bool) {
	if w <= 1 && h <= 1 {
		return
	}
	if h > 1 {
		col := make([]int32, h)
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				col[y] = data[y*stride+x]
			}
			Forward53(col, evenY)
			for y := 0; y < h; y++ {
				data[y*stride+x] = col[y]
			}
		}
	}
	if w > 1 {
		for y := 0; y < h; y++ {
			Forward53(data[y*stride:y*stride+w], evenX)
		}
	}
}

// Inverse53Tile inverts one decomposition level: rows first, then columns.
func Inverse53Tile(data []int32, w, h, stride int, evenX, evenY bool) {
	if w <= 1 && h <= 1 {
		return
	}
	if w > 1 {
		for y := 0; y < h; y++ {
			Inverse53(data[y*stride:y*stride+w], evenX)
		}
	}
	if h > 1 {
		col := make([]int32, h)
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				col[y] = data[y*stride+x]
			}
			Inverse53(col, evenY)
			for y := 0; y < h; y++ {
				data[y*stride+x] = col[y]
			}
		}
	}
}

// Forward53Multi runs levels decompositions over a tile whose origin on
// the reference grid is (x0, y0); each level re-decomposes the LL window.
func Forward53Multi(data []int32, w, h, levels, x0, y0 int) {
	stride := w
	cw, ch, cx, cy := w, h, x0, y0
	for l := 0; l < levels; l++ {
		if cw <= 1 && ch <= 1 {
			break
		}
		Forward53Tile(data, cw, ch, stride, isEven(cx), isEven(cy))
		cw, ch, cx, cy = nextLowpassWindow(cw, ch, cx, cy)
	}
}

// Inverse53Multi reconstructs levels decompositions, coarsest first.
func Inverse53Multi(data []int32, w, h, levels, x0, y0 int) {
	stride := w
	ws := make([]int, levels+1)
	hs := make([]int, levels+1)
	xs := make([]int, levels+1)
	ys := make([]int, levels+1)
	ws[0], hs[0], xs[0], ys[0] = w, h, x0, y0
	for i := 1; i <= levels; i++ {
		ws[i], hs[i], xs[i], ys[i] = nextLowpassWindow(ws[i-1], hs[i-1], xs[i-1], ys[i-1])
	}
	for l := levels - 1; l >= 0; l-- {
		Inverse53Tile(data, ws[l], hs[l], stride, isEven(xs[l]), isEven(ys[l]))
	}
}
