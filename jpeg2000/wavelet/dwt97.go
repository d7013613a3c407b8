package wavelet

// 9/7 irreversible filter (Cohen-Daubechies-Feauveau), Table F.4.
const (
	alpha97 = -1.586134342
	beta97  = -0.052980118
	gamma97 = 0.882911075
	delta97 = 0.443506852

	scale97    = 1.230174105 // K
	invScale97 = 0.812893066 // 1/K
)

// Forward97 transforms one line in place on the interleaved signal, then
// deinterleaves to [L | H]. even selects the low-pass phase as for the
// 5/3 filter.
func Forward97(line []float64, even bool) {
	n := len(line)
	if n <= 1 {
		return
	}

	var sn, dn int
	if even {
		sn = (n + 1) / 2
	} else {
		sn = n / 2
	}
	dn = n - sn

	var a, b int
	if even {
		a, b = 0, 1
	} else {
		a, b = 1, 0
	}

	liftStep(line, a, b+1, dn, minInt(dn, sn-b), alpha97)
	liftStep(line, b, a+1, sn, minInt(sn, dn-a), beta97)
	liftStep(line, a, b+1, dn, minInt(dn, sn-b), gamma97)
	liftStep(line, b, a+1, sn, minInt(sn, dn-a), delta97)

	if a == 0 {
		scaleInterleaved(line, sn, dn, invScale97, scale97)
	} else {
		scaleInterleaved(line, dn, sn, scale97, invScale97)
	}

	deinterleave(line, dn, sn, even)
}

// Inverse97 reconstructs one line from [L | H] halves.
func Inverse97(line []float64, even bool) {
	n := len(line)
	if n <= 1 {
		return
	}

	var sn, dn int
	if even {
		sn = (n + 1) / 2
	} else {
		sn = n / 2
	}
	dn = n - sn

	var a, b int
	if even {
		a, b = 0, 1
	} else {
		a, b = 1, 0
	}

	interleave(line, dn, sn, even)

	if a == 0 {
		unscaleInterleaved(line, sn, dn, invScale97, scale97)
	} else {
		unscaleInterleaved(line, dn, sn, scale97, invScale97)
	}

	liftStep(line, b, a+1, sn, minInt(sn, dn-a), -delta97)
	liftStep(line, a, b+1, dn, minInt(dn, sn-b), -gamma97)
	liftStep(line, b, a+1, sn, minInt(sn, dn-a), -beta97)
	liftStep(line, a, b+1, dn, minInt(dn, sn-b), -alpha97)
}

// liftStep applies one lifting step on the interleaved signal; the
// boundary term folds the symmetric extension.
func liftStep(data []float64, flStart, fwStart, end, m int, c float64) {
	imax := minInt(end, m)
	if imax > 0 {
		fw := fwStart
		data[fw-1] += (data[flStart] + data[fw]) * c
		fw += 2
		for i := 1; i < imax; i++ {
			data[fw-1] += (data[fw-2] + data[fw]) * c
			fw += 2
		}
	}
	if m < end {
		fw := fwStart + 2*m
		data[fw-1] += 2 * data[fw-2] * c
	}
}

func scaleInterleaved(data []float64, n1, n2 int, c1, c2 float64) {
	common := minInt(n1, n2)
	fw := 0
	i := 0
	for ; i < common; i++ {
		data[fw] *= c1
		data[fw+1] *= c2
		fw += 2
	}
	if i < n1 {
		data[fw] *= c1
	} else if i < n2 {
		data[fw+1] *= c2
	}
}

func unscaleInterleaved(data []float64, n1, n2 int, c1, c2 float64) {
	common := minInt(n1, n2)
	fw := 0
	i := 0
	for ; i < common; i++ {
		data[fw] /= c1
		data[fw+1] /= c2
		fw += 2
	}
	if i < n1 {
		data[fw] /= c1
	} else if i < n2 {
		data[fw+1] /= c2
	}
}

func deinterleave(data []float64, dn, sn int, even bool) {
	tmp := make([]float64, dn+sn)
	if even {
		for i := 0; i < sn; i++ {
			tmp[i] = data[2*i]
		}
		for i := 0; i < dn; i++ {
			tmp[sn+i] = data[2*i+1]
		}
	} else {
		for i := 0; i < sn; i++ {
			tmp[i] = data[2*i+1]
		}
		for i := 0; i < dn; i++ {
			tmp[sn+i] = data[2*i]
		}
	}
	copy(data, tmp)
}

func interleave(data []float64, dn, sn int, even bool) {
	tmp := make([]float64, dn+sn)
	if even {
		for i := 0; i < sn; i++ {
			tmp[2*i] = data[i]
		}
		for i := 0; i < dn; i++ {
			tmp[2*i+1] = data[sn+i]
		}
	} else {
		for i := 0; i < sn; i++ {
			tmp[2*i+1] = data[i]
		}
		for i := 0; i < dn; i++ {
			tmp[2*i] = data[sn+i]
		}
	}
	copy(data, tmp)
}

// Forward97Tile applies one 9/7 level to a tile window: columns, then rows.
func Forward97Tile(data []float64, w, h, stride int, evenX, evenY bool) {
	if w <= 1 && h <= 1 {
		return
	}
	if h > 1 {
		col := make([]float64, h)
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				col[y] = data[y*stride+x]
			}
			Forward97(col, evenY)
			for y := 0; y < h; y++ {
				data[y*stride+x] = col[y]
			}
		}
	}
	if w > 1 {
		for y := 0; y < h; y++ {
			Forward97(data[y*stride:y*stride+w], evenX)
		}
	}
}

// Inverse97Tile inverts one 9/7 level: rows, then columns.
func Inverse97Tile(data []float64, w, h, stride int, evenX, evenY bool) {
	if w <= 1 && h <= 1 {
		return
	}
	if w > 1 {
		for y := 0; y < h; y++ {
			Inverse97(data[y*stride:y*stride+w], evenX)
		}
	}
	if h > 1 {
		col := make([]float64, h)
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				col[y] = data[y*stride+x]
			}
			Inverse97(col, evenY)
			for y := 0; y < h; y++ {
				data[y*stride+x] = col[y]
			}
		}
	}
}

// Forward97Multi runs levels 9/7 decompositions over a tile with origin
// (x0, y0) on the reference grid.
func Forward97Multi(data []float64, w, h, levels, x0, y0 int) {
	stride := w
	cw, ch, cx, cy := w, h, x0, y0
	for l := 0; l < levels; l++ {
		if cw <= 1 && ch <= 1 {
			break
		}
		Forward97Tile(data, cw, ch, stride, isEven(cx), isEven(cy))
		cw, ch, cx, cy = nextLowpassWindow(cw, ch, cx, cy)
	}
}

// Inverse97Multi reconstructs levels decompositions, coarsest first.
func Inverse97Multi(data []float64, w, h, levels, x0, y0 int) {
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
		Inverse97Tile(data, ws[l], hs[l], stride, isEven(xs[l]), isEven(ys[l]))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
