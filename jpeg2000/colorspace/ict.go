package colorspace

import "math"

// ICTForward maps level-shifted R,G,B to Y,Cb,Cr (G.3). Inputs carry no
// DC offset; the level shift has already centred them.
func ICTForward(r, g, b int32) (y, cb, cr int32) {
	fr, fg, fb := float64(r), float64(g), float64(b)
	y = int32(math.Round(0.299*fr + 0.587*fg + 0.114*fb))
	cb = int32(math.Round(-0.16875*fr - 0.331260*fg + 0.5*fb))
	cr = int32(math.Round(0.5*fr - 0.41869*fg - 0.08131*fb))
	return
}

// ICTInverse approximately inverts ICTForward.
func ICTInverse(y, cb, cr int32) (r, g, b int32) {
	fy, fcb, fcr := float64(y), float64(cb), float64(cr)
	r = int32(math.Round(fy + 1.402*fcr))
	g = int32(math.Round(fy - 0.34413*fcb - 0.71414*fcr))
	b = int32(math.Round(fy + 1.772*fcb))
	return
}

// ICTForwardPlanes transforms three planes in place.
func ICTForwardPlanes(r, g, b []int32) {
	for i := range r {
		r[i], g[i], b[i] = ICTForward(r[i], g[i], b[i])
	}
}

// ICTInversePlanes inverts three planes in place.
func ICTInversePlanes(y, cb, cr []int32) {
	for i := range y {
		y[i], cb[i], cr[i] = ICTInverse(y[i], cb[i], cr[i])
	}
}
