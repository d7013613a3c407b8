// Package colorspace implements the two Part 1 component transforms:
// the reversible colour transform (RCT) used with the 5/3 filter and the
// irreversible colour transform (ICT) used with the 9/7 filter.
package colorspace

// RCTForward maps level-shifted R,G,B to Y,Cb,Cr losslessly (G.2).
func RCTForward(r, g, b int32) (y, cb, cr int32) {
	y = (r + 2*g + b) >> 2
	cb = b - g
	cr = r - g
	return
}

// RCTInverse is the exact inverse of RCTForward.
func RCTInverse(y, cb, cr int32) (r, g, b int32) {
	g = y - ((cb + cr) >> 2)
	r = cr + g
	b = cb + g
	return
}

// RCTForwardPlanes transforms three planes in place.
func RCTForwardPlanes(r, g, b []int32) {
	for i := range r {
		r[i], g[i], b[i] = RCTForward(r[i], g[i], b[i])
	}
}

// RCTInversePlanes inverts three planes in place.
func RCTInversePlanes(y, cb, cr []int32) {
	for i := range y {
		y[i], cb[i], cr[i] = RCTInverse(y[i], cb[i], cr[i])
	}
}
