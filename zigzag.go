package progjpeg

// unzig maps from the zig-zag ordering a JPEG stream carries coefficients in
// to natural (row-major) 8x8 block order: unzig[k] is the row-major index of
// the coefficient transmitted k'th. It is its own inverse's mirror: zigzag
// (the forward permutation) is its positional inverse, computed once in
// init() for callers that need the row-major-to-zigzag direction.
var unzig = [blockSize]int32{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// zigzag is the positional inverse of unzig: zigzag[unzig[k]] == k for every
// k in 0..63. It is derived rather than hand-transcribed, so the two tables
// can never drift out of sync.
var zigzag [blockSize]int32

func init() {
	for k, pos := range unzig {
		zigzag[pos] = int32(k)
	}
}
