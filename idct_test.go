package progjpeg

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestIDCTAllZero(t *testing.T) {
	c := qt.New(t)
	var b block
	idct(&b)
	var want block
	c.Assert(b, qt.Equals, want)
}

// A DC-only block must transform to a spatially constant block: the inverse
// DCT of a pure-frequency-zero input is its average level everywhere.
func TestIDCTDCOnly(t *testing.T) {
	c := qt.New(t)
	var b block
	b[0] = 80 // a dequantized DC coefficient (5 * quant step 16)
	idct(&b)
	for i, v := range b {
		c.Assert(v, qt.Equals, int32(10), qt.Commentf("entry %d", i))
	}
}
