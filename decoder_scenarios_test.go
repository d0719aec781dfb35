package progjpeg

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"
)

// buildProgressiveGray8x8 assembles a single-block progressive stream that
// exercises all four scan shapes the successive-approximation state machine
// supports: a DC-first scan, an AC-first scan, a DC-refinement scan, and an
// AC-refinement scan. Every refinement in this stream is a no-op (the
// refinement bit is 0, and the AC-refine scan declares an immediate EOB on an
// already-all-zero block), so the final coefficients are identical to the
// hand-built baseline fixture: DC=5, every AC coefficient zero.
func buildProgressiveGray8x8(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8}) // SOI

	buf.Write([]byte{0xff, 0xdb})
	writeU16(&buf, 2+1+blockSize)
	buf.WriteByte(0x00)
	buf.Write(StandardLuminanceQuant[:])

	buf.Write([]byte{0xff, 0xc4})
	writeU16(&buf, 2+1+16+len(StandardLuminanceDC.symbols))
	buf.WriteByte(0x00)
	buf.Write(StandardLuminanceDC.counts[:])
	buf.Write(StandardLuminanceDC.symbols)

	buf.Write([]byte{0xff, 0xc4})
	writeU16(&buf, 2+1+16+len(StandardLuminanceAC.symbols))
	buf.WriteByte(0x10)
	buf.Write(StandardLuminanceAC.counts[:])
	buf.Write(StandardLuminanceAC.symbols)

	// SOF2: progressive, 8x8, 1 component.
	buf.Write([]byte{0xff, 0xc2})
	writeU16(&buf, 2+6+3)
	buf.WriteByte(8)
	writeU16(&buf, 8)
	writeU16(&buf, 8)
	buf.WriteByte(1)
	buf.Write([]byte{1, 0x11, 0x00})

	sos := func(ss, se, ahAl byte, entropy ...byte) {
		buf.Write([]byte{0xff, 0xda})
		writeU16(&buf, 2+1+2+3)
		buf.WriteByte(1)
		buf.Write([]byte{1, 0x00})
		buf.Write([]byte{ss, se, ahAl})
		buf.Write(entropy)
	}

	// Scan 1, DC first (Ss=0 Se=0 Ah=0 Al=0): DC category-3 code + diff bits
	// for value 5. 6 data bits padded to 0x97.
	sos(0x00, 0x00, 0x00, 0x97)
	// Scan 2, AC first (Ss=1 Se=63 Ah=0 Al=0): an immediate EOB, no AC
	// coefficients. 4 data bits padded to 0xaf.
	sos(0x01, 0x3f, 0x00, 0xaf)
	// Scan 3, DC refine (Ss=0 Se=0 Ah=1 Al=0): a single refinement bit, 0.
	sos(0x00, 0x00, 0x10, 0x7f)
	// Scan 4, AC refine (Ss=1 Se=63 Ah=1 Al=0): an immediate EOB declaration
	// on a block with no prior nonzero coefficients to refine.
	sos(0x01, 0x3f, 0x10, 0xaf)

	buf.Write([]byte{0xff, 0xd9}) // EOI
	return buf.Bytes()
}

func TestDecodeProgressiveScans(t *testing.T) {
	c := qt.New(t)
	data := buildProgressiveGray8x8(t)

	img, err := Decode(bytes.NewReader(data), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(img.Format(), qt.Equals, FormatGray)

	pix := img.Interleaved()
	for i, v := range pix {
		c.Assert(v, qt.Equals, byte(138), qt.Commentf("pixel %d", i))
	}
}

// buildSubsampledYCbCr assembles a 16x16, 3-component baseline stream with
// 2x2 luma sampling and 1x1 chroma sampling (one MCU covers the whole
// image): four Y blocks, one Cb block, one Cr block, all DC-only.
func buildSubsampledYCbCr(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8}) // SOI

	writeDQT := func(selector byte, table []byte) {
		buf.Write([]byte{0xff, 0xdb})
		writeU16(&buf, 2+1+blockSize)
		buf.WriteByte(selector)
		buf.Write(table)
	}
	writeDQT(0x00, StandardLuminanceQuant[:])
	writeDQT(0x01, StandardChrominanceQuant[:])

	writeDHT := func(classSelector byte, spec huffmanSpec) {
		buf.Write([]byte{0xff, 0xc4})
		writeU16(&buf, 2+1+16+len(spec.symbols))
		buf.WriteByte(classSelector)
		buf.Write(spec.counts[:])
		buf.Write(spec.symbols)
	}
	writeDHT(0x00, StandardLuminanceDC)
	writeDHT(0x10, StandardLuminanceAC)
	writeDHT(0x01, StandardChrominanceDC)
	writeDHT(0x11, StandardChrominanceAC)

	// SOF0: 16x16, 3 components. Y subsampled 2x2, Cb/Cr 1x1.
	buf.Write([]byte{0xff, 0xc0})
	writeU16(&buf, 2+6+3*3)
	buf.WriteByte(8)
	writeU16(&buf, 16)
	writeU16(&buf, 16)
	buf.WriteByte(3)
	buf.Write([]byte{1, 0x22, 0x00}) // Y:  id1, h2v2, tq0
	buf.Write([]byte{2, 0x11, 0x01}) // Cb: id2, h1v1, tq1
	buf.Write([]byte{3, 0x11, 0x01}) // Cr: id3, h1v1, tq1

	buf.Write([]byte{0xff, 0xda})
	writeU16(&buf, 2+1+2*3+3)
	buf.WriteByte(3)
	buf.Write([]byte{1, 0x00})
	buf.Write([]byte{2, 0x11})
	buf.Write([]byte{3, 0x11})
	buf.Write([]byte{0x00, 0x3f, 0x00})

	// Entropy: Y block0 (DC diff 5, EOB), Y blocks 1-3 (DC diff 0, EOB), Cb
	// block (DC diff 0, EOB), Cr block (DC diff 0, EOB); 36 data bits padded
	// to 40 with 1s, no byte requires stuffing.
	buf.Write([]byte{0x96, 0x8a, 0x28, 0xa0, 0x0f})

	buf.Write([]byte{0xff, 0xd9}) // EOI
	return buf.Bytes()
}

func TestDecodeSubsampledYCbCr(t *testing.T) {
	c := qt.New(t)
	data := buildSubsampledYCbCr(t)

	img, err := Decode(bytes.NewReader(data), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(img.Format(), qt.Equals, FormatYCbCr)
	c.Assert(img.Width(), qt.Equals, 16)
	c.Assert(img.Height(), qt.Equals, 16)
	c.Assert(img.Sampling(), qt.DeepEquals, [][2]int{{2, 2}, {1, 1}, {1, 1}})

	pix := img.Interleaved()
	c.Assert(len(pix), qt.Equals, 16*16*3)
	for i := 0; i < len(pix); i += 3 {
		c.Assert(pix[i+0], qt.Equals, byte(138), qt.Commentf("Y at pixel %d", i/3))
		c.Assert(pix[i+1], qt.Equals, byte(128), qt.Commentf("Cb at pixel %d", i/3))
		c.Assert(pix[i+2], qt.Equals, byte(128), qt.Commentf("Cr at pixel %d", i/3))
	}
}

// buildRestartGray16x8 assembles a 16x8, 1-component baseline stream with a
// restart interval of 1 MCU: two 8x8 blocks, each its own MCU, separated by
// an RST0 marker that must reset the DC predictor.
func buildRestartGray16x8(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8}) // SOI

	buf.Write([]byte{0xff, 0xdb})
	writeU16(&buf, 2+1+blockSize)
	buf.WriteByte(0x00)
	buf.Write(StandardLuminanceQuant[:])

	buf.Write([]byte{0xff, 0xc4})
	writeU16(&buf, 2+1+16+len(StandardLuminanceDC.symbols))
	buf.WriteByte(0x00)
	buf.Write(StandardLuminanceDC.counts[:])
	buf.Write(StandardLuminanceDC.symbols)

	buf.Write([]byte{0xff, 0xc4})
	writeU16(&buf, 2+1+16+len(StandardLuminanceAC.symbols))
	buf.WriteByte(0x10)
	buf.Write(StandardLuminanceAC.counts[:])
	buf.Write(StandardLuminanceAC.symbols)

	// SOF0: 16x8, 1 component.
	buf.Write([]byte{0xff, 0xc0})
	writeU16(&buf, 2+6+3)
	buf.WriteByte(8)
	writeU16(&buf, 8)
	writeU16(&buf, 16)
	buf.WriteByte(1)
	buf.Write([]byte{1, 0x11, 0x00})

	// DRI: restart every MCU.
	buf.Write([]byte{0xff, 0xdd})
	writeU16(&buf, 2+2)
	writeU16(&buf, 1)

	buf.Write([]byte{0xff, 0xda})
	writeU16(&buf, 2+1+2+3)
	buf.WriteByte(1)
	buf.Write([]byte{1, 0x00})
	buf.Write([]byte{0x00, 0x3f, 0x00})

	// MCU0: DC diff 5, EOB.
	buf.Write([]byte{0x96, 0xbf})
	buf.Write([]byte{0xff, 0xd0}) // RST0
	// MCU1: DC diff 3 against a predictor reset to 0 by the restart, EOB.
	buf.Write([]byte{0x7d, 0x7f})

	buf.Write([]byte{0xff, 0xd9}) // EOI
	return buf.Bytes()
}

func TestDecodeRestartIntervalResync(t *testing.T) {
	c := qt.New(t)
	data := buildRestartGray16x8(t)

	img, err := Decode(bytes.NewReader(data), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(img.Width(), qt.Equals, 16)
	c.Assert(img.Height(), qt.Equals, 8)

	pix := img.Interleaved()
	c.Assert(len(pix), qt.Equals, 16*8)
	for row := 0; row < 8; row++ {
		for col := 0; col < 16; col++ {
			want := byte(138)
			if col >= 8 {
				want = 134
			}
			c.Assert(pix[row*16+col], qt.Equals, want, qt.Commentf("row %d col %d", row, col))
		}
	}
}

// buildCMYK8x8 assembles an 8x8, 4-component baseline stream: one DC-only
// block per component, sharing the luminance quantization and Huffman
// tables for simplicity.
func buildCMYK8x8(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8}) // SOI

	buf.Write([]byte{0xff, 0xdb})
	writeU16(&buf, 2+1+blockSize)
	buf.WriteByte(0x00)
	buf.Write(StandardLuminanceQuant[:])

	buf.Write([]byte{0xff, 0xc4})
	writeU16(&buf, 2+1+16+len(StandardLuminanceDC.symbols))
	buf.WriteByte(0x00)
	buf.Write(StandardLuminanceDC.counts[:])
	buf.Write(StandardLuminanceDC.symbols)

	buf.Write([]byte{0xff, 0xc4})
	writeU16(&buf, 2+1+16+len(StandardLuminanceAC.symbols))
	buf.WriteByte(0x10)
	buf.Write(StandardLuminanceAC.counts[:])
	buf.Write(StandardLuminanceAC.symbols)

	// SOF0: 8x8, 4 components (C, M, Y, K), all 1x1.
	buf.Write([]byte{0xff, 0xc0})
	writeU16(&buf, 2+6+3*4)
	buf.WriteByte(8)
	writeU16(&buf, 8)
	writeU16(&buf, 8)
	buf.WriteByte(4)
	buf.Write([]byte{1, 0x11, 0x00})
	buf.Write([]byte{2, 0x11, 0x00})
	buf.Write([]byte{3, 0x11, 0x00})
	buf.Write([]byte{4, 0x11, 0x00})

	buf.Write([]byte{0xff, 0xda})
	writeU16(&buf, 2+1+2*4+3)
	buf.WriteByte(4)
	buf.Write([]byte{1, 0x00})
	buf.Write([]byte{2, 0x00})
	buf.Write([]byte{3, 0x00})
	buf.Write([]byte{4, 0x00})
	buf.Write([]byte{0x00, 0x3f, 0x00})

	// Entropy: DC diffs 1, 2, 3, 4 (one per component, predictors start at
	// 0), each followed by an immediate EOB.
	buf.Write([]byte{0x5a, 0x75, 0x3e, 0xa4, 0xaf})

	buf.Write([]byte{0xff, 0xd9}) // EOI
	return buf.Bytes()
}

func TestDecodeCMYKFourComponentSOF(t *testing.T) {
	c := qt.New(t)
	data := buildCMYK8x8(t)

	img, err := Decode(bytes.NewReader(data), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(img.Format(), qt.Equals, FormatCMYK)

	pix := img.Interleaved()
	c.Assert(len(pix), qt.Equals, 8*8*4)
	for i := 0; i < len(pix); i += 4 {
		c.Assert(pix[i+0], qt.Equals, byte(130), qt.Commentf("C at pixel %d", i/4))
		c.Assert(pix[i+1], qt.Equals, byte(132), qt.Commentf("M at pixel %d", i/4))
		c.Assert(pix[i+2], qt.Equals, byte(134), qt.Commentf("Y at pixel %d", i/4))
		c.Assert(pix[i+3], qt.Equals, byte(136), qt.Commentf("K at pixel %d", i/4))
	}
}
