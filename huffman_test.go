package progjpeg

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"
)

// packBits concatenates MSB-first bit groups (value, nbits) into a byte
// slice, padding the final byte with 1 bits (the conventional JPEG entropy
// padding).
func packBits(groups ...[2]uint32) []byte {
	var acc uint64
	var n uint
	for _, g := range groups {
		val, nbits := uint64(g[0]), uint(g[1])
		acc = acc<<nbits | val
		n += nbits
	}
	for n%8 != 0 {
		acc = acc<<1 | 1
		n++
	}
	out := make([]byte, n/8)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = byte(acc)
		acc >>= 8
	}
	return out
}

func TestHuffmanBuildRejectsOverrunSymbols(t *testing.T) {
	c := qt.New(t)
	var h huffman
	counts := [16]byte{0, 1}
	err := h.build(counts, nil, 15)
	c.Assert(err, qt.ErrorMatches, ".*symbol count disagrees.*")
}

func TestHuffmanBuildRejectsOutOfRangeSymbol(t *testing.T) {
	c := qt.New(t)
	var h huffman
	counts := [16]byte{1}
	err := h.build(counts, []byte{20}, 15)
	c.Assert(err, qt.ErrorMatches, ".*exceeds allowed range.*")
}

func TestDecodeHuffmanStandardLuminanceDC(t *testing.T) {
	c := qt.New(t)
	var h huffman
	err := h.build(StandardLuminanceDC.counts, StandardLuminanceDC.symbols, 15)
	c.Assert(err, qt.IsNil)

	// Symbol 0 (category "no diff bits") is the first 2-bit code assigned,
	// value 0b00.
	buf := packBits([2]uint32{0b00, 2})
	d := &decoder{br: newByteReader(bytes.NewReader(buf))}
	sym, err := d.decodeHuffman(&h)
	c.Assert(err, qt.IsNil)
	c.Assert(sym, qt.Equals, byte(0))

	// Symbol 3 (category s=3) is the third of the five 3-bit codes, value
	// 0b100 (the 3-bit codes start at 0b010 for symbol 1).
	buf = packBits([2]uint32{0b100, 3})
	d = &decoder{br: newByteReader(bytes.NewReader(buf))}
	sym, err = d.decodeHuffman(&h)
	c.Assert(err, qt.IsNil)
	c.Assert(sym, qt.Equals, byte(3))
}

func TestDecodeHuffmanBrokenCode(t *testing.T) {
	c := qt.New(t)
	var h huffman
	err := h.build(StandardLuminanceDC.counts, StandardLuminanceDC.symbols, 15)
	c.Assert(err, qt.IsNil)

	// Sixteen 1 bits never complete a valid code for this table (the
	// longest assigned length is 9). Each 0xff data byte is stuffed with a
	// following 0x00, as entropy-coded data requires.
	buf := []byte{0xff, 0x00, 0xff, 0x00, 0xff, 0x00}
	d := &decoder{br: newByteReader(bytes.NewReader(buf))}
	_, err = d.decodeHuffman(&h)
	kind, ok := KindOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(kind, qt.Equals, BrokenCode)
}

func TestExtendSignConvention(t *testing.T) {
	c := qt.New(t)
	c.Assert(extend(0, 0), qt.Equals, int32(0))
	c.Assert(extend(0b101, 3), qt.Equals, int32(5))
	c.Assert(extend(0b010, 3), qt.Equals, int32(-5))
	c.Assert(extend(0b0, 1), qt.Equals, int32(-1))
	c.Assert(extend(0b1, 1), qt.Equals, int32(1))
}

func TestExtendPosIsEOBRunLength(t *testing.T) {
	c := qt.New(t)
	c.Assert(extendPos(0, 0), qt.Equals, uint16(1))
	c.Assert(extendPos(0b11, 2), qt.Equals, uint16(7))
}
