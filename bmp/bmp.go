// Package bmp writes 24-bit uncompressed BMP files, the external sink used
// to validate decoded output (spec §4.6).
package bmp

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Format names the color space of the samples passed to Write, matching the
// decoder's own Format tag plus a pass-through RGB case the decoder never
// produces but the sink accepts directly.
type Format int

const (
	L Format = iota
	RGB
	YCbCr
	CMYK
)

func (f Format) channels() int {
	switch f {
	case L:
		return 1
	case CMYK:
		return 4
	default:
		return 3
	}
}

// Write encodes width x height samples in format's color space as a 24-bit BGR
// BMP, per spec §4.6: 14-byte file header, 40-byte BITMAPINFOHEADER, rows
// bottom-up, each row zero-padded to a 4-byte multiple.
//
// Grounded on the original write_bmp (original_source/bmp/core.py):
// header/filesize/padding arithmetic and the bottom-up BGR row order are
// unchanged; the YCbCr and CMYK per-pixel conversions follow the corrected
// formulas resolved in SPEC_FULL.md rather than the Python source's formula
// (which mistakenly re-centers Y before adding it back).
func Write(w io.Writer, format Format, width, height int, samples []byte) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("bmp: invalid dimensions %dx%d", width, height)
	}
	nc := format.channels()
	if len(samples) != width*height*nc {
		return errors.Errorf("bmp: expected %d samples for %dx%d, got %d", width*height*nc, width, height, len(samples))
	}

	rowStride := width * 3
	if pad := rowStride % 4; pad != 0 {
		rowStride += 4 - pad
	}
	fileSize := 14 + 40 + rowStride*height

	bw := bufio.NewWriter(w)

	bw.WriteString("BM")
	writeLE32(bw, uint32(fileSize))
	writeLE32(bw, 0)
	writeLE32(bw, 14+40)

	writeLE32(bw, 40)
	writeLE32(bw, uint32(width))
	writeLE32(bw, uint32(height))
	writeLE16(bw, 1)
	writeLE16(bw, 24)
	for i := 0; i < 6; i++ {
		writeLE32(bw, 0)
	}

	padding := make([]byte, rowStride-width*3)
	var pixel [3]byte
	for y := height - 1; y >= 0; y-- {
		for x := 0; x < width; x++ {
			coord := (y*width + x) * nc
			r, g, b := pixelRGB(format, samples, coord)
			pixel[0], pixel[1], pixel[2] = b, g, r
			if _, err := bw.Write(pixel[:]); err != nil {
				return errors.Wrap(err, "bmp: write pixel")
			}
		}
		if len(padding) > 0 {
			if _, err := bw.Write(padding); err != nil {
				return errors.Wrap(err, "bmp: write row padding")
			}
		}
	}
	return bw.Flush()
}

// pixelRGB converts the nc-channel sample at samples[coord:coord+nc] to RGB,
// per spec §4.6's YCbCr formula and the supplemented naive-complement CMYK
// formula.
func pixelRGB(format Format, samples []byte, coord int) (r, g, b byte) {
	switch format {
	case L:
		l := samples[coord]
		return l, l, l
	case RGB:
		return samples[coord], samples[coord+1], samples[coord+2]
	case YCbCr:
		y := float64(samples[coord])
		cb := float64(samples[coord+1]) - 128
		cr := float64(samples[coord+2]) - 128
		return clamp(y + 1.402*cr), clamp(y - 0.34414*cb - 0.71414*cr), clamp(y + 1.772*cb)
	case CMYK:
		c, m, ye := samples[coord], samples[coord+1], samples[coord+2]
		return 255 - c, 255 - m, 255 - ye
	default:
		return 0, 0, 0
	}
}

func clamp(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}

func writeLE32(w *bufio.Writer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.Write(buf[:])
}

func writeLE16(w *bufio.Writer, v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.Write(buf[:])
}
