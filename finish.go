package progjpeg

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// finishAll is the post-scan half of the Image Assembler (spec §4.4,
// §4.5.4): for every component, dequantize each coefficient block, inverse-
// transform it, level-shift, clamp, and scatter the result into that
// component's sample plane.
//
// Per spec §5, this work has no cross-component dependency once every scan
// has been decoded, so each component's blocks are finished by its own
// errgroup goroutine, at most GOMAXPROCS at a time. ctx is checked before
// each block row; Decode passes context.Background(), so a decode started
// through Decode is never cancelled here.
//
// Grounded on the teacher's reconstructBlock/reconstructProgressiveImage
// (scan.go), generalized to run for baseline frames too instead of
// reconstructing each block inline during MCU decoding.
func (d *decoder) finishAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < d.nComp; i++ {
		i := i
		g.Go(func() error {
			return d.finishComponent(ctx, i)
		})
	}
	return g.Wait()
}

func (d *decoder) finishComponent(ctx context.Context, compIndex int) error {
	c := &d.comp[compIndex]
	qt := &d.quant[c.tq]
	for by := 0; by*8 < c.height; by++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for bx := 0; bx*8 < c.width; bx++ {
			b := c.coeffs[by*c.blocksWide+bx]
			dequantize(&b, qt)
			idct(&b)
			storeBlock(&b, c.pix, c.stride, bx, by)
		}
	}
	return nil
}

// dequantize elementwise-multiplies b (natural order) by qt, as specified
// in spec §4.4 (the de-zigzagging already happened when the DQT segment
// was parsed).
func dequantize(b *block, qt *quantTable) {
	for i := 0; i < blockSize; i++ {
		b[i] *= qt[i]
	}
}

// storeBlock writes an 8x8 spatial block (still signed, not level-shifted)
// into pix at block coordinates (bx, by), applying the +128 level shift and
// [0,255] clamp per spec §4.4.
func storeBlock(b *block, pix []byte, stride, bx, by int) {
	base := 8 * (by*stride + bx)
	for row := 0; row < 8; row++ {
		off := base + row*stride
		r := row * 8
		pix[off+0] = clampToUint8(b[r+0])
		pix[off+1] = clampToUint8(b[r+1])
		pix[off+2] = clampToUint8(b[r+2])
		pix[off+3] = clampToUint8(b[r+3])
		pix[off+4] = clampToUint8(b[r+4])
		pix[off+5] = clampToUint8(b[r+5])
		pix[off+6] = clampToUint8(b[r+6])
		pix[off+7] = clampToUint8(b[r+7])
	}
}

// clampToUint8 performs the +128 level shift and clamps to [0, 255] (spec
// §4.4).
func clampToUint8(c int32) uint8 {
	c += 128
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return uint8(c)
}
