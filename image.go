package progjpeg

// Format tags the color space of a decoded Image, per spec §4.5.4's
// component-count rule.
type Format int

const (
	FormatGray Format = iota
	FormatYCbCr
	FormatCMYK
)

func (f Format) String() string {
	switch f {
	case FormatGray:
		return "L"
	case FormatYCbCr:
		return "YCbCr"
	case FormatCMYK:
		return "CMYK"
	default:
		return "unknown"
	}
}

// Image is the opaque output object of spec §6: width, height, a format
// tag, per-component sampling factors, and a linearized interleaved sample
// buffer.
type Image struct {
	format   Format
	width    int
	height   int
	sampling [][2]int
	comps    []component
}

func (im *Image) Format() Format { return im.format }
func (im *Image) Width() int     { return im.width }
func (im *Image) Height() int    { return im.height }

// Sampling returns each component's (h, v) sampling factors in frame
// component order.
func (im *Image) Sampling() [][2]int {
	out := make([][2]int, len(im.sampling))
	copy(out, im.sampling)
	return out
}

// Interleaved returns an interleaved, row-major, 8-bit-per-sample buffer of
// length Width()*Height()*componentCount, with component order matching
// Format, and per-component upsampling by nearest-neighbor replication to
// the full frame grid (spec §4.5.4's Linearization rule).
func (im *Image) Interleaved() []byte {
	nc := len(im.comps)
	out := make([]byte, im.width*im.height*nc)
	for row := 0; row < im.height; row++ {
		rowBase := row * im.width * nc
		for col := 0; col < im.width; col++ {
			pixBase := rowBase + col*nc
			for ci := 0; ci < nc; ci++ {
				c := &im.comps[ci]
				sr := row / c.scaleY
				sc := col / c.scaleX
				out[pixBase+ci] = c.pix[sr*c.stride+sc]
			}
		}
	}
	return out
}

// image assembles the decoder's internal state into the public Image, once
// every scan has been decoded and finishAll has converted coefficients to
// samples.
func (d *decoder) image() *Image {
	var format Format
	switch d.nComp {
	case 1:
		format = FormatGray
	case 3:
		format = FormatYCbCr
	case 4:
		format = FormatCMYK
	}
	im := &Image{
		format: format,
		width:  d.width,
		height: d.height,
		comps:  make([]component, d.nComp),
	}
	for i := 0; i < d.nComp; i++ {
		im.comps[i] = d.comp[i]
		im.sampling = append(im.sampling, [2]int{int(d.comp[i].h), int(d.comp[i].v)})
	}
	return im
}
