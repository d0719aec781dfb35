package progjpeg

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

const (
	blockSize     = 64 // A DCT block is 8x8.
	maxComponents = 4
	maxTq         = 3 // Quantization table selectors are 0..3.
	maxTh         = 3 // Huffman table selectors are 0..3.

	dcTable = 0
	acTable = 1
)

// Marker codes, the second byte of a 0xFF-prefixed marker (spec §6).
const (
	sof0Marker = 0xc0 // Baseline.
	sof1Marker = 0xc1 // Extended sequential, Huffman.
	sof2Marker = 0xc2 // Progressive, Huffman.
	sof3Marker = 0xc3 // Lossless, Huffman: unsupported.
	sof5Marker = 0xc5
	sof6Marker = 0xc6
	sof7Marker = 0xc7
	sof9Marker = 0xc9 // Extended sequential, arithmetic: unsupported.
	sofAMarker = 0xca // Progressive, arithmetic: unsupported.
	sofBMarker = 0xcb
	sofDMarker = 0xcd
	sofEMarker = 0xce
	sofFMarker = 0xcf

	dhtMarker = 0xc4
	dacMarker = 0xcc // Arithmetic conditioning: unsupported.

	rst0Marker = 0xd0
	rst7Marker = 0xd7

	soiMarker = 0xd8
	eoiMarker = 0xd9
	sosMarker = 0xda
	dqtMarker = 0xdb
	dnlMarker = 0xdc
	driMarker = 0xdd
	dhpMarker = 0xde // Hierarchical progression: unsupported.
	expMarker = 0xdf // Expand reference components: unsupported.

	app0Marker  = 0xe0
	app14Marker = 0xee
	app15Marker = 0xef
	comMarker   = 0xfe
)

// component is the internal, decode-time record of one color plane: the
// data-model "Component" of spec §3, plus the bookkeeping the scan decoder
// and finishing pass need.
type component struct {
	id   uint8
	h, v uint8 // Sampling factors, each 1..4.
	tq   uint8 // Quantization table selector.

	// scaleX, scaleY are Hmax/h and Vmax/v: the nearest-neighbor replication
	// factor applied during linearization.
	scaleX, scaleY int

	// width, height are the component's effective pixel size, ceil(W*h/Hmax)
	// and ceil(H*v/Vmax).
	width, height int

	// blocksWide, blocksHigh is this component's block grid, addressed as
	// mxx*h by myy*v (mxx, myy being the frame's MCU grid).
	blocksWide, blocksHigh int

	lastDC int32

	// coeffs holds one block per (blocksWide*blocksHigh) grid cell: DCT
	// coefficients in natural order. The finishing pass (finish.go)
	// dequantizes and inverse-transforms a copy of each block and writes the
	// resulting samples to pix; coeffs itself keeps the coefficients.
	coeffs []block

	// pix is the component's own sample plane, row stride == blocksWide*8.
	pix    []byte
	stride int
}

// block is one 8x8 block of coefficients, or of spatial samples once idct
// has run on it, always in natural (row-major, not zig-zag) order.
type block [blockSize]int32

// decoder holds all state for decoding a single JPEG stream. It is not
// reused across images.
type decoder struct {
	br   *byteReader
	bits bits

	cfg Config

	tmp [512]byte

	width, height int
	nComp         int
	comp          [maxComponents]component

	baseline    bool
	progressive bool

	ri      int // Restart interval, in MCUs; 0 disables restarts.
	sawDRI  bool
	sawSOI  bool
	sawSOF  bool
	sawEOI  bool
	dhtSeen bool
	dqtSeen bool

	// scanCount counts completed SOS segments. dnlWindowOpen is true only for
	// the single marker read immediately following the first scan's entropy
	// data, the one position spec §4.5.2 allows a DNL segment to appear.
	scanCount     int
	dnlWindowOpen bool

	jfif                bool
	exif                bool
	adobeTransformValid bool
	adobeTransform      byte

	huff  [2][maxTh + 1]huffman
	quant [maxTq + 1]quantTable

	eobRun uint16

	// mxx, myy is the frame's MCU grid, fixed once at SOF time under the
	// (standard, encoder-universal) assumption that component 0 carries the
	// frame's maximum sampling factors.
	mxx, myy int
}

// quantTable is a 64-entry dequantization table, stored de-zigzagged
// (row-major), per spec §4.5.3.
type quantTable [blockSize]int32

// Decode reads a JPEG stream from r and returns the decoded Image. cfg may
// be nil, which is equivalent to a zero Config.
func Decode(r io.Reader, cfg *Config) (*Image, error) {
	d := &decoder{br: newByteReader(r)}
	if cfg != nil {
		d.cfg = *cfg
	}
	if err := d.decode(); err != nil {
		return nil, err
	}
	if err := d.finishAll(context.Background()); err != nil {
		return nil, err
	}
	return d.image(), nil
}

// validate enforces the structural requirements of spec §4.5.2 that can
// only be checked once the whole marker stream has been read.
func (d *decoder) validate() error {
	if !d.sawSOF {
		return newErr(MalformedSyntax, "missing SOF marker")
	}
	if !d.dhtSeen {
		return newErr(MalformedSyntax, "missing DHT segment")
	}
	if !d.dqtSeen {
		return newErr(MalformedSyntax, "missing DQT segment")
	}
	if !d.sawEOI {
		return newErr(MalformedSyntax, "missing EOI marker")
	}
	return nil
}

// IsJPEG reports whether first3, the first three bytes of a stream, match
// spec §6's Detection rule (0xFF 0xD8 0xFF). It reads nothing itself: the
// caller obtains the bytes, and a caller that wants to decode the same
// stream afterwards must arrange to re-read them (for example by peeking
// through a bufio.Reader and passing that reader to Decode).
func IsJPEG(first3 [3]byte) bool {
	return first3[0] == 0xff && first3[1] == 0xd8 && first3[2] == 0xff
}

func (d *decoder) decode() error {
	// SOI must be the very first marker.
	marker, err := d.nextMarker()
	if err != nil {
		return wrapErr(BadMarker, 0, d.br.offset, err, "expected SOI")
	}
	if marker != soiMarker {
		return newErrf(BadMarker, "expected SOI, got 0x%02x", marker)
	}
	d.sawSOI = true

	for {
		markerOffset := d.br.offset
		marker, err := d.nextMarker()
		if err != nil {
			return err
		}
		if d.cfg.Logger != nil {
			d.cfg.Logger.Debug("marker", "code", markerName(marker), "offset", markerOffset)
		}
		dnlWindowOpen := d.dnlWindowOpen
		d.dnlWindowOpen = false

		done, err := d.dispatchMarker(marker, dnlWindowOpen)
		if err != nil {
			return d.annotate(err, marker, markerOffset)
		}
		if done {
			return nil
		}
	}
}

// dispatchMarker handles one marker already consumed by nextMarker, reading
// and processing its segment (or, for SOS, its segment plus the entropy-coded
// scan that follows). done is true once EOI has been validated and decoding
// is complete.
func (d *decoder) dispatchMarker(marker byte, dnlWindowOpen bool) (done bool, err error) {
	switch {
	case marker == soiMarker:
		return false, newErr(MalformedSyntax, "duplicate SOI")
	case marker == eoiMarker:
		if !d.sawSOF {
			return false, newErr(MalformedSyntax, "EOI before SOF")
		}
		d.sawEOI = true
		if err := d.validate(); err != nil {
			return true, err
		}
		if d.cfg.StrictMode {
			if _, err := d.br.readRawByte(); err != io.EOF {
				if err != nil {
					return true, err
				}
				return true, newErr(MalformedSyntax, "trailing bytes after EOI")
			}
		}
		return true, nil
	case marker == sosMarker:
		if !d.sawSOF {
			return false, newErr(MalformedSyntax, "SOS before SOF")
		}
		n, err := d.readSegmentLength(marker)
		if err != nil {
			return false, err
		}
		if err := d.processSOS(n); err != nil {
			return false, err
		}
		d.scanCount++
		d.dnlWindowOpen = d.scanCount == 1
		return false, nil
	case marker == dhtMarker:
		n, err := d.readSegmentLength(marker)
		if err != nil {
			return false, err
		}
		if err := d.processDHT(n); err != nil {
			return false, err
		}
		d.dhtSeen = true
		return false, nil
	case marker == dqtMarker:
		n, err := d.readSegmentLength(marker)
		if err != nil {
			return false, err
		}
		if err := d.processDQT(n); err != nil {
			return false, err
		}
		d.dqtSeen = true
		return false, nil
	case marker == driMarker:
		n, err := d.readSegmentLength(marker)
		if err != nil {
			return false, err
		}
		return false, d.processDRI(n)
	case marker == dnlMarker:
		n, err := d.readSegmentLength(marker)
		if err != nil {
			return false, err
		}
		return false, d.processDNL(n, dnlWindowOpen)
	case marker == sof0Marker || marker == sof1Marker || marker == sof2Marker:
		if d.sawSOF {
			return false, newErr(MalformedSyntax, "duplicate SOF")
		}
		n, err := d.readSegmentLength(marker)
		if err != nil {
			return false, err
		}
		if err := d.processSOF(n, marker); err != nil {
			return false, err
		}
		d.sawSOF = true
		return false, nil
	case marker == sof3Marker, marker == sof5Marker, marker == sof6Marker, marker == sof7Marker,
		marker == sof9Marker, marker == sofAMarker, marker == sofBMarker,
		marker == sofDMarker, marker == sofEMarker, marker == sofFMarker:
		return false, newErrf(Unsupported, "unsupported SOF marker 0x%02x", marker)
	case marker == dacMarker:
		return false, newErr(Unsupported, "arithmetic coding (DAC) is not supported")
	case marker == dhpMarker:
		return false, newErr(Unsupported, "hierarchical progression (DHP) is not supported")
	case marker == expMarker:
		return false, newErr(Unsupported, "reference component expansion (EXP) is not supported")
	case marker >= app0Marker && marker <= app15Marker:
		n, err := d.readSegmentLength(marker)
		if err != nil {
			return false, err
		}
		return false, d.processAPPn(n, marker)
	case marker == comMarker:
		n, err := d.readSegmentLength(marker)
		if err != nil {
			return false, err
		}
		return false, d.ignoreSegment(n)
	case marker >= rst0Marker && marker <= rst7Marker:
		return false, newErrf(MalformedSyntax, "unexpected restart marker 0x%02x outside a scan", marker)
	default:
		return false, newErrf(BadMarker, "unknown marker 0x%02x", marker)
	}
}

// annotate stamps marker/offset context onto a decode error, the way
// wrapErr documents. If err already carries a *DecodeError (the overwhelming
// common case, since every failure path in this package builds one), its
// Marker/Offset are filled in only if still unset, so the innermost failure
// site keeps priority over an outer caller. Anything else (a bare error
// surfacing from outside this package) is wrapped fresh via wrapErr.
func (d *decoder) annotate(err error, marker byte, offset int64) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		if de.Marker == 0 {
			de.Marker = marker
		}
		if de.Offset == 0 {
			de.Offset = offset
		}
		return de
	}
	return wrapErr(MalformedSyntax, marker, offset, err, "marker processing failed")
}

// nextMarker reads raw bytes until it finds a 0xFF followed by a non-zero,
// non-0xFF byte, and returns that marker code. Fill bytes (extra 0xFF bytes
// before the marker code) are allowed, as ITU-T T.81 permits.
func (d *decoder) nextMarker() (byte, error) {
	b, err := d.br.readRawByte()
	if err != nil {
		return 0, d.eofOr(err, "expected a marker")
	}
	for b != 0xff {
		b, err = d.br.readRawByte()
		if err != nil {
			return 0, d.eofOr(err, "expected a marker")
		}
	}
	for {
		b, err = d.br.readRawByte()
		if err != nil {
			return 0, d.eofOr(err, "truncated marker")
		}
		if b != 0xff {
			if b == 0x00 {
				return 0, newErr(BadMarker, "0xff00 stuffing outside entropy data")
			}
			return b, nil
		}
	}
}

func (d *decoder) eofOr(err error, context string) error {
	if err == io.EOF {
		return newErr(UnexpectedEOF, context)
	}
	return errors.Wrap(err, context)
}

// readSegmentLength reads the big-endian 16-bit length field (inclusive of
// itself) that follows every segment marker, and returns the body length
// (length-2).
func (d *decoder) readSegmentLength(marker byte) (int, error) {
	if err := d.br.readFull(d.tmp[:2]); err != nil {
		return 0, err
	}
	n := int(d.tmp[0])<<8 | int(d.tmp[1])
	if n < 2 {
		return 0, newErrf(MalformedSyntax, "marker 0x%02x has a bad segment length %d", marker, n)
	}
	if d.cfg.Logger != nil {
		d.cfg.Logger.Debug("segment length", "code", markerName(marker), "length", n-2)
	}
	return n - 2, nil
}

// markerName renders a marker byte as a human-readable mnemonic for log
// output. APPn and RSTn markers are named with their index; markers with no
// name here fall back to their hex value.
func markerName(marker byte) string {
	switch {
	case marker >= app0Marker && marker <= app15Marker:
		n := marker - app0Marker
		if n < 10 {
			return "APP" + string(rune('0'+n))
		}
		return "APP1" + string(rune('0'+n-10))
	case marker >= rst0Marker && marker <= rst7Marker:
		return "RST" + string(rune('0'+marker-rst0Marker))
	}
	switch marker {
	case soiMarker:
		return "SOI"
	case eoiMarker:
		return "EOI"
	case sosMarker:
		return "SOS"
	case dqtMarker:
		return "DQT"
	case dhtMarker:
		return "DHT"
	case driMarker:
		return "DRI"
	case dnlMarker:
		return "DNL"
	case sof0Marker:
		return "SOF0"
	case sof1Marker:
		return "SOF1"
	case sof2Marker:
		return "SOF2"
	case comMarker:
		return "COM"
	default:
		return fmtHex(marker)
	}
}

func fmtHex(b byte) string {
	const hex = "0123456789abcdef"
	return "0x" + string([]byte{hex[b>>4], hex[b&0xf]})
}

// ignoreSegment consumes and discards n body bytes.
func (d *decoder) ignoreSegment(n int) error {
	for n > 0 {
		m := n
		if m > len(d.tmp) {
			m = len(d.tmp)
		}
		if err := d.br.readFull(d.tmp[:m]); err != nil {
			return err
		}
		n -= m
	}
	return nil
}
