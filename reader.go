package progjpeg

import (
	"bufio"
	"io"
)

// bits holds the state of the MSB-first bit accumulator used while decoding
// an entropy-coded scan. a is the accumulator, m is a one-hot mask over the
// next unread bit (m == 1<<b where b is the bit's position within a), and n
// is the number of unread bits currently buffered in a.
type bits struct {
	a uint32
	m uint32
	n int32
}

// byteReader is the Bit/Byte Reader component (spec §4.1): it strips stuffed
// 0xFF00 pairs, recognizes restart and other markers inside what would
// otherwise be entropy-coded data, and exposes a pushback so a marker's two
// bytes can be handed back to the marker-stream parser once the entropy
// decoder is done with the current scan.
type byteReader struct {
	r        *bufio.Reader
	offset   int64
	pushback []byte
}

func newByteReader(r io.Reader) *byteReader {
	return &byteReader{r: bufio.NewReaderSize(r, 4096)}
}

// readRawByte reads the next byte with no destuffing, honoring any pushback.
func (br *byteReader) readRawByte() (byte, error) {
	if n := len(br.pushback); n > 0 {
		b := br.pushback[n-1]
		br.pushback = br.pushback[:n-1]
		return b, nil
	}
	b, err := br.r.ReadByte()
	if err != nil {
		return 0, err
	}
	br.offset++
	return b, nil
}

// unreadBytes pushes bs back so the next readRawByte calls return them, in
// order, before resuming the underlying stream.
func (br *byteReader) unreadBytes(bs ...byte) {
	for i := len(bs) - 1; i >= 0; i-- {
		br.pushback = append(br.pushback, bs[i])
	}
}

// readFull reads exactly len(p) raw (non-destuffed) bytes, the form used by
// the marker-stream parser and by restart-marker resynchronization.
func (br *byteReader) readFull(p []byte) error {
	for i := range p {
		b, err := br.readRawByte()
		if err != nil {
			if err == io.EOF {
				return newErr(UnexpectedEOF, "input ended mid-segment")
			}
			return err
		}
		p[i] = b
	}
	return nil
}

// errMarkerInEntropy builds the error readByteStuffedByte returns when a
// 0xFF is followed by any byte other than 0x00 (stuffing), RST markers
// included: the two bytes are pushed back and the bit read fails. The scan
// decoder reads only the bits its MCUs need, so reaching a marker this way
// fails the scan. A fresh error is built each time because the marker loop
// stamps marker and offset context onto the error it receives.
func errMarkerInEntropy() error {
	return newErr(MalformedSyntax, "marker encountered inside entropy-coded data")
}

// readByteStuffedByte reads one logical byte of entropy-coded data, removing
// 0xFF00 stuffing transparently. If it encounters 0xFF followed by anything
// other than 0x00, it pushes both bytes back and returns errMarkerInEntropy;
// the caller is expected to stop consuming bits and let the marker-stream
// parser resume from the pushed-back bytes.
func (br *byteReader) readByteStuffedByte() (byte, error) {
	b, err := br.readRawByte()
	if err != nil {
		if err == io.EOF {
			return 0, newErr(UnexpectedEOF, "input ended mid-entropy-scan")
		}
		return 0, err
	}
	if b != 0xff {
		return b, nil
	}
	b2, err := br.readRawByte()
	if err != nil {
		if err == io.EOF {
			return 0, newErr(UnexpectedEOF, "input ended after 0xff inside entropy-scan")
		}
		return 0, err
	}
	if b2 == 0x00 {
		return 0xff, nil
	}
	br.unreadBytes(0xff, b2)
	return 0, errMarkerInEntropy()
}

// ensureNBits tops up d.bits until at least n unread bits are buffered.
func (d *decoder) ensureNBits(n int32) error {
	for d.bits.n < n {
		c, err := d.br.readByteStuffedByte()
		if err != nil {
			return err
		}
		d.bits.a = d.bits.a<<8 | uint32(c)
		d.bits.n += 8
		if d.bits.m == 0 {
			d.bits.m = 1 << 7
		} else {
			d.bits.m <<= 8
		}
	}
	return nil
}

// decodeBit reads a single bit MSB-first.
func (d *decoder) decodeBit() (bool, error) {
	if err := d.ensureNBits(1); err != nil {
		return false, err
	}
	ret := d.bits.a&d.bits.m != 0
	d.bits.n--
	d.bits.m >>= 1
	return ret, nil
}

// decodeBits is receive(n) from spec §4.3.1: reads n bits MSB-first as an
// unsigned integer. n may be 0, in which case it returns 0 with no read.
func (d *decoder) decodeBits(n int32) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if err := d.ensureNBits(n); err != nil {
		return 0, err
	}
	ret := (d.bits.a >> uint32(d.bits.n-n)) & ((1 << uint32(n)) - 1)
	d.bits.n -= n
	d.bits.m >>= uint32(n)
	return ret, nil
}
