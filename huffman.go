package progjpeg

// huffman is a canonical Huffman decode table for one of the four DC/AC x
// 0..3 table slots (spec §4.2). codes[length] maps a length-bit code value
// to its symbol; only lengths that actually occur have a non-nil map.
type huffman struct {
	codes  [17]map[uint16]byte
	nCodes int
}

// build assigns canonical codes to symbols per spec §4.2: code starts at 0;
// for each length 1..16, each of counts[length-1] symbols (in order) gets
// the current code and code increments; after a length's symbols are
// assigned, code is shifted left by one. maxSymbol bounds the valid symbol
// range (15 for DC tables, 255 for AC tables).
func (h *huffman) build(counts [16]byte, symbols []byte, maxSymbol byte) error {
	*h = huffman{}
	code, k := uint32(0), 0
	for length := 1; length <= 16; length++ {
		n := int(counts[length-1])
		for i := 0; i < n; i++ {
			if k >= len(symbols) {
				return newErr(MalformedSyntax, "huffman table symbol count disagrees with length histogram")
			}
			sym := symbols[k]
			if sym > maxSymbol {
				return newErrf(MalformedSyntax, "huffman symbol %d exceeds allowed range (max %d)", sym, maxSymbol)
			}
			if h.codes[length] == nil {
				h.codes[length] = make(map[uint16]byte, n)
			}
			if code >= 1<<uint32(length) {
				return newErr(MalformedSyntax, "huffman table is not prefix-free")
			}
			h.codes[length][uint16(code)] = sym
			code++
			k++
		}
		code <<= 1
	}
	if k != len(symbols) {
		return newErr(MalformedSyntax, "huffman table has unused trailing symbols")
	}
	h.nCodes = k
	return nil
}

// decodeHuffman reads 1..16 bits from d until a prefix matches an entry of h
// and returns the symbol. It fails with BrokenCode once 16 bits have been
// read without a match (no code is longer than 16 bits).
func (d *decoder) decodeHuffman(h *huffman) (byte, error) {
	if h.nCodes == 0 {
		return 0, newErr(MalformedSyntax, "scan references an empty huffman table")
	}
	var code uint16
	for length := 1; length <= 16; length++ {
		bit, err := d.decodeBit()
		if err != nil {
			return 0, err
		}
		code <<= 1
		if bit {
			code |= 1
		}
		if m := h.codes[length]; m != nil {
			if sym, ok := m[code]; ok {
				return sym, nil
			}
		}
	}
	return 0, newErr(BrokenCode, "huffman decode consumed 16 bits without a match")
}

// extend sign-extends a raw n-bit magnitude per Table F.1 (spec §4.3.1).
func extend(v uint32, n int32) int32 {
	if n == 0 {
		return 0
	}
	x := int32(v)
	if x < 1<<uint32(n-1) {
		return x + (-1 << uint32(n)) + 1
	}
	return x
}

// extendPos decodes an EOB run length per Table G.1 (spec §4.3.1).
func extendPos(v uint32, n int32) uint16 {
	return uint16(v) + uint16(1<<uint32(n))
}

// receiveExtend composes receive(n) and extend(v, n): reads n bits and
// sign-extends the result.
func (d *decoder) receiveExtend(n int32) (int32, error) {
	v, err := d.decodeBits(n)
	if err != nil {
		return 0, err
	}
	return extend(v, n), nil
}

// receiveExtendPos composes receive(n) and extendPos(v, n), used to decode
// an EOB run length.
func (d *decoder) receiveExtendPos(n int32) (uint16, error) {
	v, err := d.decodeBits(n)
	if err != nil {
		return 0, err
	}
	return extendPos(v, n), nil
}
