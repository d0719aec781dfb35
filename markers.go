package progjpeg

// processDQT parses one or more quantization tables from a DQT segment body
// of length n (spec §4.5.3).
func (d *decoder) processDQT(n int) error {
	for n > 0 {
		if n < 1 {
			return newErr(MalformedSyntax, "DQT has wrong length")
		}
		if err := d.br.readFull(d.tmp[:1]); err != nil {
			return err
		}
		n--
		pq := d.tmp[0] >> 4
		tq := d.tmp[0] & 0x0f
		if pq != 0 {
			return newErrf(MalformedSyntax, "bad Pq value %d (only 8-bit quantization tables are supported)", pq)
		}
		if tq > maxTq {
			return newErrf(MalformedSyntax, "bad Tq selector %d", tq)
		}
		if n < blockSize {
			return newErr(MalformedSyntax, "DQT has wrong length")
		}
		n -= blockSize
		if err := d.br.readFull(d.tmp[:blockSize]); err != nil {
			return err
		}
		var table quantTable
		for i := 0; i < blockSize; i++ {
			table[unzig[i]] = int32(d.tmp[i])
		}
		d.quant[tq] = table
	}
	if n != 0 {
		return newErr(MalformedSyntax, "DQT has wrong length")
	}
	return nil
}

// processDHT parses one or more Huffman tables from a DHT segment body of
// length n (spec §4.5.3).
func (d *decoder) processDHT(n int) error {
	for n > 0 {
		if n < 17 {
			return newErr(MalformedSyntax, "DHT has wrong length")
		}
		if err := d.br.readFull(d.tmp[:17]); err != nil {
			return err
		}
		tc := d.tmp[0] >> 4
		th := d.tmp[0] & 0x0f
		if tc > 1 {
			return newErrf(MalformedSyntax, "bad Tc class %d", tc)
		}
		if th > maxTh {
			return newErrf(MalformedSyntax, "bad Th selector %d", th)
		}
		var counts [16]byte
		copy(counts[:], d.tmp[1:17])
		total := 0
		for _, c := range counts {
			total += int(c)
		}
		n -= 17
		if n < total {
			return newErr(MalformedSyntax, "DHT has wrong length")
		}
		n -= total
		symbols := make([]byte, total)
		if err := d.br.readFull(symbols); err != nil {
			return err
		}
		maxSymbol := byte(255)
		if tc == dcTable {
			maxSymbol = 15
		}
		if err := d.huff[tc][th].build(counts, symbols, maxSymbol); err != nil {
			return err
		}
	}
	if n != 0 {
		return newErr(MalformedSyntax, "DHT has wrong length")
	}
	return nil
}

// processDRI parses the 2-byte restart interval.
func (d *decoder) processDRI(n int) error {
	if n != 2 {
		return newErr(MalformedSyntax, "DRI has wrong length")
	}
	if d.sawDRI {
		return newErr(MalformedSyntax, "duplicate DRI")
	}
	if err := d.br.readFull(d.tmp[:2]); err != nil {
		return err
	}
	d.ri = int(d.tmp[0])<<8 | int(d.tmp[1])
	d.sawDRI = true
	return nil
}

// processDNL parses the 2-byte line count and overrides the frame height.
// Per spec §4.5.2, DNL (if present) must immediately follow the first scan;
// windowOpen reports whether this marker is in fact that position (the
// caller tracks it across the whole marker loop, since by the time this
// function runs the DNL marker has already been consumed and any ordering
// violation is otherwise unobservable here).
func (d *decoder) processDNL(n int, windowOpen bool) error {
	if !windowOpen {
		return newErr(MalformedSyntax, "DNL must immediately follow the first scan")
	}
	if n != 2 {
		return newErr(MalformedSyntax, "DNL has wrong length")
	}
	if err := d.br.readFull(d.tmp[:2]); err != nil {
		return err
	}
	lines := int(d.tmp[0])<<8 | int(d.tmp[1])
	if d.cfg.StrictMode && lines <= 0 {
		return newErr(MalformedSyntax, "DNL declares zero lines")
	}
	if lines > 0 {
		d.height = lines
	}
	return nil
}

// processAPPn detects JFIF/JFXX/Exif/Adobe signatures per spec §4.5.3. No
// further metadata interpretation happens here; that is explicitly out of
// scope (spec §1).
func (d *decoder) processAPPn(n int, marker byte) error {
	if n < 5 {
		return d.ignoreSegment(n)
	}
	if err := d.br.readFull(d.tmp[:5]); err != nil {
		return err
	}
	n -= 5
	switch marker {
	case app0Marker:
		if string(d.tmp[:5]) == "JFIF\x00" || string(d.tmp[:4]) == "JFXX" {
			d.jfif = true
		}
	case 0xe1: // APP1
		if string(d.tmp[:5]) == "Exif\x00" {
			d.exif = true
		}
	case 0xee: // APPE
		if string(d.tmp[:5]) == "Adobe" {
			if n >= 7 {
				rest := d.tmp[5:12]
				if err := d.br.readFull(rest); err != nil {
					return err
				}
				n -= 7
				d.adobeTransform = rest[6]
				d.adobeTransformValid = true
			}
		}
	}
	return d.ignoreSegment(n)
}

// processSOF parses a start-of-frame segment per spec §4.5.3 and allocates
// per-component storage.
func (d *decoder) processSOF(n int, marker byte) error {
	switch marker {
	case sof0Marker:
		d.baseline = true
	case sof2Marker:
		d.progressive = true
	}
	// sof1Marker (extended sequential) falls through as neither baseline
	// nor progressive; it follows the same single-scan Ss=0,Se=63 shape as
	// baseline per table B.3 and is handled identically by the scan decoder.

	if n < 6 {
		return newErr(MalformedSyntax, "SOF has wrong length")
	}
	if err := d.br.readFull(d.tmp[:6]); err != nil {
		return err
	}
	precision := d.tmp[0]
	if precision != 8 {
		return newErrf(Unsupported, "unsupported sample precision %d", precision)
	}
	d.height = int(d.tmp[1])<<8 | int(d.tmp[2])
	d.width = int(d.tmp[3])<<8 | int(d.tmp[4])
	if d.width <= 0 || d.height <= 0 {
		return newErr(MalformedSyntax, "zero width or height")
	}
	if d.cfg.MaxResolution > 0 && d.width*d.height > d.cfg.MaxResolution {
		return newErrf(Unsupported, "image resolution %dx%d exceeds the configured maximum", d.width, d.height)
	}
	nComp := int(d.tmp[5])
	switch nComp {
	case 1, 3, 4:
	default:
		return newErrf(MalformedSyntax, "unsupported number of components %d", nComp)
	}
	d.nComp = nComp
	if n != 6+3*nComp {
		return newErr(MalformedSyntax, "SOF length inconsistent with component count")
	}
	if err := d.br.readFull(d.tmp[:3*nComp]); err != nil {
		return err
	}
	seenID := map[uint8]bool{}
	for i := 0; i < nComp; i++ {
		id := d.tmp[3*i+0]
		if seenID[id] {
			return newErrf(MalformedSyntax, "repeated component id %d", id)
		}
		seenID[id] = true
		hv := d.tmp[3*i+1]
		h, v := hv>>4, hv&0x0f
		if h < 1 || h > 4 || v < 1 || v > 4 {
			return newErrf(MalformedSyntax, "bad sampling factors %d/%d", h, v)
		}
		tq := d.tmp[3*i+2]
		if tq > maxTq {
			return newErrf(MalformedSyntax, "bad Tq selector %d", tq)
		}
		d.comp[i] = component{id: id, h: h, v: v, tq: tq}
	}
	return d.prepareFrame()
}

// prepareFrame computes Hmax/Vmax, each component's effective pixel size
// and block grid, and allocates coefficient and sample storage, per spec
// §3's Lifecycle ("Block buffers are allocated once per component after
// SOF").
//
// Component 0 is assumed to carry the frame's maximum sampling factors, the
// same assumption the teacher's decoder makes (and that every encoder in
// practice satisfies, since the luminance component is conventionally
// listed first and sampled no less densely than the chroma components).
func (d *decoder) prepareFrame() error {
	hMax, vMax := int(d.comp[0].h), int(d.comp[0].v)
	d.mxx = (d.width + 8*hMax - 1) / (8 * hMax)
	d.myy = (d.height + 8*vMax - 1) / (8 * vMax)

	for i := 0; i < d.nComp; i++ {
		c := &d.comp[i]
		h, v := int(c.h), int(c.v)
		c.scaleX = hMax / h
		c.scaleY = vMax / v
		c.width = (d.width*h + hMax - 1) / hMax
		c.height = (d.height*v + vMax - 1) / vMax
		c.blocksWide = d.mxx * h
		c.blocksHigh = d.myy * v
		c.coeffs = make([]block, c.blocksWide*c.blocksHigh)
		c.stride = c.blocksWide * 8
		c.pix = make([]byte, c.stride*c.blocksHigh*8)
	}
	return nil
}
