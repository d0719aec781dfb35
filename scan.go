package progjpeg

// processSOS is the Scan Decoder (spec §4.3): it parses one SOS segment
// header, then drives the entropy-coded MCU loop that follows it, writing
// decoded coefficients into each participating component's coeffs slice.
// Dequantization and the inverse DCT are deferred to the finishing pass
// (finish.go), which runs once after every scan has been read.
//
// Adapted from the Go standard library's image/jpeg decoder (by way of the
// teacher repository's scan.go), generalized so that baseline scans defer
// reconstruction exactly like progressive ones instead of reconstructing
// each block inline.
func (d *decoder) processSOS(n int) error {
	if d.nComp == 0 {
		return newErr(MalformedSyntax, "missing SOF marker")
	}
	if n < 6 || 4+2*d.nComp < n || n%2 != 0 {
		return newErr(MalformedSyntax, "SOS has wrong length")
	}
	if err := d.br.readFull(d.tmp[:n]); err != nil {
		return err
	}
	nComp := int(d.tmp[0])
	if n != 4+2*nComp {
		return newErr(MalformedSyntax, "SOS length inconsistent with number of components")
	}

	var scan [maxComponents]struct {
		compIndex uint8
		td        uint8
		ta        uint8
	}
	totalHV := 0
	for i := 0; i < nComp; i++ {
		cs := d.tmp[1+2*i]
		compIndex := -1
		for j := 0; j < d.nComp; j++ {
			if cs == d.comp[j].id {
				compIndex = j
			}
		}
		if compIndex < 0 {
			return newErrf(MalformedSyntax, "unknown component selector %d", cs)
		}
		scan[i].compIndex = uint8(compIndex)
		for j := 0; j < i; j++ {
			if scan[i].compIndex == scan[j].compIndex {
				return newErr(MalformedSyntax, "repeated component selector")
			}
		}
		totalHV += int(d.comp[compIndex].h) * int(d.comp[compIndex].v)

		scan[i].td = d.tmp[2+2*i] >> 4
		if t := scan[i].td; t > maxTh || (d.baseline && t > 1) {
			return newErrf(MalformedSyntax, "bad Td value %d", t)
		}
		scan[i].ta = d.tmp[2+2*i] & 0x0f
		if t := scan[i].ta; t > maxTh || (d.baseline && t > 1) {
			return newErrf(MalformedSyntax, "bad Ta value %d", t)
		}
	}
	if d.nComp > 1 && totalHV > 10 {
		return newErr(MalformedSyntax, "total sampling factors too large")
	}

	// zigStart, zigEnd, ah, al are Ss, Se, Ah, Al (spec §3's Scan
	// attributes). For non-progressive frames these are fixed at
	// 0/63/0/0, as required by table B.3 / spec §3's baseline invariant.
	zigStart, zigEnd, ah, al := int32(0), int32(blockSize-1), uint32(0), uint32(0)
	if d.progressive {
		zigStart = int32(d.tmp[1+2*nComp])
		zigEnd = int32(d.tmp[2+2*nComp])
		ah = uint32(d.tmp[3+2*nComp] >> 4)
		al = uint32(d.tmp[3+2*nComp] & 0x0f)
		if (zigStart == 0 && zigEnd != 0) || zigStart > zigEnd || blockSize <= zigEnd {
			return newErr(MalformedSyntax, "bad spectral selection bounds")
		}
		if zigStart != 0 && nComp != 1 {
			return newErr(MalformedSyntax, "progressive AC coefficients for more than one component")
		}
		if ah != 0 && ah != al+1 {
			return newErr(MalformedSyntax, "bad successive approximation values")
		}
	}

	mxx, myy := d.mxx, d.myy
	d.bits = bits{}
	d.eobRun = 0
	mcu, expectedRST := 0, uint8(rst0Marker)

	var (
		b          block
		dc         [maxComponents]int32
		bx, by     int
		blockCount int
	)

	for my := 0; my < myy; my++ {
		for mx := 0; mx < mxx; mx++ {
			for i := 0; i < nComp; i++ {
				compIndex := scan[i].compIndex
				hi := int(d.comp[compIndex].h)
				vi := int(d.comp[compIndex].v)
				for j := 0; j < hi*vi; j++ {
					if nComp != 1 {
						bx = hi*mx + j%hi
						by = vi*my + j/hi
					} else {
						q := mxx * hi
						bx = blockCount % q
						by = blockCount / q
						blockCount++
						if bx*8 >= d.comp[compIndex].width || by*8 >= d.comp[compIndex].height {
							continue
						}
					}

					stride := d.comp[compIndex].blocksWide
					if ah != 0 {
						b = d.comp[compIndex].coeffs[by*stride+bx]
						if err := d.refine(&b, &d.huff[acTable][scan[i].ta], zigStart, zigEnd, 1<<al); err != nil {
							return err
						}
					} else {
						b = d.comp[compIndex].coeffs[by*stride+bx]
						zig := zigStart
						if zig == 0 {
							zig++
							value, err := d.decodeHuffman(&d.huff[dcTable][scan[i].td])
							if err != nil {
								return err
							}
							if value > 16 {
								return newErr(Unsupported, "excessive DC component")
							}
							dcDelta, err := d.receiveExtend(int32(value))
							if err != nil {
								return err
							}
							dc[compIndex] += dcDelta
							b[0] = dc[compIndex] << al
						}

						if zig <= zigEnd && d.eobRun > 0 {
							d.eobRun--
						} else {
							huff := &d.huff[acTable][scan[i].ta]
							for ; zig <= zigEnd; zig++ {
								value, err := d.decodeHuffman(huff)
								if err != nil {
									return err
								}
								val0 := value >> 4
								val1 := value & 0x0f
								if val1 != 0 {
									zig += int32(val0)
									if zig > zigEnd {
										break
									}
									ac, err := d.receiveExtend(int32(val1))
									if err != nil {
										return err
									}
									b[unzig[zig]] = ac << al
								} else {
									if val0 != 0x0f {
										eobRun, err := d.receiveExtendPos(int32(val0))
										if err != nil {
											return err
										}
										d.eobRun = eobRun - 1
										break
									}
									zig += 0x0f
								}
							}
						}
					}
					d.comp[compIndex].coeffs[by*stride+bx] = b
				} // for j
			} // for i
			mcu++
			if d.ri > 0 && mcu%d.ri == 0 && mcu < mxx*myy {
				if err := d.br.readFull(d.tmp[:2]); err != nil {
					return err
				} else if d.tmp[0] != 0xff || d.tmp[1] != expectedRST {
					if err := d.findRST(expectedRST); err != nil {
						return err
					}
				}
				expectedRST++
				if expectedRST == rst7Marker+1 {
					expectedRST = rst0Marker
				}
				d.bits = bits{}
				dc = [maxComponents]int32{}
				d.eobRun = 0
			}
		} // for mx
	} // for my

	return nil
}

// refine decodes a successive approximation refinement block (spec
// §4.3.4, §4.3.6).
func (d *decoder) refine(b *block, h *huffman, zigStart, zigEnd, delta int32) error {
	if zigStart == 0 {
		bit, err := d.decodeBit()
		if err != nil {
			return err
		}
		if bit {
			b[0] |= delta
		}
		return nil
	}

	zig := zigStart
	if d.eobRun == 0 {
	loop:
		for ; zig <= zigEnd; zig++ {
			z := int32(0)
			value, err := d.decodeHuffman(h)
			if err != nil {
				return err
			}
			val0 := value >> 4
			val1 := value & 0x0f

			switch val1 {
			case 0:
				if val0 != 0x0f {
					eobRun, err := d.receiveExtendPos(int32(val0))
					if err != nil {
						return err
					}
					d.eobRun = eobRun
					break loop
				}
			case 1:
				z = delta
				bit, err := d.decodeBit()
				if err != nil {
					return err
				}
				if !bit {
					z = -z
				}
			default:
				return newErr(MalformedSyntax, "unexpected huffman code in AC refinement")
			}

			zig, err = d.refineNonZeroes(b, zig, zigEnd, int32(val0), delta)
			if err != nil {
				return err
			}
			if zig > zigEnd {
				return newErr(MalformedSyntax, "too many coefficients")
			}
			if z != 0 {
				b[unzig[zig]] = z
			}
		}
	}
	if d.eobRun > 0 {
		d.eobRun--
		if _, err := d.refineNonZeroes(b, zig, zigEnd, -1, delta); err != nil {
			return err
		}
	}
	return nil
}

// refineNonZeroes refines non-zero entries of b in zig-zag order. If nz >=
// 0, the first nz zero entries are skipped over (spec §4.3.6, states 1/2).
func (d *decoder) refineNonZeroes(b *block, zig, zigEnd, nz, delta int32) (int32, error) {
	for ; zig <= zigEnd; zig++ {
		u := unzig[zig]
		if b[u] == 0 {
			if nz == 0 {
				break
			}
			nz--
			continue
		}
		bit, err := d.decodeBit()
		if err != nil {
			return 0, err
		}
		if !bit {
			continue
		}
		if b[u] >= 0 {
			b[u] += delta
		} else {
			b[u] -= delta
		}
	}
	return zig, nil
}

// findRST advances past the next RST restart marker that matches
// expectedRST, resynchronizing on corrupt input the way libjpeg's
// jdmarker.c's next_marker does (spec §4.3.7's structural-error clause).
//
// Precondition: d.tmp[:2] holds the next two raw bytes of the stream.
func (d *decoder) findRST(expectedRST uint8) error {
	for {
		i := 0
		if d.tmp[0] == 0xff {
			if d.tmp[1] == expectedRST {
				return nil
			} else if d.tmp[1] == 0xff {
				i = 1
			} else if d.tmp[1] != 0x00 {
				return newErr(BadRestart, "expected a restart marker")
			}
		} else if d.tmp[1] == 0xff {
			d.tmp[0] = 0xff
			i = 1
		}
		if err := d.br.readFull(d.tmp[i:2]); err != nil {
			return err
		}
	}
}
