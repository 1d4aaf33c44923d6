// Package lzss implements the Nintendo LZSS decompression dialects used by
// NDS cartridges: LZ10, LZ11, and the reverse-direction "overlay" variant
// used to compress arm9/arm7 overlays in place.
//
// This is a straight re-implementation of nlzss3.py's C++ port
// (original_source/util/lzss.cpp) as idiomatic Go: an explicit byte cursor
// instead of pointer arithmetic, and typed sentinel errors instead of a
// bool return.
package lzss

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the input ends before a required byte
	// could be read.
	ErrTruncated = errors.New("lzss: truncated input")
	// ErrBadMagic is returned when the normal-path magic byte is neither
	// 0x10 (LZ10) nor 0x11 (LZ11).
	ErrBadMagic = errors.New("lzss: unrecognised magic byte")
	// ErrBadReference is returned when a back-reference displacement points
	// before the start of the output produced so far.
	ErrBadReference = errors.New("lzss: back-reference before start of output")
	// ErrUnsupportedMode is returned when LZ11 is requested in overlay mode.
	ErrUnsupportedMode = errors.New("lzss: lz11 is not supported in overlay mode")
	// ErrShortOutput is returned when the input is exhausted before the
	// declared decompressed size is reached.
	ErrShortOutput = errors.New("lzss: input exhausted before declared size")
)

// Decompress decodes input as LZ10 or LZ11 (overlay == false, dialect
// selected by the magic byte), or as the reverse-direction overlay LZ10
// variant (overlay == true).
func Decompress(input []byte, overlay bool) ([]byte, error) {
	if overlay {
		return decompressOverlay(input)
	}
	return decompressNormal(input)
}

func decompressNormal(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, ErrTruncated
	}

	magic := input[0]
	declared := uint32(input[1]) | uint32(input[2])<<8 | uint32(input[3])<<16

	switch magic {
	case 0x10:
		return decodeLZ10(input[4:], declared, 1)
	case 0x11:
		return decodeLZ11(input[4:], declared)
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadMagic, magic)
	}
}

// decodeLZ10 decodes the LZ10 inner bitstream. dispExtra is 1 for the
// normal-mode dialect and 3 for the overlay dialect.
func decodeLZ10(in []byte, declared uint32, dispExtra uint32) ([]byte, error) {
	out := make([]byte, 0, declared)
	pos := 0

	for uint32(len(out)) < declared {
		if pos >= len(in) {
			return nil, ErrTruncated
		}
		flags := in[pos]
		pos++

		for bit := 7; bit >= 0; bit-- {
			if (flags>>uint(bit))&1 == 0 {
				if pos >= len(in) {
					return nil, ErrTruncated
				}
				out = append(out, in[pos])
				pos++
			} else {
				if pos+1 >= len(in) {
					return nil, ErrTruncated
				}
				code := uint16(in[pos])<<8 | uint16(in[pos+1])
				pos += 2

				count := uint32(code>>12) + 3
				disp := uint32(code&0x0FFF) + dispExtra

				if disp > uint32(len(out)) {
					return nil, ErrBadReference
				}
				for i := uint32(0); i < count; i++ {
					out = append(out, out[uint32(len(out))-disp])
				}
			}

			if uint32(len(out)) >= declared {
				break
			}
		}
	}

	if uint32(len(out)) != declared {
		return nil, ErrShortOutput
	}
	return out, nil
}

// decodeLZ11 decodes the LZ11 inner bitstream (normal mode only).
func decodeLZ11(in []byte, declared uint32) ([]byte, error) {
	out := make([]byte, 0, declared)
	pos := 0

	for uint32(len(out)) < declared {
		if pos >= len(in) {
			return nil, ErrTruncated
		}
		flags := in[pos]
		pos++

		for bit := 7; bit >= 0; bit-- {
			if (flags>>uint(bit))&1 == 0 {
				if pos >= len(in) {
					return nil, ErrTruncated
				}
				out = append(out, in[pos])
				pos++
			} else {
				if pos >= len(in) {
					return nil, ErrTruncated
				}
				b := in[pos]
				pos++
				indicator := b >> 4

				var count, disp uint32
				switch indicator {
				case 0:
					// 8-bit count, 12-bit disp.
					if pos+1 >= len(in) {
						return nil, ErrTruncated
					}
					b2 := in[pos]
					b3 := in[pos+1]
					pos += 2
					count = uint32(b&0x0F)<<4 | uint32(b2>>4) + 0x11
					disp = uint32(b2&0x0F)<<8 | uint32(b3) + 1
				case 1:
					// 16-bit count, 12-bit disp.
					if pos+2 >= len(in) {
						return nil, ErrTruncated
					}
					b2 := in[pos]
					b3 := in[pos+1]
					b4 := in[pos+2]
					pos += 3
					count = uint32(b&0x0F)<<12 | uint32(b2)<<4 | uint32(b3>>4) + 0x111
					disp = uint32(b3&0x0F)<<8 | uint32(b4) + 1
				default:
					// 4-bit count (the indicator itself), 12-bit disp.
					if pos >= len(in) {
						return nil, ErrTruncated
					}
					b2 := in[pos]
					pos++
					count = uint32(indicator) + 1
					disp = uint32(b&0x0F)<<8 | uint32(b2) + 1
				}

				if disp > uint32(len(out)) {
					return nil, ErrBadReference
				}
				for i := uint32(0); i < count; i++ {
					out = append(out, out[uint32(len(out))-disp])
				}
			}

			if uint32(len(out)) >= declared {
				break
			}
		}
	}

	if uint32(len(out)) != declared {
		return nil, ErrShortOutput
	}
	return out, nil
}

// overlayFooterSize is the size in bytes of the trailer appended to an
// overlay-compressed blob: two little-endian 32-bit words, end_delta then
// start_delta.
const overlayFooterSize = 8

func decompressOverlay(input []byte) ([]byte, error) {
	filelen := uint32(len(input))
	if filelen < overlayFooterSize {
		return nil, ErrTruncated
	}

	footerPos := filelen - overlayFooterSize
	rawEndDelta := uint32(input[footerPos]) | uint32(input[footerPos+1])<<8 | uint32(input[footerPos+2])<<16 | uint32(input[footerPos+3])<<24
	startDelta := uint32(input[footerPos+4]) | uint32(input[footerPos+5])<<8 | uint32(input[footerPos+6])<<16 | uint32(input[footerPos+7])<<24

	padding := rawEndDelta >> 24
	endDelta := rawEndDelta & 0xFFFFFF
	decompressedSize := startDelta + endDelta

	if endDelta > filelen {
		return nil, ErrTruncated
	}
	if padding > endDelta {
		return nil, ErrTruncated
	}

	pos := filelen - endDelta
	windowLen := endDelta - padding

	flipped := make([]byte, windowLen)
	for i := uint32(0); i < windowLen; i++ {
		j := pos + i
		if j >= filelen {
			return nil, ErrTruncated
		}
		flipped[i] = input[j]
	}
	reverseBytes(flipped)

	decoded, err := decodeLZ10(flipped, decompressedSize, 3)
	if err != nil {
		return nil, err
	}
	reverseBytes(decoded)

	prefixLen := filelen - endDelta
	out := make([]byte, 0, prefixLen+uint32(len(decoded)))
	out = append(out, input[:prefixLen]...)
	out = append(out, decoded...)
	return out, nil
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
