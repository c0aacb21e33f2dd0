package frame

import (
	"fmt"
	"strings"
)

// Algorithm names an integrity check.
type Algorithm string

const (
	// Sum8 is the byte sum modulo 256.
	Sum8 Algorithm = "sum8"
	// Xor8 is the xor of all bytes.
	Xor8 Algorithm = "xor8"
	// Sum16 is the byte sum modulo 65536.
	Sum16 Algorithm = "sum16"
	// CRC16CCITT is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
	CRC16CCITT Algorithm = "crc16-ccitt"
	// CRC8 is CRC-8 (poly 0x07, init 0x00).
	CRC8 Algorithm = "crc8"
)

// ParseAlgorithm resolves an algorithm name, case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if a.Width() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return a, nil
}

// Width is the stored checksum size in bytes, 0 for unknown algorithms.
func (a Algorithm) Width() int {
	switch a {
	case Sum8, Xor8, CRC8:
		return 1
	case Sum16, CRC16CCITT:
		return 2
	}
	return 0
}

// Compute runs the algorithm over the concatenation of segments.
func (a Algorithm) Compute(segments ...[]byte) uint32 {
	switch a {
	case Sum8, Sum16:
		var sum uint32
		for _, seg := range segments {
			for _, b := range seg {
				sum += uint32(b)
			}
		}
		if a == Sum8 {
			return sum & 0xFF
		}
		return sum & 0xFFFF

	case Xor8:
		var x byte
		for _, seg := range segments {
			for _, b := range seg {
				x ^= b
			}
		}
		return uint32(x)

	case CRC16CCITT:
		crc := uint16(0xFFFF)
		for _, seg := range segments {
			for _, b := range seg {
				crc ^= uint16(b) << 8
				for range 8 {
					if crc&0x8000 != 0 {
						crc = crc<<1 ^ 0x1021
					} else {
						crc <<= 1
					}
				}
			}
		}
		return uint32(crc)

	case CRC8:
		var crc byte
		for _, seg := range segments {
			for _, b := range seg {
				crc ^= b
				for range 8 {
					if crc&0x80 != 0 {
						crc = crc<<1 ^ 0x07
					} else {
						crc <<= 1
					}
				}
			}
		}
		return uint32(crc)
	}
	return 0
}
