package audio

import "encoding/binary"

// muLawBias is the standard G.711 encoding bias.
const muLawBias = 0x84

// DecodeMuLaw expands G.711 mu-law bytes (the telephony stream format)
// into PCM16 little-endian samples.
func DecodeMuLaw(in []byte) []byte {
	out := make([]byte, len(in)*2)
	for i, b := range in {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(muLawToPCM(b)))
	}
	return out
}

func muLawToPCM(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	sample := (int16(mantissa)<<3 + muLawBias) << exponent
	sample -= muLawBias
	if sign != 0 {
		return -sample
	}
	return sample
}
