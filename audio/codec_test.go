package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 320)
	wav := EncodeWAV(pcm, 16000)

	require.Len(t, wav, 44+320)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))      // PCM
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))      // mono
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))  // sample rate
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]))  // byte rate
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))     // bits
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(320), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestDecodeMuLaw(t *testing.T) {
	out := DecodeMuLaw([]byte{0xFF, 0x7F, 0x00, 0x80})
	require.Len(t, out, 8)

	samples := make([]int16, 4)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[2*i:]))
	}
	// 0xFF and 0x7F are the positive and negative zero codes.
	assert.Equal(t, int16(0), samples[0])
	assert.Equal(t, int16(0), samples[1])
	// 0x00 and 0x80 decode to the largest magnitudes.
	assert.Equal(t, int16(-32124), samples[2])
	assert.Equal(t, int16(32124), samples[3])
}
