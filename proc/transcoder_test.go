package proc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcm(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func samples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

func TestScalePCM(t *testing.T) {
	tests := []struct {
		name    string
		in      []int16
		percent int32
		want    []int16
	}{
		{name: "half", in: []int16{1000, -1000, 3}, percent: 50, want: []int16{500, -500, 1}},
		{name: "unity", in: []int16{1234, -4321}, percent: 100, want: []int16{1234, -4321}},
		{name: "mute", in: []int16{1234, -4321}, percent: 0, want: []int16{0, 0}},
		{name: "clips loud", in: []int16{30000, -30000}, percent: 200, want: []int16{32767, -32768}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := pcm(tt.in...)
			scalePCM(b, len(b), tt.percent)
			assert.Equal(t, tt.want, samples(b))
		})
	}
}

func TestScalePCM_RespectsLimit(t *testing.T) {
	b := pcm(1000, 1000, 1000)
	scalePCM(b, 2, 50)
	assert.Equal(t, []int16{500, 1000, 1000}, samples(b))

	b = pcm(1000)
	scalePCM(b, 100, 50)
	assert.Equal(t, []int16{500}, samples(b))
}
