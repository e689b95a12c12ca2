package nmf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintEdgeCases(t *testing.T) {
	cases := []struct {
		value   uint32
		encoded []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, c := range cases {
		assert.Equal(t, c.encoded, EncodeVarint(c.value))

		n, v, err := DecodeVarint(c.encoded)
		require.NoError(t, err)
		assert.Equal(t, len(c.encoded), n)
		assert.Equal(t, c.value, v)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 0x1FFFFF, 0x200000, 0xFFFFFFF, 0x10000000, 0xFFFFFFFF}
	for _, v := range values {
		enc := EncodeVarint(v)
		n, dec, err := DecodeVarint(enc)
		require.NoError(t, err)
		assert.Equal(t, len(enc), n)
		assert.Equal(t, v, dec)

		streamed, err := DecodeVarintFromReader(bytes.NewReader(enc))
		require.NoError(t, err)
		assert.Equal(t, v, streamed)
	}
}

func TestVarintEncodedLength(t *testing.T) {
	cases := []struct {
		value     uint32
		wantBytes int
	}{
		{0x7F, 1},
		{0x80, 2},
		{0x3FFF, 2},
		{0x4000, 3},
		{0x1FFFFF, 3},
		{0x200000, 4},
		{0xFFFFFFF, 4},
		{0x10000000, 5},
	}
	for _, c := range cases {
		assert.Lenf(t, EncodeVarint(c.value), c.wantBytes, "value %#x", c.value)
	}
}

func TestVarintTruncated(t *testing.T) {
	_, _, err := DecodeVarint([]byte{0x80, 0x80})
	assert.ErrorIs(t, err, ErrTruncatedInput)
}

func TestDecodeUTF8Invalid(t *testing.T) {
	_, err := DecodeUTF8([]byte{0xFF, 0xFE})
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
