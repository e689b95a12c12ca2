package nmf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionRecordSeed(t *testing.T) {
	rec := NewVersionRecord(1, 0)
	enc, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x00}, enc)

	n, decoded, err := Parse(enc)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint32(1), decoded.Uint32("MajorVersion"))
	assert.Equal(t, uint32(0), decoded.Uint32("MinorVersion"))
}

func TestViaRecordSeed(t *testing.T) {
	rec := NewViaRecord("net.tcp://h/s")
	enc, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), enc[0])
	assert.Equal(t, byte(0x0D), enc[1])
	assert.Equal(t, []byte("net.tcp://h/s"), enc[2:])
}

func TestSizedEnvelopedSeed(t *testing.T) {
	rec := NewSizedEnvelopedMessageRecord([]byte{0xAA, 0xBB, 0xCC})
	enc, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x06, 0x03, 0xAA, 0xBB, 0xCC}, enc)
}

func TestRecordRoundTripAllSchemas(t *testing.T) {
	records := []*Record{
		NewVersionRecord(1, 0),
		NewModeRecord(ModeDuplex),
		NewViaRecord("net.tcp://example/service"),
		NewKnownEncodingRecord(EncodingBinaryDict),
		NewUnsizedEnvelopedMessageRecord(),
		NewSizedEnvelopedMessageRecord([]byte("hello")),
		NewEndRecord(),
		NewFaultRecord("boom"),
		NewUpgradeRequestRecord(UpgradeProtocolNegotiate),
		NewUpgradeResponseRecord(),
		NewPreambleAckRecord(),
		NewPreambleEndRecord(),
	}

	for _, rec := range records {
		enc, err := Encode(rec)
		require.NoError(t, err)

		n, decoded, err := Parse(enc)
		require.NoError(t, err)
		assert.Equal(t, len(enc), n)
		assert.Equal(t, rec.Code, decoded.Code)

		reenc, err := Encode(decoded)
		require.NoError(t, err)
		assert.Equal(t, enc, reenc)

		streamed, err := ParseStream(bytes.NewReader(enc))
		require.NoError(t, err)
		assert.Equal(t, rec.Code, streamed.Code)
	}
}

func TestUnknownRecordCode(t *testing.T) {
	buf := []byte{0xFE, 0x01, 0x02, 0x03}
	n, rec, err := Parse(buf)
	assert.ErrorIs(t, err, ErrUnknownRecord)
	assert.Equal(t, 0, n)
	assert.Nil(t, rec)
}

func TestUnknownEnumDiscriminant(t *testing.T) {
	buf := []byte{CodeMode, 0x09}
	_, _, err := Parse(buf)
	assert.ErrorIs(t, err, ErrUnknownEnum)
}

func TestParseStreamSurfacesStreamClosed(t *testing.T) {
	_, err := ParseStream(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestDuplicateRegisterPanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(Schema{Code: CodeVersion, Name: "Version"})
	})
}
