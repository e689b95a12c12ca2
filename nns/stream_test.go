package nns

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmfproxy/nmfproxy/tcpstream"
)

func pipe(t *testing.T) (*Stream, *Stream) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return New(tcpstream.New(a)), New(tcpstream.New(b))
}

func TestHandshakeTokenRoundTrip(t *testing.T) {
	client, server := pipe(t)

	token := []byte("negotiate-token")
	go func() {
		_ = client.Write(token)
	}()

	got, err := server.Read()
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.False(t, server.HandshakeDone())
}

func TestHandshakeDoneTransitionsOneWay(t *testing.T) {
	client, server := pipe(t)

	// Client sends a HANDSHAKE_DONE frame directly, since real handshake
	// completion is driven by the server/acceptor side in production.
	go func() {
		header := []byte{HandshakeDone, 1, 0, 0, 0}
		_ = client.inner.Write(header)
		// The next frame is a data frame (4-byte little-endian length).
		_ = client.inner.Write([]byte{0x03, 0x00, 0x00, 0x00, 'a', 'b', 'c'})
	}()

	payload, err := server.Read()
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.True(t, server.HandshakeDone())

	payload, err = server.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), payload)
	assert.True(t, server.HandshakeDone())
}

func TestNegotiateErrorSeed(t *testing.T) {
	client, server := pipe(t)

	go func() {
		_ = client.inner.Write([]byte{0x15, 0x01, 0x00, 0x00, 0x00})
		_ = client.inner.Write([]byte{0x00, 0x00, 0x00, 0x00, 0x80, 0x09, 0x03, 0x0E})
	}()

	_, err := server.Read()
	var negErr *NegotiateError
	require.ErrorAs(t, err, &negErr)
	assert.Equal(t, uint32(0x80090E03), negErr.HRESULT)
}

func TestDataChunkingAfterHandshake(t *testing.T) {
	client, server := pipe(t)
	client.handshakeDone = true
	server.handshakeDone = true

	data := make([]byte, 2*MaxDataChunk+17)
	for i := range data {
		data[i] = byte(i)
	}

	go func() {
		_ = client.Write(data)
	}()

	var got []byte
	for len(got) < len(data) {
		chunk, err := server.Read()
		require.NoError(t, err)
		require.LessOrEqual(t, len(chunk), MaxDataChunk)
		got = append(got, chunk...)
	}

	assert.Equal(t, data, got)
}
