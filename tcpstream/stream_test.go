package tcpstream

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipe(t *testing.T) (*Stream, *Stream) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return New(a), New(b)
}

func TestReadFullExact(t *testing.T) {
	client, server := pipe(t)

	go func() {
		_ = server.Write([]byte("hello!"))
	}()

	buf, err := client.ReadFull(6)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello!"), buf)
}

func TestReadFullShortReadIsStreamClosed(t *testing.T) {
	client, server := pipe(t)

	go func() {
		_ = server.Write([]byte("ab"))
		server.Close()
	}()

	_, err := client.ReadFull(4)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestBestEffortRead(t *testing.T) {
	client, server := pipe(t)

	go func() {
		_ = server.Write([]byte("partial"))
	}()

	buf, err := client.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("partial"), buf)
}
