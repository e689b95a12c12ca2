package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmfproxy/nmfproxy/gssapi"
	"github.com/nmfproxy/nmfproxy/nmf"
	"github.com/nmfproxy/nmfproxy/tcpstream"
)

func pipe(t *testing.T) (client *tcpstream.Stream, server *tcpstream.Stream) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return tcpstream.New(a), tcpstream.New(b)
}

// serverPreamble drains the four preamble records a client always sends,
// then writes ack, matching §4.6 without ever touching GSSAPI.
func serverPreamble(t *testing.T, server *tcpstream.Stream, ack byte) {
	t.Helper()
	for i := 0; i < 4; i++ {
		_, err := nmf.ParseStream(readerOf(server))
		require.NoError(t, err)
	}
	_, err := nmf.ParseStream(readerOf(server)) // PreambleEnd
	require.NoError(t, err)
	require.NoError(t, server.Write([]byte{ack}))
}

func readerOf(s *tcpstream.Stream) *byteReader {
	return newByteReader(s)
}

func TestOpenSendReceiveClose(t *testing.T) {
	client, server := pipe(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		serverPreamble(t, server, nmf.CodePreambleAck)

		rec, err := nmf.ParseStream(readerOf(server))
		require.NoError(t, err)
		require.Equal(t, nmf.CodeSizedEnvelopedMessage, rec.Code)
		assert.Equal(t, []byte("ping"), rec.Payload())

		b, err := nmf.Encode(nmf.NewSizedEnvelopedMessageRecord([]byte("pong")))
		require.NoError(t, err)
		require.NoError(t, server.Write(b))

		rec, err = nmf.ParseStream(readerOf(server))
		require.NoError(t, err)
		assert.Equal(t, nmf.CodeEnd, rec.Code)
	}()

	sess, err := Open(client, Config{Via: "net.tcp://h/s"})
	require.NoError(t, err)

	require.NoError(t, sess.Send([]byte("ping")))

	payload, err := sess.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), payload)

	require.NoError(t, sess.Close())
	<-done
}

func TestOpenPreambleNotAcked(t *testing.T) {
	client, server := pipe(t)

	go func() {
		serverPreamble(t, server, nmf.CodePreambleEnd) // wrong code
	}()

	_, err := Open(client, Config{Via: "net.tcp://h/s"})
	assert.ErrorIs(t, err, ErrPreambleNotAcked)
}

func TestUpgradeRejected(t *testing.T) {
	client, server := pipe(t)

	go func() {
		for i := 0; i < 4; i++ {
			_, err := nmf.ParseStream(readerOf(server))
			require.NoError(t, err)
		}
		rec, err := nmf.ParseStream(readerOf(server))
		require.NoError(t, err)
		require.Equal(t, nmf.CodeUpgradeRequest, rec.Code)

		// Respond with PreambleAck instead of UpgradeResponse.
		b, err := nmf.Encode(nmf.NewPreambleAckRecord())
		require.NoError(t, err)
		require.NoError(t, server.Write(b))
	}()

	_, err := Open(client, Config{Via: "net.tcp://h/s", Negotiate: &gssapi.Config{}})
	assert.ErrorIs(t, err, ErrUpgradeRejected)
}

func TestReceiveServerFault(t *testing.T) {
	client, server := pipe(t)

	go func() {
		serverPreamble(t, server, nmf.CodePreambleAck)
		b, err := nmf.Encode(nmf.NewFaultRecord("boom"))
		require.NoError(t, err)
		require.NoError(t, server.Write(b))
	}()

	sess, err := Open(client, Config{Via: "net.tcp://h/s"})
	require.NoError(t, err)

	_, err = sess.Receive()
	var faultErr *FaultError
	require.ErrorAs(t, err, &faultErr)
	assert.Equal(t, "boom", faultErr.Text)
}
