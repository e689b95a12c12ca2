package gssapi

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmfproxy/nmfproxy/nns"
	"github.com/nmfproxy/nmfproxy/tcpstream"
)

// readResult carries a Stream.Read(n) outcome across a goroutine boundary.
type readResult struct {
	data []byte
	err  error
}

// readWithTimeout runs s.Read(n) on its own goroutine and fails the test if
// it doesn't return promptly — the symptom of Read refilling from NNS when
// the cache already held enough, which would otherwise hang forever on an
// idle net.Pipe.
func readWithTimeout(t *testing.T, s *Stream, n int) []byte {
	t.Helper()
	done := make(chan readResult, 1)
	go func() {
		data, err := s.Read(n)
		done <- readResult{data, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.data
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Read blocked waiting on NNS when the cache already held enough")
		return nil
	}
}

// establishedStream builds a Stream already in stateEstablished, with cache
// pre-loaded with plaintext, wrapping an nns.Stream over a net.Pipe. The
// peer end is returned so a test can act as the far side of the pipe.
func establishedStream(t *testing.T, cache []byte) (*Stream, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	s := &Stream{
		nns:        nns.New(tcpstream.New(clientConn)),
		state:      stateEstablished,
		sessionKey: testSessionKey(t),
		readCache:  append([]byte{}, cache...),
	}
	return s, serverConn
}

// TestReadServesFromCacheWithoutRefilling covers spec §9's back-pressure
// contract: when the cache already holds at least n bytes, Read must return
// them without touching NNS at all. The peer end of the pipe never writes
// anything, so any unwanted refill attempt hangs until readWithTimeout fails
// the test.
func TestReadServesFromCacheWithoutRefilling(t *testing.T) {
	s, _ := establishedStream(t, []byte("0123456789"))

	got := readWithTimeout(t, s, 4)
	assert.Equal(t, []byte("0123"), got)

	got = readWithTimeout(t, s, 6)
	assert.Equal(t, []byte("456789"), got)
}

// TestReadRefillServesMultipleCallsFromRemainder covers the other half of
// the contract: a single NNS payload larger than one Read's request must be
// decrypted once and then serve subsequent Read calls out of the retained
// remainder. The peer writes exactly one sealed frame; a second refill
// attempt would block on the now-silent pipe and trip readWithTimeout.
func TestReadRefillServesMultipleCallsFromRemainder(t *testing.T) {
	key := testSessionKey(t)
	s, serverConn := establishedStream(t, nil)
	s.sessionKey = key

	plaintext := []byte("preamble-end-record-plus-trailing-bytes")
	sealed := sealAsAcceptor(t, key, 1, plaintext)

	go func() {
		header := make([]byte, 5)
		header[0] = nns.HandshakeDone
		header[1], header[2] = 1, 0
		binary.BigEndian.PutUint16(header[3:5], uint16(len(sealed)))
		serverConn.Write(header)
		serverConn.Write(sealed)
	}()

	first := readWithTimeout(t, s, 10)
	assert.Equal(t, plaintext[:10], first)

	second := readWithTimeout(t, s, len(plaintext)-10)
	assert.Equal(t, plaintext[10:], second)
}
