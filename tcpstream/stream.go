// Package tcpstream is the socket layer (C3): a thin adapter over a TCP
// connection offering the two read modes the layers above it need.
package tcpstream

import (
	"io"
	"net"

	"github.com/pkg/errors"
)

var (
	ErrStreamClosed = errors.New("tcpstream: stream closed")
	ErrStreamError  = errors.New("tcpstream: stream error")
)

// bestEffortBufferSize is the buffer size used by Read's best-effort
// receive path. Callers that already know the exact payload size (NNS,
// GSSAPI) use ReadFull instead.
const bestEffortBufferSize = 4096

// Stream wraps a net.Conn with NMF's blocking read(n), best-effort read(),
// full write(), and close() semantics.
type Stream struct {
	conn net.Conn
}

func New(conn net.Conn) *Stream {
	return &Stream{conn: conn}
}

// ReadFull blocks until exactly n bytes are delivered or the peer closes,
// surfacing a short read as ErrStreamClosed.
func (s *Stream) ReadFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		return nil, wrap(err)
	}
	return buf, nil
}

// Read waits for readability and returns up to bestEffortBufferSize bytes.
// Used by the session's and the proxy's pre-upgrade record readers, which
// accumulate chunks until a whole record parses.
func (s *Stream) Read() ([]byte, error) {
	buf := make([]byte, bestEffortBufferSize)
	n, err := s.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return buf[:0], nil
}

// Write writes all of b before returning.
func (s *Stream) Write(b []byte) error {
	_, err := s.conn.Write(b)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// Close closes the underlying socket.
func (s *Stream) Close() error {
	return s.conn.Close()
}

func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(ErrStreamClosed, err.Error())
	}
	return errors.Wrap(ErrStreamError, err.Error())
}
