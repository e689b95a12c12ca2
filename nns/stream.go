// Package nns implements the .NET NegotiateStream framing (C4): handshake
// frames carrying GSSAPI tokens, and, once the handshake completes,
// length-prefixed data frames carrying ciphertext.
package nns

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/nmfproxy/nmfproxy/tcpstream"
)

// Handshake frame message types, per spec §3.
const (
	HandshakeDone       byte = 0x14
	HandshakeError      byte = 0x15
	HandshakeInProgress byte = 0x16
)

// MaxDataChunk is the largest number of ciphertext bytes carried by a
// single post-handshake data frame.
const MaxDataChunk = 0xFC30

var (
	// ErrNegotiateError wraps the HRESULT carried by a HANDSHAKE_ERROR frame.
	ErrNegotiateError = errors.New("nns: negotiate error")
)

// NegotiateError reports the HRESULT a peer sent in a HANDSHAKE_ERROR frame.
type NegotiateError struct {
	HRESULT uint32
}

func (e *NegotiateError) Error() string {
	return errors.Wrapf(ErrNegotiateError, "hresult 0x%08X", e.HRESULT).Error()
}

func (e *NegotiateError) Unwrap() error { return ErrNegotiateError }

// Stream wraps a tcpstream.Stream with NNS framing. handshakeDone is a
// one-way transition: false until a HANDSHAKE_DONE frame is observed on
// read, then true for the life of the stream.
type Stream struct {
	inner         *tcpstream.Stream
	handshakeDone bool
}

func New(inner *tcpstream.Stream) *Stream {
	return &Stream{inner: inner}
}

// HandshakeDone reports whether read has already observed HANDSHAKE_DONE.
func (s *Stream) HandshakeDone() bool {
	return s.handshakeDone
}

// Write sends data as a single handshake token before the handshake
// completes, or as length-prefixed data chunks afterward. The caller
// (GSSAPI) hands over one token at a time pre-handshake; it is a caller
// invariant that len(data) < 65536.
func (s *Stream) Write(data []byte) error {
	if !s.handshakeDone {
		header := make([]byte, 5)
		header[0] = HandshakeInProgress
		header[1] = 1 // major
		header[2] = 0 // minor
		binary.BigEndian.PutUint16(header[3:5], uint16(len(data)))
		if err := s.inner.Write(header); err != nil {
			return errors.Wrap(err, "nns: writing handshake header")
		}
		if err := s.inner.Write(data); err != nil {
			return errors.Wrap(err, "nns: writing handshake payload")
		}
		return nil
	}

	for offset := 0; offset < len(data); offset += MaxDataChunk {
		end := offset + MaxDataChunk
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		length := make([]byte, 4)
		binary.LittleEndian.PutUint32(length, uint32(len(chunk)))
		if err := s.inner.Write(length); err != nil {
			return errors.Wrap(err, "nns: writing data frame length")
		}
		if err := s.inner.Write(chunk); err != nil {
			return errors.Wrap(err, "nns: writing data frame payload")
		}
	}

	return nil
}

// Read returns the next handshake token pre-handshake, or the next data
// frame's payload afterward. A HANDSHAKE_DONE frame flips handshakeDone to
// true before its payload is returned (one-way transition); a
// HANDSHAKE_ERROR frame fails with a *NegotiateError built from its
// 8-byte trailer.
func (s *Stream) Read() ([]byte, error) {
	if !s.handshakeDone {
		header, err := s.inner.ReadFull(5)
		if err != nil {
			return nil, errors.Wrap(err, "nns: reading handshake header")
		}

		msgType := header[0]
		payloadSize := binary.BigEndian.Uint16(header[3:5])

		switch msgType {
		case HandshakeError:
			trailer, err := s.inner.ReadFull(8)
			if err != nil {
				return nil, errors.Wrap(err, "nns: reading handshake error trailer")
			}
			return nil, &NegotiateError{HRESULT: binary.BigEndian.Uint32(trailer[4:8])}

		case HandshakeDone:
			s.handshakeDone = true

		case HandshakeInProgress:
			// remain in handshake mode

		default:
			return nil, errors.Errorf("nns: unknown handshake message type 0x%02X", msgType)
		}

		payload, err := s.inner.ReadFull(int(payloadSize))
		if err != nil {
			return nil, errors.Wrap(err, "nns: reading handshake payload")
		}
		return payload, nil
	}

	lengthBuf, err := s.inner.ReadFull(4)
	if err != nil {
		return nil, errors.Wrap(err, "nns: reading data frame length")
	}
	length := binary.LittleEndian.Uint32(lengthBuf)

	payload, err := s.inner.ReadFull(int(length))
	if err != nil {
		return nil, errors.Wrap(err, "nns: reading data frame payload")
	}
	return payload, nil
}

// Close closes the underlying socket stream.
func (s *Stream) Close() error {
	return s.inner.Close()
}
