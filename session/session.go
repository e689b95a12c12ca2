// Package session is the NMF client session (C6): it drives the preamble
// dance, optionally upgrades the stream to an authenticated GSSAPI
// transport mid-preamble, and offers send/receive over the sized-envelope
// message records once established.
package session

import (
	"io"

	"github.com/pkg/errors"

	"github.com/nmfproxy/nmfproxy/gid"
	"github.com/nmfproxy/nmfproxy/gssapi"
	"github.com/nmfproxy/nmfproxy/nmf"
	"github.com/nmfproxy/nmfproxy/nns"
	"github.com/nmfproxy/nmfproxy/tcpstream"
)

type state int

const (
	stateClosed state = iota
	statePreambleSent
	stateEstablished
)

// wireStream is the write/close surface both tcpstream.Stream and
// gssapi.Stream satisfy; Session rebinds to whichever one is current.
type wireStream interface {
	Write(data []byte) error
	Close() error
}

// gssapiFrameReader adapts gssapi.Stream's ReadMessage to frameReader, so a
// post-upgrade Session reads records the same way a pre-upgrade one does.
type gssapiFrameReader struct{ s *gssapi.Stream }

func (r gssapiFrameReader) Read() ([]byte, error) { return r.s.ReadMessage() }

// Config parameterises an open: the addressing Via URL, and — when
// Negotiate is non-nil — the GSSAPI identity to upgrade to mid-preamble.
type Config struct {
	Via       string
	Negotiate *gssapi.Config
}

// Session is one NMF client connection. It owns exactly one stream at a
// time — never both the pre- and post-upgrade stream simultaneously — per
// the rebinding invariant in §9.
type Session struct {
	cfg Config

	id     gid.SessionID
	stream wireStream
	reader *byteReader

	state state
}

// ID returns the identifier generated for this session when it was opened,
// suitable for correlating a session with log lines or external trace data.
func (s *Session) ID() gid.SessionID {
	return s.id
}

// Open runs the full preamble sequence over conn: Version/Mode/Via/
// KnownEncoding, an optional upgrade to GSSAPI, PreambleEnd, and the
// PreambleAck check. Records are exchanged as raw bytes directly over conn
// until (and unless) an upgrade is requested — NNS framing only exists
// once the stream rebinds mid-preamble, per §4.6. On any failure the
// session is left closed and conn is closed.
func Open(conn *tcpstream.Stream, cfg Config) (*Session, error) {
	s := &Session{
		cfg:    cfg,
		id:     gid.GenerateSessionID(),
		stream: conn,
		reader: newByteReader(conn),
	}

	if err := s.runPreamble(conn); err != nil {
		conn.Close()
		s.state = stateClosed
		return nil, err
	}

	s.state = stateEstablished
	return s, nil
}

func (s *Session) runPreamble(conn *tcpstream.Stream) error {
	if err := s.sendRecord(nmf.NewVersionRecord(1, 0)); err != nil {
		return err
	}
	if err := s.sendRecord(nmf.NewModeRecord(nmf.ModeDuplex)); err != nil {
		return err
	}
	if err := s.sendRecord(nmf.NewViaRecord(s.cfg.Via)); err != nil {
		return err
	}
	if err := s.sendRecord(nmf.NewKnownEncodingRecord(nmf.EncodingBinaryDict)); err != nil {
		return err
	}
	s.state = statePreambleSent

	if s.cfg.Negotiate != nil {
		if err := s.sendRecord(nmf.NewUpgradeRequestRecord(nmf.UpgradeProtocolNegotiate)); err != nil {
			return err
		}

		// UpgradeResponse carries no fields, so its wire form is exactly one
		// byte; reading it with conn.ReadFull(1) rather than through the
		// buffering byteReader guarantees we consume no bytes belonging to
		// the NNS stream that starts immediately after it.
		code, err := conn.ReadFull(1)
		if err != nil {
			return err
		}
		if code[0] != nmf.CodeUpgradeResponse {
			return errors.Wrapf(ErrUpgradeRejected, "got record code 0x%02X", code[0])
		}

		// Rebind: the session now speaks exclusively through the GSSAPI
		// stream wrapping a fresh NNS stream over conn; it retains no
		// separate reference to conn itself (§9, stream rebinding). conn's
		// lifetime is extended only transitively, as nnsStream's inner
		// stream.
		nnsStream := nns.New(conn)
		gssStream := gssapi.New(nnsStream, *s.cfg.Negotiate)
		if err := gssStream.Negotiate(); err != nil {
			return err
		}
		s.stream = gssStream
		s.reader = newByteReader(gssapiFrameReader{gssStream})
	}

	if err := s.sendRecord(nmf.NewPreambleEndRecord()); err != nil {
		return err
	}

	rec, err := nmf.ParseStream(s.reader)
	if err != nil {
		return err
	}
	if rec.Code != nmf.CodePreambleAck {
		return errors.Wrapf(ErrPreambleNotAcked, "got record code 0x%02X", rec.Code)
	}

	return nil
}

func (s *Session) sendRecord(rec *nmf.Record) error {
	b, err := nmf.Encode(rec)
	if err != nil {
		return err
	}
	return s.stream.Write(b)
}

// Send wraps data in a SizedEnvelopedMessage record and writes it.
func (s *Session) Send(data []byte) error {
	return s.sendRecord(nmf.NewSizedEnvelopedMessageRecord(data))
}

// Receive parses one record and returns its payload. A Fault record
// surfaces as *FaultError; an End record surfaces as ErrPeerClosed.
func (s *Session) Receive() ([]byte, error) {
	rec, err := nmf.ParseStream(s.reader)
	if err != nil {
		return nil, err
	}

	switch rec.Code {
	case nmf.CodeSizedEnvelopedMessage:
		return rec.Payload(), nil
	case nmf.CodeFault:
		return nil, &FaultError{Text: rec.String("Fault")}
	case nmf.CodeEnd:
		return nil, ErrPeerClosed
	default:
		return nil, errors.Wrapf(ErrUnexpectedRecord, "code 0x%02X", rec.Code)
	}
}

// Close sends an End record, best-effort, then closes the underlying stream.
func (s *Session) Close() error {
	if s.state != stateClosed {
		_ = s.sendRecord(nmf.NewEndRecord())
	}
	s.state = stateClosed
	return s.stream.Close()
}

var _ io.Reader = (*byteReader)(nil)
