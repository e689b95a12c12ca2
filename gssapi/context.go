// Package gssapi is the security-context layer (C5): it negotiates a
// Kerberos/SPNEGO context with the server over an nns.Stream, then seals
// and unseals every message that crosses it.
package gssapi

import (
	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/client"
	krb5gssapi "github.com/jcmturner/gokrb5/v8/gssapi"
	"github.com/jcmturner/gokrb5/v8/iana/chksumtype"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/spnego"
	"github.com/jcmturner/gokrb5/v8/types"
	"github.com/pkg/errors"

	"github.com/nmfproxy/nmfproxy/nns"
)

// MaxPlaintextChunk bounds a single GSS Wrap call; Write splits larger
// payloads across multiple sealed tokens.
const MaxPlaintextChunk = 0xFC00

type state int

const (
	stateUninitialised state = iota
	stateNegotiating
	stateEstablished
	stateClosed
)

// Config names the Kerberos identity and target service this stream
// authenticates as and to.
type Config struct {
	// Client is an already-initialised, logged-in Kerberos client.
	Client *client.Client

	// SPN is the target service principal name, e.g. "host/server.example.com".
	SPN string
}

// Stream is a GSSAPI-secured channel layered over NNS. Once negotiate()
// establishes the context, Write seals outgoing chunks and Read unseals
// incoming ones transparently.
type Stream struct {
	nns *nns.Stream
	cfg Config

	state      state
	sessionKey types.EncryptionKey
	sendSeq    uint64

	readCache []byte
}

func New(inner *nns.Stream, cfg Config) *Stream {
	return &Stream{nns: inner, cfg: cfg}
}

// Established reports whether the security context has finished negotiating.
func (s *Stream) Established() bool {
	return s.state == stateEstablished
}

// Negotiate runs the context-establishment exchange if it has not already
// completed. It is idempotent once established, and is also invoked lazily
// by the first Read or Write — callers that need the handshake to finish
// before any other side effect (the session layer, mid-preamble) call it
// directly.
func (s *Stream) Negotiate() error {
	return s.ensureEstablished()
}

func (s *Stream) ensureEstablished() error {
	if s.state == stateEstablished {
		return nil
	}
	return s.negotiate()
}

// negotiate runs the client (initiator) side of a Kerberos/SPNEGO exchange:
// an AP-REQ wrapped in a NegTokenInit goes out, and a NegTokenResp carrying
// the server's AP-REP for mutual authentication comes back. A standard
// exchange completes in this single round trip.
func (s *Stream) negotiate() error {
	s.state = stateNegotiating

	tkt, sessionKey, err := s.cfg.Client.GetServiceTicket(s.cfg.SPN)
	if err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}

	auth, err := types.NewAuthenticator(s.cfg.Client.Credentials.Domain(), s.cfg.Client.Credentials.CName())
	if err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}
	auth.Cksum = types.Checksum{
		CksumType: chksumtype.GSSAPI,
		Checksum: krb5gssapi.NewAuthenticatorChksum(
			[]int{krb5gssapi.ContextFlagMutual, krb5gssapi.ContextFlagConf, krb5gssapi.ContextFlagInteg},
		),
	}

	apReq, err := messages.NewAPReq(tkt, sessionKey, auth)
	if err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}
	apReqBytes, err := apReq.Marshal()
	if err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}

	krb5Token, err := wrapKrb5Token(tokIDAPReq, apReqBytes)
	if err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}

	initToken := spnego.NegTokenInit{
		MechTypes:      []asn1.ObjectIdentifier{krb5OID},
		MechTokenBytes: krb5Token,
	}
	initBytes, err := initToken.Marshal()
	if err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}

	if err := s.nns.Write(initBytes); err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}

	respPayload, err := s.nns.Read()
	if err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}

	isInit, token, err := spnego.UnmarshalNegToken(respPayload)
	if err != nil {
		return errors.Wrap(ErrAuthFailed, err.Error())
	}
	if isInit {
		return errors.Wrap(ErrAuthFailed, "server sent a NegTokenInit, expected NegTokenResp")
	}
	resp, ok := token.(spnego.NegTokenResp)
	if !ok {
		return errors.Wrap(ErrAuthFailed, "malformed NegTokenResp")
	}
	if spnego.NegState(resp.NegState) != spnego.NegStateAcceptCompleted {
		return errors.Wrapf(ErrAuthFailed, "negotiation rejected, state %d", resp.NegState)
	}

	if len(resp.ResponseToken) > 0 {
		if _, apRepBytes, err := unwrapKrb5Token(resp.ResponseToken); err == nil {
			var apRep messages.APRep
			if err := apRep.Unmarshal(apRepBytes); err != nil {
				return errors.Wrap(ErrAuthFailed, "malformed ap-rep: "+err.Error())
			}
			if err := apRep.DecryptEncPart(sessionKey); err != nil {
				return errors.Wrap(ErrAuthFailed, "ap-rep decryption failed, mutual authentication rejected")
			}
		}
	}

	s.sessionKey = sessionKey
	s.state = stateEstablished
	return nil
}

// Write seals data and sends it as one or more NNS payloads.
func (s *Stream) Write(data []byte) error {
	if err := s.ensureEstablished(); err != nil {
		return err
	}

	for offset := 0; offset < len(data); offset += MaxPlaintextChunk {
		end := offset + MaxPlaintextChunk
		if end > len(data) {
			end = len(data)
		}
		s.sendSeq++
		sealed, err := sealMessage(s.sessionKey, s.sendSeq, data[offset:end])
		if err != nil {
			return err
		}
		if err := s.nns.Write(sealed); err != nil {
			return errors.Wrap(ErrStreamError, err.Error())
		}
	}
	return nil
}

// Read serves n bytes of unsealed plaintext from the read cache, refilling
// from NNS only while the cache is shorter than requested.
func (s *Stream) Read(n int) ([]byte, error) {
	if err := s.ensureEstablished(); err != nil {
		return nil, err
	}

	for len(s.readCache) < n {
		payload, err := s.nns.Read()
		if err != nil {
			return nil, errors.Wrap(ErrStreamError, err.Error())
		}
		plaintext, err := unsealMessage(s.sessionKey, payload)
		if err != nil {
			return nil, err
		}
		s.readCache = append(s.readCache, plaintext...)
	}

	out := s.readCache[:n]
	s.readCache = s.readCache[n:]
	return out, nil
}

// ReadMessage unseals and returns exactly one NNS payload's worth of
// plaintext, bypassing the read cache.
func (s *Stream) ReadMessage() ([]byte, error) {
	if err := s.ensureEstablished(); err != nil {
		return nil, err
	}
	payload, err := s.nns.Read()
	if err != nil {
		return nil, errors.Wrap(ErrStreamError, err.Error())
	}
	return unsealMessage(s.sessionKey, payload)
}

func (s *Stream) Close() error {
	s.state = stateClosed
	return s.nns.Close()
}
