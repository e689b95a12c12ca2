package gssapi

import "github.com/pkg/errors"

var (
	// ErrAuthFailed covers any failure during negotiate(): the provider
	// rejected a step, the server's AP-REP failed mutual-auth verification,
	// or the wire encoding of a token was malformed.
	ErrAuthFailed = errors.New("gssapi: authentication failed")

	// ErrStreamError covers I/O and GSS Wrap/Unwrap failures once the
	// context is established.
	ErrStreamError = errors.New("gssapi: stream error")
)
