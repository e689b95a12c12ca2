package session

import "github.com/pkg/errors"

var (
	// ErrUpgradeRejected is returned when the peer's response to an
	// UpgradeRequest is not an UpgradeResponse record.
	ErrUpgradeRejected = errors.New("session: upgrade rejected")

	// ErrPreambleNotAcked is returned when the preamble's closing read is
	// not a PreambleAck record.
	ErrPreambleNotAcked = errors.New("session: preamble not acked")

	// ErrServerFault wraps the text of a Fault record surfaced during receive.
	ErrServerFault = errors.New("session: server fault")

	// ErrPeerClosed is returned by Receive when the peer sent an End record.
	ErrPeerClosed = errors.New("session: peer closed")

	// ErrUnexpectedRecord is returned by Receive for any record other than
	// SizedEnvelopedMessage, Fault, or End.
	ErrUnexpectedRecord = errors.New("session: unexpected record")
)

// FaultError carries the text of a server Fault record.
type FaultError struct {
	Text string
}

func (e *FaultError) Error() string {
	return errors.Wrap(ErrServerFault, e.Text).Error()
}

func (e *FaultError) Unwrap() error { return ErrServerFault }
