package proxy

import "github.com/pkg/errors"

var (
	// ErrUpgradeRejected is returned when the target server's reply to the
	// proxy's interposed UpgradeRequest is not an UpgradeResponse record.
	ErrUpgradeRejected = errors.New("proxy: server rejected upgrade")
)
