package proxy

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/nmfproxy/nmfproxy/gid"
	"github.com/nmfproxy/nmfproxy/gssapi"
	"github.com/nmfproxy/nmfproxy/nmf"
	"github.com/nmfproxy/nmfproxy/nns"
	"github.com/nmfproxy/nmfproxy/tcpstream"
)

// teardown states implement the single-atomic-state simplification of the
// two-flag dance in §9: one half observing End moves open→pending; the
// other half observing its own End moves pending→done and is the one that
// actually closes both sockets.
const (
	teardownOpen int32 = iota
	teardownPending
	teardownDone
)

// connection is one accepted client connection paired with its dialed
// target connection. The client-facing stream is never wrapped — the
// proxy speaks unauthenticated NMF to the client by design; the
// server-facing stream may be rebound to GSSAPI mid-preamble.
type connection struct {
	log *slog.Logger

	id           gid.ConnectionID
	clientAddr   string
	clientStream *tcpstream.Stream
	serverStream *tcpstream.Stream

	serverWriter interface{ Write([]byte) error }
	serverReader frameReader

	negotiate *gssapi.Config
	trace     *Tracer

	readyOnce sync.Once
	ready     chan struct{}

	teardown int32
}

func newConnection(clientConn, serverConn net.Conn, negotiate *gssapi.Config, trace *Tracer, log *slog.Logger) *connection {
	serverStream := tcpstream.New(serverConn)
	c := &connection{
		log:          log,
		id:           gid.GenerateConnectionID(),
		clientAddr:   clientConn.RemoteAddr().String(),
		clientStream: tcpstream.New(clientConn),
		serverStream: serverStream,
		serverWriter: serverStream,
		serverReader: serverStream,
		negotiate:    negotiate,
		trace:        trace,
		ready:        make(chan struct{}),
	}
	return c
}

func (c *connection) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// run drives both forwarding halves to completion.
func (c *connection) run() {
	c.log.Info("connection accepted", "conn_id", c.id, "client", c.clientAddr)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.forwardClientToServer() }()
	go func() { defer wg.Done(); c.forwardServerToClient() }()
	wg.Wait()
	c.clientStream.Close()
	c.serverStream.Close()

	c.log.Info("connection closed", "conn_id", c.id, "client", c.clientAddr)
}

// forwardClientToServer is the C→S half: it owns clientStream exclusively,
// forwards every record verbatim to the server, and is solely responsible
// for the upgrade interposition of §4.7 step 3.
func (c *connection) forwardClientToServer() {
	defer c.markReady()
	if c.negotiate == nil {
		c.markReady()
	}

	pump := newRecordPump(c.clientStream)
	for {
		rec, raw, err := pump.next()
		if err != nil {
			c.fail("c>s", err)
			return
		}

		if err := c.trace.Write(c.clientAddr, ClientToServer, raw); err != nil {
			c.log.Warn("trace write failed", "error", err)
		}

		if err := c.serverWriter.Write(raw); err != nil {
			c.fail("c>s", err)
			return
		}

		switch rec.Code {
		case nmf.CodeKnownEncoding:
			if c.negotiate != nil {
				if err := c.upgradeServerSide(); err != nil {
					c.fail("c>s upgrade", err)
					return
				}
				c.markReady()
			}

		case nmf.CodeEnd:
			if c.observeEnd() {
				c.closeAll()
			}
			return
		}
	}
}

// upgradeServerSide interposes an UpgradeRequest toward the server, checks
// its UpgradeResponse, and rebinds the server-facing stream to GSSAPI over
// NNS. It runs entirely within forwardClientToServer, before S→C's read
// loop is allowed to start — the one cross-task happens-before edge this
// design relies on (§5).
func (c *connection) upgradeServerSide() error {
	upgradeReq, err := nmf.Encode(nmf.NewUpgradeRequestRecord(nmf.UpgradeProtocolNegotiate))
	if err != nil {
		return err
	}
	if err := c.serverStream.Write(upgradeReq); err != nil {
		return err
	}

	// UpgradeResponse has no fields, so its wire form is exactly one byte.
	// Reading it with ReadFull(1) rather than through recordPump's
	// buffering guarantees no bytes belonging to the NNS stream that
	// starts immediately afterward are consumed early.
	code, err := c.serverStream.ReadFull(1)
	if err != nil {
		return err
	}
	if code[0] != nmf.CodeUpgradeResponse {
		return errors.Wrapf(ErrUpgradeRejected, "got record code 0x%02X", code[0])
	}

	nnsStream := nns.New(c.serverStream)
	gssStream := gssapi.New(nnsStream, *c.negotiate)
	if err := gssStream.Negotiate(); err != nil {
		return err
	}

	c.serverWriter = gssStream
	c.serverReader = gssapiReader{gssStream}
	return nil
}

// forwardServerToClient is the S→C half: it waits for C→S to finish
// deciding on (and if needed, completing) the upgrade before reading a
// single byte from the server, then owns serverStream/serverReader
// exclusively for the rest of the connection's life.
func (c *connection) forwardServerToClient() {
	<-c.ready

	pump := newRecordPump(c.serverReader)
	for {
		rec, raw, err := pump.next()
		if err != nil {
			c.fail("s>c", err)
			return
		}

		if err := c.trace.Write(c.clientAddr, ServerToClient, raw); err != nil {
			c.log.Warn("trace write failed", "error", err)
		}

		if err := c.clientStream.Write(raw); err != nil {
			c.fail("s>c", err)
			return
		}

		if rec.Code == nmf.CodeEnd {
			if c.observeEnd() {
				c.closeAll()
			}
			return
		}
	}
}

// observeEnd reports whether this is the second half to observe an End
// record, in which case the caller is responsible for tearing the
// connection down.
func (c *connection) observeEnd() bool {
	return atomic.SwapInt32(&c.teardown, teardownPending) == teardownPending
}

func (c *connection) closeAll() {
	atomic.StoreInt32(&c.teardown, teardownDone)
	c.clientStream.Close()
	c.serverStream.Close()
}

func (c *connection) fail(where string, err error) {
	c.log.Error("connection forwarding failed", "conn_id", c.id, "direction", where, "client", c.clientAddr, "error", err)
	c.closeAll()
}
