// Package proxy is the intercepting proxy (C7): it runs two concurrent
// half-duplex forwarders per accepted connection, interposes an
// authenticated upgrade with the target server when negotiation is
// enabled, and journals every record to a trace sink.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/pkg/errors"

	"github.com/nmfproxy/nmfproxy/gssapi"
)

// Config parameterises the listening proxy.
type Config struct {
	Bind   string
	Port   int
	Target string // host:port

	// Negotiate, when non-nil, enables the server-side upgrade
	// interposition of §4.7 using this Kerberos identity.
	Negotiate *gssapi.Config
}

// Server accepts client connections and proxies each to Config.Target.
type Server struct {
	cfg   Config
	trace *Tracer
	log   *slog.Logger
}

func NewServer(cfg Config, trace *Tracer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, trace: trace, log: log}
}

// ListenAndServe accepts connections until ctx is cancelled or accept
// fails unrecoverably.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "proxy: listen")
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("proxy listening", "addr", addr, "target", s.cfg.Target)

	for {
		clientConn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return errors.Wrap(err, "proxy: accept")
			}
		}
		go func() {
			stop := context.AfterFunc(ctx, func() { clientConn.Close() })
			defer stop()
			s.handle(clientConn)
		}()
	}
}

func (s *Server) handle(clientConn net.Conn) {
	serverConn, err := net.Dial("tcp", s.cfg.Target)
	if err != nil {
		s.log.Error("dial target failed", "target", s.cfg.Target, "error", err)
		clientConn.Close()
		return
	}

	c := newConnection(clientConn, serverConn, s.cfg.Negotiate, s.trace, s.log)
	c.run()
}
