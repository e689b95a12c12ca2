// Command nmfproxy runs the intercepting NMF proxy (C7): it listens for
// client connections, forwards every record verbatim to a dialed target,
// and optionally interposes an authenticated upgrade of its own with that
// target when --negotiate names a server principal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nmfproxy/nmfproxy/gssapi"
	"github.com/nmfproxy/nmfproxy/proxy"
)

var (
	bind      string
	port      int
	target    string
	traceFile string
	logLevel  string

	negotiateSPN string
	krb5Conf     string
	keytabPath   string
	principal    string
)

var rootCmd = &cobra.Command{
	Use:   "nmfproxy TARGET_HOST TARGET_PORT",
	Short: "Intercepting proxy for the .NET Message Framing protocol",
	Long: `nmfproxy listens for NMF clients and forwards every record verbatim to
a target server, recording a trace of what crossed the wire.

The client-facing side never negotiates security and always speaks
unauthenticated NMF, by design. Pass --negotiate to additionally have the
proxy itself negotiate a Kerberos/SPNEGO security context with the target
as soon as the forwarded preamble reaches its KnownEncoding record.

Examples:
  # Transparent forwarding, no authentication
  nmfproxy --bind 0.0.0.0 --port 8080 target.example.com 9000

  # Proxy authenticates to the target as its own Kerberos identity
  nmfproxy --port 8080 --negotiate host/target.example.com \
    --principal svc-proxy@EXAMPLE.COM --keytab /etc/nmfproxy/proxy.keytab \
    target.example.com 9000`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runProxy,
}

func init() {
	rootCmd.Flags().StringVar(&bind, "bind", "0.0.0.0", "address to listen on")
	rootCmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	rootCmd.Flags().StringVar(&traceFile, "trace-file", "", "path to append a trace of every forwarded record (disabled if empty)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.Flags().StringVar(&negotiateSPN, "negotiate", "", "target service principal name; enables the proxy's own upgrade to the target")
	rootCmd.Flags().StringVar(&krb5Conf, "krb5-config", "/etc/krb5.conf", "path to krb5.conf (used with --negotiate)")
	rootCmd.Flags().StringVar(&keytabPath, "keytab", "", "path to the proxy's keytab (used with --negotiate)")
	rootCmd.Flags().StringVar(&principal, "principal", "", "proxy's own Kerberos principal, user@REALM (used with --negotiate)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runProxy(cmd *cobra.Command, args []string) error {
	log, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	var negotiate *gssapi.Config
	if negotiateSPN != "" {
		if keytabPath == "" || principal == "" {
			return fmt.Errorf("--negotiate requires --keytab and --principal")
		}
		cl, err := gssapi.NewClient(gssapi.ClientConfig{
			Krb5ConfPath: krb5Conf,
			KeytabPath:   keytabPath,
			Principal:    principal,
		})
		if err != nil {
			return fmt.Errorf("kerberos init failed: %w", err)
		}
		negotiate = &gssapi.Config{Client: cl, SPN: negotiateSPN}
	}

	var trace *proxy.Tracer
	if traceFile != "" {
		trace, err = proxy.NewTracer(traceFile)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer trace.Close()
	}

	cfg := proxy.Config{
		Bind:      bind,
		Port:      port,
		Target:    fmt.Sprintf("%s:%s", args[0], args[1]),
		Negotiate: negotiate,
	}
	srv := proxy.NewServer(cfg, trace, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := srv.ListenAndServe(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
