// Command nmfclient is a minimal NMF client (C6 exerciser): it opens a
// session against a server, sends one message, waits for one reply, and
// closes the connection. It exists to drive session.Session end to end
// from the command line, with or without Kerberos negotiation.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/nmfproxy/nmfproxy/gssapi"
	"github.com/nmfproxy/nmfproxy/session"
	"github.com/nmfproxy/nmfproxy/tcpstream"
)

var (
	via     string
	message string

	negotiateSPN string
	krb5Conf     string
	keytabPath   string
	principal    string
)

var rootCmd = &cobra.Command{
	Use:   "nmfclient HOST PORT",
	Short: "Minimal NMF client: open, send one message, receive one reply, close",
	Long: `nmfclient opens an NMF session against HOST:PORT, sends --message as a
single sized enveloped message, prints whatever the server sends back, and
closes the session.

Examples:
  nmfclient --via net.tcp://server/service server.example.com 9000

  nmfclient --negotiate host/server.example.com \
    --principal alice@EXAMPLE.COM --keytab /home/alice/alice.keytab \
    server.example.com 9000`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runClient,
}

func init() {
	rootCmd.Flags().StringVar(&via, "via", "net.tcp://localhost/service", "the Via URL advertised in the preamble")
	rootCmd.Flags().StringVar(&message, "message", "hello", "payload to send as a sized enveloped message")

	rootCmd.Flags().StringVar(&negotiateSPN, "negotiate", "", "server's service principal name; enables a GSSAPI upgrade")
	rootCmd.Flags().StringVar(&krb5Conf, "krb5-config", "/etc/krb5.conf", "path to krb5.conf (used with --negotiate)")
	rootCmd.Flags().StringVar(&keytabPath, "keytab", "", "path to the client's keytab (used with --negotiate)")
	rootCmd.Flags().StringVar(&principal, "principal", "", "client's own Kerberos principal, user@REALM (used with --negotiate)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
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

	addr := fmt.Sprintf("%s:%s", args[0], args[1])
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	sess, err := session.Open(tcpstream.New(conn), session.Config{
		Via:       via,
		Negotiate: negotiate,
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()
	fmt.Fprintln(os.Stderr, "session opened:", sess.ID())

	if err := sess.Send([]byte(message)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	reply, err := sess.Receive()
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}

	fmt.Println(string(reply))
	return nil
}
