// Command nmftrace replays a trace file written by the proxy's Tracer,
// decoding each row's hex payload back into its NMF records for inspection.
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nmfproxy/nmfproxy/nmf"
)

var rootCmd = &cobra.Command{
	Use:   "nmftrace TRACE_FILE",
	Short: "Decode a proxy trace file back into NMF records",
	Long: `nmftrace reads a trace file in the "timestamp \t client \t direction \t
hex" format written by the proxy, and prints every record it finds in each
row's payload.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTrace,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runTrace(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			fmt.Fprintf(os.Stderr, "skipping malformed row: %q\n", line)
			continue
		}
		timestamp, client, dir, hexData := fields[0], fields[1], fields[2], fields[3]

		raw, err := hex.DecodeString(hexData)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping row with bad hex: %v\n", err)
			continue
		}

		header := fmt.Sprintf("[%s] {%s} %s", timestamp, client, dir)
		fmt.Println(header)
		fmt.Println(strings.Repeat("#", len(header)))

		for len(raw) > 0 {
			n, rec, err := nmf.Parse(raw)
			if err != nil {
				fmt.Printf("  <undecodable: %v>\n", err)
				break
			}
			printRecord(rec)
			raw = raw[n:]
		}
		fmt.Println()
	}
	return scanner.Err()
}

func printRecord(rec *nmf.Record) {
	switch rec.Code {
	case nmf.CodeVia:
		fmt.Printf("  Via(%q)\n", rec.String("Via"))
	case nmf.CodeKnownEncoding:
		fmt.Printf("  KnownEncoding(%d)\n", rec.Uint32("Encoding"))
	case nmf.CodeMode:
		fmt.Printf("  Mode(%d)\n", rec.Uint32("Mode"))
	case nmf.CodeUpgradeRequest:
		fmt.Printf("  UpgradeRequest(%q)\n", rec.String("UpgradeProtocol"))
	case nmf.CodeSizedEnvelopedMessage:
		payload := rec.Payload()
		fmt.Printf("  SizedEnvelopedMessage(%d bytes)\n", len(payload))
	case nmf.CodeFault:
		fmt.Printf("  Fault(%q)\n", rec.String("Fault"))
	default:
		fmt.Printf("  %s\n", rec.Name)
	}
}
