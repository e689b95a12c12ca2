package proxy

import (
	"bufio"
	"encoding/hex"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Tracer is the proxy's append-only trace sink. Writers serialize whole
// rows — one write_all plus flush per row — so concurrent C→S and S→C
// tasks never interleave partial lines.
type Tracer struct {
	mu  sync.Mutex
	out *bufio.Writer
	f   *os.File
}

// NewTracer opens (creating if needed, appending if present) the trace
// file at path.
func NewTracer(path string) (*Tracer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "proxy: open trace file")
	}
	return &Tracer{out: bufio.NewWriter(f), f: f}, nil
}

// Direction labels a trace row per spec §4.7/§6.
type Direction string

const (
	ClientToServer Direction = "c>s"
	ServerToClient Direction = "s>c"
)

// Write appends one row: "timestamp \t clientAddr \t direction \t hex(raw)\n".
func (t *Tracer) Write(clientAddr string, dir Direction, raw []byte) error {
	if t == nil {
		return nil
	}

	row := time.Now().Format("2006-01-02 15:04:05.000000") + "\t" +
		clientAddr + "\t" +
		string(dir) + "\t" +
		hex.EncodeToString(raw) + "\n"

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.out.WriteString(row); err != nil {
		return errors.Wrap(err, "proxy: write trace row")
	}
	return t.out.Flush()
}

func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.out.Flush(); err != nil {
		t.f.Close()
		return errors.Wrap(err, "proxy: flush trace file")
	}
	return t.f.Close()
}
