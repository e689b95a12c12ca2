package proxy

import (
	"github.com/pkg/errors"

	"github.com/nmfproxy/nmfproxy/gssapi"
	"github.com/nmfproxy/nmfproxy/nmf"
)

// frameReader is satisfied by tcpstream.Stream's best-effort Read and by
// gssapiReader below: each call returns one chunk of bytes, of whatever
// size its layer naturally produces.
type frameReader interface {
	Read() ([]byte, error)
}

// gssapiReader adapts gssapi.Stream's ReadMessage (one decrypted NNS
// payload) to frameReader, so the server-facing pump reads the same way
// before and after the mid-stream upgrade.
type gssapiReader struct{ s *gssapi.Stream }

func (r gssapiReader) Read() ([]byte, error) { return r.s.ReadMessage() }

// recordPump buffers chunks from a frameReader and slices out whole NMF
// records. A record may span several underlying chunks (a large
// SizedEnvelopedMessage written across multiple GSSAPI encrypt calls), and
// several records may share one chunk; both are handled by accumulating
// until nmf.Parse succeeds and retaining whatever is left over.
type recordPump struct {
	src frameReader
	buf []byte
}

func newRecordPump(src frameReader) *recordPump {
	return &recordPump{src: src}
}

// next returns the next record and the exact raw bytes it was decoded
// from, suitable for verbatim forwarding and tracing.
func (p *recordPump) next() (*nmf.Record, []byte, error) {
	for {
		if len(p.buf) > 0 {
			n, rec, err := nmf.Parse(p.buf)
			if err == nil {
				raw := append([]byte{}, p.buf[:n]...)
				p.buf = p.buf[n:]
				return rec, raw, nil
			}
			if !errors.Is(err, nmf.ErrTruncatedInput) {
				return nil, nil, err
			}
		}

		chunk, err := p.src.Read()
		if err != nil {
			return nil, nil, err
		}
		p.buf = append(p.buf, chunk...)
	}
}
