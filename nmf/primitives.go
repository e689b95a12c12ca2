package nmf

import (
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// DecodeVarint decodes a variable-length integer from the front of buf.
// It returns the number of bytes consumed and the decoded value. A byte
// with its continuation bit clear ends the encoding; since 0x00 clears
// that bit, it both encodes the value 0 and (where the caller treats a
// lone 0x00 specially) serves as an end-of-stream sentinel.
func DecodeVarint(buf []byte) (consumed int, value uint32, err error) {
	var shift uint
	for i := 0; i < len(buf); i++ {
		if i >= 5 {
			return 0, 0, errors.Wrap(ErrMalformedField, "varint longer than 5 bytes")
		}
		b := buf[i]
		value |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return i + 1, value, nil
		}
		shift += 7
	}
	return 0, 0, errors.WithStack(ErrTruncatedInput)
}

// DecodeVarintFromReader is the pull-stream form of DecodeVarint.
func DecodeVarintFromReader(r io.Reader) (uint32, error) {
	var value uint32
	var shift uint
	var b [1]byte
	for i := 0; i < 5; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, wrapStreamErr(err)
		}
		value |= uint32(b[0]&0x7F) << shift
		if b[0]&0x80 == 0 {
			return value, nil
		}
		shift += 7
	}
	return 0, errors.Wrap(ErrMalformedField, "varint longer than 5 bytes")
}

// EncodeVarint emits the minimum number of bytes needed to represent value;
// 0 encodes as a single 0x00.
func EncodeVarint(value uint32) []byte {
	if value == 0 {
		return []byte{0x00}
	}

	var out []byte
	for value > 0 {
		b := byte(value & 0x7F)
		value >>= 7
		if value > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// DecodeUTF8 validates buf as UTF-8 and returns it as a string. The caller
// supplies exactly length_ref bytes, per the utf8(length_ref) primitive.
func DecodeUTF8(buf []byte) (string, error) {
	if !utf8.Valid(buf) {
		return "", errors.WithStack(ErrInvalidUTF8)
	}
	return string(buf), nil
}

// DecodeRawBytes returns a copy of buf, per the raw_bytes(length_ref)
// primitive.
func DecodeRawBytes(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

// DecodeFixedEnum interprets buf (exactly width bytes) as a big-endian
// unsigned integer.
func DecodeFixedEnum(buf []byte) uint32 {
	var v uint32
	for _, b := range buf {
		v = v<<8 | uint32(b)
	}
	return v
}

// EncodeFixedEnum is the inverse of DecodeFixedEnum.
func EncodeFixedEnum(value uint32, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(value)
		value >>= 8
	}
	return out
}

func wrapStreamErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(ErrStreamClosed, err.Error())
	}
	return errors.Wrap(ErrStreamError, err.Error())
}
