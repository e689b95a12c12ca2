package nmf

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// FieldKind names which C1 primitive a FieldSpec decodes with.
type FieldKind int

const (
	FieldVarint FieldKind = iota
	FieldUTF8LengthRef
	FieldBytesLengthRef
	FieldFixedEnum
)

// FieldSpec describes one field of a record schema, in declaration order.
// LengthRef names a sibling field decoded earlier in the same record whose
// value supplies this field's length; Enum, when non-nil, restricts a
// FieldFixedEnum field to the given discriminants.
type FieldSpec struct {
	Name      string
	Kind      FieldKind
	LengthRef string
	Width     int
	Enum      map[uint32]string
}

// Schema is one entry of the record registry: a code and its ordered field
// layout.
type Schema struct {
	Code   byte
	Name   string
	Fields []FieldSpec
}

var registry = map[byte]Schema{}

// Register inserts schema into the global, process-wide registry. It must
// be called only from package init; a duplicate code is a programmer error
// and panics, per spec.
func Register(schema Schema) {
	if _, exists := registry[schema.Code]; exists {
		panic(fmt.Sprintf("nmf: duplicate record code 0x%02X (schema %s)", schema.Code, schema.Name))
	}
	registry[schema.Code] = schema
}

// Record is a decoded or constructed instance of a registered schema.
// Records have no identity and are immutable once built; fields are
// resolved dynamically by name so that a field's LengthRef can look up a
// sibling field decoded earlier in the same record.
type Record struct {
	Code   byte
	Name   string
	fields map[string]interface{}
}

func newRecord(code byte, name string, f map[string]interface{}) *Record {
	if f == nil {
		f = map[string]interface{}{}
	}
	return &Record{Code: code, Name: name, fields: f}
}

func (r *Record) Uint32(name string) uint32 {
	v, _ := r.fields[name].(uint32)
	return v
}

func (r *Record) String(name string) string {
	v, _ := r.fields[name].(string)
	return v
}

func (r *Record) Bytes(name string) []byte {
	v, _ := r.fields[name].([]byte)
	return v
}

// Payload returns the Payload field of a SizedEnvelopedMessage record.
func (r *Record) Payload() []byte {
	return r.Bytes("Payload")
}

// Parse consumes one record from the front of buf. It returns the number
// of bytes consumed and the decoded record.
func Parse(buf []byte) (int, *Record, error) {
	if len(buf) < 1 {
		return 0, nil, errors.WithStack(ErrTruncatedInput)
	}

	code := buf[0]
	schema, ok := registry[code]
	if !ok {
		return 0, nil, errors.Wrapf(ErrUnknownRecord, "code 0x%02X", code)
	}

	rec := newRecord(code, schema.Name, nil)
	pos := 1
	for _, fs := range schema.Fields {
		n, value, err := decodeField(fs, buf[pos:], rec)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "nmf: field %s of %s", fs.Name, schema.Name)
		}
		rec.fields[fs.Name] = value
		pos += n
	}

	return pos, rec, nil
}

// ParseStream is the pull-stream form of Parse: it reads exactly one
// record from r.
func ParseStream(r io.Reader) (*Record, error) {
	var codeBuf [1]byte
	if _, err := io.ReadFull(r, codeBuf[:]); err != nil {
		return nil, wrapStreamErr(err)
	}

	code := codeBuf[0]
	schema, ok := registry[code]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRecord, "code 0x%02X", code)
	}

	rec := newRecord(code, schema.Name, nil)
	for _, fs := range schema.Fields {
		value, err := decodeFieldFromReader(fs, r, rec)
		if err != nil {
			return nil, errors.Wrapf(err, "nmf: field %s of %s", fs.Name, schema.Name)
		}
		rec.fields[fs.Name] = value
	}

	return rec, nil
}

// Encode emits the 1-byte code followed by each field in declaration order.
func Encode(rec *Record) ([]byte, error) {
	schema, ok := registry[rec.Code]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRecord, "code 0x%02X", rec.Code)
	}

	out := []byte{rec.Code}
	for _, fs := range schema.Fields {
		v, ok := rec.fields[fs.Name]
		if !ok {
			return nil, errors.Errorf("nmf: record missing field %s for %s", fs.Name, schema.Name)
		}

		switch fs.Kind {
		case FieldVarint:
			out = append(out, EncodeVarint(v.(uint32))...)
		case FieldUTF8LengthRef:
			out = append(out, []byte(v.(string))...)
		case FieldBytesLengthRef:
			out = append(out, v.([]byte)...)
		case FieldFixedEnum:
			out = append(out, EncodeFixedEnum(v.(uint32), fs.Width)...)
		default:
			return nil, errors.Errorf("nmf: unknown field kind %d", fs.Kind)
		}
	}

	return out, nil
}

func decodeField(fs FieldSpec, buf []byte, rec *Record) (int, interface{}, error) {
	switch fs.Kind {
	case FieldVarint:
		return DecodeVarint(buf)

	case FieldUTF8LengthRef:
		length := int(rec.Uint32(fs.LengthRef))
		if len(buf) < length {
			return 0, nil, errors.WithStack(ErrTruncatedInput)
		}
		s, err := DecodeUTF8(buf[:length])
		return length, s, err

	case FieldBytesLengthRef:
		length := int(rec.Uint32(fs.LengthRef))
		if len(buf) < length {
			return 0, nil, errors.WithStack(ErrTruncatedInput)
		}
		return length, DecodeRawBytes(buf[:length]), nil

	case FieldFixedEnum:
		if len(buf) < fs.Width {
			return 0, nil, errors.WithStack(ErrTruncatedInput)
		}
		value := DecodeFixedEnum(buf[:fs.Width])
		if fs.Enum != nil {
			if _, ok := fs.Enum[value]; !ok {
				return 0, nil, errors.Wrapf(ErrUnknownEnum, "value %d", value)
			}
		}
		return fs.Width, value, nil

	default:
		return 0, nil, errors.Errorf("nmf: unknown field kind %d", fs.Kind)
	}
}

func decodeFieldFromReader(fs FieldSpec, r io.Reader, rec *Record) (interface{}, error) {
	switch fs.Kind {
	case FieldVarint:
		return DecodeVarintFromReader(r)

	case FieldUTF8LengthRef:
		length := int(rec.Uint32(fs.LengthRef))
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, wrapStreamErr(err)
		}
		return DecodeUTF8(buf)

	case FieldBytesLengthRef:
		length := int(rec.Uint32(fs.LengthRef))
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, wrapStreamErr(err)
		}
		return buf, nil

	case FieldFixedEnum:
		buf := make([]byte, fs.Width)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, wrapStreamErr(err)
		}
		value := DecodeFixedEnum(buf)
		if fs.Enum != nil {
			if _, ok := fs.Enum[value]; !ok {
				return nil, errors.Wrapf(ErrUnknownEnum, "value %d", value)
			}
		}
		return value, nil

	default:
		return nil, errors.Errorf("nmf: unknown field kind %d", fs.Kind)
	}
}
