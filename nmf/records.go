package nmf

// Record codes, per spec §4.2.
const (
	CodeVersion                byte = 0x00
	CodeMode                   byte = 0x01
	CodeVia                    byte = 0x02
	CodeKnownEncoding          byte = 0x03
	CodeUnsizedEnvelopedMessage byte = 0x05
	CodeSizedEnvelopedMessage  byte = 0x06
	CodeEnd                    byte = 0x07
	CodeFault                  byte = 0x08
	CodeUpgradeRequest         byte = 0x09
	CodeUpgradeResponse        byte = 0x0A
	CodePreambleAck            byte = 0x0B
	CodePreambleEnd            byte = 0x0C
)

// Mode enumeration values.
const (
	ModeSingletonUnsized uint32 = 1
	ModeDuplex           uint32 = 2
	ModeSimplex          uint32 = 3
	ModeSingletonSized   uint32 = 4
)

var modeEnum = map[uint32]string{
	ModeSingletonUnsized: "SingletonUnsized",
	ModeDuplex:           "Duplex",
	ModeSimplex:          "Simplex",
	ModeSingletonSized:   "SingletonSized",
}

// KnownEncoding enumeration values.
const (
	EncodingUTF8       uint32 = 3
	EncodingUTF16      uint32 = 4
	EncodingUnicodeLE  uint32 = 5
	EncodingMTOM       uint32 = 6
	EncodingBinary     uint32 = 7
	EncodingBinaryDict uint32 = 8
)

var encodingEnum = map[uint32]string{
	EncodingUTF8:       "UTF8",
	EncodingUTF16:      "UTF16",
	EncodingUnicodeLE:  "UnicodeLE",
	EncodingMTOM:       "MTOM",
	EncodingBinary:     "Binary",
	EncodingBinaryDict: "BinaryDict",
}

// UpgradeProtocolNegotiate is the data protocol string NMF's upgrade
// handshake negotiates to GSSAPI/SPNEGO. It is exactly 21 bytes of UTF-8,
// per spec §6.
const UpgradeProtocolNegotiate = "application/negotiate"

func init() {
	Register(Schema{Code: CodeVersion, Name: "Version", Fields: []FieldSpec{
		{Name: "MajorVersion", Kind: FieldFixedEnum, Width: 1},
		{Name: "MinorVersion", Kind: FieldFixedEnum, Width: 1},
	}})

	Register(Schema{Code: CodeMode, Name: "Mode", Fields: []FieldSpec{
		{Name: "Mode", Kind: FieldFixedEnum, Width: 1, Enum: modeEnum},
	}})

	Register(Schema{Code: CodeVia, Name: "Via", Fields: []FieldSpec{
		{Name: "ViaLength", Kind: FieldVarint},
		{Name: "Via", Kind: FieldUTF8LengthRef, LengthRef: "ViaLength"},
	}})

	Register(Schema{Code: CodeKnownEncoding, Name: "KnownEncoding", Fields: []FieldSpec{
		{Name: "Encoding", Kind: FieldFixedEnum, Width: 1, Enum: encodingEnum},
	}})

	Register(Schema{Code: CodeUnsizedEnvelopedMessage, Name: "UnsizedEnvelopedMessage"})

	Register(Schema{Code: CodeSizedEnvelopedMessage, Name: "SizedEnvelopedMessage", Fields: []FieldSpec{
		{Name: "Size", Kind: FieldVarint},
		{Name: "Payload", Kind: FieldBytesLengthRef, LengthRef: "Size"},
	}})

	Register(Schema{Code: CodeEnd, Name: "End"})

	Register(Schema{Code: CodeFault, Name: "Fault", Fields: []FieldSpec{
		{Name: "FaultSize", Kind: FieldVarint},
		{Name: "Fault", Kind: FieldUTF8LengthRef, LengthRef: "FaultSize"},
	}})

	Register(Schema{Code: CodeUpgradeRequest, Name: "UpgradeRequest", Fields: []FieldSpec{
		{Name: "UpgradeProtocolLength", Kind: FieldVarint},
		{Name: "UpgradeProtocol", Kind: FieldUTF8LengthRef, LengthRef: "UpgradeProtocolLength"},
	}})

	Register(Schema{Code: CodeUpgradeResponse, Name: "UpgradeResponse"})
	Register(Schema{Code: CodePreambleAck, Name: "PreambleAck"})
	Register(Schema{Code: CodePreambleEnd, Name: "PreambleEnd"})
}

// Constructors. Each sets any length-ref fields automatically so callers
// never have to keep a length and its referent in sync by hand.

func NewVersionRecord(major, minor byte) *Record {
	return newRecord(CodeVersion, "Version", map[string]interface{}{
		"MajorVersion": uint32(major),
		"MinorVersion": uint32(minor),
	})
}

func NewModeRecord(mode uint32) *Record {
	return newRecord(CodeMode, "Mode", map[string]interface{}{"Mode": mode})
}

func NewViaRecord(uri string) *Record {
	return newRecord(CodeVia, "Via", map[string]interface{}{
		"ViaLength": uint32(len(uri)),
		"Via":       uri,
	})
}

func NewKnownEncodingRecord(encoding uint32) *Record {
	return newRecord(CodeKnownEncoding, "KnownEncoding", map[string]interface{}{"Encoding": encoding})
}

func NewUnsizedEnvelopedMessageRecord() *Record {
	return newRecord(CodeUnsizedEnvelopedMessage, "UnsizedEnvelopedMessage", nil)
}

func NewSizedEnvelopedMessageRecord(payload []byte) *Record {
	return newRecord(CodeSizedEnvelopedMessage, "SizedEnvelopedMessage", map[string]interface{}{
		"Size":    uint32(len(payload)),
		"Payload": payload,
	})
}

func NewEndRecord() *Record {
	return newRecord(CodeEnd, "End", nil)
}

func NewFaultRecord(text string) *Record {
	return newRecord(CodeFault, "Fault", map[string]interface{}{
		"FaultSize": uint32(len(text)),
		"Fault":     text,
	})
}

func NewUpgradeRequestRecord(protocol string) *Record {
	return newRecord(CodeUpgradeRequest, "UpgradeRequest", map[string]interface{}{
		"UpgradeProtocolLength": uint32(len(protocol)),
		"UpgradeProtocol":       protocol,
	})
}

func NewUpgradeResponseRecord() *Record {
	return newRecord(CodeUpgradeResponse, "UpgradeResponse", nil)
}

func NewPreambleAckRecord() *Record {
	return newRecord(CodePreambleAck, "PreambleAck", nil)
}

func NewPreambleEndRecord() *Record {
	return newRecord(CodePreambleEnd, "PreambleEnd", nil)
}
