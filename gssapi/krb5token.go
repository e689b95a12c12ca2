package gssapi

import (
	"bytes"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/pkg/errors"
)

// krb5OID is the Kerberos V5 mechanism OID, RFC 4121 §1.
var krb5OID = asn1.ObjectIdentifier{1, 2, 840, 113554, 1, 2, 2}

// TOK_ID values RFC 4121 §4.1 prefixes onto the Kerberos message carried
// inside a GSS-API context-establishment token.
var (
	tokIDAPReq = [2]byte{0x01, 0x00}
	tokIDAPRep = [2]byte{0x02, 0x00}
)

// wrapKrb5Token builds the GSS-API InitialContextToken framing of RFC 2743
// §3.1 around a Kerberos message: an APPLICATION 0 tag, the mechanism OID,
// then the TOK_ID-prefixed message.
func wrapKrb5Token(tokID [2]byte, message []byte) ([]byte, error) {
	oidBytes, err := asn1.Marshal(krb5OID)
	if err != nil {
		return nil, errors.Wrap(err, "gssapi: marshal krb5 OID")
	}

	body := make([]byte, 0, len(oidBytes)+2+len(message))
	body = append(body, oidBytes...)
	body = append(body, tokID[:]...)
	body = append(body, message...)

	return derApplicationTag(0, body), nil
}

// unwrapKrb5Token parses the framing built by wrapKrb5Token, returning the
// TOK_ID and the Kerberos message that follows it.
func unwrapKrb5Token(token []byte) (tokID [2]byte, message []byte, err error) {
	body, err := derApplicationTagBody(0, token)
	if err != nil {
		return tokID, nil, err
	}

	var oid asn1.ObjectIdentifier
	rest, err := asn1.UnmarshalWithParams(body, &oid, "")
	if err != nil {
		return tokID, nil, errors.Wrap(err, "gssapi: unmarshal krb5 OID")
	}
	if !oid.Equal(krb5OID) {
		return tokID, nil, errors.Errorf("gssapi: unexpected mechanism OID %v", oid)
	}
	if len(rest) < 2 {
		return tokID, nil, errors.New("gssapi: token missing TOK_ID")
	}
	copy(tokID[:], rest[:2])
	return tokID, rest[2:], nil
}

func derApplicationTag(tag byte, body []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(0x60 | tag)
	writeDERLength(&out, len(body))
	out.Write(body)
	return out.Bytes()
}

func writeDERLength(buf *bytes.Buffer, n int) {
	if n < 0x80 {
		buf.WriteByte(byte(n))
		return
	}
	var lenBytes []byte
	for n > 0 {
		lenBytes = append([]byte{byte(n)}, lenBytes...)
		n >>= 8
	}
	buf.WriteByte(0x80 | byte(len(lenBytes)))
	buf.Write(lenBytes)
}

func derApplicationTagBody(tag byte, in []byte) ([]byte, error) {
	if len(in) < 2 {
		return nil, errors.New("gssapi: token too short")
	}
	if in[0] != 0x60|tag {
		return nil, errors.Errorf("gssapi: unexpected outer tag 0x%02X", in[0])
	}
	length, consumed, err := readDERLength(in[1:])
	if err != nil {
		return nil, err
	}
	body := in[1+consumed:]
	if len(body) < length {
		return nil, errors.New("gssapi: truncated token body")
	}
	return body[:length], nil
}

func readDERLength(in []byte) (length int, consumed int, err error) {
	if len(in) == 0 {
		return 0, 0, errors.New("gssapi: missing length byte")
	}
	if in[0] < 0x80 {
		return int(in[0]), 1, nil
	}
	numBytes := int(in[0] &^ 0x80)
	if numBytes == 0 || len(in) < 1+numBytes {
		return 0, 0, errors.New("gssapi: truncated DER length")
	}
	for i := 0; i < numBytes; i++ {
		length = length<<8 | int(in[1+i])
	}
	return length, 1 + numBytes, nil
}
