package gssapi

import (
	"encoding/binary"

	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/types"
	"github.com/pkg/errors"
)

// RFC 4121 Wrap token key usage numbers. We resolve these to 22/23/24/25,
// not the 24/26 pairing that shows up in some adapter-layer comments
// elsewhere in the corpus — those are inconsistent with the constants the
// same codebase actually defines, which do match the RFC.
const (
	KeyUsageAcceptorSeal   uint32 = 22
	KeyUsageAcceptorSign   uint32 = 23
	KeyUsageInitiatorSeal  uint32 = 24
	KeyUsageInitiatorSign  uint32 = 25
)

const (
	wrapTokenHdrLen = 16

	wrapFlagSentByAcceptor = 0x01
	wrapFlagSealed         = 0x02
)

// sealMessage builds an RFC 4121 §4.2.4 sealed Wrap token for a message sent
// by the initiator (us): header (16 bytes, SentByAcceptor clear) followed by
// encrypt(plaintext | header_copy), header_copy having EC and RRC zeroed.
func sealMessage(sessionKey types.EncryptionKey, seqNum uint64, plaintext []byte) ([]byte, error) {
	encType, err := crypto.GetEtype(sessionKey.KeyType)
	if err != nil {
		return nil, errors.Wrap(err, "gssapi: get etype")
	}

	header := make([]byte, wrapTokenHdrLen)
	header[0], header[1] = 0x05, 0x04
	header[2] = wrapFlagSealed
	header[3] = 0xFF
	binary.BigEndian.PutUint64(header[8:16], seqNum)

	toEncrypt := make([]byte, len(plaintext)+wrapTokenHdrLen)
	copy(toEncrypt, plaintext)
	copy(toEncrypt[len(plaintext):], header) // EC=RRC=0 already

	_, ciphertext, err := encType.EncryptMessage(sessionKey.KeyValue, toEncrypt, KeyUsageInitiatorSeal)
	if err != nil {
		return nil, errors.Wrap(err, "gssapi: seal message")
	}

	token := make([]byte, wrapTokenHdrLen+len(ciphertext))
	copy(token, header)
	copy(token[wrapTokenHdrLen:], ciphertext)
	return token, nil
}

// unsealMessage reverses sealMessage for a token sent by the acceptor
// (the server), verifying the SentByAcceptor and Sealed flags before
// decrypting with the acceptor seal key usage.
func unsealMessage(sessionKey types.EncryptionKey, token []byte) ([]byte, error) {
	if len(token) < wrapTokenHdrLen {
		return nil, errors.New("gssapi: wrap token too short")
	}
	if token[0] != 0x05 || token[1] != 0x04 {
		return nil, errors.Errorf("gssapi: bad wrap token id 0x%02x%02x", token[0], token[1])
	}

	flags := token[2]
	if flags&wrapFlagSentByAcceptor == 0 {
		return nil, errors.New("gssapi: expected a token sent by the acceptor")
	}
	if flags&wrapFlagSealed == 0 {
		return nil, errors.New("gssapi: expected a sealed wrap token")
	}

	ec := binary.BigEndian.Uint16(token[4:6])
	rrc := binary.BigEndian.Uint16(token[6:8])

	ciphertext := token[wrapTokenHdrLen:]
	if rrc > 0 {
		ciphertext = rotateLeft(ciphertext, int(rrc))
	}

	decrypted, err := crypto.DecryptMessage(ciphertext, sessionKey, KeyUsageAcceptorSeal)
	if err != nil {
		return nil, errors.Wrap(err, "gssapi: unseal message")
	}
	if len(decrypted) < wrapTokenHdrLen {
		return nil, errors.New("gssapi: decrypted wrap token too short")
	}

	fillerSize := int(ec)
	plaintextEnd := len(decrypted) - wrapTokenHdrLen - fillerSize
	if plaintextEnd < 0 {
		return nil, errors.New("gssapi: invalid EC in wrap token")
	}
	return decrypted[:plaintextEnd], nil
}

// rotateLeft undoes the right-rotation a sender may apply to the
// ciphertext per the RRC field (RFC 4121 §4.2.5).
func rotateLeft(data []byte, n int) []byte {
	if len(data) == 0 {
		return data
	}
	n %= len(data)
	if n == 0 {
		return data
	}
	out := make([]byte, len(data))
	copy(out, data[n:])
	copy(out[len(data)-n:], data[:n])
	return out
}
