package gssapi

import (
	"encoding/binary"
	"testing"

	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
	"github.com/jcmturner/gokrb5/v8/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionKey(t *testing.T) types.EncryptionKey {
	t.Helper()
	return types.EncryptionKey{
		KeyType:  etypeID.AES256_CTS_HMAC_SHA1_96,
		KeyValue: make([]byte, 32),
	}
}

// sealAsAcceptor mirrors sealMessage but plays the acceptor's (server's)
// side, so unsealMessage's decode path can be exercised without a live
// Kerberos exchange.
func sealAsAcceptor(t *testing.T, key types.EncryptionKey, seqNum uint64, plaintext []byte) []byte {
	t.Helper()
	encType, err := crypto.GetEtype(key.KeyType)
	require.NoError(t, err)

	header := make([]byte, wrapTokenHdrLen)
	header[0], header[1] = 0x05, 0x04
	header[2] = wrapFlagSealed | wrapFlagSentByAcceptor
	header[3] = 0xFF
	binary.BigEndian.PutUint64(header[8:16], seqNum)

	toEncrypt := append(append([]byte{}, plaintext...), header...)
	_, ciphertext, err := encType.EncryptMessage(key.KeyValue, toEncrypt, KeyUsageAcceptorSeal)
	require.NoError(t, err)

	return append(append([]byte{}, header...), ciphertext...)
}

func TestUnsealMessageRoundTrip(t *testing.T) {
	key := testSessionKey(t)
	plaintext := []byte("preamble-end-record")

	token := sealAsAcceptor(t, key, 1, plaintext)

	got, err := unsealMessage(key, token)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestUnsealMessageRejectsInitiatorFlag(t *testing.T) {
	key := testSessionKey(t)
	token, err := sealMessage(key, 1, []byte("hello"))
	require.NoError(t, err)

	_, err = unsealMessage(key, token)
	assert.Error(t, err)
}

func TestUnsealMessageRejectsShortToken(t *testing.T) {
	_, err := unsealMessage(testSessionKey(t), []byte{0x05, 0x04})
	assert.Error(t, err)
}

func TestRotateLeft(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	assert.Equal(t, []byte{3, 4, 5, 1, 2}, rotateLeft(data, 2))
	assert.Equal(t, data, rotateLeft(data, 0))
}

func TestKrb5TokenRoundTrip(t *testing.T) {
	apReq := []byte("fake-ap-req-der-bytes")
	token, err := wrapKrb5Token(tokIDAPReq, apReq)
	require.NoError(t, err)

	tokID, message, err := unwrapKrb5Token(token)
	require.NoError(t, err)
	assert.Equal(t, tokIDAPReq, tokID)
	assert.Equal(t, apReq, message)
}

func TestKrb5TokenRejectsWrongOID(t *testing.T) {
	_, err := unwrapKrb5Token([]byte{0x60, 0x02, 0x00, 0x00})
	assert.Error(t, err)
}

func TestSplitPrincipal(t *testing.T) {
	user, realm, err := splitPrincipal("alice@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "EXAMPLE.COM", realm)

	_, _, err = splitPrincipal("alice")
	assert.Error(t, err)
}
