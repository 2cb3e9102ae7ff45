package keyCodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPublicKeyData() []byte {
	data := make([]byte, PublicKeyDataSize)
	data[0] = 0x02
	for i := 1; i < len(data); i++ {
		data[i] = byte(i)
	}
	return data
}

func testSignatureData() []byte {
	data := make([]byte, SignatureDataSize)
	data[0] = 31 // K1 header for recovery param 0
	for i := 1; i < len(data); i++ {
		data[i] = byte(i % 0x7f)
	}
	return data
}

func TestKeyType_String(t *testing.T) {
	assert.Equal(t, "K1", K1.String())
	assert.Equal(t, "R1", R1.String())
	assert.Equal(t, "WA", WA.String())
}

func TestPublicKey_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		keyType KeyType
	}{
		{name: "K1", keyType: K1},
		{name: "R1", keyType: R1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := Key{Type: tt.keyType, Data: testPublicKeyData()}

			text, err := PublicKeyToString(key)
			require.NoError(t, err)
			assert.True(t, len(text) > len("PUB_K1_"))
			assert.Contains(t, text, "PUB_"+tt.keyType.String()+"_")

			parsed, err := StringToPublicKey(text)
			require.NoError(t, err)
			assert.Equal(t, key, parsed)
		})
	}
}

func TestPublicKey_LegacyRoundTrip(t *testing.T) {
	key := Key{Type: K1, Data: testPublicKeyData()}

	legacy, err := PublicKeyToLegacyString(key)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix([]byte(legacy), []byte("EOS")))

	parsed, err := StringToPublicKey(legacy)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	// Legacy and modern forms of the same key decode to the same bytes.
	modern, err := PublicKeyToString(key)
	require.NoError(t, err)
	fromModern, err := StringToPublicKey(modern)
	require.NoError(t, err)
	assert.Equal(t, parsed, fromModern)
}

func TestPublicKey_LegacyRejectsNonK1(t *testing.T) {
	_, err := PublicKeyToLegacyString(Key{Type: R1, Data: testPublicKeyData()})
	assert.Error(t, err)
}

func TestPublicKey_ChecksumCorruption(t *testing.T) {
	key := Key{Type: K1, Data: testPublicKeyData()}
	text, err := PublicKeyToString(key)
	require.NoError(t, err)

	// Replace the final character with a different one from the base58
	// alphabet so the payload changes but still decodes.
	corrupted := []byte(text)
	if corrupted[len(corrupted)-1] == '2' {
		corrupted[len(corrupted)-1] = '3'
	} else {
		corrupted[len(corrupted)-1] = '2'
	}

	_, err = StringToPublicKey(string(corrupted))
	assert.Error(t, err)
}

func TestPublicKey_UnrecognizedFormat(t *testing.T) {
	for _, s := range []string{"", "bogus", "PUB_X1_abc", "SIG_K1_abc"} {
		_, err := StringToPublicKey(s)
		assert.ErrorIs(t, err, ErrUnrecognizedFormat, "input %q", s)
	}
}

func TestSignature_RoundTrip(t *testing.T) {
	for _, keyType := range []KeyType{K1, R1} {
		sig := Key{Type: keyType, Data: testSignatureData()}

		text, err := SignatureToString(sig)
		require.NoError(t, err)
		assert.Contains(t, text, "SIG_"+keyType.String()+"_")

		parsed, err := StringToSignature(text)
		require.NoError(t, err)
		assert.Equal(t, sig, parsed)
	}
}

func TestSignature_WAVariableLength(t *testing.T) {
	// WA signatures append authenticator data and client JSON to the fixed
	// 65-byte prefix, so their textual form has no fixed size.
	data := append(testSignatureData(), []byte("extra-authenticator-data")...)
	sig := Key{Type: WA, Data: data}

	text, err := SignatureToString(sig)
	require.NoError(t, err)

	parsed, err := StringToSignature(text)
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
}

func TestSignature_RejectsWrongSize(t *testing.T) {
	_, err := SignatureToString(Key{Type: K1, Data: make([]byte, 64)})
	assert.Error(t, err)
}

func TestPrivateKey_RoundTrip(t *testing.T) {
	for _, keyType := range []KeyType{K1, R1} {
		data := make([]byte, PrivateKeyDataSize)
		for i := range data {
			data[i] = byte(i + 1)
		}
		key := Key{Type: keyType, Data: data}

		text, err := PrivateKeyToString(key)
		require.NoError(t, err)
		assert.Contains(t, text, "PVT_"+keyType.String()+"_")

		parsed, err := StringToPrivateKey(text)
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
	}
}

func TestPrivateKey_WellKnownWIF(t *testing.T) {
	// The development key pair that ships with every default test chain.
	key, err := StringToPrivateKey("5KQwrPbwdL6PhXujxW37FSSQZ1JiwsST4cqQzDeyXtP79zkvFD3")
	require.NoError(t, err)
	assert.Equal(t, K1, key.Type)
	assert.Len(t, key.Data, PrivateKeyDataSize)
}

func TestPrivateKey_WIFChecksumCorruption(t *testing.T) {
	_, err := StringToPrivateKey("5KQwrPbwdL6PhXujxW37FSSQZ1JiwsST4cqQzDeyXtP79zkvFD4")
	assert.Error(t, err)
}

func TestPrivateKey_UnrecognizedFormat(t *testing.T) {
	_, err := StringToPrivateKey("PUB_K1_notaprivatekey")
	assert.Error(t, err)
}
