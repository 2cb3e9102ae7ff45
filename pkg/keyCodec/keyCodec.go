// Package keyCodec implements the canonical checksummed text encoding for
// public keys, private keys and signatures across the three supported key
// families. Encoding and decoding are left inverses of each other; a decoded
// value always re-encodes to the original string.
package keyCodec

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // the wire format mandates RIPEMD-160 checksums
)

// KeyType identifies one of the supported key families.
type KeyType uint8

const (
	// K1 is secp256k1
	K1 KeyType = 0
	// R1 is NIST P-256
	R1 KeyType = 1
	// WA is WebAuthn-attested NIST P-256
	WA KeyType = 2
)

// String returns the two-letter family tag used in textual key forms.
func (k KeyType) String() string {
	switch k {
	case K1:
		return "K1"
	case R1:
		return "R1"
	case WA:
		return "WA"
	}
	return fmt.Sprintf("KeyType(%d)", uint8(k))
}

// Key is the canonical binary representation of a public key, private key or
// signature payload. The byte-layout interpretation of Data depends on the
// family and on the role the key plays.
type Key struct {
	Type KeyType
	Data []byte
}

const (
	// PublicKeyDataSize is the compressed point size for K1 and R1 public keys
	PublicKeyDataSize = 33
	// PrivateKeyDataSize is the scalar size for K1 and R1 private keys
	PrivateKeyDataSize = 32
	// SignatureDataSize is the recoverable signature size for K1 and R1 signatures
	SignatureDataSize = 65
)

var (
	// ErrChecksum is returned when a textual key's checksum does not match its payload
	ErrChecksum = errors.New("checksum doesn't match")
	// ErrUnrecognizedFormat is returned for text that matches no known key format
	ErrUnrecognizedFormat = errors.New("unrecognized key format")
)

func ripemdChecksum(data []byte, suffix string) []byte {
	h := ripemd160.New()
	h.Write(data)
	if suffix != "" {
		h.Write([]byte(suffix))
	}
	return h.Sum(nil)[:4]
}

func digestSuffixBase58(data []byte, suffix string) string {
	whole := make([]byte, 0, len(data)+4)
	whole = append(whole, data...)
	whole = append(whole, ripemdChecksum(data, suffix)...)
	return base58.Encode(whole)
}

func base58ToBinary(s string, size int) ([]byte, error) {
	out, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 string: %w", err)
	}
	if size > 0 && len(out) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(out))
	}
	return out, nil
}

func stringToKey(s string, keyType KeyType, size int, suffix string) (Key, error) {
	whole, err := base58ToBinary(s, sizeWithChecksum(size))
	if err != nil {
		return Key{}, err
	}
	data := whole[:len(whole)-4]
	if !bytes.Equal(ripemdChecksum(data, suffix), whole[len(whole)-4:]) {
		return Key{}, ErrChecksum
	}
	return Key{Type: keyType, Data: data}, nil
}

func sizeWithChecksum(size int) int {
	if size <= 0 {
		return 0
	}
	return size + 4
}

// StringToPublicKey parses a public key in either the modern PUB_<type>_ form
// or the legacy EOS form (K1 only, suffix-less checksum).
func StringToPublicKey(s string) (Key, error) {
	switch {
	case strings.HasPrefix(s, "EOS"):
		whole, err := base58ToBinary(s[3:], PublicKeyDataSize+4)
		if err != nil {
			return Key{}, err
		}
		data := whole[:PublicKeyDataSize]
		if !bytes.Equal(ripemdChecksum(data, ""), whole[PublicKeyDataSize:]) {
			return Key{}, ErrChecksum
		}
		return Key{Type: K1, Data: data}, nil
	case strings.HasPrefix(s, "PUB_K1_"):
		return stringToKey(s[7:], K1, PublicKeyDataSize, "K1")
	case strings.HasPrefix(s, "PUB_R1_"):
		return stringToKey(s[7:], R1, PublicKeyDataSize, "R1")
	case strings.HasPrefix(s, "PUB_WA_"):
		return stringToKey(s[7:], WA, 0, "WA")
	}
	return Key{}, fmt.Errorf("%w: public key %q", ErrUnrecognizedFormat, s)
}

// PublicKeyToString encodes a public key into the modern PUB_<type>_ form.
func PublicKeyToString(key Key) (string, error) {
	switch key.Type {
	case K1, R1:
		if len(key.Data) != PublicKeyDataSize {
			return "", fmt.Errorf("invalid %s public key data size %d", key.Type, len(key.Data))
		}
	case WA:
		// variable length: compact point plus authenticator metadata
	default:
		return "", fmt.Errorf("unsupported public key type %d", key.Type)
	}
	tag := key.Type.String()
	return "PUB_" + tag + "_" + digestSuffixBase58(key.Data, tag), nil
}

// PublicKeyToLegacyString encodes a K1 public key into the legacy EOS form.
func PublicKeyToLegacyString(key Key) (string, error) {
	if key.Type != K1 {
		return "", fmt.Errorf("key format %s not supported in legacy conversion", key.Type)
	}
	if len(key.Data) != PublicKeyDataSize {
		return "", fmt.Errorf("invalid K1 public key data size %d", len(key.Data))
	}
	return "EOS" + digestSuffixBase58(key.Data, ""), nil
}

// StringToSignature parses a signature in the SIG_<type>_ form.
func StringToSignature(s string) (Key, error) {
	switch {
	case strings.HasPrefix(s, "SIG_K1_"):
		return stringToKey(s[7:], K1, SignatureDataSize, "K1")
	case strings.HasPrefix(s, "SIG_R1_"):
		return stringToKey(s[7:], R1, SignatureDataSize, "R1")
	case strings.HasPrefix(s, "SIG_WA_"):
		return stringToKey(s[7:], WA, 0, "WA")
	}
	return Key{}, fmt.Errorf("%w: signature %q", ErrUnrecognizedFormat, s)
}

// SignatureToString encodes a signature into the SIG_<type>_ form.
func SignatureToString(sig Key) (string, error) {
	switch sig.Type {
	case K1, R1:
		if len(sig.Data) != SignatureDataSize {
			return "", fmt.Errorf("invalid %s signature data size %d", sig.Type, len(sig.Data))
		}
	case WA:
	default:
		return "", fmt.Errorf("unsupported signature type %d", sig.Type)
	}
	tag := sig.Type.String()
	return "SIG_" + tag + "_" + digestSuffixBase58(sig.Data, tag), nil
}

// StringToPrivateKey parses a private key in either the modern PVT_<type>_
// form or the legacy WIF form (K1 only, double-sha256 checksum).
func StringToPrivateKey(s string) (Key, error) {
	switch {
	case strings.HasPrefix(s, "PVT_K1_"):
		return stringToKey(s[7:], K1, PrivateKeyDataSize, "K1")
	case strings.HasPrefix(s, "PVT_R1_"):
		return stringToKey(s[7:], R1, PrivateKeyDataSize, "R1")
	}
	// legacy WIF: 0x80 version byte, raw scalar, 4-byte double-sha256 checksum
	whole, err := base58ToBinary(s, 1+PrivateKeyDataSize+4)
	if err != nil {
		return Key{}, err
	}
	if whole[0] != 0x80 {
		return Key{}, fmt.Errorf("%w: private key %q", ErrUnrecognizedFormat, s)
	}
	payload := whole[:1+PrivateKeyDataSize]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], whole[1+PrivateKeyDataSize:]) {
		return Key{}, ErrChecksum
	}
	return Key{Type: K1, Data: payload[1:]}, nil
}

// PrivateKeyToString encodes a private key into the modern PVT_<type>_ form.
func PrivateKeyToString(key Key) (string, error) {
	if key.Type != K1 && key.Type != R1 {
		return "", fmt.Errorf("unsupported private key type %d", key.Type)
	}
	if len(key.Data) != PrivateKeyDataSize {
		return "", fmt.Errorf("invalid %s private key data size %d", key.Type, len(key.Data))
	}
	tag := key.Type.String()
	return "PVT_" + tag + "_" + digestSuffixBase58(key.Data, tag), nil
}
