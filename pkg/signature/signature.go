// Package signature implements the bridge between the chain's compact
// recoverable-signature encoding and the (r, s, recoveryParam) triple used by
// elliptic-curve libraries, together with verification for the three key
// families: K1 (secp256k1), R1 (NIST P-256) and WA (WebAuthn-attested P-256).
package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decredEcdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/eosforge/txcore-go/pkg/keyCodec"
)

// recoveryCodec holds the per-key-family header byte arithmetic. Keeping the
// encode/decode pair explicit per family makes the bit manipulation
// independently testable; the recovery bit must never be silently corrupted.
type recoveryCodec struct {
	// encode maps a recovery parameter to the signature's header byte
	encode func(recoveryParam byte) byte
	// decode maps the header byte back to the 2-bit recovery parameter
	decode func(header byte) byte
}

var recoveryCodecs = map[keyCodec.KeyType]recoveryCodec{
	// K1 carries the legacy compact-signature header: 27 for a recoverable
	// signature, plus 4 when the public key is in compressed form. Recovery
	// parameters 0..3 therefore map to headers 31..34.
	keyCodec.K1: {
		encode: func(recoveryParam byte) byte {
			header := recoveryParam + 27
			if recoveryParam <= 3 {
				header += 4
			}
			return header
		},
		decode: func(header byte) byte {
			bitField := header - 27
			if bitField > 3 {
				bitField -= 4
			}
			return bitField & 3
		},
	},
	// R1 and WA store the recovery parameter unmodified.
	keyCodec.R1: {
		encode: func(recoveryParam byte) byte { return recoveryParam },
		decode: func(header byte) byte { return header & 3 },
	},
	keyCodec.WA: {
		encode: func(recoveryParam byte) byte { return recoveryParam },
		decode: func(header byte) byte { return header & 3 },
	},
}

// Signature wraps a canonical signature payload together with the curve
// context needed to verify it.
type Signature struct {
	key keyCodec.Key
}

// ErrInvalidSignatureData is returned for payloads with the wrong layout.
var ErrInvalidSignatureData = errors.New("invalid signature data")

// New wraps an existing canonical signature payload.
func New(key keyCodec.Key) (*Signature, error) {
	if _, ok := recoveryCodecs[key.Type]; !ok {
		return nil, fmt.Errorf("%w: unsupported key type %d", ErrInvalidSignatureData, key.Type)
	}
	if key.Type != keyCodec.WA && len(key.Data) != keyCodec.SignatureDataSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignatureData, keyCodec.SignatureDataSize, len(key.Data))
	}
	if key.Type == keyCodec.WA && len(key.Data) < keyCodec.SignatureDataSize {
		return nil, fmt.Errorf("%w: webauthn payload shorter than %d bytes", ErrInvalidSignatureData, keyCodec.SignatureDataSize)
	}
	return &Signature{key: key}, nil
}

// FromElliptic builds a canonical signature from a curve-library triple:
// a 65-byte buffer of header byte followed by r and s, each 32 bytes
// big-endian and zero-padded. The header encoding depends on the key family.
func FromElliptic(r, s *big.Int, recoveryParam int, keyType keyCodec.KeyType) (*Signature, error) {
	codec, ok := recoveryCodecs[keyType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported key type %d", ErrInvalidSignatureData, keyType)
	}
	if recoveryParam < 0 || recoveryParam > 3 {
		return nil, fmt.Errorf("%w: recovery param %d out of range", ErrInvalidSignatureData, recoveryParam)
	}
	if r.Sign() < 0 || s.Sign() < 0 || r.BitLen() > 256 || s.BitLen() > 256 {
		return nil, fmt.Errorf("%w: r/s out of range", ErrInvalidSignatureData)
	}

	data := make([]byte, keyCodec.SignatureDataSize)
	data[0] = codec.encode(byte(recoveryParam))
	r.FillBytes(data[1:33])
	s.FillBytes(data[33:65])
	return &Signature{key: keyCodec.Key{Type: keyType, Data: data}}, nil
}

// ToElliptic extracts the curve-library triple back out of the canonical
// payload. The recovery parameter is masked to its two low bits, the only
// bits a verifier needs; FromElliptic followed by ToElliptic reproduces the
// original recoveryParam exactly.
func (s *Signature) ToElliptic() (r *big.Int, sv *big.Int, recoveryParam int) {
	codec := recoveryCodecs[s.key.Type]
	r = new(big.Int).SetBytes(s.key.Data[1:33])
	sv = new(big.Int).SetBytes(s.key.Data[33:65])
	recoveryParam = int(codec.decode(s.key.Data[0]))
	return r, sv, recoveryParam
}

// Key returns the canonical signature payload.
func (s *Signature) Key() keyCodec.Key {
	return s.key
}

// String renders the canonical checksummed textual form.
func (s *Signature) String() (string, error) {
	return keyCodec.SignatureToString(s.key)
}

// Parse reads the canonical checksummed textual form. Malformed text and
// checksum failures surface unchanged from the text codec.
func Parse(text string) (*Signature, error) {
	key, err := keyCodec.StringToSignature(text)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// Verify checks the signature over sha256(message) against a public key.
// WA signatures are verified as plain P-256; authenticator attestation
// metadata is handled outside this core.
func (s *Signature) Verify(message []byte, publicKey keyCodec.Key) (bool, error) {
	digest := sha256.Sum256(message)
	return s.VerifyDigest(digest[:], publicKey)
}

// VerifyDigest checks the signature over an already-computed 32-byte digest.
func (s *Signature) VerifyDigest(digest []byte, publicKey keyCodec.Key) (bool, error) {
	r, sv, _ := s.ToElliptic()
	switch s.key.Type {
	case keyCodec.K1:
		if publicKey.Type != keyCodec.K1 {
			return false, fmt.Errorf("key type mismatch: signature is K1, key is %s", publicKey.Type)
		}
		pub, err := secp256k1.ParsePubKey(publicKey.Data)
		if err != nil {
			return false, fmt.Errorf("parsing K1 public key: %w", err)
		}
		var rs, ss secp256k1.ModNScalar
		if overflow := rs.SetByteSlice(r.Bytes()); overflow {
			return false, nil
		}
		if overflow := ss.SetByteSlice(sv.Bytes()); overflow {
			return false, nil
		}
		return decredEcdsa.NewSignature(&rs, &ss).Verify(digest, pub), nil
	case keyCodec.R1, keyCodec.WA:
		if publicKey.Type != keyCodec.R1 && publicKey.Type != keyCodec.WA {
			return false, fmt.Errorf("key type mismatch: signature is %s, key is %s", s.key.Type, publicKey.Type)
		}
		if len(publicKey.Data) < keyCodec.PublicKeyDataSize {
			return false, fmt.Errorf("invalid %s public key data", publicKey.Type)
		}
		// WA key payloads carry authenticator metadata after the point.
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), publicKey.Data[:keyCodec.PublicKeyDataSize])
		if x == nil {
			return false, errors.New("invalid P-256 public key point")
		}
		pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
		return ecdsa.Verify(pub, digest, r, sv), nil
	}
	return false, fmt.Errorf("unsupported signature type %d", s.key.Type)
}

// RecoverPublicKey recovers the K1 public key that produced this signature
// over sha256(message). Only the secp256k1 family supports recovery here.
func (s *Signature) RecoverPublicKey(message []byte) (keyCodec.Key, error) {
	digest := sha256.Sum256(message)
	return s.RecoverPublicKeyFromDigest(digest[:])
}

// RecoverPublicKeyFromDigest recovers the K1 public key from a 32-byte digest.
func (s *Signature) RecoverPublicKeyFromDigest(digest []byte) (keyCodec.Key, error) {
	if s.key.Type != keyCodec.K1 {
		return keyCodec.Key{}, fmt.Errorf("public key recovery is only supported for K1, got %s", s.key.Type)
	}
	pub, _, err := decredEcdsa.RecoverCompact(s.key.Data, digest)
	if err != nil {
		return keyCodec.Key{}, fmt.Errorf("recovering public key: %w", err)
	}
	return keyCodec.Key{Type: keyCodec.K1, Data: pub.SerializeCompressed()}, nil
}
