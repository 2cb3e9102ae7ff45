package signatureProvider

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"go.uber.org/zap"

	"github.com/eosforge/txcore-go/pkg/keyCodec"
	"github.com/eosforge/txcore-go/pkg/signature"
)

// maxCanonicalAttempts bounds the nonce search for canonical K1 signatures.
const maxCanonicalAttempts = 100

// InMemorySigner implements ISignatureProvider with raw private keys held in
// process memory. Intended for development and server-side services that
// manage their own key custody; K1 and R1 families are supported.
type InMemorySigner struct {
	logger *zap.Logger
	// keyed by the canonical public key string
	keys []*keyEntry
}

type keyEntry struct {
	publicKeyStr string
	keyType      keyCodec.KeyType
	k1           *secp256k1.PrivateKey
	r1           *ecdsa.PrivateKey
}

// NewInMemorySigner creates a signer from textual private keys in either the
// PVT_<type>_ or legacy WIF form.
//
// Parameters:
//   - privateKeys: The private keys to sign with
//   - logger: The zap logger
//
// Returns:
//   - *InMemorySigner: A new signer instance
//   - error: An error if any key fails to parse
func NewInMemorySigner(privateKeys []string, logger *zap.Logger) (*InMemorySigner, error) {
	s := &InMemorySigner{logger: logger}
	for _, text := range privateKeys {
		key, err := keyCodec.StringToPrivateKey(text)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		entry := &keyEntry{keyType: key.Type}
		switch key.Type {
		case keyCodec.K1:
			entry.k1 = secp256k1.PrivKeyFromBytes(key.Data)
			pub := keyCodec.Key{Type: keyCodec.K1, Data: entry.k1.PubKey().SerializeCompressed()}
			entry.publicKeyStr, err = keyCodec.PublicKeyToString(pub)
		case keyCodec.R1:
			entry.r1, err = p256KeyFromBytes(key.Data)
			if err != nil {
				return nil, fmt.Errorf("parsing R1 private key: %w", err)
			}
			pub := keyCodec.Key{
				Type: keyCodec.R1,
				Data: elliptic.MarshalCompressed(elliptic.P256(), entry.r1.X, entry.r1.Y),
			}
			entry.publicKeyStr, err = keyCodec.PublicKeyToString(pub)
		default:
			return nil, fmt.Errorf("unsupported private key type %s", key.Type)
		}
		if err != nil {
			return nil, err
		}
		s.keys = append(s.keys, entry)
	}
	return s, nil
}

func p256KeyFromBytes(data []byte) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(data)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("scalar out of range")
	}
	x, y := curve.ScalarBaseMult(data)
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}, nil
}

// GetAvailableKeys returns the public keys this signer holds, in the order
// the private keys were supplied.
func (s *InMemorySigner) GetAvailableKeys(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(s.keys))
	for _, entry := range s.keys {
		out = append(out, entry.publicKeyStr)
	}
	return out, nil
}

// Sign signs the transaction digest with each required key. The incoming key
// strings may be in the legacy form; matching is done on the canonical form.
func (s *InMemorySigner) Sign(ctx context.Context, args *SignArgs) (*SignResponse, error) {
	digest, err := SigDigest(args.ChainID, args.SerializedTransaction, args.SerializedContextFreeData)
	if err != nil {
		return nil, err
	}

	signatures := make([]string, 0, len(args.RequiredKeys))
	for _, required := range args.RequiredKeys {
		entry, err := s.lookup(required)
		if err != nil {
			return nil, err
		}
		var sig *signature.Signature
		switch entry.keyType {
		case keyCodec.K1:
			sig, err = signCanonicalK1(entry.k1, digest)
		case keyCodec.R1:
			sig, err = signR1(entry.r1, digest)
		}
		if err != nil {
			return nil, fmt.Errorf("signing with %s: %w", required, err)
		}
		text, err := sig.String()
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, text)
	}

	s.logger.Debug("signed transaction",
		zap.Int("signatures", len(signatures)),
		zap.Int("serializedSize", len(args.SerializedTransaction)),
	)

	return &SignResponse{
		Signatures:                signatures,
		SerializedTransaction:     args.SerializedTransaction,
		SerializedContextFreeData: args.SerializedContextFreeData,
	}, nil
}

func (s *InMemorySigner) lookup(publicKey string) (*keyEntry, error) {
	parsed, err := keyCodec.StringToPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing required key %q: %w", publicKey, err)
	}
	canonical, err := keyCodec.PublicKeyToString(parsed)
	if err != nil {
		return nil, err
	}
	for _, entry := range s.keys {
		if entry.publicKeyStr == canonical {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("no private key available for %s", publicKey)
}

// signCanonicalK1 produces a compact recoverable secp256k1 signature whose
// r and s encodings satisfy the chain's canonical-form rule. The RFC 6979
// nonce is re-derived with an incremented iteration count until a canonical
// signature comes out.
func signCanonicalK1(priv *secp256k1.PrivateKey, digest []byte) (*signature.Signature, error) {
	privBytes := priv.Serialize()

	var e secp256k1.ModNScalar
	e.SetByteSlice(digest)

	for attempt := uint32(0); attempt < maxCanonicalAttempts; attempt++ {
		k := secp256k1.NonceRFC6979(privBytes, digest, nil, nil, attempt)
		compact, ok := signK1WithNonce(&priv.Key, &e, k)
		k.Zero()
		if !ok || !isCanonicalK1(compact) {
			continue
		}
		return signature.New(keyCodec.Key{Type: keyCodec.K1, Data: compact})
	}
	return nil, errors.New("couldn't produce a canonical signature")
}

// signK1WithNonce runs the ECDSA signing equation with an explicit nonce and
// returns the 65-byte compact form, header first.
func signK1WithNonce(d, e, k *secp256k1.ModNScalar) ([]byte, bool) {
	var R secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &R)
	R.ToAffine()

	var xBytes [32]byte
	R.X.PutBytes(&xBytes)
	var r secp256k1.ModNScalar
	overflow := r.SetBytes(&xBytes)
	if r.IsZero() {
		return nil, false
	}

	// recovery param: bit 0 is the parity of R.y, bit 1 flags an r overflow
	recoveryParam := byte(overflow << 1)
	if R.Y.IsOdd() {
		recoveryParam |= 1
	}

	kInv := new(secp256k1.ModNScalar).InverseValNonConst(k)
	sv := new(secp256k1.ModNScalar).Mul2(d, &r).Add(e).Mul(kInv)
	if sv.IsZero() {
		return nil, false
	}
	if sv.IsOverHalfOrder() {
		sv.Negate()
		recoveryParam ^= 1
	}

	compact := make([]byte, 65)
	compact[0] = 27 + recoveryParam + 4 // compressed-key compact header
	rb := r.Bytes()
	copy(compact[1:33], rb[:])
	sb := sv.Bytes()
	copy(compact[33:65], sb[:])
	return compact, true
}

// isCanonicalK1 applies the chain's canonical-form rule to a compact
// signature: neither r nor s may have its high bit set or an unnecessary
// leading zero byte.
func isCanonicalK1(compact []byte) bool {
	return compact[1]&0x80 == 0 &&
		!(compact[1] == 0 && compact[2]&0x80 == 0) &&
		compact[33]&0x80 == 0 &&
		!(compact[33] == 0 && compact[34]&0x80 == 0)
}

// signR1 signs with P-256 and finds the recovery parameter by recovering
// candidate public keys and comparing against the signer's own.
func signR1(priv *ecdsa.PrivateKey, digest []byte) (*signature.Signature, error) {
	r, sv, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, err
	}

	// low-s normalization flips which candidate key the signature recovers to
	n := priv.Curve.Params().N
	if sv.Cmp(new(big.Int).Rsh(n, 1)) > 0 {
		sv = new(big.Int).Sub(n, sv)
	}

	for recoveryParam := 0; recoveryParam < 4; recoveryParam++ {
		candidate, err := recoverP256(digest, r, sv, recoveryParam)
		if err != nil {
			continue
		}
		if candidate.X.Cmp(priv.X) == 0 && candidate.Y.Cmp(priv.Y) == 0 {
			return signature.FromElliptic(r, sv, recoveryParam, keyCodec.R1)
		}
	}
	return nil, errors.New("couldn't determine recovery parameter for P-256 signature")
}

// recoverP256 reconstructs the candidate public key a (r, s, recoveryParam)
// triple recovers to on P-256.
func recoverP256(digest []byte, r, sv *big.Int, recoveryParam int) (*ecdsa.PublicKey, error) {
	curve := elliptic.P256()
	params := curve.Params()

	// x of the ephemeral point; bit 1 of the recovery param selects r + N
	x := new(big.Int).Set(r)
	if recoveryParam&2 != 0 {
		x.Add(x, params.N)
	}
	if x.Cmp(params.P) >= 0 {
		return nil, errors.New("invalid x candidate")
	}

	// y² = x³ - 3x + b mod p; bit 0 selects the parity of y
	y2 := new(big.Int).Exp(x, big.NewInt(3), params.P)
	threeX := new(big.Int).Mul(x, big.NewInt(3))
	y2.Sub(y2, threeX)
	y2.Add(y2, params.B)
	y2.Mod(y2, params.P)
	y := new(big.Int).ModSqrt(y2, params.P)
	if y == nil {
		return nil, errors.New("x candidate is not on the curve")
	}
	if y.Bit(0) != uint(recoveryParam&1) {
		y.Sub(params.P, y)
	}

	// Q = r⁻¹ (s·R - e·G)
	eInt := hashToInt(digest, params.N)
	rInv := new(big.Int).ModInverse(r, params.N)
	if rInv == nil {
		return nil, errors.New("r is not invertible")
	}
	sRx, sRy := curve.ScalarMult(x, y, sv.Bytes())
	eGx, eGy := curve.ScalarBaseMult(eInt.Bytes())
	negY := new(big.Int).Sub(params.P, eGy)
	sumX, sumY := curve.Add(sRx, sRy, eGx, negY)
	qx, qy := curve.ScalarMult(sumX, sumY, rInv.Bytes())
	if qx.Sign() == 0 && qy.Sign() == 0 {
		return nil, errors.New("recovered point at infinity")
	}
	return &ecdsa.PublicKey{Curve: curve, X: qx, Y: qy}, nil
}

func hashToInt(digest []byte, n *big.Int) *big.Int {
	orderBits := n.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(digest) > orderBytes {
		digest = digest[:orderBytes]
	}
	e := new(big.Int).SetBytes(digest)
	if excess := len(digest)*8 - orderBits; excess > 0 {
		e.Rsh(e, uint(excess))
	}
	return e
}
