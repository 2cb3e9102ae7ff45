package signatureProvider

import (
	"context"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decredEcdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"go.uber.org/zap"

	"github.com/eosforge/txcore-go/pkg/keyCodec"
	"github.com/eosforge/txcore-go/pkg/signature"
)

// kmsAPI is the narrow KMS surface this signer needs; *kms.KMS satisfies it.
type kmsAPI interface {
	SignWithContext(ctx aws.Context, input *kms.SignInput, opts ...request.Option) (*kms.SignOutput, error)
	GetPublicKeyWithContext(ctx aws.Context, input *kms.GetPublicKeyInput, opts ...request.Option) (*kms.GetPublicKeyOutput, error)
}

// AWSKMSSigner implements ISignatureProvider against an AWS KMS key on the
// secp256k1 curve. The private key never leaves KMS; each signature is
// retried until it satisfies the chain's canonical-form rule, which KMS's
// randomized nonces make a short loop in practice.
type AWSKMSSigner struct {
	kmsClient    kmsAPI
	keyID        string
	publicKey    keyCodec.Key
	publicKeyStr string
	logger       *zap.Logger
}

// NewAWSKMSSigner creates an AWSKMSSigner with the specified KMS key ID and
// AWS region. This constructor establishes a connection to AWS KMS and
// derives the canonical public key from the key material held there.
//
// Parameters:
//   - ctx: Context for the initial public key fetch
//   - keyID: The AWS KMS key ID or ARN for signing operations
//   - region: The AWS region where the KMS key is located
//   - logger: The zap logger
//
// Returns:
//   - *AWSKMSSigner: A new AWS KMS signer instance
//   - error: An error if the AWS session cannot be created or the key is invalid
func NewAWSKMSSigner(ctx context.Context, keyID, region string, logger *zap.Logger) (*AWSKMSSigner, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewAWSKMSSignerWithClient(ctx, kms.New(sess), keyID, logger)
}

// NewAWSKMSSignerWithClient creates an AWSKMSSigner over an existing KMS
// client. Used directly in tests.
func NewAWSKMSSignerWithClient(ctx context.Context, client kmsAPI, keyID string, logger *zap.Logger) (*AWSKMSSigner, error) {
	publicKey, err := getPublicKeyFromKMS(ctx, client, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key from KMS key: %w", err)
	}
	publicKeyStr, err := keyCodec.PublicKeyToString(publicKey)
	if err != nil {
		return nil, err
	}
	return &AWSKMSSigner{
		kmsClient:    client,
		keyID:        keyID,
		publicKey:    publicKey,
		publicKeyStr: publicKeyStr,
		logger:       logger,
	}, nil
}

// GetAvailableKeys returns the single public key backing the KMS key.
func (a *AWSKMSSigner) GetAvailableKeys(ctx context.Context) ([]string, error) {
	return []string{a.publicKeyStr}, nil
}

// Sign signs the transaction digest with the KMS key. The required key set
// must be the KMS key itself; this provider holds exactly one key.
func (a *AWSKMSSigner) Sign(ctx context.Context, args *SignArgs) (*SignResponse, error) {
	digest, err := SigDigest(args.ChainID, args.SerializedTransaction, args.SerializedContextFreeData)
	if err != nil {
		return nil, err
	}

	for _, required := range args.RequiredKeys {
		parsed, err := keyCodec.StringToPublicKey(required)
		if err != nil {
			return nil, fmt.Errorf("parsing required key %q: %w", required, err)
		}
		canonical, err := keyCodec.PublicKeyToString(parsed)
		if err != nil {
			return nil, err
		}
		if canonical != a.publicKeyStr {
			return nil, fmt.Errorf("no private key available for %s", required)
		}
	}

	sig, err := a.signDigestCanonical(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("KMS signing failed: %w", err)
	}
	text, err := sig.String()
	if err != nil {
		return nil, err
	}

	a.logger.Debug("signed transaction with KMS",
		zap.String("keyID", a.keyID),
		zap.Int("serializedSize", len(args.SerializedTransaction)),
	)

	return &SignResponse{
		Signatures:                []string{text},
		SerializedTransaction:     args.SerializedTransaction,
		SerializedContextFreeData: args.SerializedContextFreeData,
	}, nil
}

func (a *AWSKMSSigner) signDigestCanonical(ctx context.Context, digest []byte) (*signature.Signature, error) {
	for attempt := 0; attempt < maxCanonicalAttempts; attempt++ {
		out, err := a.kmsClient.SignWithContext(ctx, &kms.SignInput{
			KeyId:            aws.String(a.keyID),
			Message:          digest,
			MessageType:      aws.String(kms.MessageTypeDigest),
			SigningAlgorithm: aws.String(kms.SigningAlgorithmSpecEcdsaSha256),
		})
		if err != nil {
			return nil, err
		}
		compact, err := a.compactFromDER(out.Signature, digest)
		if err != nil {
			return nil, err
		}
		if !isCanonicalK1(compact) {
			continue
		}
		return signature.New(keyCodec.Key{Type: keyCodec.K1, Data: compact})
	}
	return nil, errors.New("couldn't produce a canonical signature")
}

// compactFromDER converts a DER signature from KMS into the 65-byte compact
// recoverable form. KMS does not return a recovery id, so it is found by
// recovering each candidate and comparing against the KMS public key.
func (a *AWSKMSSigner) compactFromDER(der, digest []byte) ([]byte, error) {
	r, sv, err := parseDERSignature(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KMS signature: %w", err)
	}

	// KMS does not normalize s; the chain rejects high-s encodings
	n := secp256k1.S256().N
	if sv.Cmp(new(big.Int).Rsh(n, 1)) > 0 {
		sv = new(big.Int).Sub(n, sv)
	}

	compact := make([]byte, 65)
	r.FillBytes(compact[1:33])
	sv.FillBytes(compact[33:65])

	for recoveryParam := byte(0); recoveryParam < 4; recoveryParam++ {
		compact[0] = 27 + recoveryParam + 4
		recovered, _, err := decredEcdsa.RecoverCompact(compact, digest)
		if err != nil {
			continue
		}
		if string(recovered.SerializeCompressed()) == string(a.publicKey.Data) {
			return compact, nil
		}
	}
	return nil, errors.New("failed to determine recovery ID")
}

// parseDERSignature parses an ASN.1 DER encoded ECDSA signature into its
// r and s values.
func parseDERSignature(der []byte) (*big.Int, *big.Int, error) {
	var sig struct {
		R, S *big.Int
	}
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, nil, err
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return nil, nil, errors.New("signature values must be positive")
	}
	return sig.R, sig.S, nil
}

// getPublicKeyFromKMS fetches the DER-encoded public key from KMS and
// converts it to the canonical compressed form.
func getPublicKeyFromKMS(ctx context.Context, client kmsAPI, keyID string) (keyCodec.Key, error) {
	out, err := client.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyID),
	})
	if err != nil {
		return keyCodec.Key{}, fmt.Errorf("failed to get public key from KMS: %w", err)
	}

	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(out.PublicKey, &spki); err != nil {
		return keyCodec.Key{}, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(spki.PublicKey.Bytes)
	if err != nil {
		return keyCodec.Key{}, fmt.Errorf("failed to parse public key point: %w", err)
	}
	return keyCodec.Key{Type: keyCodec.K1, Data: pub.SerializeCompressed()}, nil
}
