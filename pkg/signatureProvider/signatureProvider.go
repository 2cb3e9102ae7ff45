// Package signatureProvider defines the signing collaborator for the
// transaction pipeline and two implementations: an in-memory signer holding
// raw private keys and an AWS KMS-backed signer. A provider may legitimately
// re-encode the transaction it signs; the orchestrator adopts the returned
// bytes wholesale.
package signatureProvider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// BinaryAbi pairs an account with its raw ABI bytes so signers can display
// or validate what they are signing.
type BinaryAbi struct {
	AccountName string
	Abi         []byte
}

// SignArgs is a signing request. SerializedContextFreeData is nil when the
// transaction carries no context-free data.
type SignArgs struct {
	ChainID                   string
	RequiredKeys              []string
	SerializedTransaction     []byte
	SerializedContextFreeData []byte
	Abis                      []BinaryAbi
}

// SignResponse carries the signatures and the exact bytes that were signed.
// The returned buffers replace the caller's own: a hardware signer may have
// normalized the encoding, and the signatures are only valid over its bytes.
type SignResponse struct {
	Signatures                []string
	SerializedTransaction     []byte
	SerializedContextFreeData []byte
}

// ISignatureProvider obtains signatures for serialized transactions.
// Implementations hold or proxy key material; the pipeline never sees it.
type ISignatureProvider interface {
	// GetAvailableKeys returns the public keys this provider can sign with
	GetAvailableKeys(ctx context.Context) ([]string, error)
	// Sign signs a serialized transaction for each required key
	Sign(ctx context.Context, args *SignArgs) (*SignResponse, error)
}

// SigDigest computes the signing digest: sha256 over the chain id, the
// serialized transaction, and either the sha256 of the context-free data or
// 32 zero bytes when there is none.
func SigDigest(chainID string, serializedTransaction, serializedContextFreeData []byte) ([]byte, error) {
	chainBytes, err := hex.DecodeString(chainID)
	if err != nil {
		return nil, fmt.Errorf("invalid chain id %q: %w", chainID, err)
	}
	h := sha256.New()
	h.Write(chainBytes)
	h.Write(serializedTransaction)
	if len(serializedContextFreeData) > 0 {
		cfdHash := sha256.Sum256(serializedContextFreeData)
		h.Write(cfdHash[:])
	} else {
		h.Write(make([]byte, 32))
	}
	return h.Sum(nil), nil
}
