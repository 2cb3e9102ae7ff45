// Package chainClient provides the network collaborator for the transaction
// pipeline: a typed interface over the node's chain API plus an HTTP
// implementation. The same client object serves as the default ABI provider,
// authority provider and broadcast capability for the orchestrator.
package chainClient

import (
	"encoding/hex"
	"encoding/json"
)

// ChainInfo is the subset of get_info consumed by the pipeline.
type ChainInfo struct {
	ServerVersion            string `json:"server_version"`
	ChainID                  string `json:"chain_id"`
	HeadBlockNum             uint32 `json:"head_block_num"`
	LastIrreversibleBlockNum uint32 `json:"last_irreversible_block_num"`
	LastIrreversibleBlockID  string `json:"last_irreversible_block_id"`
	HeadBlockID              string `json:"head_block_id"`
	HeadBlockTime            string `json:"head_block_time"`
	HeadBlockProducer        string `json:"head_block_producer"`
}

// Block is the subset of a get_block response needed for TAPoS.
type Block struct {
	Timestamp      string `json:"timestamp"`
	Producer       string `json:"producer"`
	ID             string `json:"id"`
	BlockNum       uint32 `json:"block_num"`
	RefBlockPrefix uint32 `json:"ref_block_prefix"`
}

// BlockHeaderState is the subset of a get_block_header_state response needed
// for TAPoS. The endpoint may be unsupported or the block pruned; callers
// fall back to GetBlock in that case.
type BlockHeaderState struct {
	ID       string `json:"id"`
	BlockNum uint32 `json:"block_num"`
	Header   struct {
		Timestamp string `json:"timestamp"`
	} `json:"header"`
}

// RawAbi is an account's ABI as raw schema bytes. The node returns the abi
// field base64-encoded; encoding/json decodes it transparently.
type RawAbi struct {
	AccountName string `json:"account_name"`
	CodeHash    string `json:"code_hash"`
	AbiHash     string `json:"abi_hash"`
	Abi         []byte `json:"abi"`
}

// Authorization names an actor and the permission level it signs with.
type Authorization struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

// Extension is a tagged opaque transaction extension.
type Extension struct {
	Type uint16 `json:"type"`
	Data string `json:"data"`
}

// Action is a single contract call. Data holds the structured payload before
// serialization; HexData holds the serialized hex form afterwards. The
// orchestrator never inspects Data's internal shape.
type Action struct {
	Account       string          `json:"account"`
	Name          string          `json:"name"`
	Authorization []Authorization `json:"authorization"`
	Data          any             `json:"data,omitempty"`
	HexData       string          `json:"hex_data,omitempty"`
}

// Transaction is the full transaction envelope. The TAPoS fields are pointers
// so an absent field is distinguishable from a zero value: all three must be
// present before signing, and partial presence is an error.
type Transaction struct {
	Expiration            *string     `json:"expiration,omitempty"`
	RefBlockNum           *uint32     `json:"ref_block_num,omitempty"`
	RefBlockPrefix        *uint32     `json:"ref_block_prefix,omitempty"`
	MaxNetUsageWords      uint32      `json:"max_net_usage_words"`
	MaxCpuUsageMs         uint8       `json:"max_cpu_usage_ms"`
	DelaySec              uint32      `json:"delay_sec"`
	ContextFreeActions    []Action    `json:"context_free_actions"`
	Actions               []Action    `json:"actions"`
	TransactionExtensions []Extension `json:"transaction_extensions"`

	// ContextFreeData items are serialized separately from the transaction
	// and bound to it through the signing digest.
	ContextFreeData [][]byte `json:"-"`
}

// Clone returns a copy of the transaction suitable for field merging. Slices
// are shared; only header fields are ever rewritten by the pipeline.
func (t *Transaction) Clone() *Transaction {
	c := *t
	return &c
}

// HasRequiredTaposFields reports whether expiration, ref_block_num and
// ref_block_prefix are all present.
func (t *Transaction) HasRequiredTaposFields() bool {
	return t.Expiration != nil && t.RefBlockNum != nil && t.RefBlockPrefix != nil
}

// GetRequiredKeysArgs is the authority-resolution request: the transaction
// and the keys the signature provider can sign with.
type GetRequiredKeysArgs struct {
	Transaction   *Transaction `json:"transaction"`
	AvailableKeys []string     `json:"available_keys"`
}

// PushTransactionArgs is a fully signed transaction ready for broadcast.
// Compression is 1 when both packed buffers are zlib-deflated.
type PushTransactionArgs struct {
	Signatures            []string
	Compression           uint8
	PackedContextFreeData []byte
	PackedTrx             []byte
}

// MarshalJSON encodes the packed buffers as hex, the node's wire convention.
func (a PushTransactionArgs) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Signatures            []string `json:"signatures"`
		Compression           uint8    `json:"compression"`
		PackedContextFreeData string   `json:"packed_context_free_data"`
		PackedTrx             string   `json:"packed_trx"`
	}{
		Signatures:            a.Signatures,
		Compression:           a.Compression,
		PackedContextFreeData: hex.EncodeToString(a.PackedContextFreeData),
		PackedTrx:             hex.EncodeToString(a.PackedTrx),
	})
}

// PushTransactionResponse is the node's receipt for an accepted transaction.
type PushTransactionResponse struct {
	TransactionID string         `json:"transaction_id"`
	Processed     map[string]any `json:"processed"`
}
