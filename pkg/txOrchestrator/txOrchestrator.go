// Package txOrchestrator coordinates the full client-side transaction
// pipeline: chain id resolution, TAPoS reference-block selection, per-account
// ABI and contract-descriptor caching, action and envelope serialization, the
// signing round-trip, and optionally compressed broadcast.
package txOrchestrator

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eosforge/txcore-go/pkg/abiCache"
	"github.com/eosforge/txcore-go/pkg/abiSerializer"
	"github.com/eosforge/txcore-go/pkg/chainClient"
	"github.com/eosforge/txcore-go/pkg/signatureProvider"
	"github.com/eosforge/txcore-go/pkg/tapos"
	"github.com/eosforge/txcore-go/pkg/util"
)

var (
	// ErrConflictingTaposConfig is returned when both reference-block
	// selection strategies are requested at once
	ErrConflictingTaposConfig = errors.New("use either blocksBehind or useLastIrreversible to calculate TAPoS, not both")
	// ErrMissingTaposFields is returned when the transaction lacks TAPoS
	// fields and the configuration cannot generate them
	ErrMissingTaposFields = errors.New("required configuration or TAPoS fields are not present")
)

// AuthorityProvider resolves which of the available keys a transaction's
// declared authorizations require. The chain client is the default
// implementation.
type AuthorityProvider interface {
	GetRequiredKeys(ctx context.Context, args chainClient.GetRequiredKeysArgs) ([]string, error)
}

// OrchestratorConfig holds the optional capabilities and settings for an
// Orchestrator. Absent providers default to the chain client, which serves
// as the single adapter implementing every capability; the resolution
// happens once at construction.
type OrchestratorConfig struct {
	// ChainID pins the target chain; resolved lazily from get_info when empty
	ChainID string
	// RequiredKeys overrides authority resolution for every transact call
	RequiredKeys []string
	// AbiProvider overrides the raw-ABI source
	AbiProvider abiCache.AbiProvider
	// AuthorityProvider overrides required-key resolution
	AuthorityProvider AuthorityProvider
}

// TransactConfig controls a single Transact call.
type TransactConfig struct {
	// Broadcast submits the signed transaction; when false the signed
	// tuple is returned without contacting the transport
	Broadcast bool
	// Sign runs the signing round-trip
	Sign bool
	// Compress deflates both packed buffers before broadcast
	Compress bool
	// RequiredKeys overrides authority resolution for this call
	RequiredKeys []string
	// BlocksBehind selects the reference block relative to head; mutually
	// exclusive with UseLastIrreversible
	BlocksBehind *uint32
	// UseLastIrreversible selects the last irreversible block
	UseLastIrreversible bool
	// ExpireSeconds sets the validity window for generated TAPoS fields
	ExpireSeconds uint32
}

// DefaultTransactConfig returns the standard sign-and-broadcast configuration.
func DefaultTransactConfig() *TransactConfig {
	return &TransactConfig{Broadcast: true, Sign: true}
}

// TransactResult is the outcome of a Transact call. Processed is nil when
// broadcast was disabled.
type TransactResult struct {
	Signatures                []string
	SerializedTransaction     []byte
	SerializedContextFreeData []byte
	Processed                 *chainClient.PushTransactionResponse
}

// Orchestrator composes the pipeline's collaborators. It owns its caches
// exclusively; no other component mutates them. Once Transact is invoked it
// runs to completion or failure, with no retry at any stage.
type Orchestrator struct {
	client            chainClient.IChainClient
	abiCache          *abiCache.Cache
	taposGenerator    *tapos.Generator
	signatureProvider signatureProvider.ISignatureProvider
	authorityProvider AuthorityProvider
	requiredKeys      []string
	txTypes           map[string]*abiSerializer.Type
	logger            *zap.Logger

	mu      sync.Mutex
	chainID string
}

// NewOrchestrator creates an Orchestrator over a chain client and a
// signature provider.
//
// Parameters:
//   - cfg: Optional capabilities and settings; nil uses defaults throughout
//   - client: The chain transport, also the default ABI/authority provider
//   - sigProvider: The signing collaborator
//   - logger: The zap logger
//
// Returns:
//   - *Orchestrator: A new orchestrator instance
//   - error: An error if the built-in transaction types cannot be constructed
func NewOrchestrator(
	cfg *OrchestratorConfig,
	client chainClient.IChainClient,
	sigProvider signatureProvider.ISignatureProvider,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if cfg == nil {
		cfg = &OrchestratorConfig{}
	}
	txTypes, err := abiSerializer.TransactionTypes()
	if err != nil {
		return nil, fmt.Errorf("building transaction types: %w", err)
	}

	var abiProvider abiCache.AbiProvider = client
	if cfg.AbiProvider != nil {
		abiProvider = cfg.AbiProvider
	}
	var authorityProvider AuthorityProvider = client
	if cfg.AuthorityProvider != nil {
		authorityProvider = cfg.AuthorityProvider
	}

	return &Orchestrator{
		client:            client,
		abiCache:          abiCache.NewCache(abiProvider, logger),
		taposGenerator:    tapos.NewGenerator(client, logger),
		signatureProvider: sigProvider,
		authorityProvider: authorityProvider,
		requiredKeys:      cfg.RequiredKeys,
		txTypes:           txTypes,
		chainID:           cfg.ChainID,
		logger:            logger,
	}, nil
}

// AbiCache exposes the orchestrator's ABI cache for pre-warming and
// inspection.
func (o *Orchestrator) AbiCache() *abiCache.Cache {
	return o.abiCache
}

// Transact assembles, serializes, signs and optionally broadcasts a
// transaction. Configuration errors are detected before any network call.
func (o *Orchestrator) Transact(ctx context.Context, tx *chainClient.Transaction, cfg *TransactConfig) (*TransactResult, error) {
	if cfg == nil {
		cfg = DefaultTransactConfig()
	}
	if cfg.BlocksBehind != nil && cfg.UseLastIrreversible {
		return nil, ErrConflictingTaposConfig
	}

	chainID, info, err := o.resolveChainID(ctx)
	if err != nil {
		return nil, err
	}

	if !tx.HasRequiredTaposFields() {
		if (cfg.BlocksBehind != nil || cfg.UseLastIrreversible) && cfg.ExpireSeconds > 0 {
			opts := &tapos.Options{
				UseLastIrreversible: cfg.UseLastIrreversible,
				ExpireSeconds:       cfg.ExpireSeconds,
			}
			if cfg.BlocksBehind != nil {
				opts.BlocksBehind = *cfg.BlocksBehind
			}
			tx, err = o.taposGenerator.Generate(ctx, info, tx, opts)
			if err != nil {
				return nil, err
			}
		}
		if !tx.HasRequiredTaposFields() {
			return nil, ErrMissingTaposFields
		}
	}

	abis, err := o.GetTransactionAbis(ctx, tx)
	if err != nil {
		return nil, err
	}

	tx, err = o.serializeActions(ctx, tx)
	if err != nil {
		return nil, err
	}
	serializedTx, err := o.SerializeTransaction(tx)
	if err != nil {
		return nil, err
	}
	serializedCFD, err := SerializeContextFreeData(tx.ContextFreeData)
	if err != nil {
		return nil, err
	}

	result := &TransactResult{
		SerializedTransaction:     serializedTx,
		SerializedContextFreeData: serializedCFD,
	}

	if cfg.Sign {
		availableKeys, err := o.signatureProvider.GetAvailableKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching available keys: %w", err)
		}
		requiredKeys := cfg.RequiredKeys
		if requiredKeys == nil {
			requiredKeys = o.requiredKeys
		}
		if requiredKeys == nil {
			requiredKeys, err = o.authorityProvider.GetRequiredKeys(ctx, chainClient.GetRequiredKeysArgs{
				Transaction:   tx,
				AvailableKeys: availableKeys,
			})
			if err != nil {
				return nil, fmt.Errorf("resolving required keys: %w", err)
			}
		}

		resp, err := o.signatureProvider.Sign(ctx, &signatureProvider.SignArgs{
			ChainID:                   chainID,
			RequiredKeys:              requiredKeys,
			SerializedTransaction:     serializedTx,
			SerializedContextFreeData: serializedCFD,
			Abis:                      abis,
		})
		if err != nil {
			return nil, fmt.Errorf("signing transaction: %w", err)
		}

		// The provider's bytes replace the locally computed ones wholesale:
		// a hardware signer may re-encode the transaction, and its
		// signatures are only valid over its own encoding.
		if !bytes.Equal(resp.SerializedTransaction, serializedTx) {
			o.logger.Debug("signature provider re-encoded transaction",
				zap.Int("localSize", len(serializedTx)),
				zap.Int("providerSize", len(resp.SerializedTransaction)),
			)
		}
		result.Signatures = resp.Signatures
		result.SerializedTransaction = resp.SerializedTransaction
		result.SerializedContextFreeData = resp.SerializedContextFreeData
	}

	if !cfg.Broadcast {
		return result, nil
	}

	processed, err := o.PushSignedTransaction(ctx, result.Signatures, result.SerializedTransaction, result.SerializedContextFreeData, cfg.Compress)
	if err != nil {
		return nil, err
	}
	result.Processed = processed
	return result, nil
}

// resolveChainID returns the cached chain id, fetching and caching it from
// chain info on first use. The fetched info is returned so the TAPoS
// generator can reuse it within the same call.
func (o *Orchestrator) resolveChainID(ctx context.Context) (string, *chainClient.ChainInfo, error) {
	o.mu.Lock()
	chainID := o.chainID
	o.mu.Unlock()
	if chainID != "" {
		return chainID, nil, nil
	}

	info, err := o.client.GetInfo(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("fetching chain info: %w", err)
	}
	o.mu.Lock()
	o.chainID = info.ChainID
	o.mu.Unlock()
	o.logger.Debug("resolved chain id", zap.String("chainId", info.ChainID))
	return info.ChainID, info, nil
}

// GetTransactionAbis resolves the unique {account, raw abi} pairs referenced
// across the transaction's context-free actions and actions. Fetches for
// distinct accounts run concurrently behind an all-or-nothing join: any
// failure aborts the whole group. The result order is unspecified.
func (o *Orchestrator) GetTransactionAbis(ctx context.Context, tx *chainClient.Transaction) ([]signatureProvider.BinaryAbi, error) {
	accounts := o.uniqueAccounts(tx)
	out := make([]signatureProvider.BinaryAbi, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			cached, err := o.abiCache.GetCachedAbi(gctx, account, false)
			if err != nil {
				return err
			}
			out[i] = signatureProvider.BinaryAbi{AccountName: account, Abi: cached.RawAbi}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) uniqueAccounts(tx *chainClient.Transaction) []string {
	all := append(append([]chainClient.Action{}, tx.ContextFreeActions...), tx.Actions...)
	return util.Unique(util.Map(all, func(a chainClient.Action, _ uint64) string {
		return a.Account
	}))
}

// serializeActions converts every action's structured payload into its hex
// wire form using per-account contract descriptors, fetched concurrently
// with the same all-or-nothing barrier as the ABI fan-out.
func (o *Orchestrator) serializeActions(ctx context.Context, tx *chainClient.Transaction) (*chainClient.Transaction, error) {
	accounts := o.uniqueAccounts(tx)
	contracts := make(map[string]*abiCache.Contract, len(accounts))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			contract, err := o.abiCache.GetContract(gctx, account, false)
			if err != nil {
				return err
			}
			mu.Lock()
			contracts[account] = contract
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	serialized := tx.Clone()
	var err error
	serialized.ContextFreeActions, err = serializeActionList(contracts, tx.ContextFreeActions)
	if err != nil {
		return nil, err
	}
	serialized.Actions, err = serializeActionList(contracts, tx.Actions)
	if err != nil {
		return nil, err
	}
	return serialized, nil
}

func serializeActionList(contracts map[string]*abiCache.Contract, actions []chainClient.Action) ([]chainClient.Action, error) {
	out := make([]chainClient.Action, 0, len(actions))
	for _, action := range actions {
		contract := contracts[action.Account]
		actionType, ok := contract.Actions[action.Name]
		if !ok {
			return nil, fmt.Errorf("unknown action %s in contract %s", action.Name, action.Account)
		}
		hexData, err := abiSerializer.SerializeActionData(actionType, action.Data)
		if err != nil {
			return nil, fmt.Errorf("serializing data of action %s::%s: %w", action.Account, action.Name, err)
		}
		out = append(out, chainClient.Action{
			Account:       action.Account,
			Name:          action.Name,
			Authorization: action.Authorization,
			Data:          hexData,
			HexData:       hexData,
		})
	}
	return out, nil
}

// SerializeTransaction serializes the full transaction envelope. Usage
// limits default to zero and absent lists to empty; the TAPoS fields must
// already be present.
func (o *Orchestrator) SerializeTransaction(tx *chainClient.Transaction) ([]byte, error) {
	if !tx.HasRequiredTaposFields() {
		return nil, ErrMissingTaposFields
	}
	txType, err := abiSerializer.GetType(o.txTypes, "transaction")
	if err != nil {
		return nil, err
	}
	buf := abiSerializer.NewSerialBuffer(nil)
	if err := txType.Serialize(buf, transactionToValue(tx)); err != nil {
		return nil, fmt.Errorf("serializing transaction: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeTransaction decodes serialized envelope bytes back into a
// transaction with hex action data.
func (o *Orchestrator) DeserializeTransaction(data []byte) (*chainClient.Transaction, error) {
	txType, err := abiSerializer.GetType(o.txTypes, "transaction")
	if err != nil {
		return nil, err
	}
	buf := abiSerializer.NewSerialBuffer(data)
	value, err := txType.Deserialize(buf)
	if err != nil {
		return nil, fmt.Errorf("deserializing transaction: %w", err)
	}
	return transactionFromValue(value)
}

// SerializeContextFreeData encodes context-free data as a varuint item count
// followed by each item as length-prefixed bytes. Absent or empty input
// yields no buffer at all, never an empty one: the signing digest treats the
// two cases differently.
func SerializeContextFreeData(data [][]byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	buf := abiSerializer.NewSerialBuffer(nil)
	buf.PushVaruint32(uint32(len(data)))
	for _, item := range data {
		buf.PushBytes(item)
	}
	return buf.Bytes(), nil
}

// PushSignedTransaction submits an already signed transaction, deflating
// both packed buffers independently when compression is requested.
func (o *Orchestrator) PushSignedTransaction(
	ctx context.Context,
	signatures []string,
	serializedTransaction []byte,
	serializedContextFreeData []byte,
	compress bool,
) (*chainClient.PushTransactionResponse, error) {
	args := &chainClient.PushTransactionArgs{Signatures: signatures}

	if compress {
		packedTrx, err := deflate(serializedTransaction)
		if err != nil {
			return nil, fmt.Errorf("compressing transaction: %w", err)
		}
		cfd := serializedContextFreeData
		if cfd == nil {
			cfd = []byte{}
		}
		packedCFD, err := deflate(cfd)
		if err != nil {
			return nil, fmt.Errorf("compressing context free data: %w", err)
		}
		args.Compression = 1
		args.PackedTrx = packedTrx
		args.PackedContextFreeData = packedCFD
	} else {
		args.PackedTrx = serializedTransaction
		args.PackedContextFreeData = serializedContextFreeData
	}

	o.logger.Debug("pushing transaction",
		zap.String("packedTrx", hexutil.Encode(args.PackedTrx)),
		zap.Int("signatures", len(signatures)),
		zap.Uint8("compression", args.Compression),
	)

	resp, err := o.client.PushTransaction(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("pushing transaction: %w", err)
	}
	o.logger.Info("transaction pushed",
		zap.String("transactionId", resp.TransactionID),
	)
	return resp, nil
}

// deflate compresses one buffer with DEFLATE at the maximum level inside a
// zlib envelope, the node's expected compressed framing.
func deflate(data []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := zlib.NewWriterLevel(&out, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
