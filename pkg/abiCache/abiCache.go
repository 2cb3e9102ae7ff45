// Package abiCache memoizes per-account contract schemas: the raw and
// structured ABI, and the derived action-type descriptors used to serialize
// action payloads. Entries live for the owning orchestrator's lifetime; there
// is no eviction.
package abiCache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eosforge/txcore-go/pkg/abiSerializer"
	"github.com/eosforge/txcore-go/pkg/chainClient"
)

// AbiProvider supplies raw ABI bytes for an account. The chain client is the
// default implementation; tests and offline signers supply their own.
type AbiProvider interface {
	GetRawAbi(ctx context.Context, accountName string) (*chainClient.RawAbi, error)
}

// CachedAbi is one account's schema in both raw and structured form.
type CachedAbi struct {
	RawAbi []byte
	Abi    *abiSerializer.Abi
}

// Contract is the derived per-account descriptor: the full type registry and
// the action-name-to-payload-type mapping.
type Contract struct {
	Types   map[string]*abiSerializer.Type
	Actions map[string]*abiSerializer.Type
}

// Cache memoizes ABIs and contract descriptors per account. Both caches are
// independent: a contract descriptor reload rebuilds the type registry even
// when the underlying raw ABI entry was already current.
//
// Concurrent reloads for the same account race only at their commit point;
// the entry reflects whichever fetch resolves last. The mutex guards map
// access, not fetch ordering.
type Cache struct {
	provider AbiProvider
	logger   *zap.Logger

	mu        sync.Mutex
	abis      map[string]*CachedAbi
	contracts map[string]*Contract
}

// NewCache creates an empty cache backed by the given ABI provider.
//
// Parameters:
//   - provider: The raw-ABI source
//   - logger: The zap logger for fetch diagnostics
//
// Returns:
//   - *Cache: A new cache instance
func NewCache(provider AbiProvider, logger *zap.Logger) *Cache {
	return &Cache{
		provider:  provider,
		logger:    logger,
		abis:      make(map[string]*CachedAbi),
		contracts: make(map[string]*Contract),
	}
}

// GetCachedAbi returns the cached entry for an account, fetching and decoding
// it when absent or when reload is true. Fetch and decode failures are
// wrapped with the account name and never retried; an unsupported ABI version
// surfaces as abiSerializer.ErrUnsupportedAbiVersion through the wrap.
func (c *Cache) GetCachedAbi(ctx context.Context, accountName string, reload bool) (*CachedAbi, error) {
	if !reload {
		c.mu.Lock()
		entry, ok := c.abis[accountName]
		c.mu.Unlock()
		if ok {
			return entry, nil
		}
	}

	entry, err := c.fetchAbi(ctx, accountName)
	if err != nil {
		return nil, fmt.Errorf("fetching abi for %s: %w", accountName, err)
	}

	c.mu.Lock()
	c.abis[accountName] = entry
	stored, ok := c.abis[accountName]
	c.mu.Unlock()
	if !ok || stored == nil {
		// A miss immediately after assignment is an internal defect, not a
		// transient condition.
		return nil, fmt.Errorf("missing abi for %s", accountName)
	}
	return stored, nil
}

func (c *Cache) fetchAbi(ctx context.Context, accountName string) (*CachedAbi, error) {
	raw, err := c.provider.GetRawAbi(ctx, accountName)
	if err != nil {
		return nil, err
	}
	abi, err := abiSerializer.DecodeAbi(raw.Abi)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched abi",
		zap.String("account", accountName),
		zap.Int("rawSize", len(raw.Abi)),
		zap.String("version", abi.Version),
	)
	return &CachedAbi{RawAbi: raw.Abi, Abi: abi}, nil
}

// GetContract returns the derived contract descriptor for an account,
// rebuilding the type registry from the ABI's struct, variant and action
// definitions when absent or when reload is true.
func (c *Cache) GetContract(ctx context.Context, accountName string, reload bool) (*Contract, error) {
	if !reload {
		c.mu.Lock()
		contract, ok := c.contracts[accountName]
		c.mu.Unlock()
		if ok {
			return contract, nil
		}
	}

	cached, err := c.GetCachedAbi(ctx, accountName, reload)
	if err != nil {
		return nil, err
	}
	types, err := abiSerializer.AbiTypes(cached.Abi)
	if err != nil {
		return nil, fmt.Errorf("building types for %s: %w", accountName, err)
	}
	actions, err := abiSerializer.ActionTypes(cached.Abi, types)
	if err != nil {
		return nil, fmt.Errorf("building actions for %s: %w", accountName, err)
	}
	contract := &Contract{Types: types, Actions: actions}

	c.mu.Lock()
	c.contracts[accountName] = contract
	c.mu.Unlock()
	return contract, nil
}
