// Package tapos fills a transaction's anti-replay reference fields by
// selecting a recent block and deriving ref_block_num, ref_block_prefix and
// expiration from its header.
package tapos

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eosforge/txcore-go/pkg/abiSerializer"
	"github.com/eosforge/txcore-go/pkg/chainClient"
)

// BlockFetcher is the chain-query surface the generator needs.
type BlockFetcher interface {
	GetInfo(ctx context.Context) (*chainClient.ChainInfo, error)
	GetBlock(ctx context.Context, blockNum uint32) (*chainClient.Block, error)
	GetBlockHeaderState(ctx context.Context, blockNum uint32) (*chainClient.BlockHeaderState, error)
}

// Options selects the reference block and validity window.
type Options struct {
	// BlocksBehind counts back from the head block; ignored when
	// UseLastIrreversible is set
	BlocksBehind uint32
	// UseLastIrreversible selects the last irreversible block instead
	UseLastIrreversible bool
	// ExpireSeconds is the validity window measured from the reference
	// block's timestamp
	ExpireSeconds uint32
}

// Generator fills TAPoS fields from a selected reference block.
type Generator struct {
	client BlockFetcher
	logger *zap.Logger
}

// NewGenerator creates a Generator backed by the given chain-query client.
func NewGenerator(client BlockFetcher, logger *zap.Logger) *Generator {
	return &Generator{client: client, logger: logger}
}

type taposFields struct {
	refBlockNum    uint32
	refBlockPrefix uint32
	timestamp      string
}

// Generate selects a reference block and merges its TAPoS fields and the
// derived expiration into a copy of the transaction. Fields already present
// on the caller's transaction always take precedence over generated ones.
// A nil info is fetched on demand.
//
// Blocks at or below the last irreversible number are fetched directly: they
// are finalized and cannot fork. Near-head blocks are fetched through the
// reversible block-header-state endpoint first, falling back to the direct
// fetch when that endpoint is unsupported or the block has been pruned.
func (g *Generator) Generate(
	ctx context.Context,
	info *chainClient.ChainInfo,
	tx *chainClient.Transaction,
	opts *Options,
) (*chainClient.Transaction, error) {
	if info == nil {
		var err error
		info, err = g.client.GetInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching chain info: %w", err)
		}
	}

	var refBlockNum uint32
	if opts.UseLastIrreversible {
		refBlockNum = info.LastIrreversibleBlockNum
	} else {
		refBlockNum = info.HeadBlockNum - opts.BlocksBehind
	}

	fields, err := g.fetchTaposFields(ctx, info, refBlockNum)
	if err != nil {
		return nil, err
	}

	headerTime, err := abiSerializer.ParseTime(fields.timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing reference block timestamp: %w", err)
	}
	expiration := abiSerializer.FormatTime(headerTime.Add(time.Duration(opts.ExpireSeconds) * time.Second))

	g.logger.Debug("generated tapos fields",
		zap.Uint32("refBlockNum", fields.refBlockNum),
		zap.Uint32("refBlockPrefix", fields.refBlockPrefix),
		zap.String("expiration", expiration),
	)

	// Generated fields first, explicit transaction fields applied last.
	merged := tx.Clone()
	if merged.Expiration == nil {
		merged.Expiration = &expiration
	}
	if merged.RefBlockNum == nil {
		merged.RefBlockNum = &fields.refBlockNum
	}
	if merged.RefBlockPrefix == nil {
		merged.RefBlockPrefix = &fields.refBlockPrefix
	}
	return merged, nil
}

func (g *Generator) fetchTaposFields(ctx context.Context, info *chainClient.ChainInfo, refBlockNum uint32) (*taposFields, error) {
	if refBlockNum <= info.LastIrreversibleBlockNum {
		return g.fetchBlockFields(ctx, refBlockNum)
	}

	state, err := g.client.GetBlockHeaderState(ctx, refBlockNum)
	if err != nil {
		g.logger.Debug("block header state unavailable, falling back to get_block",
			zap.Uint32("blockNum", refBlockNum),
			zap.Error(err),
		)
		return g.fetchBlockFields(ctx, refBlockNum)
	}

	prefix, err := refBlockPrefixFromID(state.ID)
	if err != nil {
		return nil, fmt.Errorf("deriving ref block prefix from block id: %w", err)
	}
	return &taposFields{
		refBlockNum:    state.BlockNum & 0xffff,
		refBlockPrefix: prefix,
		timestamp:      state.Header.Timestamp,
	}, nil
}

func (g *Generator) fetchBlockFields(ctx context.Context, refBlockNum uint32) (*taposFields, error) {
	block, err := g.client.GetBlock(ctx, refBlockNum)
	if err != nil {
		return nil, fmt.Errorf("fetching reference block %d: %w", refBlockNum, err)
	}
	return &taposFields{
		refBlockNum:    block.BlockNum & 0xffff,
		refBlockPrefix: block.RefBlockPrefix,
		timestamp:      block.Timestamp,
	}, nil
}

// refBlockPrefixFromID extracts the little-endian uint32 at bytes 8..12 of a
// block id, the prefix consensus expects in ref_block_prefix.
func refBlockPrefixFromID(id string) (uint32, error) {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return 0, fmt.Errorf("invalid block id %q: %w", id, err)
	}
	if len(raw) < 12 {
		return 0, fmt.Errorf("block id %q is too short", id)
	}
	return binary.LittleEndian.Uint32(raw[8:12]), nil
}
