package tapos

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eosforge/txcore-go/pkg/chainClient"
)

type mockBlockFetcher struct {
	mock.Mock
}

func (m *mockBlockFetcher) GetInfo(ctx context.Context) (*chainClient.ChainInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chainClient.ChainInfo), args.Error(1)
}

func (m *mockBlockFetcher) GetBlock(ctx context.Context, blockNum uint32) (*chainClient.Block, error) {
	args := m.Called(ctx, blockNum)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chainClient.Block), args.Error(1)
}

func (m *mockBlockFetcher) GetBlockHeaderState(ctx context.Context, blockNum uint32) (*chainClient.BlockHeaderState, error) {
	args := m.Called(ctx, blockNum)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chainClient.BlockHeaderState), args.Error(1)
}

func setupGenerator(t *testing.T) (*Generator, *mockBlockFetcher) {
	t.Helper()
	client := &mockBlockFetcher{}
	logger, _ := zap.NewDevelopment()
	return NewGenerator(client, logger), client
}

func testChainInfo() *chainClient.ChainInfo {
	return &chainClient.ChainInfo{
		ChainID:                  "cf057bbfb72640471fd910bcb67639c22df9f92470936cddc1ade0e2f2e7dc4f",
		HeadBlockNum:             1000,
		LastIrreversibleBlockNum: 990,
	}
}

func TestGenerate_BlocksBehindIrreversible(t *testing.T) {
	generator, client := setupGenerator(t)

	// head-20 = 980 is at or below the LIB, so the finalized block is fetched
	// directly.
	client.On("GetBlock", mock.Anything, uint32(980)).
		Return(&chainClient.Block{
			Timestamp:      "2021-07-01T12:00:00.000",
			BlockNum:       980,
			RefBlockPrefix: 0xdeadbeef,
		}, nil)

	tx := &chainClient.Transaction{}
	merged, err := generator.Generate(context.Background(), testChainInfo(), tx, &Options{
		BlocksBehind:  20,
		ExpireSeconds: 30,
	})
	require.NoError(t, err)

	require.NotNil(t, merged.RefBlockNum)
	assert.Equal(t, uint32(980&0xffff), *merged.RefBlockNum)
	require.NotNil(t, merged.RefBlockPrefix)
	assert.Equal(t, uint32(0xdeadbeef), *merged.RefBlockPrefix)
	require.NotNil(t, merged.Expiration)
	assert.Equal(t, "2021-07-01T12:00:30.000", *merged.Expiration)

	// The input transaction is never mutated.
	assert.Nil(t, tx.RefBlockNum)

	client.AssertExpectations(t)
	client.AssertNotCalled(t, "GetBlockHeaderState", mock.Anything, mock.Anything)
}

func TestGenerate_NearHeadUsesHeaderState(t *testing.T) {
	generator, client := setupGenerator(t)

	// head-3 = 997 is above the LIB; the reversible header-state endpoint
	// provides the id the prefix is derived from.
	client.On("GetBlockHeaderState", mock.Anything, uint32(997)).
		Return(&chainClient.BlockHeaderState{
			// bytes 8..12 are ef be ad de, little-endian 0xdeadbeef
			ID:       "00000115deadbeef" + "efbeadde" + "0000000000000000000000000000000000000000",
			BlockNum: 997,
			Header: struct {
				Timestamp string `json:"timestamp"`
			}{Timestamp: "2021-07-01T12:00:00.000"},
		}, nil)

	merged, err := generator.Generate(context.Background(), testChainInfo(), &chainClient.Transaction{}, &Options{
		BlocksBehind:  3,
		ExpireSeconds: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(997), *merged.RefBlockNum)
	assert.Equal(t, uint32(0xdeadbeef), *merged.RefBlockPrefix)

	client.AssertExpectations(t)
	client.AssertNotCalled(t, "GetBlock", mock.Anything, mock.Anything)
}

func TestGenerate_HeaderStateFallback(t *testing.T) {
	generator, client := setupGenerator(t)

	client.On("GetBlockHeaderState", mock.Anything, uint32(997)).
		Return(nil, errors.New("unsupported endpoint"))
	client.On("GetBlock", mock.Anything, uint32(997)).
		Return(&chainClient.Block{
			Timestamp:      "2021-07-01T12:00:00.000",
			BlockNum:       997,
			RefBlockPrefix: 42,
		}, nil)

	merged, err := generator.Generate(context.Background(), testChainInfo(), &chainClient.Transaction{}, &Options{
		BlocksBehind:  3,
		ExpireSeconds: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), *merged.RefBlockPrefix)

	client.AssertExpectations(t)
}

func TestGenerate_UseLastIrreversible(t *testing.T) {
	generator, client := setupGenerator(t)

	client.On("GetBlock", mock.Anything, uint32(990)).
		Return(&chainClient.Block{
			Timestamp:      "2021-07-01T12:00:00.000",
			BlockNum:       990,
			RefBlockPrefix: 7,
		}, nil)

	merged, err := generator.Generate(context.Background(), testChainInfo(), &chainClient.Transaction{}, &Options{
		UseLastIrreversible: true,
		ExpireSeconds:       60,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(990), *merged.RefBlockNum)
	assert.Equal(t, "2021-07-01T12:01:00.000", *merged.Expiration)

	client.AssertExpectations(t)
}

func TestGenerate_FetchesInfoWhenAbsent(t *testing.T) {
	generator, client := setupGenerator(t)

	client.On("GetInfo", mock.Anything).Return(testChainInfo(), nil)
	client.On("GetBlock", mock.Anything, uint32(990)).
		Return(&chainClient.Block{
			Timestamp:      "2021-07-01T12:00:00.000",
			BlockNum:       990,
			RefBlockPrefix: 7,
		}, nil)

	_, err := generator.Generate(context.Background(), nil, &chainClient.Transaction{}, &Options{
		UseLastIrreversible: true,
		ExpireSeconds:       30,
	})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestGenerate_CallerFieldsWin(t *testing.T) {
	generator, client := setupGenerator(t)

	client.On("GetBlock", mock.Anything, uint32(990)).
		Return(&chainClient.Block{
			Timestamp:      "2021-07-01T12:00:00.000",
			BlockNum:       990,
			RefBlockPrefix: 7,
		}, nil)

	expiration := "2021-07-01T13:00:00.000"
	refBlockNum := uint32(555)
	tx := &chainClient.Transaction{
		Expiration:  &expiration,
		RefBlockNum: &refBlockNum,
	}

	merged, err := generator.Generate(context.Background(), testChainInfo(), tx, &Options{
		UseLastIrreversible: true,
		ExpireSeconds:       30,
	})
	require.NoError(t, err)

	// Explicit fields survive the merge; only the absent prefix is filled.
	assert.Equal(t, expiration, *merged.Expiration)
	assert.Equal(t, refBlockNum, *merged.RefBlockNum)
	assert.Equal(t, uint32(7), *merged.RefBlockPrefix)
}

func TestGenerate_BlockFetchError(t *testing.T) {
	generator, client := setupGenerator(t)

	client.On("GetBlock", mock.Anything, uint32(990)).
		Return(nil, errors.New("boom"))

	_, err := generator.Generate(context.Background(), testChainInfo(), &chainClient.Transaction{}, &Options{
		UseLastIrreversible: true,
		ExpireSeconds:       30,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching reference block 990")
}

func TestRefBlockPrefixFromID(t *testing.T) {
	prefix, err := refBlockPrefixFromID("0000000000000000" + "efbeadde" + "00000000")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), prefix)

	_, err = refBlockPrefixFromID("tooshort")
	assert.Error(t, err)

	_, err = refBlockPrefixFromID("zz")
	assert.Error(t, err)
}
