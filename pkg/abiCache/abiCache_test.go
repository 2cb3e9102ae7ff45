package abiCache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eosforge/txcore-go/pkg/abiSerializer"
	"github.com/eosforge/txcore-go/pkg/chainClient"
)

type mockAbiProvider struct {
	mock.Mock
}

func (m *mockAbiProvider) GetRawAbi(ctx context.Context, accountName string) (*chainClient.RawAbi, error) {
	args := m.Called(ctx, accountName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chainClient.RawAbi), args.Error(1)
}

func tokenAbiBytes(t *testing.T) []byte {
	t.Helper()
	buf := abiSerializer.NewSerialBuffer(nil)
	buf.PushString("eosio::abi/1.1")
	buf.PushVaruint32(0) // typedefs
	buf.PushVaruint32(1) // structs
	buf.PushString("transfer")
	buf.PushString("")
	buf.PushVaruint32(2)
	buf.PushString("from")
	buf.PushString("name")
	buf.PushString("to")
	buf.PushString("name")
	buf.PushVaruint32(1) // actions
	require.NoError(t, buf.PushName("transfer"))
	buf.PushString("transfer")
	buf.PushString("")
	buf.PushVaruint32(0) // tables
	buf.PushVaruint32(0) // ricardian clauses
	buf.PushVaruint32(0) // error messages
	buf.PushVaruint32(0) // abi extensions
	return buf.Bytes()
}

func setupCache(t *testing.T) (*Cache, *mockAbiProvider) {
	t.Helper()
	provider := &mockAbiProvider{}
	logger, _ := zap.NewDevelopment()
	return NewCache(provider, logger), provider
}

func TestGetCachedAbi_FetchesOnce(t *testing.T) {
	cache, provider := setupCache(t)
	raw := tokenAbiBytes(t)

	provider.On("GetRawAbi", mock.Anything, "eosio.token").
		Return(&chainClient.RawAbi{AccountName: "eosio.token", Abi: raw}, nil).
		Once()

	first, err := cache.GetCachedAbi(context.Background(), "eosio.token", false)
	require.NoError(t, err)
	assert.Equal(t, raw, first.RawAbi)
	assert.Equal(t, "eosio::abi/1.1", first.Abi.Version)

	// Second call is served from the cache without touching the provider.
	second, err := cache.GetCachedAbi(context.Background(), "eosio.token", false)
	require.NoError(t, err)
	assert.Same(t, first, second)

	provider.AssertExpectations(t)
}

func TestGetCachedAbi_Reload(t *testing.T) {
	cache, provider := setupCache(t)
	raw := tokenAbiBytes(t)

	provider.On("GetRawAbi", mock.Anything, "eosio.token").
		Return(&chainClient.RawAbi{AccountName: "eosio.token", Abi: raw}, nil).
		Twice()

	_, err := cache.GetCachedAbi(context.Background(), "eosio.token", false)
	require.NoError(t, err)

	_, err = cache.GetCachedAbi(context.Background(), "eosio.token", true)
	require.NoError(t, err)

	provider.AssertExpectations(t)
}

func TestGetCachedAbi_FetchError(t *testing.T) {
	cache, provider := setupCache(t)
	fetchErr := errors.New("connection refused")

	provider.On("GetRawAbi", mock.Anything, "eosio.token").
		Return(nil, fetchErr)

	_, err := cache.GetCachedAbi(context.Background(), "eosio.token", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching abi for eosio.token")
	assert.ErrorIs(t, err, fetchErr)
}

func TestGetCachedAbi_UnsupportedVersion(t *testing.T) {
	cache, provider := setupCache(t)

	buf := abiSerializer.NewSerialBuffer(nil)
	buf.PushString("eosio::abi/9.9")

	provider.On("GetRawAbi", mock.Anything, "eosio.token").
		Return(&chainClient.RawAbi{AccountName: "eosio.token", Abi: buf.Bytes()}, nil)

	_, err := cache.GetCachedAbi(context.Background(), "eosio.token", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, abiSerializer.ErrUnsupportedAbiVersion)
	assert.Contains(t, err.Error(), "eosio.token")
}

func TestGetContract(t *testing.T) {
	cache, provider := setupCache(t)
	raw := tokenAbiBytes(t)

	provider.On("GetRawAbi", mock.Anything, "eosio.token").
		Return(&chainClient.RawAbi{AccountName: "eosio.token", Abi: raw}, nil).
		Once()

	contract, err := cache.GetContract(context.Background(), "eosio.token", false)
	require.NoError(t, err)
	require.Contains(t, contract.Actions, "transfer")
	require.Contains(t, contract.Types, "transfer")

	// Cached on the second call; the single Once expectation still holds.
	again, err := cache.GetContract(context.Background(), "eosio.token", false)
	require.NoError(t, err)
	assert.Same(t, contract, again)

	provider.AssertExpectations(t)
}

func TestGetContract_ReloadRebuilds(t *testing.T) {
	cache, provider := setupCache(t)
	raw := tokenAbiBytes(t)

	provider.On("GetRawAbi", mock.Anything, "eosio.token").
		Return(&chainClient.RawAbi{AccountName: "eosio.token", Abi: raw}, nil).
		Twice()

	first, err := cache.GetContract(context.Background(), "eosio.token", false)
	require.NoError(t, err)

	second, err := cache.GetContract(context.Background(), "eosio.token", true)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	provider.AssertExpectations(t)
}
