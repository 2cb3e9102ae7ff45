package chainClient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ChainClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger, _ := zap.NewDevelopment()
	return NewChainClient(&ChainClientConfig{BaseURL: server.URL}, logger)
}

func TestGetInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chain/get_info", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"chain_id": "cf057bbfb72640471fd910bcb67639c22df9f92470936cddc1ade0e2f2e7dc4f",
			"head_block_num": 1000,
			"last_irreversible_block_num": 990
		}`))
	})

	info, err := client.GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), info.HeadBlockNum)
	assert.Equal(t, uint32(990), info.LastIrreversibleBlockNum)
}

func TestGetBlock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chain/get_block", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(997), body["block_num_or_id"])

		_, _ = w.Write([]byte(`{
			"timestamp": "2021-07-01T12:00:00.000",
			"block_num": 997,
			"ref_block_prefix": 3735928559
		}`))
	})

	block, err := client.GetBlock(context.Background(), 997)
	require.NoError(t, err)
	assert.Equal(t, uint32(997), block.BlockNum)
	assert.Equal(t, uint32(0xdeadbeef), block.RefBlockPrefix)
}

func TestGetRawAbi_DecodesBase64(t *testing.T) {
	raw := []byte{0x0e, 'e', 'o', 's'}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chain/get_raw_abi", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "eosio.token", body["account_name"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"account_name": "eosio.token",
			"abi":          base64.StdEncoding.EncodeToString(raw),
		})
	})

	abi, err := client.GetRawAbi(context.Background(), "eosio.token")
	require.NoError(t, err)
	assert.Equal(t, raw, abi.Abi)
}

func TestGetRequiredKeys(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "transaction")
		assert.Contains(t, body, "available_keys")

		_, _ = w.Write([]byte(`{"required_keys": ["PUB_K1_abc"]}`))
	})

	keys, err := client.GetRequiredKeys(context.Background(), GetRequiredKeysArgs{
		Transaction:   &Transaction{},
		AvailableKeys: []string{"PUB_K1_abc", "PUB_K1_def"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"PUB_K1_abc"}, keys)
}

func TestPushTransaction_HexEncodesPackedBuffers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0102ff", body["packed_trx"])
		assert.Equal(t, "", body["packed_context_free_data"])
		assert.Equal(t, float64(0), body["compression"])

		_, _ = w.Write([]byte(`{"transaction_id": "txid"}`))
	})

	resp, err := client.PushTransaction(context.Background(), &PushTransactionArgs{
		Signatures: []string{"SIG_K1_x"},
		PackedTrx:  []byte{0x01, 0x02, 0xff},
	})
	require.NoError(t, err)
	assert.Equal(t, "txid", resp.TransactionID)
}

func TestPost_ApiError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{
			"code": 500,
			"message": "Internal Service Error",
			"error": {
				"code": 3040005,
				"name": "expired_tx_exception",
				"what": "Expired Transaction"
			}
		}`))
	})

	_, err := client.GetInfo(context.Background())
	require.Error(t, err)

	var apiErr *ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "expired_tx_exception", apiErr.Err.Name)
	assert.Contains(t, apiErr.Error(), "Expired Transaction")
}

func TestPost_NonJSONError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	})

	_, err := client.GetInfo(context.Background())
	require.Error(t, err)

	var apiErr *ApiError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Error(), "upstream unavailable")
}

func TestPost_ContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetInfo(ctx)
	assert.Error(t, err)
}

func TestTransaction_HasRequiredTaposFields(t *testing.T) {
	expiration := "2021-07-01T12:00:00.000"
	refBlockNum := uint32(1)
	refBlockPrefix := uint32(2)

	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{name: "All absent", tx: Transaction{}, want: false},
		{
			name: "Partial",
			tx:   Transaction{Expiration: &expiration, RefBlockNum: &refBlockNum},
			want: false,
		},
		{
			name: "All present",
			tx: Transaction{
				Expiration:     &expiration,
				RefBlockNum:    &refBlockNum,
				RefBlockPrefix: &refBlockPrefix,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tx.HasRequiredTaposFields())
		})
	}
}

func TestTransaction_CloneIsolatesHeaderFields(t *testing.T) {
	expiration := "2021-07-01T12:00:00.000"
	tx := &Transaction{Expiration: &expiration}

	clone := tx.Clone()
	other := "2022-01-01T00:00:00.000"
	clone.Expiration = &other

	assert.Equal(t, expiration, *tx.Expiration)
}
