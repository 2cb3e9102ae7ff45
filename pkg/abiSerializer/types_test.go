package abiSerializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtinRoundTrip(t *testing.T, typeName string, in any) any {
	t.Helper()
	types := NewBuiltinTypes()
	typ, err := GetType(types, typeName)
	require.NoError(t, err)

	buf := NewSerialBuffer(nil)
	require.NoError(t, typ.Serialize(buf, in))

	buf.RestartRead()
	out, err := typ.Deserialize(buf)
	require.NoError(t, err)
	assert.False(t, buf.HaveReadData(), "trailing bytes after %s", typeName)
	return out
}

func TestBuiltin_Symbol(t *testing.T) {
	types := NewBuiltinTypes()
	buf := NewSerialBuffer(nil)
	require.NoError(t, types["symbol"].Serialize(buf, "4,EOS"))
	assert.Equal(t, []byte{4, 'E', 'O', 'S', 0, 0, 0, 0}, buf.Bytes())

	assert.Equal(t, "4,EOS", builtinRoundTrip(t, "symbol", "4,EOS"))
	assert.Equal(t, "0,SYS", builtinRoundTrip(t, "symbol", "0,SYS"))
}

func TestBuiltin_SymbolInvalid(t *testing.T) {
	types := NewBuiltinTypes()
	for _, s := range []string{"EOS", "4,eos", "4,", "4,TOOLONGXX"} {
		buf := NewSerialBuffer(nil)
		assert.Error(t, types["symbol"].Serialize(buf, s), "symbol %q", s)
	}
}

func TestBuiltin_Asset(t *testing.T) {
	types := NewBuiltinTypes()
	buf := NewSerialBuffer(nil)
	require.NoError(t, types["asset"].Serialize(buf, "1.0000 EOS"))
	// 10000 smallest units, then the 4,EOS symbol.
	assert.Equal(t, []byte{0x10, 0x27, 0, 0, 0, 0, 0, 0, 4, 'E', 'O', 'S', 0, 0, 0, 0}, buf.Bytes())

	for _, s := range []string{"1.0000 EOS", "-0.5000 EOS", "0.0001 EOS", "7 SYS"} {
		assert.Equal(t, s, builtinRoundTrip(t, "asset", s), "asset %q", s)
	}
}

func TestBuiltin_Uint128(t *testing.T) {
	for _, s := range []string{"0", "1", "18446744073709551616", "340282366920938463463374607431768211455"} {
		assert.Equal(t, s, builtinRoundTrip(t, "uint128", s))
	}
}

func TestBuiltin_Int128(t *testing.T) {
	for _, s := range []string{"0", "-1", "-170141183460469231731687303715884105728", "170141183460469231731687303715884105727"} {
		assert.Equal(t, s, builtinRoundTrip(t, "int128", s))
	}
}

func TestBuiltin_IntBounds(t *testing.T) {
	types := NewBuiltinTypes()

	buf := NewSerialBuffer(nil)
	assert.Error(t, types["uint8"].Serialize(buf, 256))
	assert.Error(t, types["int8"].Serialize(buf, 128))
	assert.NoError(t, types["int8"].Serialize(buf, -128))
}

func TestBuiltin_Name(t *testing.T) {
	assert.Equal(t, "eosio.token", builtinRoundTrip(t, "name", "eosio.token"))
}

func TestBuiltin_Checksum256(t *testing.T) {
	digest := "0000000000000000000000000000000000000000000000000000000000000042"
	assert.Equal(t, digest, builtinRoundTrip(t, "checksum256", digest))

	types := NewBuiltinTypes()
	buf := NewSerialBuffer(nil)
	assert.Error(t, types["checksum256"].Serialize(buf, "abcd"))
}

func TestGetType_Wrappers(t *testing.T) {
	types := NewBuiltinTypes()

	arr, err := GetType(types, "uint64[]")
	require.NoError(t, err)
	assert.NotNil(t, arr.ArrayOf)

	opt, err := GetType(types, "string?")
	require.NoError(t, err)
	assert.NotNil(t, opt.OptionalOf)

	ext, err := GetType(types, "uint16$")
	require.NoError(t, err)
	assert.NotNil(t, ext.ExtensionOf)

	_, err = GetType(types, "no_such_type")
	assert.Error(t, err)
}

func TestArray_RoundTrip(t *testing.T) {
	out := builtinRoundTrip(t, "uint64[]", []any{uint64(1), uint64(2), uint64(3)})
	assert.Equal(t, []any{uint64(1), uint64(2), uint64(3)}, out)
}

func TestOptional_RoundTrip(t *testing.T) {
	assert.Nil(t, builtinRoundTrip(t, "string?", nil))
	assert.Equal(t, "present", builtinRoundTrip(t, "string?", "present"))
}

func transferAbi() *Abi {
	return &Abi{
		Version: "eosio::abi/1.1",
		Structs: []StructDef{
			{
				Name: "transfer",
				Fields: []FieldDef{
					{Name: "from", Type: "name"},
					{Name: "to", Type: "name"},
					{Name: "quantity", Type: "asset"},
					{Name: "memo", Type: "string"},
				},
			},
		},
		Actions: []ActionDef{
			{Name: "transfer", Type: "transfer"},
		},
	}
}

func TestStruct_RoundTrip(t *testing.T) {
	types, err := AbiTypes(transferAbi())
	require.NoError(t, err)

	transfer := types["transfer"]
	require.NotNil(t, transfer)

	value := map[string]any{
		"from":     "alice",
		"to":       "bob",
		"quantity": "1.0000 EOS",
		"memo":     "hi",
	}

	buf := NewSerialBuffer(nil)
	require.NoError(t, transfer.Serialize(buf, value))

	buf.RestartRead()
	out, err := transfer.Deserialize(buf)
	require.NoError(t, err)
	assert.Equal(t, value, out)
}

func TestStruct_MissingField(t *testing.T) {
	types, err := AbiTypes(transferAbi())
	require.NoError(t, err)

	buf := NewSerialBuffer(nil)
	err = types["transfer"].Serialize(buf, map[string]any{
		"from": "alice",
		"to":   "bob",
		"memo": "hi",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing transfer.quantity")
}

func TestStruct_Base(t *testing.T) {
	abi := &Abi{
		Version: "eosio::abi/1.1",
		Structs: []StructDef{
			{
				Name:   "header",
				Fields: []FieldDef{{Name: "id", Type: "uint64"}},
			},
			{
				Name:   "payload",
				Base:   "header",
				Fields: []FieldDef{{Name: "memo", Type: "string"}},
			},
		},
	}
	types, err := AbiTypes(abi)
	require.NoError(t, err)

	value := map[string]any{"id": uint64(7), "memo": "x"}

	buf := NewSerialBuffer(nil)
	require.NoError(t, types["payload"].Serialize(buf, value))

	// Base fields serialize before the struct's own.
	assert.Equal(t, []byte{7, 0, 0, 0, 0, 0, 0, 0, 1, 'x'}, buf.Bytes())

	buf.RestartRead()
	out, err := types["payload"].Deserialize(buf)
	require.NoError(t, err)
	assert.Equal(t, value, out)
}

func TestStruct_BinaryExtension(t *testing.T) {
	abi := &Abi{
		Version: "eosio::abi/1.1",
		Structs: []StructDef{
			{
				Name: "upgradeable",
				Fields: []FieldDef{
					{Name: "id", Type: "uint64"},
					{Name: "added_later", Type: "uint16$"},
				},
			},
		},
	}
	types, err := AbiTypes(abi)
	require.NoError(t, err)
	upgradeable := types["upgradeable"]

	// Absent extension fields are simply not serialized.
	buf := NewSerialBuffer(nil)
	require.NoError(t, upgradeable.Serialize(buf, map[string]any{"id": uint64(1)}))
	assert.Equal(t, 8, buf.Len())

	// Old payloads without the extension deserialize without the field.
	buf.RestartRead()
	out, err := upgradeable.Deserialize(buf)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": uint64(1)}, out)

	// When present it round-trips normally.
	buf = NewSerialBuffer(nil)
	require.NoError(t, upgradeable.Serialize(buf, map[string]any{"id": uint64(1), "added_later": uint64(9)}))
	buf.RestartRead()
	out, err = upgradeable.Deserialize(buf)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": uint64(1), "added_later": uint64(9)}, out)
}

func TestVariant_RoundTrip(t *testing.T) {
	abi := &Abi{
		Version:  "eosio::abi/1.1",
		Variants: []VariantDef{{Name: "result", Types: []string{"uint64", "string"}}},
	}
	types, err := AbiTypes(abi)
	require.NoError(t, err)
	result := types["result"]

	buf := NewSerialBuffer(nil)
	require.NoError(t, result.Serialize(buf, []any{"string", "oops"}))
	// Index 1 selects the string alternative.
	assert.Equal(t, byte(1), buf.Bytes()[0])

	buf.RestartRead()
	out, err := result.Deserialize(buf)
	require.NoError(t, err)
	assert.Equal(t, []any{"string", "oops"}, out)
}

func TestVariant_UnknownAlternative(t *testing.T) {
	abi := &Abi{
		Version:  "eosio::abi/1.1",
		Variants: []VariantDef{{Name: "result", Types: []string{"uint64"}}},
	}
	types, err := AbiTypes(abi)
	require.NoError(t, err)

	buf := NewSerialBuffer(nil)
	err = types["result"].Serialize(buf, []any{"string", "oops"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid for variant")
}

func TestAbiTypes_Typedefs(t *testing.T) {
	abi := &Abi{
		Version: "eosio::abi/1.1",
		// Aliases declared out of dependency order still resolve.
		Types: []TypeDef{
			{NewTypeName: "account", Type: "actor"},
			{NewTypeName: "actor", Type: "name"},
		},
	}
	types, err := AbiTypes(abi)
	require.NoError(t, err)
	assert.Same(t, types["name"], types["account"])
	assert.Same(t, types["name"], types["actor"])
}

func TestAbiTypes_UnknownTypedef(t *testing.T) {
	abi := &Abi{
		Version: "eosio::abi/1.1",
		Types:   []TypeDef{{NewTypeName: "mystery", Type: "no_such_type"}},
	}
	_, err := AbiTypes(abi)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_type")
}

func TestActionTypes(t *testing.T) {
	abi := transferAbi()
	types, err := AbiTypes(abi)
	require.NoError(t, err)

	actions, err := ActionTypes(abi, types)
	require.NoError(t, err)
	require.Contains(t, actions, "transfer")
	assert.Equal(t, "transfer", actions["transfer"].Name)
}

func TestSerializeActionData_RoundTrip(t *testing.T) {
	abi := transferAbi()
	types, err := AbiTypes(abi)
	require.NoError(t, err)
	actions, err := ActionTypes(abi, types)
	require.NoError(t, err)

	value := map[string]any{
		"from":     "alice",
		"to":       "bob",
		"quantity": "1.0000 EOS",
		"memo":     "",
	}
	hexData, err := SerializeActionData(actions["transfer"], value)
	require.NoError(t, err)
	assert.NotEmpty(t, hexData)

	out, err := DeserializeActionData(actions["transfer"], hexData)
	require.NoError(t, err)
	assert.Equal(t, value, out)
}

func TestTransactionTypes_HeaderLayout(t *testing.T) {
	types, err := TransactionTypes()
	require.NoError(t, err)

	header, err := GetType(types, "transaction_header")
	require.NoError(t, err)

	buf := NewSerialBuffer(nil)
	require.NoError(t, header.Serialize(buf, map[string]any{
		"expiration":          "2000-01-01T00:00:10.000",
		"ref_block_num":       uint64(0x1234),
		"ref_block_prefix":    uint64(0xdeadbeef),
		"max_net_usage_words": uint64(0),
		"max_cpu_usage_ms":    uint64(0),
		"delay_sec":           uint64(0),
	}))

	// time_point_sec(4) + uint16(2) + uint32(4) + varuint(1) + uint8(1) + varuint(1)
	assert.Equal(t, 13, buf.Len())
	assert.Equal(t, []byte{0x34, 0x12}, buf.Bytes()[4:6])
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, buf.Bytes()[6:10])
}

func TestTransactionTypes_TransactionRoundTrip(t *testing.T) {
	types, err := TransactionTypes()
	require.NoError(t, err)
	txType, err := GetType(types, "transaction")
	require.NoError(t, err)

	value := map[string]any{
		"expiration":           "2021-07-01T12:00:00.000",
		"ref_block_num":        uint64(1234),
		"ref_block_prefix":     uint64(5678),
		"max_net_usage_words":  uint64(0),
		"max_cpu_usage_ms":     uint64(0),
		"delay_sec":            uint64(0),
		"context_free_actions": []any{},
		"actions": []any{
			map[string]any{
				"account": "eosio.token",
				"name":    "transfer",
				"authorization": []any{
					map[string]any{"actor": "alice", "permission": "active"},
				},
				"data": "00",
			},
		},
		"transaction_extensions": []any{},
	}

	buf := NewSerialBuffer(nil)
	require.NoError(t, txType.Serialize(buf, value))

	buf.RestartRead()
	out, err := txType.Deserialize(buf)
	require.NoError(t, err)
	assert.Equal(t, value, out)
}
