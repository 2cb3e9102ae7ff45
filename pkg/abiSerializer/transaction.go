package abiSerializer

// The transaction envelope has a fixed schema that is part of the chain's
// consensus rules rather than any contract's ABI; it is embedded here so the
// pipeline can serialize full transactions without a network fetch.
var transactionAbi = &Abi{
	Version: "eosio::abi/1.1",
	Structs: []StructDef{
		{
			Name: "permission_level",
			Fields: []FieldDef{
				{Name: "actor", Type: "name"},
				{Name: "permission", Type: "name"},
			},
		},
		{
			Name: "action",
			Fields: []FieldDef{
				{Name: "account", Type: "name"},
				{Name: "name", Type: "name"},
				{Name: "authorization", Type: "permission_level[]"},
				{Name: "data", Type: "bytes"},
			},
		},
		{
			Name: "extension",
			Fields: []FieldDef{
				{Name: "type", Type: "uint16"},
				{Name: "data", Type: "bytes"},
			},
		},
		{
			Name: "transaction_header",
			Fields: []FieldDef{
				{Name: "expiration", Type: "time_point_sec"},
				{Name: "ref_block_num", Type: "uint16"},
				{Name: "ref_block_prefix", Type: "uint32"},
				{Name: "max_net_usage_words", Type: "varuint32"},
				{Name: "max_cpu_usage_ms", Type: "uint8"},
				{Name: "delay_sec", Type: "varuint32"},
			},
		},
		{
			Name: "transaction",
			Base: "transaction_header",
			Fields: []FieldDef{
				{Name: "context_free_actions", Type: "action[]"},
				{Name: "actions", Type: "action[]"},
				{Name: "transaction_extensions", Type: "extension[]"},
			},
		},
	},
}

// TransactionAbi returns the built-in transaction envelope schema.
func TransactionAbi() *Abi {
	return transactionAbi
}

// TransactionTypes builds the registry containing the transaction envelope
// types on top of the built-ins.
func TransactionTypes() (map[string]*Type, error) {
	return AbiTypes(transactionAbi)
}
