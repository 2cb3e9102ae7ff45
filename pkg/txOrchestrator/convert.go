package txOrchestrator

import (
	"fmt"

	"github.com/eosforge/txcore-go/pkg/chainClient"
	"github.com/eosforge/txcore-go/pkg/util"
)

// transactionToValue shapes a transaction for the envelope serializer. Usage
// limits serialize as their zero values when unset and absent lists as empty.
func transactionToValue(tx *chainClient.Transaction) map[string]any {
	return map[string]any{
		"expiration":             *tx.Expiration,
		"ref_block_num":          *tx.RefBlockNum,
		"ref_block_prefix":       *tx.RefBlockPrefix,
		"max_net_usage_words":    tx.MaxNetUsageWords,
		"max_cpu_usage_ms":       tx.MaxCpuUsageMs,
		"delay_sec":              tx.DelaySec,
		"context_free_actions":   actionsToValue(tx.ContextFreeActions),
		"actions":                actionsToValue(tx.Actions),
		"transaction_extensions": extensionsToValue(tx.TransactionExtensions),
	}
}

func actionsToValue(actions []chainClient.Action) []any {
	return util.Map(actions, func(a chainClient.Action, _ uint64) any {
		data := a.Data
		if a.HexData != "" {
			data = a.HexData
		}
		return map[string]any{
			"account": a.Account,
			"name":    a.Name,
			"authorization": util.Map(a.Authorization, func(auth chainClient.Authorization, _ uint64) any {
				return map[string]any{
					"actor":      auth.Actor,
					"permission": auth.Permission,
				}
			}),
			"data": data,
		}
	})
}

func extensionsToValue(extensions []chainClient.Extension) []any {
	return util.Map(extensions, func(e chainClient.Extension, _ uint64) any {
		return map[string]any{
			"type": e.Type,
			"data": e.Data,
		}
	})
}

// transactionFromValue rebuilds a transaction from the envelope
// deserializer's generic output. Action data comes back as hex.
func transactionFromValue(v any) (*chainClient.Transaction, error) {
	fields, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected transaction object, got %T", v)
	}

	expiration, err := fieldString(fields, "expiration")
	if err != nil {
		return nil, err
	}
	refBlockNum, err := fieldUint32(fields, "ref_block_num")
	if err != nil {
		return nil, err
	}
	refBlockPrefix, err := fieldUint32(fields, "ref_block_prefix")
	if err != nil {
		return nil, err
	}
	maxNetUsageWords, err := fieldUint32(fields, "max_net_usage_words")
	if err != nil {
		return nil, err
	}
	maxCpuUsageMs, err := fieldUint32(fields, "max_cpu_usage_ms")
	if err != nil {
		return nil, err
	}
	delaySec, err := fieldUint32(fields, "delay_sec")
	if err != nil {
		return nil, err
	}
	contextFreeActions, err := actionsFromValue(fields["context_free_actions"])
	if err != nil {
		return nil, fmt.Errorf("context_free_actions: %w", err)
	}
	actions, err := actionsFromValue(fields["actions"])
	if err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	extensions, err := extensionsFromValue(fields["transaction_extensions"])
	if err != nil {
		return nil, fmt.Errorf("transaction_extensions: %w", err)
	}

	return &chainClient.Transaction{
		Expiration:            &expiration,
		RefBlockNum:           &refBlockNum,
		RefBlockPrefix:        &refBlockPrefix,
		MaxNetUsageWords:      maxNetUsageWords,
		MaxCpuUsageMs:         uint8(maxCpuUsageMs),
		DelaySec:              delaySec,
		ContextFreeActions:    contextFreeActions,
		Actions:               actions,
		TransactionExtensions: extensions,
	}, nil
}

func actionsFromValue(v any) ([]chainClient.Action, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected action list, got %T", v)
	}
	out := make([]chainClient.Action, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("action %d: expected object, got %T", i, item)
		}
		account, err := fieldString(fields, "account")
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		name, err := fieldString(fields, "name")
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		data, err := fieldString(fields, "data")
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		auths, ok := fields["authorization"].([]any)
		if !ok {
			return nil, fmt.Errorf("action %d: expected authorization list, got %T", i, fields["authorization"])
		}
		authorization := make([]chainClient.Authorization, 0, len(auths))
		for j, a := range auths {
			af, ok := a.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("action %d authorization %d: expected object, got %T", i, j, a)
			}
			actor, err := fieldString(af, "actor")
			if err != nil {
				return nil, fmt.Errorf("action %d authorization %d: %w", i, j, err)
			}
			permission, err := fieldString(af, "permission")
			if err != nil {
				return nil, fmt.Errorf("action %d authorization %d: %w", i, j, err)
			}
			authorization = append(authorization, chainClient.Authorization{
				Actor:      actor,
				Permission: permission,
			})
		}
		out = append(out, chainClient.Action{
			Account:       account,
			Name:          name,
			Authorization: authorization,
			Data:          data,
			HexData:       data,
		})
	}
	return out, nil
}

func extensionsFromValue(v any) ([]chainClient.Extension, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected extension list, got %T", v)
	}
	out := make([]chainClient.Extension, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("extension %d: expected object, got %T", i, item)
		}
		extType, err := fieldUint32(fields, "type")
		if err != nil {
			return nil, fmt.Errorf("extension %d: %w", i, err)
		}
		data, err := fieldString(fields, "data")
		if err != nil {
			return nil, fmt.Errorf("extension %d: %w", i, err)
		}
		out = append(out, chainClient.Extension{Type: uint16(extType), Data: data})
	}
	return out, nil
}

func fieldString(fields map[string]any, name string) (string, error) {
	s, ok := fields[name].(string)
	if !ok {
		return "", fmt.Errorf("expected string %s, got %T", name, fields[name])
	}
	return s, nil
}

func fieldUint32(fields map[string]any, name string) (uint32, error) {
	n, ok := fields[name].(uint64)
	if !ok {
		return 0, fmt.Errorf("expected integer %s, got %T", name, fields[name])
	}
	return uint32(n), nil
}
