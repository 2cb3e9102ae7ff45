package abiSerializer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value coercion helpers. Action payloads usually arrive as decoded JSON
// (map[string]any with float64/string leaves), but callers constructing
// values in Go pass native integer types; both must serialize identically.

func coerceUint(v any, bits int) (uint64, error) {
	var out uint64
	switch t := v.(type) {
	case uint64:
		out = t
	case uint32:
		out = uint64(t)
	case uint16:
		out = uint64(t)
	case uint8:
		out = uint64(t)
	case uint:
		out = uint64(t)
	case int:
		if t < 0 {
			return 0, fmt.Errorf("expected non-negative number, got %d", t)
		}
		out = uint64(t)
	case int64:
		if t < 0 {
			return 0, fmt.Errorf("expected non-negative number, got %d", t)
		}
		out = uint64(t)
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, fmt.Errorf("expected non-negative integer, got %v", t)
		}
		out = uint64(t)
	case json.Number:
		return coerceUint(string(t), bits)
	case string:
		parsed, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected unsigned number, got %q", t)
		}
		out = parsed
	default:
		return 0, fmt.Errorf("expected unsigned number, got %T", v)
	}
	if bits < 64 && out >= uint64(1)<<uint(bits) {
		return 0, fmt.Errorf("number %d is out of range for uint%d", out, bits)
	}
	return out, nil
}

func coerceInt(v any, bits int) (int64, error) {
	var out int64
	switch t := v.(type) {
	case int64:
		out = t
	case int32:
		out = int64(t)
	case int16:
		out = int64(t)
	case int8:
		out = int64(t)
	case int:
		out = int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return 0, fmt.Errorf("number %d is out of range", t)
		}
		out = int64(t)
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("expected integer, got %v", t)
		}
		out = int64(t)
	case json.Number:
		return coerceInt(string(t), bits)
	case string:
		parsed, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", t)
		}
		out = parsed
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if bits < 64 {
		lo, hi := int64(-1)<<uint(bits-1), int64(1)<<uint(bits-1)-1
		if out < lo || out > hi {
			return 0, fmt.Errorf("number %d is out of range for int%d", out, bits)
		}
	}
	return out, nil
}

func coerceFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("expected float, got %T", v)
}

func coerceBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("expected bool, got %T", v)
}

func coerceString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func coerceBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		out, err := hex.DecodeString(t)
		if err != nil {
			return nil, fmt.Errorf("expected hex string: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected hex string or bytes, got %T", v)
}

func coerceFixedBytes(v any, size int) ([]byte, error) {
	out, err := coerceBytes(v)
	if err != nil {
		return nil, err
	}
	if len(out) != size {
		return nil, fmt.Errorf("binary data has incorrect size: expected %d bytes, got %d", size, len(out))
	}
	return out, nil
}
