package abiSerializer

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/eosforge/txcore-go/pkg/keyCodec"
)

// Field is a named member of a struct or variant type.
type Field struct {
	Name     string
	TypeName string
	Type     *Type
}

// Type is a serializable type descriptor. Exactly one of the shape fields
// (Fields, ArrayOf, OptionalOf, ExtensionOf) is populated for composite
// types; built-ins carry only the codec functions.
type Type struct {
	Name        string
	BaseName    string
	Base        *Type
	Fields      []Field
	ArrayOf     *Type
	OptionalOf  *Type
	ExtensionOf *Type

	serialize   func(t *Type, buf *SerialBuffer, v any) error
	deserialize func(t *Type, buf *SerialBuffer) (any, error)
}

// Serialize appends the binary form of v to buf.
func (t *Type) Serialize(buf *SerialBuffer, v any) error {
	if err := t.serialize(t, buf, v); err != nil {
		return fmt.Errorf("%s: %w", t.Name, err)
	}
	return nil
}

// Deserialize consumes the binary form of this type from buf.
func (t *Type) Deserialize(buf *SerialBuffer) (any, error) {
	v, err := t.deserialize(t, buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name, err)
	}
	return v, nil
}

func newBuiltin(name string,
	ser func(t *Type, buf *SerialBuffer, v any) error,
	deser func(t *Type, buf *SerialBuffer) (any, error)) *Type {
	return &Type{Name: name, serialize: ser, deserialize: deser}
}

func addUintType(m map[string]*Type, name string, bits int) {
	m[name] = newBuiltin(name,
		func(t *Type, buf *SerialBuffer, v any) error {
			n, err := coerceUint(v, bits)
			if err != nil {
				return err
			}
			switch bits {
			case 8:
				buf.Push(byte(n))
			case 16:
				buf.PushUint16(uint16(n))
			case 32:
				buf.PushUint32(uint32(n))
			default:
				buf.PushUint64(n)
			}
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			switch bits {
			case 8:
				v, err := buf.GetByte()
				return uint64(v), err
			case 16:
				v, err := buf.GetUint16()
				return uint64(v), err
			case 32:
				v, err := buf.GetUint32()
				return uint64(v), err
			default:
				return buf.GetUint64()
			}
		})
}

func addIntType(m map[string]*Type, name string, bits int) {
	m[name] = newBuiltin(name,
		func(t *Type, buf *SerialBuffer, v any) error {
			n, err := coerceInt(v, bits)
			if err != nil {
				return err
			}
			switch bits {
			case 8:
				buf.Push(byte(n))
			case 16:
				buf.PushUint16(uint16(n))
			case 32:
				buf.PushUint32(uint32(n))
			default:
				buf.PushUint64(uint64(n))
			}
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			switch bits {
			case 8:
				v, err := buf.GetByte()
				return int64(int8(v)), err
			case 16:
				v, err := buf.GetUint16()
				return int64(int16(v)), err
			case 32:
				v, err := buf.GetUint32()
				return int64(int32(v)), err
			default:
				v, err := buf.GetUint64()
				return int64(v), err
			}
		})
}

func addChecksumType(m map[string]*Type, name string, size int) {
	m[name] = newBuiltin(name,
		func(t *Type, buf *SerialBuffer, v any) error {
			b, err := coerceFixedBytes(v, size)
			if err != nil {
				return err
			}
			buf.Push(b...)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			b, err := buf.GetBytesRaw(size)
			if err != nil {
				return nil, err
			}
			return hex.EncodeToString(b), nil
		})
}

var symbolRegex = regexp.MustCompile(`^([0-9]+),([A-Z]{1,7})$`)

func serializeSymbol(buf *SerialBuffer, v any) error {
	s, err := coerceString(v)
	if err != nil {
		return err
	}
	matches := symbolRegex.FindStringSubmatch(s)
	if matches == nil {
		return fmt.Errorf("invalid symbol %q", s)
	}
	precision, err := coerceUint(matches[1], 8)
	if err != nil {
		return err
	}
	code := matches[2]
	buf.Push(byte(precision))
	for i := 0; i < 7; i++ {
		if i < len(code) {
			buf.Push(code[i])
		} else {
			buf.Push(0)
		}
	}
	return nil
}

func deserializeSymbol(buf *SerialBuffer) (precision byte, code string, err error) {
	raw, err := buf.GetBytesRaw(8)
	if err != nil {
		return 0, "", err
	}
	end := 1
	for end < 8 && raw[end] != 0 {
		end++
	}
	return raw[0], string(raw[1:end]), nil
}

// Asset amounts travel as a signed 64-bit count of the smallest unit; the
// textual form carries the precision as the number of decimal places.
func serializeAsset(buf *SerialBuffer, v any) error {
	s, err := coerceString(v)
	if err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	parts := strings.SplitN(s, " ", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid asset %q", v)
	}
	numeric, code := parts[0], parts[1]
	precision := 0
	if dot := strings.IndexByte(numeric, '.'); dot >= 0 {
		precision = len(numeric) - dot - 1
		numeric = numeric[:dot] + numeric[dot+1:]
	}
	if precision > 18 {
		return fmt.Errorf("invalid asset precision in %q", v)
	}
	amount, ok := new(big.Int).SetString(numeric, 10)
	if !ok {
		return fmt.Errorf("invalid asset amount %q", v)
	}
	if negative {
		amount.Neg(amount)
	}
	if !amount.IsInt64() {
		return fmt.Errorf("asset amount %q is out of range", v)
	}
	buf.PushUint64(uint64(amount.Int64()))
	return serializeSymbol(buf, fmt.Sprintf("%d,%s", precision, code))
}

func deserializeAsset(buf *SerialBuffer) (any, error) {
	raw, err := buf.GetUint64()
	if err != nil {
		return nil, err
	}
	amount := int64(raw)
	precision, code, err := deserializeSymbol(buf)
	if err != nil {
		return nil, err
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%0*d", int(precision)+1, amount)
	whole, frac := digits[:len(digits)-int(precision)], digits[len(digits)-int(precision):]
	if precision == 0 {
		return fmt.Sprintf("%s%s %s", sign, whole, code), nil
	}
	return fmt.Sprintf("%s%s.%s %s", sign, whole, frac, code), nil
}

var uint128Bound = new(big.Int).Lsh(big.NewInt(1), 128)

func add128Type(m map[string]*Type, name string, signed bool) {
	m[name] = newBuiltin(name,
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			n, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return fmt.Errorf("invalid %s %q", name, s)
			}
			if signed && n.Sign() < 0 {
				n = new(big.Int).Add(n, uint128Bound)
			}
			if n.Sign() < 0 || n.BitLen() > 128 {
				return fmt.Errorf("%s %q is out of range", name, s)
			}
			be := n.FillBytes(make([]byte, 16))
			for i := 15; i >= 0; i-- {
				buf.Push(be[i])
			}
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			le, err := buf.GetBytesRaw(16)
			if err != nil {
				return nil, err
			}
			be := make([]byte, 16)
			for i := 0; i < 16; i++ {
				be[i] = le[15-i]
			}
			n := new(big.Int).SetBytes(be)
			if signed && be[0]&0x80 != 0 {
				n.Sub(n, uint128Bound)
			}
			return n.String(), nil
		})
}

// getWAPublicKeyData consumes a WebAuthn public key payload: a compact point,
// a user-presence byte and a length-prefixed relying-party id.
func getWAPublicKeyData(buf *SerialBuffer) ([]byte, error) {
	begin := buf.readPos
	if _, err := buf.GetBytesRaw(34); err != nil {
		return nil, err
	}
	if _, err := buf.GetBytes(); err != nil {
		return nil, err
	}
	return buf.data[begin:buf.readPos], nil
}

// getWASignatureData consumes a WebAuthn signature payload: a recoverable
// signature, the authenticator data and the client JSON, both length-prefixed.
func getWASignatureData(buf *SerialBuffer) ([]byte, error) {
	begin := buf.readPos
	if _, err := buf.GetBytesRaw(65); err != nil {
		return nil, err
	}
	if _, err := buf.GetBytes(); err != nil {
		return nil, err
	}
	if _, err := buf.GetBytes(); err != nil {
		return nil, err
	}
	return buf.data[begin:buf.readPos], nil
}

// NewBuiltinTypes creates the registry of built-in wire types. ABI-declared
// structs, variants and typedefs extend a copy of this registry.
func NewBuiltinTypes() map[string]*Type {
	m := make(map[string]*Type)

	m["bool"] = newBuiltin("bool",
		func(t *Type, buf *SerialBuffer, v any) error {
			b, err := coerceBool(v)
			if err != nil {
				return err
			}
			if b {
				buf.Push(1)
			} else {
				buf.Push(0)
			}
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			v, err := buf.GetByte()
			return v != 0, err
		})

	addUintType(m, "uint8", 8)
	addUintType(m, "uint16", 16)
	addUintType(m, "uint32", 32)
	addUintType(m, "uint64", 64)
	addIntType(m, "int8", 8)
	addIntType(m, "int16", 16)
	addIntType(m, "int32", 32)
	addIntType(m, "int64", 64)
	add128Type(m, "uint128", false)
	add128Type(m, "int128", true)

	m["varuint32"] = newBuiltin("varuint32",
		func(t *Type, buf *SerialBuffer, v any) error {
			n, err := coerceUint(v, 32)
			if err != nil {
				return err
			}
			buf.PushVaruint32(uint32(n))
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			v, err := buf.GetVaruint32()
			return uint64(v), err
		})

	m["varint32"] = newBuiltin("varint32",
		func(t *Type, buf *SerialBuffer, v any) error {
			n, err := coerceInt(v, 32)
			if err != nil {
				return err
			}
			buf.PushVarint32(int32(n))
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			v, err := buf.GetVarint32()
			return int64(v), err
		})

	m["float32"] = newBuiltin("float32",
		func(t *Type, buf *SerialBuffer, v any) error {
			f, err := coerceFloat(v)
			if err != nil {
				return err
			}
			buf.PushFloat32(float32(f))
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			v, err := buf.GetFloat32()
			return float64(v), err
		})

	m["float64"] = newBuiltin("float64",
		func(t *Type, buf *SerialBuffer, v any) error {
			f, err := coerceFloat(v)
			if err != nil {
				return err
			}
			buf.PushFloat64(f)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			return buf.GetFloat64()
		})

	m["float128"] = newBuiltin("float128",
		func(t *Type, buf *SerialBuffer, v any) error {
			b, err := coerceFixedBytes(v, 16)
			if err != nil {
				return err
			}
			buf.Push(b...)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			b, err := buf.GetBytesRaw(16)
			if err != nil {
				return nil, err
			}
			return hex.EncodeToString(b), nil
		})

	m["time_point"] = newBuiltin("time_point",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			tm, err := ParseTime(s)
			if err != nil {
				return err
			}
			buf.PushTimePoint(tm)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			tm, err := buf.GetTimePoint()
			if err != nil {
				return nil, err
			}
			return FormatTime(tm), nil
		})

	m["time_point_sec"] = newBuiltin("time_point_sec",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			tm, err := ParseTime(s)
			if err != nil {
				return err
			}
			buf.PushTimePointSec(tm)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			tm, err := buf.GetTimePointSec()
			if err != nil {
				return nil, err
			}
			return FormatTime(tm), nil
		})

	m["block_timestamp_type"] = newBuiltin("block_timestamp_type",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			tm, err := ParseTime(s)
			if err != nil {
				return err
			}
			buf.PushBlockTimestamp(tm)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			tm, err := buf.GetBlockTimestamp()
			if err != nil {
				return nil, err
			}
			return FormatTime(tm), nil
		})

	m["name"] = newBuiltin("name",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			return buf.PushName(s)
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			return buf.GetName()
		})

	m["bytes"] = newBuiltin("bytes",
		func(t *Type, buf *SerialBuffer, v any) error {
			b, err := coerceBytes(v)
			if err != nil {
				return err
			}
			buf.PushBytes(b)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			b, err := buf.GetBytes()
			if err != nil {
				return nil, err
			}
			return hex.EncodeToString(b), nil
		})

	m["string"] = newBuiltin("string",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			buf.PushString(s)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			return buf.GetString()
		})

	addChecksumType(m, "checksum160", 20)
	addChecksumType(m, "checksum256", 32)
	addChecksumType(m, "checksum512", 64)

	m["symbol_code"] = newBuiltin("symbol_code",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			if len(s) == 0 || len(s) > 7 {
				return fmt.Errorf("invalid symbol code %q", s)
			}
			for i := 0; i < 8; i++ {
				if i < len(s) {
					buf.Push(s[i])
				} else {
					buf.Push(0)
				}
			}
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			raw, err := buf.GetBytesRaw(8)
			if err != nil {
				return nil, err
			}
			end := 0
			for end < 8 && raw[end] != 0 {
				end++
			}
			return string(raw[:end]), nil
		})

	m["symbol"] = newBuiltin("symbol",
		func(t *Type, buf *SerialBuffer, v any) error {
			return serializeSymbol(buf, v)
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			precision, code, err := deserializeSymbol(buf)
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("%d,%s", precision, code), nil
		})

	m["asset"] = newBuiltin("asset",
		func(t *Type, buf *SerialBuffer, v any) error {
			return serializeAsset(buf, v)
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			return deserializeAsset(buf)
		})

	m["extended_asset"] = newBuiltin("extended_asset",
		func(t *Type, buf *SerialBuffer, v any) error {
			obj, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("expected extended_asset object, got %T", v)
			}
			if err := serializeAsset(buf, obj["quantity"]); err != nil {
				return err
			}
			contract, err := coerceString(obj["contract"])
			if err != nil {
				return err
			}
			return buf.PushName(contract)
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			quantity, err := deserializeAsset(buf)
			if err != nil {
				return nil, err
			}
			contract, err := buf.GetName()
			if err != nil {
				return nil, err
			}
			return map[string]any{"quantity": quantity, "contract": contract}, nil
		})

	m["public_key"] = newBuiltin("public_key",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			key, err := keyCodec.StringToPublicKey(s)
			if err != nil {
				return err
			}
			buf.Push(byte(key.Type))
			buf.Push(key.Data...)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			tag, err := buf.GetByte()
			if err != nil {
				return nil, err
			}
			var data []byte
			switch keyCodec.KeyType(tag) {
			case keyCodec.K1, keyCodec.R1:
				data, err = buf.GetBytesRaw(keyCodec.PublicKeyDataSize)
			case keyCodec.WA:
				data, err = getWAPublicKeyData(buf)
			default:
				return nil, fmt.Errorf("unsupported public key type %d", tag)
			}
			if err != nil {
				return nil, err
			}
			return keyCodec.PublicKeyToString(keyCodec.Key{Type: keyCodec.KeyType(tag), Data: data})
		})

	m["private_key"] = newBuiltin("private_key",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			key, err := keyCodec.StringToPrivateKey(s)
			if err != nil {
				return err
			}
			buf.Push(byte(key.Type))
			buf.Push(key.Data...)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			tag, err := buf.GetByte()
			if err != nil {
				return nil, err
			}
			data, err := buf.GetBytesRaw(keyCodec.PrivateKeyDataSize)
			if err != nil {
				return nil, err
			}
			return keyCodec.PrivateKeyToString(keyCodec.Key{Type: keyCodec.KeyType(tag), Data: data})
		})

	m["signature"] = newBuiltin("signature",
		func(t *Type, buf *SerialBuffer, v any) error {
			s, err := coerceString(v)
			if err != nil {
				return err
			}
			sig, err := keyCodec.StringToSignature(s)
			if err != nil {
				return err
			}
			buf.Push(byte(sig.Type))
			buf.Push(sig.Data...)
			return nil
		},
		func(t *Type, buf *SerialBuffer) (any, error) {
			tag, err := buf.GetByte()
			if err != nil {
				return nil, err
			}
			var data []byte
			switch keyCodec.KeyType(tag) {
			case keyCodec.K1, keyCodec.R1:
				data, err = buf.GetBytesRaw(keyCodec.SignatureDataSize)
			case keyCodec.WA:
				data, err = getWASignatureData(buf)
			default:
				return nil, fmt.Errorf("unsupported signature type %d", tag)
			}
			if err != nil {
				return nil, err
			}
			return keyCodec.SignatureToString(keyCodec.Key{Type: keyCodec.KeyType(tag), Data: data})
		})

	return m
}

func serializeArray(t *Type, buf *SerialBuffer, v any) error {
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("expected array, got %T", v)
	}
	buf.PushVaruint32(uint32(len(items)))
	for _, item := range items {
		if err := t.ArrayOf.Serialize(buf, item); err != nil {
			return err
		}
	}
	return nil
}

func deserializeArray(t *Type, buf *SerialBuffer) (any, error) {
	n, err := buf.GetVaruint32()
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, n)
	for i := uint32(0); i < n; i++ {
		item, err := t.ArrayOf.Deserialize(buf)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func serializeOptional(t *Type, buf *SerialBuffer, v any) error {
	if v == nil {
		buf.Push(0)
		return nil
	}
	buf.Push(1)
	return t.OptionalOf.Serialize(buf, v)
}

func deserializeOptional(t *Type, buf *SerialBuffer) (any, error) {
	present, err := buf.GetByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	return t.OptionalOf.Deserialize(buf)
}

func serializeExtension(t *Type, buf *SerialBuffer, v any) error {
	return t.ExtensionOf.Serialize(buf, v)
}

func deserializeExtension(t *Type, buf *SerialBuffer) (any, error) {
	return t.ExtensionOf.Deserialize(buf)
}

func serializeStruct(t *Type, buf *SerialBuffer, v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("expected object, got %T", v)
	}
	if t.Base != nil {
		if err := t.Base.serialize(t.Base, buf, v); err != nil {
			return err
		}
	}
	skippedExtension := false
	for _, field := range t.Fields {
		fv, present := obj[field.Name]
		if present {
			if skippedExtension {
				return fmt.Errorf("unexpected %s.%s", t.Name, field.Name)
			}
			if err := field.Type.Serialize(buf, fv); err != nil {
				return fmt.Errorf("field %s: %w", field.Name, err)
			}
		} else if field.Type.ExtensionOf != nil {
			skippedExtension = true
		} else {
			return fmt.Errorf("missing %s.%s (type=%s)", t.Name, field.Name, field.Type.Name)
		}
	}
	return nil
}

func deserializeStruct(t *Type, buf *SerialBuffer) (any, error) {
	out := make(map[string]any)
	if t.Base != nil {
		base, err := t.Base.deserialize(t.Base, buf)
		if err != nil {
			return nil, err
		}
		for k, v := range base.(map[string]any) {
			out[k] = v
		}
	}
	for _, field := range t.Fields {
		if field.Type.ExtensionOf != nil && !buf.HaveReadData() {
			continue
		}
		fv, err := field.Type.Deserialize(buf)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		out[field.Name] = fv
	}
	return out, nil
}

// Variant values travel as a pair [typeName, value] selecting one of the
// declared alternatives by name.
func serializeVariant(t *Type, buf *SerialBuffer, v any) error {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return fmt.Errorf("expected variant [type, value], got %T", v)
	}
	typeName, err := coerceString(pair[0])
	if err != nil {
		return err
	}
	for i, field := range t.Fields {
		if field.Name == typeName {
			buf.PushVaruint32(uint32(i))
			return field.Type.Serialize(buf, pair[1])
		}
	}
	return fmt.Errorf("type %q is not valid for variant %s", typeName, t.Name)
}

func deserializeVariant(t *Type, buf *SerialBuffer) (any, error) {
	idx, err := buf.GetVaruint32()
	if err != nil {
		return nil, err
	}
	if int(idx) >= len(t.Fields) {
		return nil, fmt.Errorf("invalid index %d for variant %s", idx, t.Name)
	}
	field := t.Fields[idx]
	v, err := field.Type.Deserialize(buf)
	if err != nil {
		return nil, err
	}
	return []any{field.Name, v}, nil
}

// GetType resolves a type name against the registry, constructing array
// (T[]), optional (T?) and binary-extension (T$) wrappers on the fly.
func GetType(types map[string]*Type, name string) (*Type, error) {
	switch {
	case strings.HasSuffix(name, "[]"):
		inner, err := GetType(types, name[:len(name)-2])
		if err != nil {
			return nil, err
		}
		return &Type{Name: name, ArrayOf: inner, serialize: serializeArray, deserialize: deserializeArray}, nil
	case strings.HasSuffix(name, "?"):
		inner, err := GetType(types, name[:len(name)-1])
		if err != nil {
			return nil, err
		}
		return &Type{Name: name, OptionalOf: inner, serialize: serializeOptional, deserialize: deserializeOptional}, nil
	case strings.HasSuffix(name, "$"):
		inner, err := GetType(types, name[:len(name)-1])
		if err != nil {
			return nil, err
		}
		return &Type{Name: name, ExtensionOf: inner, serialize: serializeExtension, deserialize: deserializeExtension}, nil
	}
	t, ok := types[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	return t, nil
}
