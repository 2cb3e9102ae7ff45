package abiSerializer

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedAbiVersion is returned when a raw ABI's version string is not
// one this codec understands. This is fatal and never retried: an unsupported
// schema cannot be decoded into usable type descriptors.
var ErrUnsupportedAbiVersion = errors.New("unsupported abi version")

const supportedAbiVersionPrefix = "eosio::abi/1."

// TypeDef aliases an existing type under a new name.
type TypeDef struct {
	NewTypeName string `json:"new_type_name"`
	Type        string `json:"type"`
}

// FieldDef is a named, typed member of a struct definition.
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// StructDef declares a struct type, optionally extending a base struct.
type StructDef struct {
	Name   string     `json:"name"`
	Base   string     `json:"base"`
	Fields []FieldDef `json:"fields"`
}

// ActionDef binds an action name to the struct type of its payload.
type ActionDef struct {
	Name              string `json:"name"`
	Type              string `json:"type"`
	RicardianContract string `json:"ricardian_contract"`
}

// TableDef declares an on-chain table; carried through decode for
// completeness, not consumed by this pipeline.
type TableDef struct {
	Name      string   `json:"name"`
	IndexType string   `json:"index_type"`
	KeyNames  []string `json:"key_names"`
	KeyTypes  []string `json:"key_types"`
	Type      string   `json:"type"`
}

// ClausePair is a ricardian clause attached to the ABI.
type ClausePair struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// ErrorMessage maps a contract error code to human-readable text.
type ErrorMessage struct {
	ErrorCode uint64 `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// AbiExtension is a tagged opaque extension blob.
type AbiExtension struct {
	Tag   uint16 `json:"tag"`
	Value string `json:"value"`
}

// VariantDef declares a tagged union over a list of type names.
type VariantDef struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

// ActionResultDef binds an action name to its declared return type.
type ActionResultDef struct {
	Name       string `json:"name"`
	ResultType string `json:"result_type"`
}

// Abi is the structured form of a contract schema.
type Abi struct {
	Version          string            `json:"version"`
	Types            []TypeDef         `json:"types"`
	Structs          []StructDef       `json:"structs"`
	Actions          []ActionDef       `json:"actions"`
	Tables           []TableDef        `json:"tables"`
	RicardianClauses []ClausePair      `json:"ricardian_clauses"`
	ErrorMessages    []ErrorMessage    `json:"error_messages"`
	AbiExtensions    []AbiExtension    `json:"abi_extensions"`
	Variants         []VariantDef      `json:"variants"`
	ActionResults    []ActionResultDef `json:"action_results"`
}

func decodeVector[T any](buf *SerialBuffer, item func(*SerialBuffer) (T, error)) ([]T, error) {
	n, err := buf.GetVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := item(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeStringVector(buf *SerialBuffer) ([]string, error) {
	return decodeVector(buf, (*SerialBuffer).GetString)
}

// DecodeAbi decodes a binary abi_def into its structured form. The version
// string at the head of the buffer is validated first; anything outside the
// supported 1.x family fails with ErrUnsupportedAbiVersion. Trailing fields
// (variants, action results) are optional: older schemas simply end early.
func DecodeAbi(raw []byte) (*Abi, error) {
	buf := NewSerialBuffer(raw)
	version, err := buf.GetString()
	if err != nil {
		return nil, fmt.Errorf("decoding abi version: %w", err)
	}
	if !strings.HasPrefix(version, supportedAbiVersionPrefix) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAbiVersion, version)
	}
	abi := &Abi{Version: version}

	abi.Types, err = decodeVector(buf, func(b *SerialBuffer) (TypeDef, error) {
		var d TypeDef
		var err error
		if d.NewTypeName, err = b.GetString(); err != nil {
			return d, err
		}
		d.Type, err = b.GetString()
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("decoding abi typedefs: %w", err)
	}

	abi.Structs, err = decodeVector(buf, func(b *SerialBuffer) (StructDef, error) {
		var d StructDef
		var err error
		if d.Name, err = b.GetString(); err != nil {
			return d, err
		}
		if d.Base, err = b.GetString(); err != nil {
			return d, err
		}
		d.Fields, err = decodeVector(b, func(b *SerialBuffer) (FieldDef, error) {
			var f FieldDef
			var err error
			if f.Name, err = b.GetString(); err != nil {
				return f, err
			}
			f.Type, err = b.GetString()
			return f, err
		})
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("decoding abi structs: %w", err)
	}

	abi.Actions, err = decodeVector(buf, func(b *SerialBuffer) (ActionDef, error) {
		var d ActionDef
		var err error
		if d.Name, err = b.GetName(); err != nil {
			return d, err
		}
		if d.Type, err = b.GetString(); err != nil {
			return d, err
		}
		d.RicardianContract, err = b.GetString()
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("decoding abi actions: %w", err)
	}

	abi.Tables, err = decodeVector(buf, func(b *SerialBuffer) (TableDef, error) {
		var d TableDef
		var err error
		if d.Name, err = b.GetName(); err != nil {
			return d, err
		}
		if d.IndexType, err = b.GetString(); err != nil {
			return d, err
		}
		if d.KeyNames, err = decodeStringVector(b); err != nil {
			return d, err
		}
		if d.KeyTypes, err = decodeStringVector(b); err != nil {
			return d, err
		}
		d.Type, err = b.GetString()
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("decoding abi tables: %w", err)
	}

	abi.RicardianClauses, err = decodeVector(buf, func(b *SerialBuffer) (ClausePair, error) {
		var d ClausePair
		var err error
		if d.ID, err = b.GetString(); err != nil {
			return d, err
		}
		d.Body, err = b.GetString()
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("decoding abi ricardian clauses: %w", err)
	}

	abi.ErrorMessages, err = decodeVector(buf, func(b *SerialBuffer) (ErrorMessage, error) {
		var d ErrorMessage
		var err error
		if d.ErrorCode, err = b.GetUint64(); err != nil {
			return d, err
		}
		d.ErrorMsg, err = b.GetString()
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("decoding abi error messages: %w", err)
	}

	abi.AbiExtensions, err = decodeVector(buf, func(b *SerialBuffer) (AbiExtension, error) {
		var d AbiExtension
		var err error
		if d.Tag, err = b.GetUint16(); err != nil {
			return d, err
		}
		value, err := b.GetBytes()
		d.Value = hex.EncodeToString(value)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("decoding abi extensions: %w", err)
	}

	if buf.HaveReadData() {
		abi.Variants, err = decodeVector(buf, func(b *SerialBuffer) (VariantDef, error) {
			var d VariantDef
			var err error
			if d.Name, err = b.GetString(); err != nil {
				return d, err
			}
			d.Types, err = decodeStringVector(b)
			return d, err
		})
		if err != nil {
			return nil, fmt.Errorf("decoding abi variants: %w", err)
		}
	}

	if buf.HaveReadData() {
		abi.ActionResults, err = decodeVector(buf, func(b *SerialBuffer) (ActionResultDef, error) {
			var d ActionResultDef
			var err error
			if d.Name, err = b.GetName(); err != nil {
				return d, err
			}
			d.ResultType, err = b.GetString()
			return d, err
		})
		if err != nil {
			return nil, fmt.Errorf("decoding abi action results: %w", err)
		}
	}

	return abi, nil
}

// AbiTypes builds a type registry from the built-ins extended with the ABI's
// declared typedefs, structs and variants. The registry is rebuilt from
// scratch on every call; callers cache the result per account.
func AbiTypes(abi *Abi) (map[string]*Type, error) {
	types := NewBuiltinTypes()

	for _, s := range abi.Structs {
		types[s.Name] = &Type{
			Name:        s.Name,
			BaseName:    s.Base,
			serialize:   serializeStruct,
			deserialize: deserializeStruct,
		}
	}
	for _, v := range abi.Variants {
		types[v.Name] = &Type{
			Name:        v.Name,
			serialize:   serializeVariant,
			deserialize: deserializeVariant,
		}
	}

	// Typedefs may alias other typedefs in any order; iterate until the set
	// stops shrinking, then anything left references an unknown type.
	pending := append([]TypeDef(nil), abi.Types...)
	for len(pending) > 0 {
		remaining := pending[:0]
		for _, td := range pending {
			target, err := GetType(types, td.Type)
			if err != nil {
				remaining = append(remaining, td)
				continue
			}
			types[td.NewTypeName] = target
		}
		if len(remaining) == len(pending) {
			return nil, fmt.Errorf("unknown type %q aliased as %q", pending[0].Type, pending[0].NewTypeName)
		}
		pending = remaining
	}

	for _, s := range abi.Structs {
		t := types[s.Name]
		if s.Base != "" {
			base, err := GetType(types, s.Base)
			if err != nil {
				return nil, fmt.Errorf("struct %s: resolving base: %w", s.Name, err)
			}
			t.Base = base
		}
		for _, f := range s.Fields {
			ft, err := GetType(types, f.Type)
			if err != nil {
				return nil, fmt.Errorf("struct %s: resolving field %s: %w", s.Name, f.Name, err)
			}
			t.Fields = append(t.Fields, Field{Name: f.Name, TypeName: f.Type, Type: ft})
		}
	}
	for _, v := range abi.Variants {
		t := types[v.Name]
		for _, typeName := range v.Types {
			ft, err := GetType(types, typeName)
			if err != nil {
				return nil, fmt.Errorf("variant %s: resolving %s: %w", v.Name, typeName, err)
			}
			t.Fields = append(t.Fields, Field{Name: typeName, TypeName: typeName, Type: ft})
		}
	}

	return types, nil
}

// ActionTypes maps each declared action name to its payload type descriptor.
func ActionTypes(abi *Abi, types map[string]*Type) (map[string]*Type, error) {
	actions := make(map[string]*Type, len(abi.Actions))
	for _, a := range abi.Actions {
		t, err := GetType(types, a.Type)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", a.Name, err)
		}
		actions[a.Name] = t
	}
	return actions, nil
}

// SerializeActionData converts structured action data to its hex wire form
// using the action's payload type descriptor.
func SerializeActionData(actionType *Type, data any) (string, error) {
	buf := NewSerialBuffer(nil)
	if err := actionType.Serialize(buf, data); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// DeserializeActionData converts hex action data back to structured form.
func DeserializeActionData(actionType *Type, hexData string) (any, error) {
	raw, err := hex.DecodeString(hexData)
	if err != nil {
		return nil, fmt.Errorf("invalid hex action data: %w", err)
	}
	buf := NewSerialBuffer(raw)
	return actionType.Deserialize(buf)
}
