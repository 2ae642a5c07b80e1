// Package cborelement implements the validated CBOR element decoding
// primitive from C1: ValidElement maps raw CBOR bytes to a tagged Element
// sum type, accumulating the first decode failure rather than exposing a
// partially constructed tree.
package cborelement

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind discriminates the variant held by an Element.
type Kind int

// Element kinds, one per spec.md C1 CBOR element variant.
const (
	KindBytes Kind = iota
	KindText
	KindUint
	KindInt
	KindFloat
	KindBool
	KindNull
	KindArray
	KindMap
	KindTagged
)

// Element is the tagged CBOR value produced by ValidElement.
type Element struct {
	Kind Kind

	Bytes  []byte
	Text   string
	Uint   uint64
	Int    int64
	Float  float64
	Bool   bool
	Array  []*Element
	Map    []MapEntry
	Tag    uint64
	Tagged *Element
}

// MapEntry is one key/value pair of a decoded CBOR map, kept as a pair since
// CBOR map keys are not restricted to strings. Element.Map does not preserve
// the encoded order of the entries: their order is not defined.
type MapEntry struct {
	Key   *Element
	Value *Element
}

var decMode = func() cbor.DecMode {
	opts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthAllowed,
	}
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cborelement: invalid decode options: %v", err))
	}
	return m
}()

// ValidElement decodes raw CBOR bytes into an Element tree. Children are
// traversed depth-first, accumulating the first failure; no partially built
// Element is ever returned.
func ValidElement(data []byte) (*Element, error) {
	var raw any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cborelement: invalid CBOR: %w", err)
	}
	return classify(raw)
}

func classify(v any) (*Element, error) {
	switch t := v.(type) {
	case nil:
		return &Element{Kind: KindNull}, nil
	case bool:
		return &Element{Kind: KindBool, Bool: t}, nil
	case []byte:
		return &Element{Kind: KindBytes, Bytes: t}, nil
	case string:
		return &Element{Kind: KindText, Text: t}, nil
	case uint64:
		return &Element{Kind: KindUint, Uint: t}, nil
	case int64:
		return &Element{Kind: KindInt, Int: t}, nil
	case float64:
		return &Element{Kind: KindFloat, Float: t}, nil
	case []any:
		children := make([]*Element, len(t))
		for i, child := range t {
			el, err := classify(child)
			if err != nil {
				return nil, fmt.Errorf("cborelement: array element %d: %w", i, err)
			}
			children[i] = el
		}
		return &Element{Kind: KindArray, Array: children}, nil
	case map[any]any:
		entries := make([]MapEntry, 0, len(t))
		for k, mv := range t {
			key, err := classify(k)
			if err != nil {
				return nil, fmt.Errorf("cborelement: map key: %w", err)
			}
			val, err := classify(mv)
			if err != nil {
				return nil, fmt.Errorf("cborelement: map value for key %v: %w", k, err)
			}
			entries = append(entries, MapEntry{Key: key, Value: val})
		}
		return &Element{Kind: KindMap, Map: entries}, nil
	case cbor.Tag:
		inner, err := classify(t.Content)
		if err != nil {
			return nil, fmt.Errorf("cborelement: tagged content (tag %d): %w", t.Number, err)
		}
		return &Element{Kind: KindTagged, Tag: t.Number, Tagged: inner}, nil
	default:
		return nil, fmt.Errorf("cborelement: unsupported CBOR value type %T", v)
	}
}
