package tables

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goccy/go-json"
)

// TypedItem is an item in DynamoDB JSON: every attribute is an object with a
// single type descriptor, for example {"tags": {"SS": ["a", "b"]}}. Unlike
// Item it keeps sets, binary values and numbers distinct, so an item read in
// this form can be written back unchanged.
type TypedItem = map[string]any

// ToTyped renders attribute values as DynamoDB JSON. Numbers stay strings and
// binary values are base64 encoded.
func ToTyped(av map[string]types.AttributeValue) TypedItem {
	out := make(TypedItem, len(av))
	for name, v := range av {
		out[name] = typedValue(v)
	}
	return out
}

func typedValue(v types.AttributeValue) any {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": tv.Value}
	case *types.AttributeValueMemberN:
		return map[string]any{"N": tv.Value}
	case *types.AttributeValueMemberB:
		return map[string]any{"B": base64.StdEncoding.EncodeToString(tv.Value)}
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": tv.Value}
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": true}
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": tv.Value}
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": tv.Value}
	case *types.AttributeValueMemberBS:
		set := make([]string, len(tv.Value))
		for i, b := range tv.Value {
			set[i] = base64.StdEncoding.EncodeToString(b)
		}
		return map[string]any{"BS": set}
	case *types.AttributeValueMemberM:
		return map[string]any{"M": ToTyped(tv.Value)}
	case *types.AttributeValueMemberL:
		list := make([]any, len(tv.Value))
		for i, e := range tv.Value {
			list[i] = typedValue(e)
		}
		return map[string]any{"L": list}
	}
	return nil
}

// FromTyped parses a decoded DynamoDB JSON item.
func FromTyped(doc map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(doc))
	for name, v := range doc {
		av, err := fromTypedValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = av
	}
	return out, nil
}

func fromTypedValue(v any) (types.AttributeValue, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, errors.New("expected an object with one type descriptor")
	}

	for typ, raw := range m {
		switch typ {
		case "S":
			s, err := typedString(raw)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberS{Value: s}, nil
		case "N":
			n, err := typedNumber(raw)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberN{Value: n}, nil
		case "B":
			b, err := typedBinary(raw)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberB{Value: b}, nil
		case "BOOL":
			b, ok := raw.(bool)
			if !ok {
				return nil, errors.New("BOOL must be true or false")
			}
			return &types.AttributeValueMemberBOOL{Value: b}, nil
		case "NULL":
			if b, ok := raw.(bool); !ok || !b {
				return nil, errors.New("NULL must be true")
			}
			return &types.AttributeValueMemberNULL{Value: true}, nil
		case "SS":
			set, err := typedSet(raw, typedString)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberSS{Value: set}, nil
		case "NS":
			set, err := typedSet(raw, typedNumber)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberNS{Value: set}, nil
		case "BS":
			set, err := typedSet(raw, typedBinary)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberBS{Value: set}, nil
		case "M":
			inner, ok := raw.(map[string]any)
			if !ok {
				return nil, errors.New("M must be an object")
			}
			av, err := FromTyped(inner)
			if err != nil {
				return nil, err
			}
			return &types.AttributeValueMemberM{Value: av}, nil
		case "L":
			list, ok := raw.([]any)
			if !ok {
				return nil, errors.New("L must be an array")
			}
			out := make([]types.AttributeValue, len(list))
			for i, e := range list {
				av, err := fromTypedValue(e)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out[i] = av
			}
			return &types.AttributeValueMemberL{Value: out}, nil
		default:
			return nil, fmt.Errorf("unknown type descriptor %q", typ)
		}
	}
	return nil, errors.New("expected an object with one type descriptor")
}

func typedString(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", errors.New("S must be a string")
	}
	return s, nil
}

// typedNumber accepts the string form DynamoDB JSON uses and bare JSON
// numbers typed by hand.
func typedNumber(raw any) (string, error) {
	var n json.Number
	switch tv := raw.(type) {
	case string:
		n = json.Number(strings.TrimSpace(tv))
	case json.Number:
		n = tv
	default:
		return "", errors.New("N must be a number string")
	}
	if _, err := n.Float64(); err != nil {
		return "", fmt.Errorf("N %q is not a number", n)
	}
	return n.String(), nil
}

func typedBinary(raw any) ([]byte, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, errors.New("B must be a base64 string")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("B must be a base64 string")
	}
	return b, nil
}

func typedSet[T any](raw any, elem func(any) (T, error)) ([]T, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, errors.New("sets must be non-empty arrays")
	}
	out := make([]T, len(list))
	for i, e := range list {
		v, err := elem(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// checkKeyTypes verifies that av carries every key attribute of table with
// its declared scalar type.
func checkKeyTypes(table *Table, av map[string]types.AttributeValue) error {
	for _, attr := range table.Keys() {
		v, ok := av[attr.Name]
		if !ok {
			return fmt.Errorf("missing key attribute %q", attr.Name)
		}
		var match bool
		switch tv := v.(type) {
		case *types.AttributeValueMemberS:
			match = attr.Type == string(types.ScalarAttributeTypeS) && tv.Value != ""
		case *types.AttributeValueMemberN:
			match = attr.Type == string(types.ScalarAttributeTypeN)
		case *types.AttributeValueMemberB:
			match = attr.Type == string(types.ScalarAttributeTypeB) && len(tv.Value) > 0
		}
		if !match {
			return fmt.Errorf("key attribute %q must be of type %s", attr.Name, attr.Type)
		}
	}
	return nil
}
