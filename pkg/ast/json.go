// Canonical JSON encoding and decoding for expression ASTs.
//
// Every node encodes to an object with a "kind" discriminant. Encoding goes
// through map values so that encoding/json's sorted-key output yields one
// canonical byte sequence per structurally equal AST; Hash depends on this.
package ast

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a node to its canonical JSON form.
func Encode(n Node) ([]byte, error) {
	v, err := encodeNode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// Decode parses canonical JSON back into an AST.
func Decode(data []byte) (Node, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding ast: %w", err)
	}
	return decodeNode(raw)
}

func encodeNode(n Node) (map[string]any, error) {
	switch t := n.(type) {
	case *Literal:
		m := map[string]any{"kind": KindLiteral, "type": t.Type}
		switch t.Type {
		case LitBool:
			m["value"] = t.BoolV
		case LitNumber:
			m["value"] = t.Number
		case LitString:
			m["value"] = t.Str
		case LitNull:
			// no value key
		case LitList:
			items := make([]any, 0, len(t.List))
			for _, it := range t.List {
				enc, err := encodeNode(it)
				if err != nil {
					return nil, err
				}
				items = append(items, enc)
			}
			m["value"] = items
		default:
			return nil, fmt.Errorf("unknown literal type %q", t.Type)
		}
		return m, nil
	case *Field:
		return map[string]any{"kind": KindField, "path": t.Path}, nil
	case *Not:
		inner, err := encodeNode(t.Expr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": KindNot, "expr": inner}, nil
	case *Logical:
		return encodeBinary(KindLogical, t.Op, t.LHS, t.RHS)
	case *Compare:
		return encodeBinary(KindCompare, t.Op, t.LHS, t.RHS)
	case *Arith:
		return encodeBinary(KindArith, t.Op, t.LHS, t.RHS)
	case *Membership:
		item, err := encodeNode(t.Item)
		if err != nil {
			return nil, err
		}
		list, err := encodeNode(t.List)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": KindMembership, "op": t.Op, "item": item, "list": list}, nil
	case *Contains:
		container, err := encodeNode(t.Container)
		if err != nil {
			return nil, err
		}
		value, err := encodeNode(t.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": KindContains, "container": container, "value": value}, nil
	case *RegexMatch:
		subject, err := encodeNode(t.Subject)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": KindRegexMatch, "subject": subject, "pattern": t.Pattern}, nil
	case *Call:
		args := make([]any, 0, len(t.Args))
		for _, a := range t.Args {
			enc, err := encodeNode(a)
			if err != nil {
				return nil, err
			}
			args = append(args, enc)
		}
		return map[string]any{"kind": KindCall, "name": t.Name, "args": args}, nil
	case *ExprRef:
		m := map[string]any{"kind": KindExprRef}
		if t.Pinned() {
			m["version_id"] = t.VersionID
		} else {
			m["chronicle_id"] = t.ChronicleID
			m["label"] = t.Label
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown node type %T", n)
	}
}

func encodeBinary(kind, op string, lhs, rhs Node) (map[string]any, error) {
	l, err := encodeNode(lhs)
	if err != nil {
		return nil, err
	}
	r, err := encodeNode(rhs)
	if err != nil {
		return nil, err
	}
	return map[string]any{"kind": kind, "op": op, "lhs": l, "rhs": r}, nil
}

func decodeNode(raw map[string]json.RawMessage) (Node, error) {
	var kind string
	if err := json.Unmarshal(raw["kind"], &kind); err != nil {
		return nil, fmt.Errorf("decoding node kind: %w", err)
	}
	switch kind {
	case KindLiteral:
		return decodeLiteral(raw)
	case KindField:
		var path []string
		if err := json.Unmarshal(raw["path"], &path); err != nil {
			return nil, fmt.Errorf("decoding field path: %w", err)
		}
		return &Field{Path: path}, nil
	case KindNot:
		inner, err := decodeChild(raw, "expr")
		if err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil
	case KindLogical:
		op, lhs, rhs, err := decodeBinary(raw)
		if err != nil {
			return nil, err
		}
		return &Logical{Op: op, LHS: lhs, RHS: rhs}, nil
	case KindCompare:
		op, lhs, rhs, err := decodeBinary(raw)
		if err != nil {
			return nil, err
		}
		return &Compare{Op: op, LHS: lhs, RHS: rhs}, nil
	case KindArith:
		op, lhs, rhs, err := decodeBinary(raw)
		if err != nil {
			return nil, err
		}
		return &Arith{Op: op, LHS: lhs, RHS: rhs}, nil
	case KindMembership:
		var op string
		if err := json.Unmarshal(raw["op"], &op); err != nil {
			return nil, fmt.Errorf("decoding membership op: %w", err)
		}
		item, err := decodeChild(raw, "item")
		if err != nil {
			return nil, err
		}
		list, err := decodeChild(raw, "list")
		if err != nil {
			return nil, err
		}
		return &Membership{Op: op, Item: item, List: list}, nil
	case KindContains:
		container, err := decodeChild(raw, "container")
		if err != nil {
			return nil, err
		}
		value, err := decodeChild(raw, "value")
		if err != nil {
			return nil, err
		}
		return &Contains{Container: container, Value: value}, nil
	case KindRegexMatch:
		subject, err := decodeChild(raw, "subject")
		if err != nil {
			return nil, err
		}
		var pattern string
		if err := json.Unmarshal(raw["pattern"], &pattern); err != nil {
			return nil, fmt.Errorf("decoding regex pattern: %w", err)
		}
		return &RegexMatch{Subject: subject, Pattern: pattern}, nil
	case KindCall:
		var name string
		if err := json.Unmarshal(raw["name"], &name); err != nil {
			return nil, fmt.Errorf("decoding call name: %w", err)
		}
		var rawArgs []map[string]json.RawMessage
		if err := json.Unmarshal(raw["args"], &rawArgs); err != nil {
			return nil, fmt.Errorf("decoding call args: %w", err)
		}
		args := make([]Node, 0, len(rawArgs))
		for _, ra := range rawArgs {
			a, err := decodeNode(ra)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		return &Call{Name: name, Args: args}, nil
	case KindExprRef:
		ref := &ExprRef{}
		if v, ok := raw["version_id"]; ok {
			if err := json.Unmarshal(v, &ref.VersionID); err != nil {
				return nil, fmt.Errorf("decoding version_id: %w", err)
			}
			return ref, nil
		}
		if err := json.Unmarshal(raw["chronicle_id"], &ref.ChronicleID); err != nil {
			return nil, fmt.Errorf("decoding chronicle_id: %w", err)
		}
		if err := json.Unmarshal(raw["label"], &ref.Label); err != nil {
			return nil, fmt.Errorf("decoding label: %w", err)
		}
		return ref, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}

func decodeLiteral(raw map[string]json.RawMessage) (Node, error) {
	var litType string
	if err := json.Unmarshal(raw["type"], &litType); err != nil {
		return nil, fmt.Errorf("decoding literal type: %w", err)
	}
	lit := &Literal{Type: litType}
	switch litType {
	case LitBool:
		if err := json.Unmarshal(raw["value"], &lit.BoolV); err != nil {
			return nil, fmt.Errorf("decoding bool literal: %w", err)
		}
	case LitNumber:
		if err := json.Unmarshal(raw["value"], &lit.Number); err != nil {
			return nil, fmt.Errorf("decoding number literal: %w", err)
		}
	case LitString:
		if err := json.Unmarshal(raw["value"], &lit.Str); err != nil {
			return nil, fmt.Errorf("decoding string literal: %w", err)
		}
	case LitNull:
		// nothing to decode
	case LitList:
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(raw["value"], &items); err != nil {
			return nil, fmt.Errorf("decoding list literal: %w", err)
		}
		for _, item := range items {
			n, err := decodeNode(item)
			if err != nil {
				return nil, err
			}
			lit.List = append(lit.List, n)
		}
	default:
		return nil, fmt.Errorf("unknown literal type %q", litType)
	}
	return lit, nil
}

func decodeChild(raw map[string]json.RawMessage, key string) (Node, error) {
	var child map[string]json.RawMessage
	if err := json.Unmarshal(raw[key], &child); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return decodeNode(child)
}

func decodeBinary(raw map[string]json.RawMessage) (op string, lhs, rhs Node, err error) {
	if err = json.Unmarshal(raw["op"], &op); err != nil {
		return "", nil, nil, fmt.Errorf("decoding op: %w", err)
	}
	if lhs, err = decodeChild(raw, "lhs"); err != nil {
		return "", nil, nil, err
	}
	if rhs, err = decodeChild(raw, "rhs"); err != nil {
		return "", nil, nil, err
	}
	return op, lhs, rhs, nil
}
