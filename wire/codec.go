package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Decode parses raw JSON bytes into a Value tree. The rest of the bridge
// treats the JSON lexer as an external collaborator (§1); Decode/Encode are
// the boundary where that collaborator would plug in. They are implemented
// on top of encoding/json's tokenizer rather than a hand-rolled scanner.
func Decode(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromInterface(raw), nil
}

func fromInterface(raw interface{}) *Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(v)
	case json.Number:
		f, _ := v.Float64()
		return &Value{Kind: KindNumber, Number: f, NumberLiteral: string(v)}
	case float64:
		return Number(v)
	case string:
		return String(v)
	case []interface{}:
		elems := make([]*Value, len(v))
		for i, e := range v {
			elems[i] = fromInterface(e)
		}
		return Array(elems...)
	case map[string]interface{}:
		obj := Object()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			obj.Set(k, fromInterface(v[k]))
		}
		return obj
	default:
		panic(fmt.Sprintf("wire: unexpected decoded type %T", raw))
	}
}

// Encode renders a Value tree as JSON bytes, escaping strings via
// EscapeString instead of encoding/json's default escaping.
func Encode(v *Value) []byte {
	var b bytes.Buffer
	encodeInto(&b, v)
	return b.Bytes()
}

func encodeInto(b *bytes.Buffer, v *Value) {
	if v == nil {
		b.WriteString("null")
		return
	}
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindNumber:
		if v.NumberLiteral != "" {
			b.WriteString(v.NumberLiteral)
		} else {
			b.WriteString(formatNumber(v.Number))
		}
	case KindString:
		b.WriteString(EscapeString(v.Str))
	case KindArray:
		b.WriteByte('[')
		for i, e := range v.Array {
			if i > 0 {
				b.WriteByte(',')
			}
			encodeInto(b, e)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('{')
		for i, k := range v.Keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(EscapeString(k))
			b.WriteByte(':')
			encodeInto(b, v.Fields[k])
		}
		b.WriteByte('}')
	}
}

func formatNumber(f float64) string {
	buf, _ := json.Marshal(f)
	return string(buf)
}
