package bytecode

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// jsonStringify serializes v per JSON.stringify's visible rules: undefined,
// functions, and symbols vanish (ok=false at the top level, skipped inside
// objects, null inside arrays); NaN and the infinities serialize as null.
func jsonStringify(vm *VM, v Value, indent, curIndent string) (string, bool) {
	switch v.Type {
	case ValueUndefined, ValueFunction, ValueSymbol:
		return "", false
	case ValueNull:
		return "null", true
	case ValueBool:
		if v.AsBool() {
			return "true", true
		}
		return "false", true
	case ValueNumber:
		f := v.AsNumber()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "null", true
		}
		return formatNumber(f), true
	case ValueString:
		return jsonQuote(v.AsString()), true
	case ValueArray:
		arr := v.Data.(*ArrayInstance)
		return jsonStringifyArray(vm, arr, indent, curIndent), true
	case ValueObject, ValueInstance, ValueMap:
		return jsonStringifyObject(vm, v, indent, curIndent), true
	case ValueHost:
		if d, ok := v.Data.(*DateInstance); ok {
			return jsonQuote(d.Time.UTC().Format("2006-01-02T15:04:05.000Z")), true
		}
		return "{}", true
	default:
		return "{}", true
	}
}

func jsonStringifyArray(vm *VM, arr *ArrayInstance, indent, curIndent string) string {
	if len(arr.Elements) == 0 {
		return "[]"
	}
	inner := curIndent + indent
	parts := make([]string, len(arr.Elements))
	for i, el := range arr.Elements {
		s, ok := jsonStringify(vm, el, indent, inner)
		if !ok {
			s = "null"
		}
		parts[i] = s
	}
	if indent == "" {
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "[\n" + inner + strings.Join(parts, ",\n"+inner) + "\n" + curIndent + "]"
}

func jsonStringifyObject(vm *VM, v Value, indent, curIndent string) string {
	keys := OwnKeys(v)
	if v.Type == ValueMap {
		keys = nil // Maps serialize as {} like in JS
	}
	inner := curIndent + indent
	var parts []string
	for _, k := range keys {
		s, ok := jsonStringify(vm, vm.GetProperty(v, k), indent, inner)
		if !ok {
			continue
		}
		sep := ":"
		if indent != "" {
			sep = ": "
		}
		parts = append(parts, jsonQuote(k)+sep+s)
	}
	if len(parts) == 0 {
		return "{}"
	}
	if indent == "" {
		return "{" + strings.Join(parts, ",") + "}"
	}
	return "{\n" + inner + strings.Join(parts, ",\n"+inner) + "\n" + curIndent + "}"
}

// jsonQuote escapes s the way JSON.stringify does: the two-character escapes
// for the common controls, \u00XX for the rest, and no non-ASCII escaping.
func jsonQuote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if r < 0x20 {
				sb.WriteString(fmt.Sprintf(`\u%04x`, r))
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// jsonParse decodes src into the value universe, preserving object key
// order via token-level decoding (encoding/json's map decoding would lose
// it, and Map/Set §8 ordering laws extend to parsed objects).
func jsonParse(src string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	v, err := jsonParseValue(dec)
	if err != nil {
		return Undefined(), err
	}
	// Trailing garbage is a syntax error, same as in JS.
	if dec.More() {
		return Undefined(), fmt.Errorf("unexpected trailing content")
	}
	return v, nil
}

func jsonParseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Undefined(), err
	}
	return jsonTokenValue(dec, tok)
}

func jsonTokenValue(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Undefined(), err
		}
		return NumberValue(f), nil
	case string:
		return StringValue(t), nil
	case json.Delim:
		switch t {
		case '[':
			var elems []Value
			for dec.More() {
				v, err := jsonParseValue(dec)
				if err != nil {
					return Undefined(), err
				}
				elems = append(elems, v)
			}
			if _, err := dec.Token(); err != nil { // ']'
				return Undefined(), err
			}
			return ArrayValue(&ArrayInstance{Elements: elems}), nil
		case '{':
			obj := NewPlainObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Undefined(), err
				}
				key, _ := keyTok.(string)
				v, err := jsonParseValue(dec)
				if err != nil {
					return Undefined(), err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil { // '}'
				return Undefined(), err
			}
			return ObjectValue(obj), nil
		}
	}
	return Undefined(), fmt.Errorf("unexpected token %v", tok)
}
