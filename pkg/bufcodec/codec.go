// Package bufcodec implements the JSON-with-binary codec the auth-state
// adapter round-trips credential material through: byte slices survive a
// JSON encode/decode cycle as {"type":"Buffer","data":"<base64>"} objects,
// the same wire shape the underlying signal library's own JSON codec
// produces.
package bufcodec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// bufferType is the literal "type" discriminator written and recognized
// on encoded byte arrays.
const bufferType = "Buffer"

// wireBuffer is the on-the-wire shape of an encoded byte array.
type wireBuffer struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Encode traverses v — a decoded any tree, or a typed Go value such as
// Creds or a snapshot struct — and returns its JSON encoding, with every
// []byte it finds anywhere in the traversal rewritten as a
// {"type":"Buffer","data":"<base64>"} object. Typed structs are walked by
// reflection so a []byte field nested several levels deep in a real
// credential struct gets the same wire treatment as one in a decoded
// map[string]any tree.
func Encode(v any) ([]byte, error) {
	return json.Marshal(encodeValue(v))
}

// encodeValue recursively rewrites v so that encoding/json will produce
// the Buffer wire shape for any []byte it finds, whether v came from a
// generic json.Unmarshal tree or is a typed struct/slice/map.
func encodeValue(v any) any {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		return wireBuffer{Type: bufferType, Data: base64.StdEncoding.EncodeToString(b)}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return encodeValue(rv.Elem().Interface())
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, key := range rv.MapKeys() {
			out[fmt.Sprint(key.Interface())] = encodeValue(rv.MapIndex(key).Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = encodeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		return encodeStruct(rv)
	default:
		return v
	}
}

// encodeStruct converts a struct to a map[string]any keyed by its JSON
// field names, recursing encodeValue over every field so nested []byte
// fields (at any depth) are wrapped the same way a top-level one would be.
func encodeStruct(rv reflect.Value) map[string]any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name, omitempty := jsonFieldName(field)
		if name == "-" {
			continue
		}
		fv := rv.Field(i)
		if omitempty && fv.IsZero() {
			continue
		}
		out[name] = encodeValue(fv.Interface())
	}
	return out
}

// jsonFieldName resolves the field's encoding/json name and omitempty
// option from its struct tag, defaulting to the Go field name.
func jsonFieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = field.Name
	}
	omitempty := false
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}

// Decode is the inverse of Encode: it unmarshals data into a generic
// interface{} tree and reconstructs any {"type":"Buffer", data:...}
// object as a []byte. data may have either a base64 string or a JSON
// array of integers — both are accepted, matching the two shapes the
// underlying signal library has emitted across versions.
func Decode(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bufcodec: decode: %w", err)
	}
	return decodeValue(raw), nil
}

func decodeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if buf, ok := asBuffer(t); ok {
			return buf
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = decodeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = decodeValue(val)
		}
		return out
	default:
		return v
	}
}

// asBuffer reports whether m is a {"type":"Buffer", data:...} object and,
// if so, returns the reconstructed byte slice.
func asBuffer(m map[string]any) ([]byte, bool) {
	typ, ok := m["type"].(string)
	if !ok || typ != bufferType {
		return nil, false
	}
	data, ok := m["data"]
	if !ok {
		return []byte{}, true
	}

	switch d := data.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(d)
		if err != nil {
			return nil, false
		}
		return decoded, true
	case []any:
		out := make([]byte, len(d))
		for i, n := range d {
			f, ok := n.(float64)
			if !ok {
				return nil, false
			}
			out[i] = byte(f)
		}
		return out, true
	default:
		return nil, false
	}
}
