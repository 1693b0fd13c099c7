package backup

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/seedlink/internal/kvstore"
)

// bytesType tags string values that are not valid UTF-8. JSON and YAML
// cannot carry them verbatim, so they travel base64 encoded.
const bytesType = "bytes"

// typedValue carries a non-string scalar in its stringified form.
type typedValue struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

func sortedKeys(d Document) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func entry(v kvstore.Value) any {
	if v.Kind == kvstore.KindString {
		if !utf8.ValidString(v.Str) {
			return typedValue{Type: bytesType, Value: base64.StdEncoding.EncodeToString([]byte(v.Str))}
		}
		return v.Str
	}
	return typedValue{Type: v.Kind.String(), Value: v.Text()}
}

func (t typedValue) value(key string) (kvstore.Value, error) {
	if t.Type == bytesType {
		raw, err := base64.StdEncoding.DecodeString(t.Value)
		if err != nil {
			return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
		return kvstore.String(string(raw)), nil
	}
	kind, err := kvstore.ParseKind(t.Type)
	if err != nil {
		return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	v, err := kvstore.Parse(kind, t.Value)
	if err != nil {
		return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return v, nil
}

// --- JSON ---

func encodeJSON(d Document) ([]byte, error) {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = entry(v)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decodeJSON(data []byte) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is not an object", ErrMalformed)
	}

	doc := make(Document, len(raw))
	for k, msg := range raw {
		v, err := decodeJSONValue(k, msg)
		if err != nil {
			return nil, err
		}
		doc[k] = v
	}
	return doc, nil
}

func decodeJSONValue(key string, msg json.RawMessage) (kvstore.Value, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 {
		return kvstore.Value{}, fmt.Errorf("%w: %s: empty value", ErrMalformed, key)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
		return kvstore.String(s), nil
	case '{':
		var tv typedValue
		if err := json.Unmarshal(trimmed, &tv); err != nil {
			return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
		return tv.value(key)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
		return kvstore.Bool(b), nil
	}
	// Bare integers are accepted for hand-written documents.
	if i, err := strconv.ParseInt(string(trimmed), 10, 64); err == nil {
		return kvstore.Int(i), nil
	}
	return kvstore.Value{}, fmt.Errorf("%w: %s: unsupported value %s", ErrMalformed, key, trimmed)
}

// --- YAML ---

func encodeYAML(d Document) ([]byte, error) {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = entry(v)
	}
	return yaml.Marshal(out)
}

func decodeYAML(data []byte) (Document, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: document is not a mapping", ErrMalformed)
	}

	doc := make(Document, len(raw))
	for k, node := range raw {
		v, err := decodeYAMLValue(k, &node)
		if err != nil {
			return nil, err
		}
		doc[k] = v
	}
	return doc, nil
}

func decodeYAMLValue(key string, node *yaml.Node) (kvstore.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!str":
			return kvstore.String(node.Value), nil
		case "!!int":
			v, err := kvstore.Parse(kvstore.KindInt, node.Value)
			if err != nil {
				return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
			}
			return v, nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
			}
			return kvstore.Bool(b), nil
		}
	case yaml.MappingNode:
		var tv typedValue
		if err := node.Decode(&tv); err != nil {
			return kvstore.Value{}, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
		}
		return tv.value(key)
	}
	return kvstore.Value{}, fmt.Errorf("%w: %s: unsupported value at line %d", ErrMalformed, key, node.Line)
}
