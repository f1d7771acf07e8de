package output

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"go.yaml.in/yaml/v3"
)

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// Format formats data as YAML. Values pass through their JSON form first
// so field names and text encodings match the JSON output.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(numbers(generic)); err != nil {
		return err
	}
	return enc.Close()
}

// numbers replaces json.Number leaves with integers where they fit, so
// amounts above 2^53 survive.
func numbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = numbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = numbers(e)
		}
	case json.Number:
		if n, err := strconv.ParseUint(string(t), 10, 64); err == nil {
			return n
		}
		if n, err := t.Int64(); err == nil {
			return n
		}
		if n, err := t.Float64(); err == nil {
			return n
		}
		return string(t)
	}
	return v
}
