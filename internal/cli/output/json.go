package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes indented JSON. Set Compact for one value per line.
type JSONFormatter struct {
	Compact bool
}

// Format encodes data without HTML escaping so memos and URIs print as sent.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if !f.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
