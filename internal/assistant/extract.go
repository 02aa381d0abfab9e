package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("assistant: no json object in completion")

// ExtractJSONObject returns the first well-formed JSON object embedded in text.
// Prose, code fences, and earlier malformed fragments are skipped.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	for offset := 0; offset < len(text); {
		start := strings.IndexByte(text[offset:], '{')
		if start < 0 {
			break
		}
		start += offset
		decoder := json.NewDecoder(strings.NewReader(text[start:]))
		var candidate json.RawMessage
		if err := decoder.Decode(&candidate); err == nil && bytes.HasPrefix(bytes.TrimSpace(candidate), []byte("{")) {
			return candidate, nil
		}
		offset = start + 1
	}
	return nil, errNoJSONObject
}
