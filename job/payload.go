package job

import (
	"encoding/json"
	"fmt"
)

// Payload is the structured key→value input of a Request. It serializes
// to JSON for storage and must round-trip losslessly, so values are
// restricted to JSON-native types: string, float64, bool, nil,
// []any and map[string]any.
type Payload map[string]any

// Get returns the value for key and whether it was present.
func (p Payload) Get(key string) (any, bool) {
	v, ok := p[key]
	return v, ok
}

// String returns the string value for key, or "" when absent or not a
// string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Float returns the numeric value for key, or 0 when absent or not a
// number. JSON numbers always decode as float64.
func (p Payload) Float(key string) float64 {
	f, _ := p[key].(float64)
	return f
}

// Clone returns a deep copy of the payload by round-tripping through
// JSON. A nil payload clones to nil.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		// Payloads hold JSON-native values only; marshal cannot fail
		// for well-formed payloads.
		panic(fmt.Sprintf("job: clone payload: %v", err))
	}
	var out Payload
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("job: clone payload: %v", err))
	}
	return out
}

// Decode parses a stored JSON payload.
func Decode(data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("job: decode payload: %w", err)
	}
	return p, nil
}
