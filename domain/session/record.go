package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one dataset row. Unlike a plain map it remembers the order its
// keys arrived in, which the CSV header and the preview table depend on.
// Records are treated as immutable once built.
type Record struct {
	keys   []string
	values map[string]interface{}
}

// NewRecord builds a record from alternating key/value pairs.
// It panics on an odd argument count or a non-string key.
func NewRecord(pairs ...interface{}) Record {
	if len(pairs)%2 != 0 {
		panic("session.NewRecord: odd number of arguments")
	}
	r := Record{values: make(map[string]interface{}, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("session.NewRecord: key %v is not a string", pairs[i]))
		}
		r = r.set(key, pairs[i+1])
	}
	return r
}

func (r Record) set(key string, value interface{}) Record {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, seen := r.values[key]; !seen {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return r
}

// With returns a copy of the record with key set to value
func (r Record) With(key string, value interface{}) Record {
	out := Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]interface{}, len(r.values)+1),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out.set(key, value)
}

// Keys returns the field names in arrival order
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Get returns the value of a field and whether the field exists
func (r Record) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Len returns the number of fields
func (r Record) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the record as a JSON object preserving key order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order. Numbers decode as
// json.Number so their textual form survives a CSV export untouched.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = Record{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object, got %v", tok)
	}

	out := Record{values: make(map[string]interface{})}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", keyTok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		out = out.set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

// Numeric reports the value of a JSON number field. Text that merely looks
// numeric is not a number.
func Numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
