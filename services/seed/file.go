package seed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entry is one raw seed record. Unknown legacy fields ride along untouched
// through reconciliation.
type Entry map[string]any

// File is the parsed seed catalog. The root is either a bare JSON array or
// an object holding exactly one array-valued key; the detected shape is
// preserved on write, including any extra non-array fields of a wrapped root.
type File struct {
	Entries    []Entry
	WrapperKey string
	outer      map[string]json.RawMessage
}

func parseFile(data []byte) (*File, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &File{}, nil
	}

	switch data[0] {
	case '[':
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse seed array: %w", err)
		}
		return &File{Entries: entries}, nil
	case '{':
		var root map[string]json.RawMessage
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parse seed object: %w", err)
		}

		f := &File{outer: make(map[string]json.RawMessage)}
		for key, raw := range root {
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) > 0 && trimmed[0] == '[' {
				if f.WrapperKey != "" {
					return nil, fmt.Errorf("seed object has multiple array keys (%q, %q)", f.WrapperKey, key)
				}
				f.WrapperKey = key
				if err := json.Unmarshal(raw, &f.Entries); err != nil {
					return nil, fmt.Errorf("parse seed entries under %q: %w", key, err)
				}
				continue
			}
			f.outer[key] = raw
		}
		if f.WrapperKey == "" {
			return nil, fmt.Errorf("seed object has no array-valued key")
		}
		return f, nil
	default:
		return nil, fmt.Errorf("seed file is neither an array nor an object")
	}
}

func (f *File) encode() ([]byte, error) {
	entries := f.Entries
	if entries == nil {
		entries = []Entry{}
	}
	if f.WrapperKey == "" {
		return json.MarshalIndent(entries, "", "  ")
	}

	root := make(map[string]json.RawMessage, len(f.outer)+1)
	for k, v := range f.outer {
		root[k] = v
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode seed entries: %w", err)
	}
	root[f.WrapperKey] = raw
	return json.MarshalIndent(root, "", "  ")
}

// findEntry returns the index of the entry whose id/extId matches, or -1.
func (f *File) findEntry(extID string) int {
	for i, e := range f.Entries {
		if e.extID() == extID {
			return i
		}
	}
	return -1
}

func (e Entry) extID() string {
	return e.stringField("id", "extId")
}

// stringField returns the first present key rendered as a string. Numeric
// values are formatted, so a numeric legacy id still matches.
func (e Entry) stringField(keys ...string) string {
	for _, key := range keys {
		v, ok := e[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		case json.Number:
			return val.String()
		}
	}
	return ""
}

// intField returns the first present key coerced to int; strings holding
// numbers count.
func (e Entry) intField(keys ...string) (int, bool) {
	for _, key := range keys {
		v, ok := e[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			return int(val), true
		case json.Number:
			if n, err := val.Int64(); err == nil {
				return int(n), true
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// stringsField normalizes a field that is either a JSON array of strings or
// a comma-separated string.
func (e Entry) stringsField(keys ...string) []string {
	for _, key := range keys {
		v, ok := e[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case []any:
			var out []string
			for _, item := range val {
				if s, ok := item.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
				}
			}
			return out
		case string:
			var out []string
			for _, part := range strings.Split(val, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			return out
		}
	}
	return nil
}
