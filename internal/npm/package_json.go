package npm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Package types declared by the "type" field.
const (
	TypeNone     = "none"
	TypeModule   = "module"
	TypeCommonJS = "commonjs"
)

// PackageJSONRaw defines the fields of a package.json the resolver reads
type PackageJSONRaw struct {
	Name    any             `json:"name"`
	Main    any             `json:"main"`
	Type    any             `json:"type"`
	Exports json.RawMessage `json:"exports"`
	Imports json.RawMessage `json:"imports"`
}

// PackageConfig is the resolver's view of a package.json file
type PackageConfig struct {
	Path    string
	Exists  bool
	Name    string
	Main    string
	Type    string
	Exports *Target
	Imports *Target
}

// HasExports reports whether the package declares a non-null "exports" field.
func (p *PackageConfig) HasExports() bool {
	return p.Exists && p.Exports != nil && p.Exports.Kind != TargetNull
}

// ParsePackageConfig parses the package.json at path.
func ParsePackageConfig(path string, data []byte) (*PackageConfig, error) {
	var raw PackageJSONRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	p := &PackageConfig{
		Path:   path,
		Exists: true,
		Type:   TypeNone,
	}
	if s, ok := raw.Name.(string); ok {
		p.Name = s
	}
	if s, ok := raw.Main.(string); ok {
		p.Main = s
	}
	if s, ok := raw.Type.(string); ok && (s == TypeModule || s == TypeCommonJS) {
		p.Type = s
	}
	if len(raw.Exports) > 0 {
		t, err := DecodeTarget(raw.Exports)
		if err != nil {
			return nil, err
		}
		if t.Kind != TargetNull {
			p.Exports = &t
		}
	}
	if len(raw.Imports) > 0 {
		t, err := DecodeTarget(raw.Imports)
		if err != nil {
			return nil, err
		}
		// "imports" is ignored unless it's an object
		if t.Kind == TargetConditions {
			p.Imports = &t
		}
	}
	return p, nil
}

// TargetKind tags the shape of an exports/imports value.
type TargetKind uint8

const (
	TargetNull TargetKind = iota
	TargetString
	TargetList
	TargetConditions
	TargetInvalid
)

// Target is a node of an "exports" or "imports" tree.
type Target struct {
	Kind TargetKind
	Str  string
	List []Target
	Keys []string
	Map  map[string]Target
	Raw  any
}

// Get returns the value of the key in a conditions object.
func (t Target) Get(key string) (Target, bool) {
	if t.Kind != TargetConditions {
		return Target{}, false
	}
	v, ok := t.Map[key]
	return v, ok
}

// String returns the JSON form of the target, used in error messages.
func (t Target) String() string {
	switch t.Kind {
	case TargetString:
		b, _ := json.Marshal(t.Str)
		return string(b)
	case TargetList:
		parts := make([]string, len(t.List))
		for i, v := range t.List {
			parts[i] = v.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case TargetConditions:
		parts := make([]string, len(t.Keys))
		for i, k := range t.Keys {
			b, _ := json.Marshal(k)
			parts[i] = string(b) + ":" + t.Map[k].String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	case TargetInvalid:
		return fmt.Sprint(t.Raw)
	default:
		return "null"
	}
}

// DecodeTarget decodes an "exports" or "imports" value, keeping the key order
// of objects. Numbers are kept as json.Number.
func DecodeTarget(data []byte) (Target, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	t, err := decodeTarget(dec)
	if err != nil {
		return Target{}, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		return Target{}, fmt.Errorf("unexpected token after JSON value: %v (%v)", tok, err)
	}
	return t, nil
}

func decodeTarget(dec *json.Decoder) (Target, error) {
	tok, err := dec.Token()
	if err != nil {
		return Target{}, err
	}
	switch v := tok.(type) {
	case nil:
		return Target{Kind: TargetNull}, nil
	case string:
		return Target{Kind: TargetString, Str: v}, nil
	case json.Delim:
		if v == '[' {
			list := []Target{}
			for dec.More() {
				item, err := decodeTarget(dec)
				if err != nil {
					return Target{}, err
				}
				list = append(list, item)
			}
			_, err = dec.Token()
			return Target{Kind: TargetList, List: list}, err
		}
		t := Target{Kind: TargetConditions, Map: map[string]Target{}}
		for dec.More() {
			tok, err = dec.Token()
			if err != nil {
				return Target{}, err
			}
			key := tok.(string)
			value, err := decodeTarget(dec)
			if err != nil {
				return Target{}, err
			}
			// a duplicate key keeps its first position and the last value
			if _, ok := t.Map[key]; !ok {
				t.Keys = append(t.Keys, key)
			}
			t.Map[key] = value
		}
		_, err = dec.Token()
		return t, err
	default:
		return Target{Kind: TargetInvalid, Raw: v}, nil
	}
}
