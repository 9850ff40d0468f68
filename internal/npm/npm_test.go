package npm

import (
	"reflect"
	"testing"
)

func TestParsePackageName(t *testing.T) {
	tests := []struct {
		specifier string
		want      PackageName
		wantErr   bool
	}{
		{specifier: "react", want: PackageName{Name: "react", Subpath: "."}},
		{specifier: "lodash/map", want: PackageName{Name: "lodash", Subpath: "./map"}},
		{specifier: "@babel/core", want: PackageName{Name: "@babel/core", Subpath: ".", Scoped: true}},
		{specifier: "@scope/pkg/sub/file.js", want: PackageName{Name: "@scope/pkg", Subpath: "./sub/file.js", Scoped: true}},
		{specifier: "pkg/", want: PackageName{Name: "pkg", Subpath: "./"}},
		{specifier: "@scope", wantErr: true},
		{specifier: ".hidden", wantErr: true},
		{specifier: "bad%name", wantErr: true},
		{specifier: "bad\\name/x", wantErr: true},
		{specifier: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			got, err := ParsePackageName(tt.specifier)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParsePackageConfig(t *testing.T) {
	p, err := ParsePackageConfig("/pkg/package.json", []byte(`{
		"name": "pkg",
		"main": "lib/index",
		"type": "module",
		"exports": {
			"./b": "./b.js",
			"./a": {"import": "./a.mjs", "default": null},
			"./c/*": ["./c/*.js", 1]
		},
		"imports": "./not-an-object.js"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "pkg" || p.Main != "lib/index" || p.Type != TypeModule || !p.Exists {
		t.Fatalf("unexpected package config: %+v", p)
	}
	if p.Imports != nil {
		t.Fatalf("imports should be ignored unless it's an object")
	}
	if !p.HasExports() || p.Exports.Kind != TargetConditions {
		t.Fatalf("unexpected exports: %v", p.Exports)
	}
	if keys := p.Exports.Keys; !reflect.DeepEqual(keys, []string{"./b", "./a", "./c/*"}) {
		t.Fatalf("exports keys out of order: %v", keys)
	}
	a, _ := p.Exports.Get("./a")
	if a.Kind != TargetConditions || a.Map["default"].Kind != TargetNull {
		t.Fatalf("unexpected ./a target: %v", a)
	}
	c, _ := p.Exports.Get("./c/*")
	if c.Kind != TargetList || c.List[1].Kind != TargetInvalid {
		t.Fatalf("unexpected ./c/* target: %v", c)
	}
	if s := c.String(); s != `["./c/*.js",1]` {
		t.Fatalf("unexpected target string: %s", s)
	}
}

func TestParsePackageConfigFields(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantType string
		exports  bool
		wantErr  bool
	}{
		{name: "UnknownType", data: `{"type": "esm"}`, wantType: TypeNone},
		{name: "CommonJS", data: `{"type": "commonjs"}`, wantType: TypeCommonJS},
		{name: "NullExports", data: `{"exports": null}`, wantType: TypeNone},
		{name: "StringExports", data: `{"exports": "./index.js"}`, wantType: TypeNone, exports: true},
		{name: "NonStringName", data: `{"name": 1, "main": true}`, wantType: TypeNone},
		{name: "Malformed", data: `{"name": "x",}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePackageConfig("package.json", []byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.Type != tt.wantType {
				t.Errorf("type: got %q, want %q", p.Type, tt.wantType)
			}
			if p.HasExports() != tt.exports {
				t.Errorf("exports: got %v, want %v", p.HasExports(), tt.exports)
			}
			if p.Name != "" || p.Main != "" {
				t.Errorf("non-string name/main should be ignored: %+v", p)
			}
		})
	}
}

func TestDecodeTarget(t *testing.T) {
	target, err := DecodeTarget([]byte(`{"z": "./z.js", "a": {"y": null, "b": ["./b.js", 1]}, "z": "./last.js"}`))
	if err != nil {
		t.Fatal(err)
	}
	if target.Kind != TargetConditions || !reflect.DeepEqual(target.Keys, []string{"z", "a"}) {
		t.Fatalf("unexpected keys: %v", target.Keys)
	}
	if target.Map["z"].Str != "./last.js" {
		t.Fatalf("a duplicate key should keep the last value, got %v", target.Map["z"])
	}
	nested, ok := target.Get("a")
	if !ok || !reflect.DeepEqual(nested.Keys, []string{"y", "b"}) {
		t.Fatalf("unexpected nested target: %v", nested)
	}
	if nested.Map["y"].Kind != TargetNull || nested.Map["b"].List[1].Kind != TargetInvalid {
		t.Fatalf("unexpected nested values: %v", nested)
	}
	if s := target.String(); s != `{"z":"./last.js","a":{"y":null,"b":["./b.js",1]}}` {
		t.Fatalf("unexpected string form %s", s)
	}

	if _, err = DecodeTarget([]byte(`{"a": "./a.js"} []`)); err == nil {
		t.Fatal("expected an error for trailing tokens")
	}
	if _, err = DecodeTarget([]byte(`{"a": `)); err == nil {
		t.Fatal("expected an error for truncated input")
	}
}
