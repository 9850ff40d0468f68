package resolver

import (
	"net/url"
	"path"

	"github.com/esm-dev/tsload/internal/npm"
	"github.com/ije/gox/utils"
)

// Module formats reported with a resolution.
const (
	FormatModule   = "module"
	FormatCommonJS = "commonjs"
	FormatJSON     = "json"
	FormatWasm     = "wasm"
	FormatBuiltin  = "builtin"
)

var extensionFormats = map[string]string{
	".mjs":  FormatModule,
	".mts":  FormatModule,
	".cjs":  FormatCommonJS,
	".cts":  FormatCommonJS,
	".node": FormatCommonJS,
	".json": FormatJSON,
	".wasm": FormatWasm,
}

var dataMimeFormats = map[string]string{
	"text/javascript":  FormatModule,
	"application/json": FormatJSON,
	"application/wasm": FormatWasm,
}

// IsSourceFile reports whether the path is a TypeScript source file.
func IsSourceFile(p string) bool {
	switch path.Ext(p) {
	case ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}

// formatOf returns the module format of the resolved URL, or "" if unknown.
func (r *Resolver) formatOf(u *url.URL) string {
	switch u.Scheme {
	case "node":
		return FormatBuiltin
	case "data":
		mime, _ := utils.SplitByFirstByte(u.Opaque, ',')
		mime, _ = utils.SplitByFirstByte(mime, ';')
		return dataMimeFormats[mime]
	}
	ext := path.Ext(u.Path)
	if format, ok := extensionFormats[ext]; ok {
		return format
	}
	switch ext {
	case ".js", ".ts", ".jsx", ".tsx":
		pjson, err := r.store.Scope(u)
		if err == nil && pjson.Type == npm.TypeModule {
			return FormatModule
		}
		return FormatCommonJS
	}
	return ""
}

// Format returns the module format of a resolved URL, or "" if unknown.
func (r *Resolver) Format(u *url.URL) string {
	return r.formatOf(u)
}
