package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/esm-dev/tsload/internal/resolver"
	"github.com/evanw/esbuild/pkg/api"
	lru "github.com/hashicorp/golang-lru/v2"
)

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"es2024": api.ES2024,
	"esnext": api.ESNext,
	"node":   api.ESNext,
}

var sourcemaps = map[string]api.SourceMap{
	"inline":   api.SourceMapInline,
	"external": api.SourceMapExternal,
	"both":     api.SourceMapInlineAndExternal,
}

// TranspileOptions configures a Transpiler.
type TranspileOptions struct {
	Target    string
	Sourcemap string
	CacheSize int
}

// Output is a transpiled module.
type Output struct {
	Code     []byte
	Map      []byte
	Warnings []string
}

// Transpiler strips TypeScript syntax with esbuild. Outputs are cached by
// file, format and source hash.
type Transpiler struct {
	target    api.Target
	sourcemap api.SourceMap
	cache     *lru.Cache[string, *Output]
}

func NewTranspiler(opts TranspileOptions) (*Transpiler, error) {
	target, ok := targets[opts.Target]
	if !ok {
		if opts.Target != "" {
			return nil, fmt.Errorf("invalid target %q", opts.Target)
		}
		target = api.ESNext
	}
	sourcemap, ok := sourcemaps[opts.Sourcemap]
	if !ok {
		sourcemap = api.SourceMapInlineAndExternal
	}
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[string, *Output](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Transpiler{target: target, sourcemap: sourcemap, cache: cache}, nil
}

// Transpile transpiles the source of the file to the module format
// ("module" or "commonjs").
func (t *Transpiler) Transpile(filename string, source []byte, format string) (*Output, error) {
	h := sha1.New()
	h.Write(source)
	cacheKey := filename + "|" + format + "|" + hex.EncodeToString(h.Sum(nil))
	if out, ok := t.cache.Get(cacheKey); ok {
		return out, nil
	}

	loader := api.LoaderTS
	if filepath.Ext(filename) == ".tsx" {
		loader = api.LoaderTSX
	}
	outputFormat := api.FormatESModule
	if format == resolver.FormatCommonJS {
		outputFormat = api.FormatCommonJS
	}
	ret := api.Transform(string(source), api.TransformOptions{
		Loader:     loader,
		Target:     t.target,
		Format:     outputFormat,
		Sourcemap:  t.sourcemap,
		Sourcefile: filename,
	})
	if len(ret.Errors) > 0 {
		return nil, errors.New("fail to transpile " + formatMessage(ret.Errors[0]))
	}

	out := &Output{Code: ret.Code, Map: ret.Map}
	for _, w := range ret.Warnings {
		msg := formatMessage(w)
		log.Warnf("transpile: %s", msg)
		out.Warnings = append(out.Warnings, msg)
	}
	t.cache.Add(cacheKey, out)
	return out, nil
}

func formatMessage(msg api.Message) string {
	if msg.Location != nil {
		return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
	}
	return msg.Text
}
