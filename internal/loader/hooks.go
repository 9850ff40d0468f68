package loader

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/esm-dev/tsload/internal/config"
	"github.com/esm-dev/tsload/internal/resolver"
	"github.com/esm-dev/tsload/internal/tsconfig"
	"github.com/esm-dev/tsload/internal/vfs"
)

// ResolveContext is the per-call input of Resolve.
type ResolveContext struct {
	Referrer   string   `json:"referrer,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}

// ResolveResult is a resolved module.
type ResolveResult struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// Hooks is the resolve/load boundary used by the hosts.
type Hooks struct {
	resolver   *resolver.Resolver
	loader     Loader
	transpiler *Transpiler
	project    *tsconfig.Graph
}

// Options configures Hooks. Loader defaults to a DefaultLoader over the host filesystem.
type Options struct {
	Resolver   *resolver.Resolver
	Loader     Loader
	Transpiler *Transpiler
	Project    *tsconfig.Graph
}

func NewHooks(opts Options) *Hooks {
	h := &Hooks{
		resolver:   opts.Resolver,
		loader:     opts.Loader,
		transpiler: opts.Transpiler,
		project:    opts.Project,
	}
	if h.resolver == nil {
		h.resolver = resolver.New(resolver.Options{})
	}
	if h.loader == nil {
		h.loader = &DefaultLoader{FS: vfs.OS{}, Resolver: h.resolver}
	}
	if h.transpiler == nil {
		// the default options are always valid
		h.transpiler, _ = NewTranspiler(TranspileOptions{})
	}
	return h
}

// projects memoizes the project graphs of the process by tsconfig path.
var projects = tsconfig.NewCache(vfs.OS{}, "")

// Setup creates the Hooks of the project in cwd from the config.
func Setup(cfg *config.Config, cwd string) (*Hooks, error) {
	fsys := vfs.OS{}
	projectPath, err := cfg.ProjectPath(fsys, cwd)
	if err != nil {
		return nil, err
	}

	var graph *tsconfig.Graph
	var translator resolver.Translator
	if projectPath != "" {
		graph, err = projects.Load(projectPath)
		if err != nil {
			return nil, err
		}
		translator = tsconfig.NewTranslator(fsys, graph)
	} else {
		log.Warn("no tsconfig.json found, fall back to .ts suffix probing")
		translator = tsconfig.SuffixTranslator{FS: fsys}
	}

	transpiler, err := NewTranspiler(TranspileOptions{
		Target:    cfg.Target,
		Sourcemap: cfg.Sourcemap,
		CacheSize: cfg.TranspileCacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fail to create transpiler: %w", err)
	}

	r := resolver.New(resolver.Options{
		FS:                        fsys,
		Cwd:                       cwd,
		Conditions:                cfg.Conditions,
		NoAddons:                  cfg.NoAddons,
		PreserveSymlinks:          cfg.PreserveSymlinks,
		PreserveSymlinksMain:      cfg.PreserveSymlinksMain,
		LegacySpecifierResolution: cfg.LegacySpecifierResolution(),
		PendingDeprecation:        cfg.PendingDeprecation,
		Translator:                translator,
	})
	return NewHooks(Options{
		Resolver:   r,
		Loader:     &DefaultLoader{FS: fsys, Resolver: r},
		Transpiler: transpiler,
		Project:    graph,
	}), nil
}

// Project returns the project graph, or nil in the suffix probing mode.
func (h *Hooks) Project() *tsconfig.Graph {
	return h.project
}

// Resolve resolves the specifier imported by ctx.Referrer.
func (h *Hooks) Resolve(specifier string, ctx ResolveContext) (*ResolveResult, error) {
	res, err := h.resolver.Resolve(specifier, resolver.ResolveContext{
		Referrer:   ctx.Referrer,
		Conditions: ctx.Conditions,
	})
	if err != nil {
		return nil, err
	}
	return &ResolveResult{URL: res.URL.String(), Format: res.Format}, nil
}

// Load returns the source of the module at location (a URL or an absolute path).
// TypeScript sources are transpiled to the requested format, module by default.
func (h *Hooks) Load(location string, ctx LoadContext) (*LoadResult, error) {
	var u *url.URL
	if filepath.IsAbs(location) {
		u = resolver.PathToFileURL(location)
	} else {
		var err error
		u, err = url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("invalid location %q: %w", location, err)
		}
	}

	if u.Scheme != "file" || !resolver.IsSourceFile(u.Path) {
		return h.loader.Load(u, ctx)
	}

	format := ctx.Format
	if format != resolver.FormatCommonJS {
		format = resolver.FormatModule
	}
	raw, err := h.loader.Load(u, LoadContext{Format: format})
	if err != nil {
		return nil, err
	}
	out, err := h.transpiler.Transpile(resolver.FileURLToPath(u), raw.Source, format)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Format: format, Source: out.Code, Map: out.Map}, nil
}
