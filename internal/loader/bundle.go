package loader

import (
	"errors"
	"net/url"
	"path/filepath"

	"github.com/esm-dev/tsload/internal/resolver"
	"github.com/evanw/esbuild/pkg/api"
)

// BundleOptions configures Bundle.
type BundleOptions struct {
	Outfile string
	Target  string
	Minify  bool
}

// Plugin returns an esbuild plugin resolving every import with the hooks and
// loading TypeScript sources through the transpiler.
func (h *Hooks) Plugin() api.Plugin {
	return api.Plugin{
		Name: "tsload",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				referrer := ""
				if args.Kind != api.ResolveEntryPoint && args.Namespace == "file" {
					referrer = args.Importer
				}
				res, err := h.Resolve(args.Path, ResolveContext{Referrer: referrer})
				if err != nil {
					return api.OnResolveResult{}, err
				}
				u, err := url.Parse(res.URL)
				if err != nil {
					return api.OnResolveResult{}, err
				}
				switch u.Scheme {
				case "node":
					return api.OnResolveResult{Path: res.URL, External: true}, nil
				case "data":
					return api.OnResolveResult{Path: res.URL, Namespace: "data-url", PluginData: res.Format}, nil
				}
				return api.OnResolveResult{Path: resolver.FileURLToPath(u), Namespace: "file", PluginData: res.Format}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: `\.[cm]?tsx?$`, Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				format, _ := args.PluginData.(string)
				res, err := h.Load(args.Path, LoadContext{Format: format})
				if err != nil {
					return api.OnLoadResult{}, err
				}
				contents := string(res.Source)
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS, ResolveDir: filepath.Dir(args.Path)}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: "data-url"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				format, _ := args.PluginData.(string)
				res, err := h.Load(args.Path, LoadContext{Format: format})
				if err != nil {
					return api.OnLoadResult{}, err
				}
				loader := api.LoaderJS
				if res.Format == resolver.FormatJSON {
					loader = api.LoaderJSON
				}
				contents := string(res.Source)
				return api.OnLoadResult{Contents: &contents, Loader: loader}, nil
			})
		},
	}
}

// Bundle bundles the entry module with esbuild, resolving and loading every
// module with the hooks. It returns the bundled code.
func (h *Hooks) Bundle(entry string, opts BundleOptions) ([]byte, error) {
	target, ok := targets[opts.Target]
	if !ok {
		target = api.ESNext
	}
	ret := api.Build(api.BuildOptions{
		EntryPoints:       []string{entry},
		Outfile:           opts.Outfile,
		Bundle:            true,
		Write:             false,
		Platform:          api.PlatformNode,
		Format:            api.FormatESModule,
		Target:            target,
		MinifyWhitespace:  opts.Minify,
		MinifySyntax:      opts.Minify,
		MinifyIdentifiers: opts.Minify,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{h.Plugin()},
	})
	if len(ret.Errors) > 0 {
		return nil, errors.New("fail to bundle " + formatMessage(ret.Errors[0]))
	}
	for _, w := range ret.Warnings {
		log.Warnf("bundle: %s", formatMessage(w))
	}
	if len(ret.OutputFiles) == 0 {
		return nil, errors.New("fail to bundle: no output files")
	}
	return ret.OutputFiles[0].Contents, nil
}
