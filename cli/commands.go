package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/esm-dev/tsload/internal/config"
	"github.com/esm-dev/tsload/internal/loader"
	"github.com/esm-dev/tsload/server"
	"github.com/goccy/go-json"
)

const resolveHelpMessage = `Resolve a module specifier and print its URL and format as JSON.

Usage: tsload resolve <specifier> [options]

Options:
  --from         The importing module (a file URL or a path), default is the entry point
  --conditions   Extra export conditions, comma separated
  --help, -h     Show help message
`

const loadHelpMessage = `Load a module and print its source. TypeScript sources are transpiled.

Usage: tsload load <location> [options]

Options:
  --format       The module format, "module" or "commonjs"
  --help, -h     Show help message
`

const projectHelpMessage = `Print the project references graph of a tsconfig.json as JSON.

Usage: tsload project [tsconfig] [options]

Options:
  --help, -h     Show help message
`

const bundleHelpMessage = `Bundle a module with esbuild using tsload resolution.

Usage: tsload bundle <entry> [options]

Options:
  --outfile      The output file, default is stdout
  --target       The build target, default is the "target" of tsload.json
  --minify       Minify the output
  --help, -h     Show help message
`

const serveHelpMessage = `Serve the resolve and load hooks over HTTP.

Usage: tsload serve [options]

Endpoints:
  GET /resolve?specifier=&referrer=&conditions=
  GET /load?url=&format=
  GET /sourcemap?url=
  GET /project

Options:
  --port         Port to serve on, default is 8787
  --help, -h     Show help message
`

// Resolve prints the resolution of a specifier.
func Resolve() error {
	from := flag.String("from", "", "the importing module")
	f := registerCommonFlags()
	args, help := parseCommandFlags()
	if help || len(args) == 0 {
		fmt.Print(resolveHelpMessage)
		return nil
	}

	hooks, _, logger, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.FlushBuffer()
	return resolveTo(os.Stdout, hooks, args[0], *from, nil)
}

func resolveTo(w io.Writer, hooks *loader.Hooks, specifier string, from string, conditions []string) error {
	referrer := from
	if referrer != "" && !filepath.IsAbs(referrer) && !hasScheme(referrer) {
		abs, err := filepath.Abs(referrer)
		if err != nil {
			return err
		}
		referrer = abs
	}
	res, err := hooks.Resolve(specifier, loader.ResolveContext{
		Referrer:   referrer,
		Conditions: conditions,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, res)
}

// Load prints the source of a module.
func Load() error {
	format := flag.String("format", "", "the module format")
	f := registerCommonFlags()
	args, help := parseCommandFlags()
	if help || len(args) == 0 {
		fmt.Print(loadHelpMessage)
		return nil
	}

	hooks, _, logger, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.FlushBuffer()

	location := args[0]
	if !hasScheme(location) {
		location, err = filepath.Abs(location)
		if err != nil {
			return err
		}
	}
	res, err := hooks.Load(location, loader.LoadContext{Format: *format})
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(res.Source)
	return err
}

// Project prints the project references graph.
func Project() error {
	f := registerCommonFlags()
	args, help := parseCommandFlags()
	if help {
		fmt.Print(projectHelpMessage)
		return nil
	}
	if len(args) > 0 {
		*f.project = args[0]
	}

	hooks, _, logger, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.FlushBuffer()
	return writeProject(os.Stdout, hooks)
}

func writeProject(w io.Writer, hooks *loader.Hooks) error {
	graph := hooks.Project()
	if graph == nil {
		return config.ErrNoProject
	}
	return writeJSON(w, graph)
}

// Bundle bundles a module with esbuild.
func Bundle() error {
	outfile := flag.String("outfile", "", "the output file")
	target := flag.String("target", "", "the build target")
	minify := flag.Bool("minify", false, "minify the output")
	f := registerCommonFlags()
	args, help := parseCommandFlags()
	if help || len(args) == 0 {
		fmt.Print(bundleHelpMessage)
		return nil
	}

	hooks, cfg, logger, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.FlushBuffer()

	entry, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if *target == "" {
		*target = cfg.Target
	}
	code, err := hooks.Bundle(entry, loader.BundleOptions{
		Outfile: *outfile,
		Target:  *target,
		Minify:  *minify,
	})
	if err != nil {
		return err
	}
	if *outfile == "" {
		_, err = os.Stdout.Write(code)
		return err
	}
	if err = os.MkdirAll(filepath.Dir(*outfile), 0755); err != nil {
		return err
	}
	return os.WriteFile(*outfile, code, 0644)
}

// Serve starts the loader server.
func Serve() error {
	port := flag.Uint("port", 0, "port to serve on")
	f := registerCommonFlags()
	_, help := parseCommandFlags()
	if help {
		fmt.Print(serveHelpMessage)
		return nil
	}

	hooks, cfg, logger, err := setup(f)
	if err != nil {
		return err
	}
	if *port > 0 {
		if *port > 65535 {
			return errors.New("invalid port " + fmt.Sprint(*port))
		}
		cfg.Port = uint16(*port)
	}
	return server.Serve(cfg, hooks, logger)
}

// hasScheme reports whether s is a URL rather than a file path. Windows drive
// letters are not schemes.
func hasScheme(s string) bool {
	u, err := url.Parse(s)
	return err == nil && len(u.Scheme) > 1
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
