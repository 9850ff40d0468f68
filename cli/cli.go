package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/esm-dev/tsload/internal/config"
	"github.com/esm-dev/tsload/internal/loader"
	"github.com/esm-dev/tsload/internal/resolver"
	"github.com/esm-dev/tsload/internal/tsconfig"
	"github.com/esm-dev/tsload/server"
	logx "github.com/ije/gox/log"
	"github.com/ije/gox/term"
)

const helpMessage = "\033[30mtsload - A TypeScript-aware ES module resolver and loader.\033[0m" + `

Usage: tsload [command] [options]

Commands:
  resolve <specifier>   Resolve a module specifier and print its URL and format
  load <location>       Load a module, transpiling TypeScript sources
  project [tsconfig]    Print the project references graph
  bundle <entry>        Bundle a module with esbuild using tsload resolution
  serve                 Serve the resolve and load hooks over HTTP

Options:
  --config              The config file path, default is "tsload.json"
  --project, -p         The tsconfig.json path
  --conditions          Extra export conditions, comma separated
  --version, -v         Show the version
  --help, -h            Display this help message
`

// commonFlags are the options shared by all commands.
type commonFlags struct {
	config     *string
	project    *string
	conditions *string
	logLevel   *string
}

func registerCommonFlags() *commonFlags {
	f := &commonFlags{
		config:     flag.String("config", "", "the config file path"),
		project:    flag.String("project", "", "the tsconfig.json path"),
		conditions: flag.String("conditions", "", "extra export conditions, comma separated"),
		logLevel:   flag.String("log-level", "", "the log level"),
	}
	flag.StringVar(f.project, "p", "", "the tsconfig.json path")
	return f
}

// Run runs the command line interface.
func Run() {
	if len(os.Args) < 2 {
		fmt.Print(helpMessage)
		return
	}
	var err error
	switch command := os.Args[1]; command {
	case "resolve":
		err = Resolve()
	case "load":
		err = Load()
	case "project":
		err = Project()
	case "bundle":
		err = Bundle()
	case "serve":
		err = Serve()
	case "version":
		fmt.Println("tsload " + server.VERSION)
	default:
		for _, arg := range os.Args[1:] {
			if arg == "--version" {
				fmt.Println("tsload " + server.VERSION)
				return
			}
			if arg == "-v" {
				fmt.Println(server.VERSION)
				return
			}
		}
		fmt.Print(helpMessage)
	}
	if err != nil {
		os.Stderr.WriteString(term.Red(err.Error()) + "\n")
		os.Exit(1)
	}
}

// parseCommandFlags parses the flags of the current command. Flags may appear
// before or after the positional arguments.
func parseCommandFlags() (args []string, help bool) {
	args, help, err := parseFlags(flag.CommandLine, os.Args[2:])
	if err != nil {
		os.Stderr.WriteString(term.Red(err.Error()) + "\n")
		os.Exit(2)
	}
	return
}

func parseFlags(fs *flag.FlagSet, argv []string) (args []string, help bool, err error) {
	var flags []string
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == "--" {
			args = append(args, argv[i+1:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			args = append(args, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if name == "h" || name == "help" {
			help = true
			continue
		}
		flags = append(flags, arg)
		if strings.ContainsRune(name, '=') {
			continue
		}
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			continue
		}
		if i+1 < len(argv) {
			i++
			flags = append(flags, argv[i])
		}
	}
	fs.SetOutput(io.Discard)
	err = fs.Parse(flags)
	return
}

// loadConfig loads the config file given by --config, or the tsload.json in
// cwd if it exists, and applies the command line overrides.
func loadConfig(cwd string, f *commonFlags) (cfg *config.Config, err error) {
	filename := *f.config
	if filename == "" {
		if fi, e := os.Stat(filepath.Join(cwd, "tsload.json")); e == nil && !fi.IsDir() {
			filename = filepath.Join(cwd, "tsload.json")
		}
	}
	if filename != "" {
		cfg, err = config.Load(filename)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	if *f.project != "" {
		cfg.Project = *f.project
	}
	if *f.conditions != "" {
		cfg.Conditions = append(cfg.Conditions, strings.Split(*f.conditions, ",")...)
	}
	if *f.logLevel != "" {
		cfg.LogLevel = *f.logLevel
	}
	return cfg, nil
}

// newLogger creates the logger of the config and shares it with the resolver,
// tsconfig and loader packages.
func newLogger(cfg *config.Config) (*logx.Logger, error) {
	logger := &logx.Logger{}
	if cfg.LogDir != "" {
		var err error
		logger, err = logx.New(fmt.Sprintf("file:%s?buffer=32k&fileDateFormat=20060102", filepath.Join(cfg.LogDir, "tsload.log")))
		if err != nil {
			return nil, fmt.Errorf("fail to initialize logger: %w", err)
		}
	}
	logger.SetLevelByName(cfg.LogLevel)
	resolver.SetLogger(logger)
	tsconfig.SetLogger(logger)
	loader.SetLogger(logger)
	return logger, nil
}

// setup loads the config and creates the hooks of the project in cwd.
func setup(f *commonFlags) (*loader.Hooks, *config.Config, *logx.Logger, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := loadConfig(cwd, f)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	hooks, err := loader.Setup(cfg, cwd)
	if err != nil {
		logger.FlushBuffer()
		if errors.Is(err, config.ErrNoProject) {
			return nil, nil, nil, fmt.Errorf("%w in %s, use --project or set \"legacySourceProbing\" in tsload.json", err, cwd)
		}
		return nil, nil, nil, err
	}
	return hooks, cfg, logger, nil
}
