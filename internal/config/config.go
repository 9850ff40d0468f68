package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/esm-dev/tsload/internal/jsonc"
	"github.com/esm-dev/tsload/internal/tsconfig"
	"github.com/esm-dev/tsload/internal/vfs"
	"github.com/ije/gox/term"
)

// ErrNoProject is returned when no tsconfig.json can be found and the
// legacy source probing is off.
var ErrNoProject = errors.New("no tsconfig.json found")

const (
	SpecifierResolutionExplicit = "explicit"
	SpecifierResolutionNode     = "node"
)

const (
	SourcemapInline   = "inline"
	SourcemapExternal = "external"
	SourcemapBoth     = "both"
)

// Config represents the configuration of tsload.
type Config struct {
	Project              string   `json:"project"`
	Conditions           []string `json:"conditions"`
	NoAddons             bool     `json:"noAddons"`
	PreserveSymlinks     bool     `json:"preserveSymlinks"`
	PreserveSymlinksMain bool     `json:"preserveSymlinksMain"`
	SpecifierResolution  string   `json:"specifierResolution"`
	LegacySourceProbing  bool     `json:"legacySourceProbing"`
	PendingDeprecation   bool     `json:"pendingDeprecation"`
	TranspileCacheSize   int      `json:"transpileCacheSize"`
	Sourcemap            string   `json:"sourcemap"`
	Target               string   `json:"target"`
	Port                 uint16   `json:"port"`
	LogLevel             string   `json:"logLevel"`
	LogDir               string   `json:"logDir"`
}

// Load loads config from the given file. The file may contain comments and
// trailing commas.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("fail to read config file: %w", err)
	}

	var config Config
	err = jsonc.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("fail to parse config: %w", err)
	}
	if config.LogDir != "" && !filepath.IsAbs(config.LogDir) {
		config.LogDir = filepath.Join(filepath.Dir(filename), config.LogDir)
	}
	if config.Project != "" && !filepath.IsAbs(config.Project) {
		config.Project = filepath.Join(filepath.Dir(filename), config.Project)
	}
	normalizeConfig(&config)
	return &config, nil
}

func Default() *Config {
	config := &Config{}
	normalizeConfig(config)
	return config
}

func normalizeConfig(config *Config) {
	if config.Project == "" {
		config.Project = os.Getenv("TS_NODE_PROJECT")
	}
	if len(config.Conditions) == 0 {
		if v := os.Getenv("TSLOAD_CONDITIONS"); v != "" {
			for _, p := range strings.Split(v, ",") {
				if c := strings.TrimSpace(p); c != "" {
					config.Conditions = append(config.Conditions, c)
				}
			}
		}
	}
	if config.SpecifierResolution == "" {
		config.SpecifierResolution = os.Getenv("TSLOAD_SPECIFIER_RESOLUTION")
	}
	switch config.SpecifierResolution {
	case SpecifierResolutionExplicit, SpecifierResolutionNode:
	case "":
		config.SpecifierResolution = SpecifierResolutionExplicit
	default:
		fmt.Println(term.Red("[error] invalid specifierResolution: " + config.SpecifierResolution))
		config.SpecifierResolution = SpecifierResolutionExplicit
	}
	if config.TranspileCacheSize <= 0 {
		config.TranspileCacheSize = 512
	}
	switch config.Sourcemap {
	case SourcemapInline, SourcemapExternal, SourcemapBoth:
	case "":
		config.Sourcemap = SourcemapBoth
	default:
		fmt.Println(term.Red("[error] invalid sourcemap: " + config.Sourcemap))
		config.Sourcemap = SourcemapBoth
	}
	if config.Target == "" {
		config.Target = "esnext"
	}
	if config.Port == 0 {
		config.Port = 8787
		if v := os.Getenv("PORT"); v != "" {
			if p, e := strconv.Atoi(v); e == nil && p > 0 && p < 65536 {
				config.Port = uint16(p)
			}
		}
	}
	if config.LogLevel == "" {
		config.LogLevel = os.Getenv("LOG_LEVEL")
		if config.LogLevel == "" {
			config.LogLevel = "info"
		}
	}
}

// LegacySpecifierResolution reports whether resolved files are probed with
// CommonJS extensions and directory indexes.
func (c *Config) LegacySpecifierResolution() bool {
	return c.SpecifierResolution == SpecifierResolutionNode
}

// ProjectPath returns the tsconfig.json of the project in cwd. It returns
// ErrNoProject if there is none, unless the legacy source probing is on, in
// which case it returns "".
func (c *Config) ProjectPath(fsys vfs.FS, cwd string) (string, error) {
	if fsys == nil {
		fsys = vfs.OS{}
	}
	p := tsconfig.FindConfigPath(fsys, cwd, c.Project)
	if p != "" && vfs.IsFile(fsys, p) {
		return p, nil
	}
	if c.LegacySourceProbing {
		return "", nil
	}
	if c.Project != "" {
		return "", fmt.Errorf("fail to find project %s: %w", c.Project, ErrNoProject)
	}
	return "", ErrNoProject
}
