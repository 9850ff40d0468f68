package tsconfig

import (
	"path/filepath"
	"strings"

	"github.com/esm-dev/tsload/internal/jsonc"
	logx "github.com/ije/gox/log"
)

var log = &logx.Logger{}

// SetLogger sets the logger of the tsconfig package.
func SetLogger(l *logx.Logger) {
	log = l
}

// TsConfig represents the fields of a tsconfig.json the loader cares about.
// Path fields of CompilerOptions are absolute after loading.
type TsConfig struct {
	Path            string          `json:"-"`
	Extends         string          `json:"extends,omitempty"`
	References      []Reference     `json:"references,omitempty"`
	Include         []string        `json:"include,omitempty"`
	Exclude         []string        `json:"exclude,omitempty"`
	Files           []string        `json:"files,omitempty"`
	CompilerOptions CompilerOptions `json:"compilerOptions"`

	// the common directory of include and files
	inputRoot string
}

type Reference struct {
	Path string `json:"path"`
}

type CompilerOptions struct {
	RootDir string              `json:"rootDir,omitempty"`
	OutDir  string              `json:"outDir,omitempty"`
	BaseURL string              `json:"baseUrl,omitempty"`
	Paths   map[string][]string `json:"paths,omitempty"`
	Strict  *bool               `json:"strict,omitempty"`
}

// Parse parses a tsconfig.json. Comments, trailing commas and a leading BOM are allowed.
func Parse(path string, data []byte) (*TsConfig, error) {
	var config TsConfig
	if err := jsonc.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	config.Path = path
	config.inputRoot = inputRoot(config.Dir(), config.Include, config.Files)
	return &config, nil
}

// Dir returns the directory of the config file.
func (c *TsConfig) Dir() string {
	return filepath.Dir(c.Path)
}

// RootDir returns the absolute rootDir. Like tsc it defaults to the common
// directory of the inputs, approximated by the static part of "include" and
// "files", and then to the config directory.
func (c *TsConfig) RootDir() string {
	if c.CompilerOptions.RootDir != "" {
		return c.CompilerOptions.RootDir
	}
	if c.inputRoot != "" {
		return c.inputRoot
	}
	return c.Dir()
}

// inputRoot returns the common directory of the include patterns and files
// relative to dir, or "" if there are none.
func inputRoot(dir string, include []string, files []string) string {
	var dirs []string
	for _, pattern := range include {
		dirs = append(dirs, staticDir(dir, pattern))
	}
	for _, file := range files {
		dirs = append(dirs, filepath.Dir(join(dir, file)))
	}
	if len(dirs) == 0 {
		return ""
	}
	common := dirs[0]
	for _, d := range dirs[1:] {
		for common != d && !strings.HasPrefix(d, common+string(filepath.Separator)) {
			parent := filepath.Dir(common)
			if parent == common {
				break
			}
			common = parent
		}
	}
	return common
}

// staticDir returns the directory part of an include pattern before its first
// wildcard segment.
func staticDir(dir string, pattern string) string {
	segments := strings.Split(filepath.ToSlash(pattern), "/")
	for i, seg := range segments {
		if strings.ContainsAny(seg, "*?") {
			return join(dir, strings.Join(segments[:i], "/"))
		}
	}
	p := join(dir, pattern)
	switch filepath.Ext(p) {
	case ".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs", ".json":
		return filepath.Dir(p)
	}
	return p
}

func join(dir string, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, filepath.FromSlash(p))
}

// anchor makes the path options absolute against dir.
func (o *CompilerOptions) anchor(dir string) {
	for _, p := range []*string{&o.RootDir, &o.OutDir, &o.BaseURL} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// extend merges the base config into c. Fields set in c win, compilerOptions are
// merged key by key and references are never inherited.
func (c *TsConfig) extend(base *TsConfig) {
	if c.Include == nil {
		c.Include = base.Include
	}
	if c.Exclude == nil {
		c.Exclude = base.Exclude
	}
	if c.Files == nil {
		c.Files = base.Files
	}
	if c.inputRoot == "" {
		c.inputRoot = base.inputRoot
	}
	o := &c.CompilerOptions
	if o.RootDir == "" {
		o.RootDir = base.CompilerOptions.RootDir
	}
	if o.OutDir == "" {
		o.OutDir = base.CompilerOptions.OutDir
	}
	if o.BaseURL == "" {
		o.BaseURL = base.CompilerOptions.BaseURL
	}
	if o.Paths == nil {
		o.Paths = base.CompilerOptions.Paths
	}
	if o.Strict == nil {
		o.Strict = base.CompilerOptions.Strict
	}
}
