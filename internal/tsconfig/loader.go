package tsconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/esm-dev/tsload/internal/vfs"
)

var (
	// ErrMissingOutDir is returned when a referenced project declares no outDir.
	ErrMissingOutDir = errors.New("project has no outDir")
	// ErrReferenceNotFound is returned when a referenced tsconfig does not exist.
	ErrReferenceNotFound = errors.New("project reference not found")
	// ErrExtendsCycle is returned when a config extends itself, directly or not.
	ErrExtendsCycle = errors.New("extends cycle")
)

// Graph is the set of configs reachable from an entry tsconfig through references.
type Graph struct {
	Entry   string               `json:"entry"`
	Configs map[string]*TsConfig `json:"configs"`
	// Order is the visit order of Configs.
	Order []string `json:"order"`
	// OutDirs maps every absolute outDir to the config declaring it.
	OutDirs map[string]string `json:"outDirs"`
	// RootDirs maps every absolute outDir to the rootDir it mirrors.
	RootDirs map[string]string `json:"rootDirs"`
}

// LoadGraph loads the entry config (a file or a directory, relative to cwd) and
// every project it references.
func LoadGraph(fsys vfs.FS, cwd string, entry string) (*Graph, error) {
	if fsys == nil {
		fsys = vfs.OS{}
	}
	g := &Graph{
		Configs:  map[string]*TsConfig{},
		OutDirs:  map[string]string{},
		RootDirs: map[string]string{},
	}
	entryPath, err := g.visit(fsys, configPath(fsys, cwd, entry), true)
	if err != nil {
		return nil, err
	}
	g.Entry = entryPath
	return g, nil
}

func (g *Graph) visit(fsys vfs.FS, path string, isEntry bool) (string, error) {
	if _, ok := g.Configs[path]; ok {
		return path, nil
	}
	config, err := loadConfig(fsys, path, nil)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("fail to load %s: %w", path, ErrReferenceNotFound)
		}
		return "", err
	}
	g.Configs[path] = config
	g.Order = append(g.Order, path)

	if outDir := config.CompilerOptions.OutDir; outDir != "" {
		if owner, ok := g.OutDirs[outDir]; ok {
			log.Warnf("outDir %s of %s is already declared by %s", outDir, path, owner)
		} else {
			g.OutDirs[outDir] = path
			g.RootDirs[outDir] = config.RootDir()
		}
	} else if !isEntry {
		return "", fmt.Errorf("fail to load %s: %w", path, ErrMissingOutDir)
	}

	for _, ref := range config.References {
		if _, err := g.visit(fsys, configPath(fsys, config.Dir(), ref.Path), false); err != nil {
			return "", err
		}
	}
	log.Debugf("tsconfig loaded: %s (%d references)", path, len(config.References))
	return path, nil
}

// configPath resolves a project path against dir; a directory means its tsconfig.json.
func configPath(fsys vfs.FS, dir string, ref string) string {
	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	if vfs.IsDir(fsys, p) {
		p = filepath.Join(p, "tsconfig.json")
	}
	return p
}

// loadConfig reads the config at path and merges the chain of configs it extends.
func loadConfig(fsys vfs.FS, path string, chain []string) (*TsConfig, error) {
	if slices.Contains(chain, path) {
		return nil, fmt.Errorf("%s: %w", strings.Join(append(chain, path), " -> "), ErrExtendsCycle)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("fail to parse %s: %w", path, err)
	}
	config.CompilerOptions.anchor(config.Dir())

	if config.Extends != "" {
		basePath := extendsPath(fsys, config.Dir(), config.Extends)
		base, err := loadConfig(fsys, basePath, append(chain, path))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warnf("%s extends %q which does not exist", path, config.Extends)
				return config, nil
			}
			return nil, err
		}
		config.extend(base)
	}
	return config, nil
}

// extendsPath resolves the "extends" field of a config in dir.
func extendsPath(fsys vfs.FS, dir string, extends string) string {
	if !strings.HasSuffix(extends, ".json") {
		extends += ".json"
	}
	p := extends
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	if strings.Contains(extends, "/") && !vfs.IsFile(fsys, p) {
		p = filepath.Join(dir, "node_modules", extends)
		if !vfs.IsFile(fsys, p) {
			// a package name, e.g. "@tsconfig/node20"
			if pkgDir := strings.TrimSuffix(p, ".json"); vfs.IsDir(fsys, pkgDir) {
				p = filepath.Join(pkgDir, "tsconfig.json")
			}
		}
	}
	return p
}

// FindConfigPath returns the tsconfig of the project: the given project file or
// directory, or the nearest tsconfig.json above cwd. It returns "" if there is none.
func FindConfigPath(fsys vfs.FS, cwd string, project string) string {
	if fsys == nil {
		fsys = vfs.OS{}
	}
	if project != "" {
		return configPath(fsys, cwd, project)
	}
	if vfs.IsFile(fsys, cwd) {
		return cwd
	}
	return walkForTsConfig(fsys, cwd)
}

func walkForTsConfig(fsys vfs.FS, dir string) string {
	for {
		p := filepath.Join(dir, "tsconfig.json")
		if vfs.IsFile(fsys, p) {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
