package tsconfig

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/esm-dev/tsload/internal/resolver"
	"github.com/esm-dev/tsload/internal/vfs"
)

type outDir struct {
	dir     string
	rootDir string
	config  string
}

// Translator maps files inside the outDirs of a project graph back to the
// TypeScript sources compiling to them.
type Translator struct {
	fs      vfs.FS
	outDirs []outDir
	// directory -> index in outDirs, or -1
	membership sync.Map
	lookups    atomic.Int64
}

// NewTranslator creates a Translator for the graph.
func NewTranslator(fsys vfs.FS, g *Graph) *Translator {
	if fsys == nil {
		fsys = vfs.OS{}
	}
	t := &Translator{fs: fsys}
	if g != nil {
		for dir, config := range g.OutDirs {
			t.outDirs = append(t.outDirs, outDir{dir: dir, rootDir: g.RootDirs[dir], config: config})
		}
	}
	// the longest outDir wins
	sort.Slice(t.outDirs, func(i, j int) bool {
		return len(t.outDirs[i].dir) > len(t.outDirs[j].dir)
	})
	return t
}

// Translate returns the source file of u, or u itself when no source exists.
func (t *Translator) Translate(u *url.URL) *url.URL {
	if u.Scheme != "file" || strings.HasSuffix(u.Path, "/") {
		return u
	}
	p := resolver.FileURLToPath(u)
	candidates := sourceCandidates(p)

	if owner := t.ownerOf(filepath.Dir(p)); owner != nil {
		rel, err := filepath.Rel(owner.dir, p)
		if err == nil {
			for _, c := range sourceCandidates(filepath.Join(owner.rootDir, rel)) {
				if vfs.IsFile(t.fs, c) {
					return replacePath(u, c)
				}
			}
		}
		for _, c := range candidates {
			if vfs.IsFile(t.fs, c) {
				return replacePath(u, c)
			}
		}
		return u
	}

	if vfs.IsFile(t.fs, p) {
		return u
	}
	for _, c := range candidates {
		if vfs.IsFile(t.fs, c) {
			return replacePath(u, c)
		}
	}
	return u
}

// OutDirOf returns the outDir containing the path and the config declaring it.
func (t *Translator) OutDirOf(p string) (dir string, config string, ok bool) {
	if owner := t.ownerOf(filepath.Dir(p)); owner != nil {
		return owner.dir, owner.config, true
	}
	return "", "", false
}

func (t *Translator) ownerOf(dir string) *outDir {
	if v, ok := t.membership.Load(dir); ok {
		if i := v.(int); i >= 0 {
			return &t.outDirs[i]
		}
		return nil
	}
	t.lookups.Add(1)
	index := -1
	for i, o := range t.outDirs {
		if dir == o.dir || strings.HasPrefix(dir, o.dir+string(filepath.Separator)) {
			index = i
			break
		}
	}
	t.membership.Store(dir, index)
	if index >= 0 {
		return &t.outDirs[index]
	}
	return nil
}

// sourceCandidates returns the source files that may compile to the output path.
func sourceCandidates(p string) []string {
	if strings.HasSuffix(p, ".d.ts") {
		return nil
	}
	ext := filepath.Ext(p)
	base := strings.TrimSuffix(p, ext)
	switch ext {
	case ".js":
		return []string{base + ".ts", base + ".tsx"}
	case ".jsx":
		return []string{base + ".tsx"}
	case ".mjs":
		return []string{base + ".mts"}
	case ".cjs":
		return []string{base + ".cts"}
	case ".ts", ".tsx", ".mts", ".cts", ".json", ".node", ".wasm":
		return nil
	}
	// extensionless, or a dotted name like "./user.service"
	return []string{p + ".ts", p + ".tsx"}
}

// SuffixTranslator appends ".ts" to the resolved path when that file exists.
type SuffixTranslator struct {
	FS vfs.FS
}

func (t SuffixTranslator) Translate(u *url.URL) *url.URL {
	if u.Scheme != "file" || strings.HasSuffix(u.Path, "/") {
		return u
	}
	fsys := t.FS
	if fsys == nil {
		fsys = vfs.OS{}
	}
	p := resolver.FileURLToPath(u) + ".ts"
	if vfs.IsFile(fsys, p) {
		return replacePath(u, p)
	}
	return u
}

func replacePath(u *url.URL, p string) *url.URL {
	v := resolver.PathToFileURL(p)
	v.RawQuery = u.RawQuery
	v.Fragment = u.Fragment
	return v
}
