package resolver

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/esm-dev/tsload/internal/npm"
	"github.com/esm-dev/tsload/internal/vfs"
)

var commonJSExtensions = []string{".js", ".json", ".node"}

// commonJSHint returns what the specifier would resolve to with require(), or ""
// if that fails too.
func (r *Resolver) commonJSHint(specifier string, parent *url.URL) string {
	if strings.HasPrefix(specifier, "file://") {
		u, err := url.Parse(specifier)
		if err != nil {
			return ""
		}
		specifier = fileURLToPath(u)
	}
	parentDir := urlDir(parent)

	var found string
	switch {
	case filepath.IsAbs(specifier):
		return filepath.ToSlash(r.loadAsFileOrDirectory(specifier))
	case isRelativeOrAbsolute(specifier):
		found = r.loadAsFileOrDirectory(filepath.Join(parentDir, specifier))
		if found == "" {
			return ""
		}
		rel, err := filepath.Rel(parentDir, found)
		if err != nil {
			return ""
		}
		if !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rel = "." + string(filepath.Separator) + rel
		}
		return filepath.ToSlash(rel)
	case specifier[0] != '#':
		pkg, err := npm.ParsePackageName(specifier)
		if err != nil {
			return ""
		}
		for dir := parentDir; ; {
			pkgDir := filepath.Join(dir, "node_modules", pkg.Name)
			if vfs.IsDir(r.fs, pkgDir) {
				found = r.loadAsFileOrDirectory(filepath.Join(pkgDir, pkg.Subpath))
				if found != "" {
					break
				}
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				return ""
			}
			dir = parent
		}
		first, _, _ := strings.Cut(specifier, "/")
		if i := strings.Index(found, first); i != -1 {
			found = found[i:]
		}
		return filepath.ToSlash(found)
	}
	return ""
}

// loadAsFileOrDirectory follows require()'s LOAD_AS_FILE and LOAD_AS_DIRECTORY.
func (r *Resolver) loadAsFileOrDirectory(p string) string {
	if file := r.loadAsFile(p); file != "" {
		return file
	}
	if !vfs.IsDir(r.fs, p) {
		return ""
	}
	pjsonPath := filepath.Join(p, "package.json")
	if vfs.IsFile(r.fs, pjsonPath) {
		if pjson, err := r.store.Get(pjsonPath, "", ""); err == nil && pjson.Main != "" {
			main := filepath.Join(p, pjson.Main)
			if file := r.loadAsFile(main); file != "" {
				return file
			}
			if file := r.loadIndex(main); file != "" {
				return file
			}
		}
	}
	return r.loadIndex(p)
}

func (r *Resolver) loadAsFile(p string) string {
	if vfs.IsFile(r.fs, p) {
		return p
	}
	for _, ext := range commonJSExtensions {
		if vfs.IsFile(r.fs, p+ext) {
			return p + ext
		}
	}
	return ""
}

func (r *Resolver) loadIndex(dir string) string {
	for _, ext := range commonJSExtensions {
		if file := filepath.Join(dir, "index"+ext); vfs.IsFile(r.fs, file) {
			return file
		}
	}
	return ""
}
