package resolver

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/esm-dev/tsload/internal/vfs"
)

var encodedSepRegExp = regexp.MustCompile(`(?i)%2F|%2C`)

var legacyExtensions = []string{".js", ".json", ".node", ".mjs"}

// finalize validates the resolved URL against the filesystem.
func (r *Resolver) finalize(resolved *url.URL, base *url.URL) (*url.URL, error) {
	basePath := fileURLToPath(base)
	if encodedSepRegExp.MatchString(resolved.EscapedPath()) {
		return nil, errInvalidModuleSpecifier(resolved.Path, "must not include encoded \"/\" or \"\\\" characters", basePath)
	}

	p := fileURLToPath(resolved)
	if r.legacySpecifierResolution {
		if file := r.resolveExtensionsWithTryExactName(p); file != "" {
			return withPath(resolved, file), nil
		}
		if !hasTrailingSlash(resolved) {
			if file := r.resolveDirectoryEntry(p); file != "" {
				return withPath(resolved, file), nil
			}
		} else {
			if file := r.resolveDirectoryEntry(p); file != "" {
				return withPath(resolved, file), nil
			}
			return resolved, nil
		}
		return nil, errModuleNotFound(resolved.Path, basePath)
	}

	fi, err := r.fs.Stat(strings.TrimSuffix(p, string(filepath.Separator)))
	if err == nil && fi.IsDir() {
		e := errUnsupportedDirImport(p, basePath)
		e.URL = resolved.String()
		return nil, e
	}
	if err != nil || !fi.Mode().IsRegular() {
		return nil, errModuleNotFound(p, basePath)
	}
	return resolved, nil
}

func (r *Resolver) resolveExtensions(search string) string {
	for _, ext := range legacyExtensions {
		if vfs.IsFile(r.fs, search+ext) {
			return search + ext
		}
	}
	return ""
}

func (r *Resolver) resolveExtensionsWithTryExactName(search string) string {
	if vfs.IsFile(r.fs, search) {
		return search
	}
	return r.resolveExtensions(search)
}

// resolveDirectoryEntry resolves a directory through its package.json "main"
// or an index file.
func (r *Resolver) resolveDirectoryEntry(dir string) string {
	pjsonPath := filepath.Join(dir, "package.json")
	if vfs.IsFile(r.fs, pjsonPath) {
		pjson, err := r.store.Get(pjsonPath, "", "")
		if err == nil && pjson.Main != "" {
			return r.resolveExtensionsWithTryExactName(filepath.Join(dir, pjson.Main))
		}
	}
	return r.resolveExtensions(filepath.Join(dir, "index"))
}
