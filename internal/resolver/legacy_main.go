package resolver

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/esm-dev/tsload/internal/npm"
	"github.com/esm-dev/tsload/internal/vfs"
)

var legacyMainSuffixes = []string{".js", ".json", ".node", "/index.js", "/index.json", "/index.node"}

var legacyIndexFiles = []string{"./index.js", "./index.json", "./index.node"}

type legacyCandidate struct {
	path string
	// the "main" field is used as-is, no deprecation
	exact bool
}

// legacyMainCandidates returns the files probed, in order, for a package
// without "exports".
func legacyMainCandidates(pjson *npm.PackageConfig) []legacyCandidate {
	dir := filepath.Dir(pjson.Path)
	candidates := make([]legacyCandidate, 0, 1+len(legacyMainSuffixes)+len(legacyIndexFiles))
	if pjson.Main != "" {
		main := "./" + pjson.Main
		candidates = append(candidates, legacyCandidate{path: filepath.Join(dir, main), exact: true})
		for _, suffix := range legacyMainSuffixes {
			candidates = append(candidates, legacyCandidate{path: filepath.Join(dir, main+suffix)})
		}
	}
	for _, index := range legacyIndexFiles {
		candidates = append(candidates, legacyCandidate{path: filepath.Join(dir, index)})
	}
	return candidates
}

// legacyMainResolve resolves the main entry of a package without "exports".
func (r *Resolver) legacyMainResolve(pjson *npm.PackageConfig, base *url.URL) (*url.URL, error) {
	for _, c := range legacyMainCandidates(pjson) {
		if !vfs.IsFile(r.fs, c.path) {
			continue
		}
		u := pathToFileURL(c.path)
		if !c.exact {
			r.emitLegacyIndexDeprecation(u, pjson, base)
		}
		return u, nil
	}
	return nil, errModuleNotFound(packageDir(pjson.Path), fileURLToPath(base))
}

func (r *Resolver) emitLegacyIndexDeprecation(u *url.URL, pjson *npm.PackageConfig, base *url.URL) {
	if r.formatOf(u) != FormatModule {
		return
	}
	path := fileURLToPath(u)
	pkgPath := packageDir(pjson.Path)
	basePath := fileURLToPath(base)
	rel := strings.TrimPrefix(path, pkgPath)
	var msg string
	if pjson.Main != "" {
		msg = "Package " + pkgPath + " has a \"main\" field set to \"" + pjson.Main + "\", " +
			"excluding the full filename and extension to the resolved file at \"" + rel + "\", imported from " + basePath + ".\n" +
			" Automatic extension resolution of the \"main\" field is deprecated for ES modules."
	} else {
		msg = "No \"main\" or \"exports\" field defined in the package.json for " + pkgPath +
			" resolving the main entry point \"" + rel + "\", imported from " + basePath + ".\n" +
			"Default \"index\" lookups for the main are deprecated for ES modules."
	}
	r.diagnostics.Emit(pjson.Path+"|"+path, Diagnostic{Code: DepLegacyMainResolution, Message: msg})
}
