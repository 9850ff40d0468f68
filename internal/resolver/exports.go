package resolver

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/esm-dev/tsload/internal/npm"
	"github.com/ije/gox/set"
)

var invalidSegmentRegExp = regexp.MustCompile(`(^|\\|/)(\.\.?|node_modules)(\\|/|$)`)

type targetState uint8

const (
	// no condition matched
	targetUnresolved targetState = iota
	// an explicit null target
	targetNull
	targetResolved
)

type targetResult struct {
	state targetState
	url   *url.URL
}

func (r targetResult) ok() bool {
	return r.state == targetResolved
}

// packageExportsResolve resolves the subpath against the "exports" field of the package.
func (r *Resolver) packageExportsResolve(pjson *npm.PackageConfig, subpath string, base *url.URL, conditions *set.ReadOnlySet[string]) (*url.URL, error) {
	exports := *pjson.Exports
	sugar, err := isConditionalExportsMainSugar(exports, pjson.Path, base)
	if err != nil {
		return nil, err
	}
	if sugar {
		exports = npm.Target{Kind: npm.TargetConditions, Keys: []string{"."}, Map: map[string]npm.Target{".": exports}}
	}

	key, captured, found := r.matchSubpath(exports, subpath, pjson.Path, base, true)
	if !found {
		return nil, errExportsNotFound(subpath, pjson.Path, base)
	}
	target, _ := exports.Get(key)
	pattern := strings.Contains(key, "*")
	res, err := r.resolvePackageTarget(pjson.Path, target, captured, key, base, pattern, false, conditions)
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, errExportsNotFound(subpath, pjson.Path, base)
	}
	if !pattern && strings.HasSuffix(key, "/") {
		r.emitFolderMapDeprecation(key, pjson.Path, true, base)
	}
	return res.url, nil
}

// packageImportsResolve resolves a `#` specifier against the "imports" field of the
// package enclosing base.
func (r *Resolver) packageImportsResolve(name string, base *url.URL, conditions *set.ReadOnlySet[string]) (*url.URL, error) {
	if name == "#" || strings.HasPrefix(name, "#/") {
		return nil, errInvalidModuleSpecifier(name, "is not a valid internal imports specifier name", fileURLToPath(base))
	}
	pjson, err := r.store.Scope(base)
	if err != nil {
		return nil, err
	}
	if !pjson.Exists || pjson.Imports == nil {
		return nil, errImportNotDefined(name, pjson, base)
	}

	imports := *pjson.Imports
	key, captured, found := r.matchSubpath(imports, name, pjson.Path, base, false)
	if !found {
		return nil, errImportNotDefined(name, pjson, base)
	}
	target, _ := imports.Get(key)
	pattern := strings.Contains(key, "*")
	res, err := r.resolvePackageTarget(pjson.Path, target, captured, key, base, pattern, true, conditions)
	if err != nil {
		return nil, err
	}
	if !res.ok() {
		return nil, errImportNotDefined(name, pjson, base)
	}
	if !pattern && strings.HasSuffix(key, "/") {
		r.emitFolderMapDeprecation(key, pjson.Path, false, base)
	}
	return res.url, nil
}

// matchSubpath finds the key of the map that the subpath selects, returning the
// part of the subpath captured by a pattern or prefix key.
func (r *Resolver) matchSubpath(m npm.Target, subpath string, pjsonPath string, base *url.URL, isExports bool) (key string, captured string, found bool) {
	if _, ok := m.Get(subpath); ok && !strings.Contains(subpath, "*") && !strings.HasSuffix(subpath, "/") {
		return subpath, "", true
	}

	bestMatch := ""
	bestMatchSubpath := ""
	for _, key := range m.Keys {
		patternIndex := strings.IndexByte(key, '*')
		if patternIndex != -1 && strings.HasPrefix(subpath, key[:patternIndex]) {
			if isExports && strings.HasSuffix(subpath, "/") {
				r.emitTrailingSlashPatternDeprecation(subpath, pjsonPath, isExports, base)
			}
			patternTrailer := key[patternIndex+1:]
			if len(subpath) >= len(key) &&
				strings.HasSuffix(subpath, patternTrailer) &&
				patternKeyCompare(bestMatch, key) == 1 &&
				strings.LastIndexByte(key, '*') == patternIndex {
				bestMatch = key
				bestMatchSubpath = subpath[patternIndex : len(subpath)-len(patternTrailer)]
			}
		} else if strings.HasSuffix(key, "/") &&
			strings.HasPrefix(subpath, key) &&
			patternKeyCompare(bestMatch, key) == 1 {
			bestMatch = key
			bestMatchSubpath = subpath[len(key):]
		}
	}
	if bestMatch == "" {
		return "", "", false
	}
	return bestMatch, bestMatchSubpath, true
}

// patternKeyCompare orders two exports keys: 1 means b is the better match.
func patternKeyCompare(a string, b string) int {
	aPatternIndex := strings.IndexByte(a, '*')
	bPatternIndex := strings.IndexByte(b, '*')
	baseLenA := len(a)
	if aPatternIndex != -1 {
		baseLenA = aPatternIndex + 1
	}
	baseLenB := len(b)
	if bPatternIndex != -1 {
		baseLenB = bPatternIndex + 1
	}
	switch {
	case baseLenA > baseLenB:
		return -1
	case baseLenB > baseLenA:
		return 1
	case aPatternIndex == -1:
		return 1
	case bPatternIndex == -1:
		return -1
	case len(a) > len(b):
		return -1
	case len(b) > len(a):
		return 1
	}
	return 0
}

// isConditionalExportsMainSugar reports whether exports is shorthand for {".": exports}.
func isConditionalExportsMainSugar(exports npm.Target, pjsonPath string, base *url.URL) (bool, error) {
	switch exports.Kind {
	case npm.TargetString, npm.TargetList:
		return true, nil
	case npm.TargetConditions:
		isConditionalSugar := false
		for i, key := range exports.Keys {
			curIsConditionalSugar := key == "" || key[0] != '.'
			if i == 0 {
				isConditionalSugar = curIsConditionalSugar
			} else if isConditionalSugar != curIsConditionalSugar {
				return false, errInvalidPackageConfig(pjsonPath, fileURLToPath(base),
					"\"exports\" cannot contain some keys starting with '.' and some not. "+
						"The exports object must either be an object of package subpath keys "+
						"or an object of main entry condition name keys only.")
			}
		}
		return isConditionalSugar, nil
	default:
		return false, nil
	}
}

// resolvePackageTarget resolves an exports/imports target node.
func (r *Resolver) resolvePackageTarget(pjsonPath string, target npm.Target, subpath string, key string, base *url.URL, pattern bool, internal bool, conditions *set.ReadOnlySet[string]) (targetResult, error) {
	switch target.Kind {
	case npm.TargetString:
		u, err := r.resolvePackageTargetString(pjsonPath, target, subpath, key, base, pattern, internal, conditions)
		if err != nil {
			return targetResult{}, err
		}
		return targetResult{state: targetResolved, url: u}, nil

	case npm.TargetList:
		if len(target.List) == 0 {
			return targetResult{state: targetNull}, nil
		}
		var lastErr error
		lastNull := false
		for _, item := range target.List {
			res, err := r.resolvePackageTarget(pjsonPath, item, subpath, key, base, pattern, internal, conditions)
			if err != nil {
				if IsKind(err, InvalidPackageTarget) {
					lastErr, lastNull = err, false
					continue
				}
				return targetResult{}, err
			}
			switch res.state {
			case targetUnresolved:
				continue
			case targetNull:
				lastErr, lastNull = nil, true
				continue
			}
			return res, nil
		}
		if lastErr != nil {
			return targetResult{}, lastErr
		}
		if lastNull {
			return targetResult{state: targetNull}, nil
		}
		return targetResult{state: targetUnresolved}, nil

	case npm.TargetConditions:
		for _, k := range target.Keys {
			if isArrayIndex(k) {
				return targetResult{}, errInvalidPackageConfig(pjsonPath, fileURLToPath(base), "\"exports\" cannot contain numeric property keys.")
			}
		}
		for _, k := range target.Keys {
			if k == "default" || conditions.Has(k) {
				res, err := r.resolvePackageTarget(pjsonPath, target.Map[k], subpath, key, base, pattern, internal, conditions)
				if err != nil {
					return targetResult{}, err
				}
				if res.state == targetUnresolved {
					continue
				}
				return res, nil
			}
		}
		return targetResult{state: targetUnresolved}, nil

	case npm.TargetNull:
		return targetResult{state: targetNull}, nil
	}

	return targetResult{}, errInvalidPackageTarget(pjsonPath, key, target, internal, base)
}

func (r *Resolver) resolvePackageTargetString(pjsonPath string, target npm.Target, subpath string, key string, base *url.URL, pattern bool, internal bool, conditions *set.ReadOnlySet[string]) (*url.URL, error) {
	s := target.Str
	if subpath != "" && !pattern && !strings.HasSuffix(s, "/") {
		return nil, errInvalidPackageTarget(pjsonPath, key, target, internal, base)
	}

	if !strings.HasPrefix(s, "./") {
		if internal && !strings.HasPrefix(s, "../") && !strings.HasPrefix(s, "/") {
			if _, isURL := parseAbsoluteURL(s); !isURL {
				exportTarget := s + subpath
				if pattern {
					exportTarget = strings.ReplaceAll(s, "*", subpath)
				}
				return r.packageResolve(exportTarget, pathToFileURL(pjsonPath), conditions)
			}
		}
		return nil, errInvalidPackageTarget(pjsonPath, key, target, internal, base)
	}

	if invalidSegmentRegExp.MatchString(s[2:]) {
		return nil, errInvalidPackageTarget(pjsonPath, key, target, internal, base)
	}

	ref, err := url.Parse(s)
	if err != nil {
		return nil, errInvalidPackageTarget(pjsonPath, key, target, internal, base)
	}
	pjsonURL := pathToFileURL(pjsonPath)
	resolved := pjsonURL.ResolveReference(ref)
	packagePath := pathToFileURL(filepath.Dir(pjsonPath)).Path + "/"
	if !strings.HasPrefix(resolved.Path, packagePath) {
		return nil, errInvalidPackageTarget(pjsonPath, key, target, internal, base)
	}

	if subpath == "" {
		return resolved, nil
	}

	if invalidSegmentRegExp.MatchString(subpath) {
		request := key
		if pattern {
			request = strings.ReplaceAll(key, "*", subpath)
		} else {
			request += subpath
		}
		return nil, errInvalidModuleSpecifier(request, "request is not a valid subpath for the \""+fieldName(internal)+"\" resolution of "+pjsonPath, fileURLToPath(base))
	}

	if pattern {
		u, err := url.Parse("file://" + strings.ReplaceAll(resolved.EscapedPath(), "*", subpath))
		if err != nil {
			return nil, errInvalidModuleSpecifier(subpath, "is not a valid subpath", fileURLToPath(base))
		}
		return u, nil
	}
	ref, err = url.Parse(subpath)
	if err != nil {
		return nil, errInvalidModuleSpecifier(subpath, "is not a valid subpath", fileURLToPath(base))
	}
	return resolved.ResolveReference(ref), nil
}

func (r *Resolver) emitFolderMapDeprecation(match string, pjsonPath string, isExports bool, base *url.URL) {
	r.diagnostics.Emit(pjsonPath+"|"+match, Diagnostic{
		Code: DepFolderMapping,
		Message: "Use of deprecated folder mapping \"" + match + "\" in the \"" + fieldName(!isExports) +
			"\" field module resolution of the package at " + pjsonPath + importedFrom(fileURLToPath(base)) + ".\n" +
			"Update this package.json to use a subpath pattern like \"" + match + "*\".",
	})
}

func (r *Resolver) emitTrailingSlashPatternDeprecation(match string, pjsonPath string, isExports bool, base *url.URL) {
	if !r.pendingDeprecation {
		return
	}
	r.diagnostics.Emit(pjsonPath+"|"+match, Diagnostic{
		Code: DepTrailingSlashPattern,
		Message: "Use of deprecated trailing slash pattern mapping \"" + match + "\" in the \"" + fieldName(!isExports) +
			"\" field module resolution of the package at " + pjsonPath + importedFrom(fileURLToPath(base)) +
			". Mapping specifiers ending in \"/\" is no longer supported.",
	})
}

func fieldName(internal bool) string {
	if internal {
		return "imports"
	}
	return "exports"
}

func isArrayIndex(key string) bool {
	n, err := strconv.ParseUint(key, 10, 32)
	return err == nil && n < 1<<32-1 && strconv.FormatUint(n, 10) == key
}

func packageDir(pjsonPath string) string {
	return filepath.Dir(pjsonPath) + string(filepath.Separator)
}

func errExportsNotFound(subpath string, pjsonPath string, base *url.URL) *Error {
	var msg string
	if subpath == "." {
		msg = "No \"exports\" main defined in " + pjsonPath
	} else {
		msg = "Package subpath '" + subpath + "' is not defined by \"exports\" in " + pjsonPath
	}
	return newError(PackageSubpathNotExported, subpath, fileURLToPath(base), msg+importedFrom(fileURLToPath(base)))
}

func errImportNotDefined(specifier string, pjson *npm.PackageConfig, base *url.URL) *Error {
	msg := "Package import specifier \"" + specifier + "\" is not defined"
	if pjson != nil && pjson.Exists {
		msg += " in package " + pjson.Path
	}
	return newError(PackageImportNotDefined, specifier, fileURLToPath(base), msg+importedFrom(fileURLToPath(base)))
}

func errInvalidPackageTarget(pjsonPath string, key string, target npm.Target, internal bool, base *url.URL) *Error {
	relError := target.Kind == npm.TargetString && !internal && target.Str != "" && !strings.HasPrefix(target.Str, "./")
	var msg string
	if key == "." {
		msg = "Invalid \"exports\" main target " + target.String() + " defined in the package config " + pjsonPath
	} else {
		msg = "Invalid \"" + fieldName(internal) + "\" target " + target.String() + " defined for '" + key + "' in the package config " + pjsonPath
	}
	msg += importedFrom(fileURLToPath(base))
	if relError {
		msg += "; targets must start with \"./\""
	}
	return newError(InvalidPackageTarget, key, fileURLToPath(base), msg)
}
