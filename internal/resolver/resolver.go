package resolver

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/esm-dev/tsload/internal/npm"
	"github.com/esm-dev/tsload/internal/vfs"
	"github.com/ije/gox/set"
)

// Translator maps a resolved output file back to the source file compiling to it.
// It never fails: the input is returned when there is no source.
type Translator interface {
	Translate(u *url.URL) *url.URL
}

// Options configures a Resolver. The caches (Store, Diagnostics) may be shared
// between resolvers and are created when nil.
type Options struct {
	FS                        vfs.FS
	Cwd                       string
	Conditions                []string
	NoAddons                  bool
	PreserveSymlinks          bool
	PreserveSymlinksMain      bool
	LegacySpecifierResolution bool
	PendingDeprecation        bool
	Store                     *Store
	Diagnostics               *Diagnostics
	Translator                Translator
}

// ResolveContext is the per-call input of Resolve.
type ResolveContext struct {
	// Referrer is the URL (or absolute path) of the importing module.
	// Empty for the entry point.
	Referrer string
	// Conditions replaces the default condition set when not nil.
	Conditions []string
}

// Resolution is a resolved module location.
type Resolution struct {
	URL    *url.URL
	Format string
}

// Resolver implements the Node.js ESM resolution algorithm with TypeScript
// source back-translation.
type Resolver struct {
	fs                        vfs.FS
	cwd                       string
	store                     *Store
	diagnostics               *Diagnostics
	translator                Translator
	defaultConditions         *set.ReadOnlySet[string]
	preserveSymlinks          bool
	preserveSymlinksMain      bool
	legacySpecifierResolution bool
	pendingDeprecation        bool
}

// DefaultConditions returns the condition names used when a call doesn't specify any.
func DefaultConditions(noAddons bool, userConditions []string) []string {
	conditions := []string{"node", "import"}
	if !noAddons {
		conditions = append(conditions, "node-addons")
	}
	return append(conditions, userConditions...)
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	fsys := opts.FS
	if fsys == nil {
		fsys = vfs.OS{}
	}
	cwd := opts.Cwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	store := opts.Store
	if store == nil {
		store = NewStore(fsys)
	}
	diagnostics := opts.Diagnostics
	if diagnostics == nil {
		diagnostics = NewDiagnostics(nil)
	}
	return &Resolver{
		fs:                        fsys,
		cwd:                       cwd,
		store:                     store,
		diagnostics:               diagnostics,
		translator:                opts.Translator,
		defaultConditions:         set.NewReadOnly(DefaultConditions(opts.NoAddons, opts.Conditions)...),
		preserveSymlinks:          opts.PreserveSymlinks,
		preserveSymlinksMain:      opts.PreserveSymlinksMain,
		legacySpecifierResolution: opts.LegacySpecifierResolution,
		pendingDeprecation:        opts.PendingDeprecation,
	}
}

// Resolve resolves the specifier imported by ctx.Referrer.
func (r *Resolver) Resolve(specifier string, ctx ResolveContext) (*Resolution, error) {
	spec, err := Classify(specifier, ctx.Referrer)
	if err != nil {
		return nil, err
	}
	if spec.PassThrough() {
		return &Resolution{URL: spec.URL, Format: r.formatOf(spec.URL)}, nil
	}
	if spec.Kind == SpecifierBare && IsBuiltinModule(specifier) {
		u := &url.URL{Scheme: "node", Opaque: specifier}
		return &Resolution{URL: u, Format: FormatBuiltin}, nil
	}

	isMain := ctx.Referrer == ""
	var base *url.URL
	if isMain {
		base = pathToFileURL(r.cwd)
		if !hasTrailingSlash(base) {
			base.Path += "/"
		}
	} else {
		base, err = parseReferrer(ctx.Referrer)
		if err != nil {
			return nil, err
		}
	}

	conditions := r.defaultConditions
	if ctx.Conditions != nil {
		conditions = set.NewReadOnly(ctx.Conditions...)
	}

	resolved, err := r.moduleResolve(spec, base, conditions)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && (e.Kind == ModuleNotFound || e.Kind == UnsupportedDirectoryImport) {
			e.Hint = r.commonJSHint(specifier, base)
		}
		return nil, err
	}

	preserveSymlinks := r.preserveSymlinks
	if isMain {
		preserveSymlinks = r.preserveSymlinksMain
	}
	if !preserveSymlinks && resolved.Scheme == "file" {
		real, err := r.fs.Realpath(fileURLToPath(resolved))
		if err == nil {
			if hasTrailingSlash(resolved) {
				real += string(filepath.Separator)
			}
			resolved = withPath(resolved, real)
		}
	}

	log.Debugf("resolve %q from %q -> %s", specifier, ctx.Referrer, resolved)
	return &Resolution{URL: resolved, Format: r.formatOf(resolved)}, nil
}

func parseReferrer(referrer string) (*url.URL, error) {
	if filepath.IsAbs(referrer) {
		return pathToFileURL(referrer), nil
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return nil, errInvalidModuleSpecifier(referrer, "is not a valid referrer URL", "")
	}
	if u.Scheme != "file" {
		return nil, newError(UnsupportedScheme, referrer, "", "Only file URLs are supported as the referrer of a resolution. Received protocol '"+u.Scheme+":'")
	}
	return u, nil
}

// moduleResolve dispatches on the specifier kind, then back-translates and
// validates the result.
func (r *Resolver) moduleResolve(spec Specifier, base *url.URL, conditions *set.ReadOnlySet[string]) (resolved *url.URL, err error) {
	switch spec.Kind {
	case SpecifierRelative:
		ref, e := url.Parse(spec.Raw)
		if e != nil {
			return nil, errInvalidModuleSpecifier(spec.Raw, "is not a valid URL", fileURLToPath(base))
		}
		resolved = base.ResolveReference(ref)
	case SpecifierInternal:
		resolved, err = r.packageImportsResolve(spec.Raw, base, conditions)
	case SpecifierURL:
		resolved = spec.URL
	case SpecifierBare:
		resolved, err = r.resolvePackage(spec.Package, spec.Raw, base, conditions)
	}
	if err != nil {
		return nil, err
	}
	if resolved.Scheme != "file" {
		return resolved, nil
	}

	if r.translator != nil && !IsSourceFile(resolved.Path) {
		resolved = r.translator.Translate(resolved)
	}
	return r.finalize(resolved, base)
}

// packageResolve resolves a bare specifier, used by internal imports targets.
func (r *Resolver) packageResolve(specifier string, base *url.URL, conditions *set.ReadOnlySet[string]) (*url.URL, error) {
	if IsBuiltinModule(specifier) {
		return &url.URL{Scheme: "node", Opaque: specifier}, nil
	}
	pkg, err := npm.ParsePackageName(specifier)
	if err != nil {
		return nil, errInvalidSpecifier(specifier, err.Error(), fileURLToPath(base))
	}
	return r.resolvePackage(pkg, specifier, base, conditions)
}

func (r *Resolver) resolvePackage(pkg npm.PackageName, specifier string, base *url.URL, conditions *set.ReadOnlySet[string]) (*url.URL, error) {
	// self-reference
	scope, err := r.store.Scope(base)
	if err != nil {
		return nil, err
	}
	if scope.Exists && scope.Name == pkg.Name && scope.HasExports() {
		return r.packageExportsResolve(scope, pkg.Subpath, base, conditions)
	}

	pjson, err := r.findPackage(pkg, specifier, base)
	if err != nil {
		return nil, err
	}
	if pjson == nil {
		return nil, errPackageNotFound(pkg.Name, fileURLToPath(base))
	}
	if pjson.HasExports() {
		return r.packageExportsResolve(pjson, pkg.Subpath, base, conditions)
	}
	if pkg.Subpath == "." {
		return r.legacyMainResolve(pjson, base)
	}
	ref, err := url.Parse(pkg.Subpath)
	if err != nil {
		return nil, errInvalidModuleSpecifier(specifier, "is not a valid URL", fileURLToPath(base))
	}
	return pathToFileURL(pjson.Path).ResolveReference(ref), nil
}

// findPackage ascends node_modules directories from base, returning the config
// of the first directory named after the package, or nil if none.
func (r *Resolver) findPackage(pkg npm.PackageName, specifier string, base *url.URL) (*npm.PackageConfig, error) {
	dir := urlDir(base)
	for {
		pkgDir := filepath.Join(dir, "node_modules", pkg.Name)
		if vfs.IsDir(r.fs, pkgDir) {
			return r.store.Get(filepath.Join(pkgDir, "package.json"), specifier, fileURLToPath(base))
		}
		parent := filepath.Dir(dir)
		if parent == dir || strings.TrimRight(parent, string(filepath.Separator)) == strings.TrimRight(dir, string(filepath.Separator)) {
			return nil, nil
		}
		dir = parent
	}
}
