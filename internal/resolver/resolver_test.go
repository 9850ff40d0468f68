package resolver

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/esm-dev/tsload/internal/vfs"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(p, 0755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func mustResolve(t *testing.T, r *Resolver, specifier string, referrer string) *Resolution {
	t.Helper()
	res, err := r.Resolve(specifier, ResolveContext{Referrer: referrer})
	if err != nil {
		t.Fatalf("resolve %q: %v", specifier, err)
	}
	return res
}

func expectPath(t *testing.T, res *Resolution, want string) {
	t.Helper()
	if got := FileURLToPath(res.URL); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func expectKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		specifier string
		kind      SpecifierKind
		errKind   Kind
	}{
		{"./a.js", SpecifierRelative, 0},
		{"../a.js", SpecifierRelative, 0},
		{"/a.js", SpecifierRelative, 0},
		{".", SpecifierRelative, 0},
		{"..", SpecifierRelative, 0},
		{"#internal/a", SpecifierInternal, 0},
		{"#", 0, InvalidSpecifier},
		{"#/a", 0, InvalidSpecifier},
		{"file:///a.js", SpecifierURL, 0},
		{"data:text/javascript,export%20default%201", SpecifierURL, 0},
		{"node:fs", SpecifierURL, 0},
		{"https://example.com/a.js", 0, UnsupportedScheme},
		{"lodash", SpecifierBare, 0},
		{"lodash/map", SpecifierBare, 0},
		{"@scope/pkg/sub", SpecifierBare, 0},
		{"@scope", 0, InvalidSpecifier},
		{".hidden", 0, InvalidSpecifier},
		{"", 0, InvalidSpecifier},
	}
	for _, tt := range tests {
		spec, err := Classify(tt.specifier, "/app/main.js")
		if tt.errKind != 0 {
			expectKind(t, err, tt.errKind)
			continue
		}
		if err != nil {
			t.Fatalf("classify %q: %v", tt.specifier, err)
		}
		if spec.Kind != tt.kind {
			t.Fatalf("classify %q: expected %s, got %s", tt.specifier, tt.kind, spec.Kind)
		}
	}

	spec, _ := Classify("@scope/pkg/sub", "")
	if spec.Package.Name != "@scope/pkg" || spec.Package.Subpath != "./sub" {
		t.Fatalf("unexpected package name: %+v", spec.Package)
	}
}

func TestPatternKeyCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "./a/*", 1},
		{"./a/*", "./a/b/*", 1},
		{"./a/b/*", "./a/*", -1},
		{"./a/*.js", "./a/*", -1},
		{"./a/*", "./a/*.js", 1},
		{"./a/", "./a/*", 1},
		{"./a/*", "./a/*", 0},
	}
	for _, tt := range tests {
		if got := patternKeyCompare(tt.a, tt.b); got != tt.want {
			t.Fatalf("patternKeyCompare(%q, %q): expected %d, got %d", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestExportsPatternOrder(t *testing.T) {
	for _, exports := range []string{
		`{"./features/*": "./src/features/*.js", "./features/private/*": null}`,
		`{"./features/private/*": null, "./features/*": "./src/features/*.js"}`,
	} {
		root := writeFiles(t, map[string]string{
			"node_modules/pkg/package.json":              `{"name": "pkg", "exports": ` + exports + `}`,
			"node_modules/pkg/src/features/a.js":         "",
			"node_modules/pkg/src/features/private/x.js": "",
		})
		r := New(Options{Cwd: root})
		res := mustResolve(t, r, "pkg/features/a", filepath.Join(root, "main.js"))
		expectPath(t, res, filepath.Join(root, "node_modules/pkg/src/features/a.js"))

		_, err := r.Resolve("pkg/features/private/x", ResolveContext{Referrer: filepath.Join(root, "main.js")})
		expectKind(t, err, PackageSubpathNotExported)
	}
}

func TestExportsConditions(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"node_modules/pkg/package.json": `{
			"name": "pkg",
			"exports": {
				".": {"import": "./esm.js", "require": "./cjs.js"},
				"./sugar": "./sugar.js"
			}
		}`,
		"node_modules/pkg/esm.js":           "",
		"node_modules/pkg/cjs.js":           "",
		"node_modules/pkg/sugar.js":         "",
		"node_modules/mixed/package.json":   `{"name": "mixed", "exports": {".": "./a.js", "import": "./b.js"}}`,
		"node_modules/mixed/a.js":           "",
		"node_modules/numeric/package.json": `{"name": "numeric", "exports": {"0": "./a.js"}}`,
		"node_modules/numeric/a.js":         "",
	})
	r := New(Options{Cwd: root})

	res := mustResolve(t, r, "pkg", "")
	expectPath(t, res, filepath.Join(root, "node_modules/pkg/esm.js"))

	res, err := r.Resolve("pkg", ResolveContext{Conditions: []string{"require"}})
	if err != nil {
		t.Fatal(err)
	}
	expectPath(t, res, filepath.Join(root, "node_modules/pkg/cjs.js"))

	res = mustResolve(t, r, "pkg/sugar", "")
	expectPath(t, res, filepath.Join(root, "node_modules/pkg/sugar.js"))

	_, err = r.Resolve("pkg/missing", ResolveContext{})
	expectKind(t, err, PackageSubpathNotExported)

	_, err = r.Resolve("mixed", ResolveContext{})
	expectKind(t, err, InvalidPackageConfig)

	_, err = r.Resolve("numeric", ResolveContext{})
	expectKind(t, err, InvalidPackageConfig)
}

func TestExportsTargetLists(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"node_modules/pkg/package.json": `{
			"name": "pkg",
			"exports": {
				"./a": [1, "./a.js"],
				"./b": [1],
				"./c": [null],
				"./d": [],
				"./e": [null, "./a.js"],
				"./f": "../outside.js",
				"./g": "a.js"
			}
		}`,
		"node_modules/pkg/a.js":   "",
		"node_modules/outside.js": "",
	})
	r := New(Options{Cwd: root})

	expectPath(t, mustResolve(t, r, "pkg/a", ""), filepath.Join(root, "node_modules/pkg/a.js"))
	expectPath(t, mustResolve(t, r, "pkg/e", ""), filepath.Join(root, "node_modules/pkg/a.js"))

	tests := []struct {
		specifier string
		kind      Kind
	}{
		{"pkg/b", InvalidPackageTarget},
		{"pkg/c", PackageSubpathNotExported},
		{"pkg/d", PackageSubpathNotExported},
		{"pkg/f", InvalidPackageTarget},
		{"pkg/g", InvalidPackageTarget},
	}
	for _, tt := range tests {
		_, err := r.Resolve(tt.specifier, ResolveContext{})
		expectKind(t, err, tt.kind)
	}
}

func TestPackageImports(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"package.json": `{
			"name": "app",
			"imports": {
				"#internal/*": "./src/internal/*.js",
				"#dep": "dep",
				"#fs": "fs"
			}
		}`,
		"src/main.js":                   "",
		"src/internal/util.js":          "",
		"node_modules/dep/package.json": `{"name": "dep"}`,
		"node_modules/dep/index.js":     "",
	})
	r := New(Options{Cwd: root})
	referrer := filepath.Join(root, "src/main.js")

	expectPath(t, mustResolve(t, r, "#internal/util", referrer), filepath.Join(root, "src/internal/util.js"))
	expectPath(t, mustResolve(t, r, "#dep", referrer), filepath.Join(root, "node_modules/dep/index.js"))

	res := mustResolve(t, r, "#fs", referrer)
	if res.URL.String() != "node:fs" || res.Format != FormatBuiltin {
		t.Fatalf("unexpected resolution: %s (%s)", res.URL, res.Format)
	}

	_, err := r.Resolve("#missing", ResolveContext{Referrer: referrer})
	expectKind(t, err, PackageImportNotDefined)
}

func TestLegacyMainDeprecation(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"node_modules/esm-pkg/package.json":   `{"name": "esm-pkg", "type": "module", "main": "lib/main"}`,
		"node_modules/esm-pkg/lib/main.js":    "",
		"node_modules/exact-pkg/package.json": `{"name": "exact-pkg", "type": "module", "main": "lib/main.js"}`,
		"node_modules/exact-pkg/lib/main.js":  "",
		"node_modules/cjs-pkg/package.json":   `{"name": "cjs-pkg"}`,
		"node_modules/cjs-pkg/index.js":       "",
		"node_modules/empty-pkg/package.json": `{"name": "empty-pkg"}`,
	})
	var diags []Diagnostic
	r := New(Options{Cwd: root, Diagnostics: NewDiagnostics(func(d Diagnostic) {
		diags = append(diags, d)
	})})

	res := mustResolve(t, r, "esm-pkg", "")
	expectPath(t, res, filepath.Join(root, "node_modules/esm-pkg/lib/main.js"))
	if res.Format != FormatModule {
		t.Fatalf("expected module format, got %s", res.Format)
	}
	mustResolve(t, r, "esm-pkg", filepath.Join(root, "other.js"))
	if len(diags) != 1 || diags[0].Code != DepLegacyMainResolution {
		t.Fatalf("expected one %s diagnostic, got %v", DepLegacyMainResolution, diags)
	}

	mustResolve(t, r, "exact-pkg", "")
	res = mustResolve(t, r, "cjs-pkg", "")
	if res.Format != FormatCommonJS {
		t.Fatalf("expected commonjs format, got %s", res.Format)
	}
	if len(diags) != 1 {
		t.Fatalf("expected no more diagnostics, got %v", diags)
	}

	_, err := r.Resolve("empty-pkg", ResolveContext{})
	expectKind(t, err, ModuleNotFound)
}

func TestSelfReference(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"package.json": `{"name": "self", "exports": {"./util": "./util.js"}}`,
		"util.js":      "",
		"main.js":      "",
	})
	counter := vfs.NewCounter(vfs.OS{})
	r := New(Options{FS: counter, Cwd: root})

	expectPath(t, mustResolve(t, r, "self/util", filepath.Join(root, "main.js")), filepath.Join(root, "util.js"))
	if n := counter.Stats(filepath.Join(root, "node_modules", "self")); n != 0 {
		t.Fatalf("expected no node_modules probe, got %d", n)
	}
}

func TestNodeModulesAscent(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"node_modules/@s/p/package.json": `{"name": "@s/p", "main": "index.js"}`,
		"node_modules/@s/p/index.js":     "",
		"a/b/main.js":                    "",
	})
	counter := vfs.NewCounter(vfs.OS{})
	r := New(Options{FS: counter, Cwd: root})

	expectPath(t, mustResolve(t, r, "@s/p", filepath.Join(root, "a/b/main.js")), filepath.Join(root, "node_modules/@s/p/index.js"))

	suffix := string(filepath.Separator) + filepath.Join("node_modules", "@s", "p")
	var probes []string
	for _, p := range counter.Probes() {
		if strings.HasSuffix(p, suffix) {
			probes = append(probes, p)
		}
	}
	expected := []string{
		filepath.Join(root, "a/b/node_modules/@s/p"),
		filepath.Join(root, "a/node_modules/@s/p"),
		filepath.Join(root, "node_modules/@s/p"),
	}
	if strings.Join(probes, ",") != strings.Join(expected, ",") {
		t.Fatalf("unexpected probe order: %v", probes)
	}
}

func TestPackageConfigReadOnce(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"package.json":                  `{"name": "app"}`,
		"node_modules/dep/package.json": `{"name": "dep", "main": "main.js"}`,
		"node_modules/dep/main.js":      "",
		"node_modules/dep/lib/a.js":     "",
		"src/a.js":                      "",
		"src/b.js":                      "",
	})
	counter := vfs.NewCounter(vfs.OS{})
	r := New(Options{FS: counter, Cwd: root})

	for _, referrer := range []string{"", filepath.Join(root, "src/a.js"), filepath.Join(root, "src/b.js")} {
		mustResolve(t, r, "dep", referrer)
		mustResolve(t, r, "dep/lib/a.js", referrer)
	}
	for _, name := range []string{"package.json", "node_modules/dep/package.json"} {
		if n := counter.Reads(filepath.Join(root, name)); n != 1 {
			t.Fatalf("expected %s to be read once, got %d", name, n)
		}
	}
}

type suffixTranslator struct {
	fs vfs.FS
}

func (tr suffixTranslator) Translate(u *url.URL) *url.URL {
	p := FileURLToPath(u)
	for _, candidate := range []string{strings.TrimSuffix(p, ".js") + ".ts", p + ".ts"} {
		if vfs.IsFile(tr.fs, candidate) {
			return PathToFileURL(candidate)
		}
	}
	return u
}

func TestTranslateToSource(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"src/main.ts": "",
		"src/util.ts": "",
	})
	r := New(Options{Cwd: root, Translator: suffixTranslator{vfs.OS{}}})
	referrer := filepath.Join(root, "src/main.ts")

	expectPath(t, mustResolve(t, r, "./util.js", referrer), filepath.Join(root, "src/util.ts"))
	expectPath(t, mustResolve(t, r, "./util", referrer), filepath.Join(root, "src/util.ts"))

	_, err := New(Options{Cwd: root}).Resolve("./util", ResolveContext{Referrer: referrer})
	expectKind(t, err, ModuleNotFound)
}

func TestLegacySpecifierResolution(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"node_modules/lodash/package.json": `{"name": "lodash", "main": "lodash.js"}`,
		"node_modules/lodash/lodash.js":    "",
		"node_modules/lodash/map.js":       "",
		"lib/index.js":                     "",
	})
	referrer := filepath.Join(root, "main.js")

	_, err := New(Options{Cwd: root}).Resolve("lodash/map", ResolveContext{Referrer: referrer})
	expectKind(t, err, ModuleNotFound)
	if !strings.Contains(err.Error(), "Did you mean to import lodash/map.js?") {
		t.Fatalf("expected commonjs hint, got %q", err.Error())
	}

	r := New(Options{Cwd: root, LegacySpecifierResolution: true})
	expectPath(t, mustResolve(t, r, "lodash/map", referrer), filepath.Join(root, "node_modules/lodash/map.js"))
	expectPath(t, mustResolve(t, r, "./lib", referrer), filepath.Join(root, "lib/index.js"))
}

func TestDirectoryImport(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"dir/index.js": "",
	})
	r := New(Options{Cwd: root})

	_, err := r.Resolve("./dir", ResolveContext{Referrer: filepath.Join(root, "main.js")})
	expectKind(t, err, UnsupportedDirectoryImport)
	if !strings.Contains(err.Error(), "Did you mean to import ./dir/index.js?") {
		t.Fatalf("expected commonjs hint, got %q", err.Error())
	}
	if code := err.(*Error).Code(); code != "ERR_UNSUPPORTED_DIR_IMPORT" {
		t.Fatalf("unexpected error code %s", code)
	}

	_, err = r.Resolve("./missing.js", ResolveContext{Referrer: filepath.Join(root, "main.js")})
	expectKind(t, err, ModuleNotFound)
}

func TestEncodedSeparator(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a/b.js": "",
	})
	r := New(Options{Cwd: root})
	for _, specifier := range []string{"./a%2Fb.js", "./a%2fb.js", "./a%2Cb.js"} {
		_, err := r.Resolve(specifier, ResolveContext{Referrer: filepath.Join(root, "main.js")})
		expectKind(t, err, InvalidModuleSpecifier)
	}
}

func TestBuiltinsAndPassThrough(t *testing.T) {
	r := New(Options{Cwd: t.TempDir()})
	tests := []struct {
		specifier string
		url       string
		format    string
	}{
		{"fs", "node:fs", FormatBuiltin},
		{"fs/promises", "node:fs/promises", FormatBuiltin},
		{"node:path", "node:path", FormatBuiltin},
		{"data:text/javascript,export%20default%201", "data:text/javascript,export%20default%201", FormatModule},
		{"data:application/json,{}", "data:application/json,{}", FormatJSON},
	}
	for _, tt := range tests {
		res, err := r.Resolve(tt.specifier, ResolveContext{})
		if err != nil {
			t.Fatalf("resolve %q: %v", tt.specifier, err)
		}
		if res.URL.String() != tt.url || res.Format != tt.format {
			t.Fatalf("resolve %q: expected %s (%s), got %s (%s)", tt.specifier, tt.url, tt.format, res.URL, res.Format)
		}
	}
}

func TestModuleFormat(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"esm/package.json": `{"type": "module"}`,
		"esm/a.js":         "",
		"esm/b.cjs":        "",
		"cjs/a.js":         "",
		"cjs/b.mjs":        "",
		"cjs/c.json":       "{}",
	})
	r := New(Options{Cwd: root})
	tests := map[string]string{
		"./esm/a.js":   FormatModule,
		"./esm/b.cjs":  FormatCommonJS,
		"./cjs/a.js":   FormatCommonJS,
		"./cjs/b.mjs":  FormatModule,
		"./cjs/c.json": FormatJSON,
	}
	for specifier, format := range tests {
		res := mustResolve(t, r, specifier, "")
		if res.Format != format {
			t.Fatalf("resolve %q: expected %s format, got %s", specifier, format, res.Format)
		}
	}
}

func TestSymlinks(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"real/a.js": "",
	})
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")); err != nil {
		t.Skip("symlinks not supported:", err)
	}
	referrer := filepath.Join(root, "main.js")

	r := New(Options{Cwd: root})
	expectPath(t, mustResolve(t, r, "./link/a.js", referrer), filepath.Join(root, "real/a.js"))

	r = New(Options{Cwd: root, PreserveSymlinks: true})
	expectPath(t, mustResolve(t, r, "./link/a.js", referrer), filepath.Join(root, "link/a.js"))

	// the entry point follows preserveSymlinksMain
	expectPath(t, mustResolve(t, r, "./link/a.js", ""), filepath.Join(root, "real/a.js"))
}

func TestFolderMappingDeprecation(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"node_modules/pkg/package.json": `{"name": "pkg", "exports": {"./lib/": "./lib/"}}`,
		"node_modules/pkg/lib/x.js":     "",
		"node_modules/pkg/lib/y.js":     "",
	})
	var diags []Diagnostic
	r := New(Options{Cwd: root, Diagnostics: NewDiagnostics(func(d Diagnostic) {
		diags = append(diags, d)
	})})

	expectPath(t, mustResolve(t, r, "pkg/lib/x.js", ""), filepath.Join(root, "node_modules/pkg/lib/x.js"))
	mustResolve(t, r, "pkg/lib/y.js", "")
	mustResolve(t, r, "pkg/lib/x.js", filepath.Join(root, "main.js"))
	if len(diags) != 1 || diags[0].Code != DepFolderMapping {
		t.Fatalf("expected one %s diagnostic, got %v", DepFolderMapping, diags)
	}
}

func TestTrailingSlashPatternDeprecation(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"node_modules/pkg/package.json":        `{"name": "pkg", "exports": {"./features/*": "./features/*.js"}}`,
		"node_modules/pkg/features/a.js":       "",
		"node_modules/pkg/features/a/index.js": "",
	})
	for _, pending := range []bool{false, true} {
		var diags []Diagnostic
		r := New(Options{Cwd: root, PendingDeprecation: pending, Diagnostics: NewDiagnostics(func(d Diagnostic) {
			diags = append(diags, d)
		})})
		// the resolution itself fails, only the notice matters here
		r.Resolve("pkg/features/a/", ResolveContext{})
		r.Resolve("pkg/features/a/", ResolveContext{})
		expectPath(t, mustResolve(t, r, "pkg/features/a", ""), filepath.Join(root, "node_modules/pkg/features/a.js"))

		if !pending {
			if len(diags) != 0 {
				t.Fatalf("expected no diagnostics without pending deprecation, got %v", diags)
			}
			continue
		}
		if len(diags) != 1 || diags[0].Code != DepTrailingSlashPattern {
			t.Fatalf("expected one %s diagnostic, got %v", DepTrailingSlashPattern, diags)
		}
	}
}

func TestUnsupportedReferrer(t *testing.T) {
	r := New(Options{Cwd: t.TempDir()})
	_, err := r.Resolve("./a.js", ResolveContext{Referrer: "https://example.com/main.js"})
	expectKind(t, err, UnsupportedScheme)
}
