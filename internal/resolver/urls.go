package resolver

import (
	"net/url"
	"path/filepath"
	"strings"
)

// FileURLToPath converts a file URL to a filesystem path.
func FileURLToPath(u *url.URL) string {
	return fileURLToPath(u)
}

// PathToFileURL converts an absolute path to a file URL.
func PathToFileURL(p string) *url.URL {
	return pathToFileURL(p)
}

func fileURLToPath(u *url.URL) string {
	if u == nil {
		return ""
	}
	p := u.Path
	// file:///C:/foo on windows
	if filepath.Separator == '\\' && len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

func pathToFileURL(p string) *url.URL {
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return &url.URL{Scheme: "file", Path: p}
}

// urlDir returns the directory a relative reference against u resolves in.
func urlDir(u *url.URL) string {
	p := fileURLToPath(u)
	if strings.HasSuffix(u.Path, "/") {
		return filepath.Clean(p)
	}
	return filepath.Dir(p)
}

func hasTrailingSlash(u *url.URL) bool {
	return strings.HasSuffix(u.Path, "/")
}

// withPath returns a copy of u with the path replaced, keeping query and fragment.
func withPath(u *url.URL, p string) *url.URL {
	v := pathToFileURL(p)
	v.RawQuery = u.RawQuery
	v.Fragment = u.Fragment
	return v
}
