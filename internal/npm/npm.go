package npm

import (
	"errors"
	"strings"
)

// ErrInvalidPackageName is returned by ParsePackageName for malformed bare specifiers.
var ErrInvalidPackageName = errors.New("is not a valid package name")

// PackageName is a bare specifier split at the package-name boundary.
type PackageName struct {
	Name    string
	Subpath string // always starts with "."
	Scoped  bool
}

// ParsePackageName splits a bare specifier into the package name and the subpath.
// e.g. "react" -> {react, .}
// e.g. "lodash/map" -> {lodash, ./map}
// e.g. "@babel/core/lib/index.js" -> {@babel/core, ./lib/index.js, scoped}
func ParsePackageName(specifier string) (PackageName, error) {
	separatorIndex := strings.IndexByte(specifier, '/')
	valid := len(specifier) > 0
	scoped := false
	if strings.HasPrefix(specifier, "@") {
		scoped = true
		if separatorIndex == -1 {
			valid = false
		} else {
			next := strings.IndexByte(specifier[separatorIndex+1:], '/')
			if next == -1 {
				separatorIndex = -1
			} else {
				separatorIndex += next + 1
			}
		}
	}

	name := specifier
	if separatorIndex != -1 {
		name = specifier[:separatorIndex]
	}
	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, "%\\") {
		valid = false
	}
	if !valid {
		return PackageName{}, ErrInvalidPackageName
	}

	subpath := "."
	if separatorIndex != -1 {
		subpath += specifier[separatorIndex:]
	}
	return PackageName{Name: name, Subpath: subpath, Scoped: scoped}, nil
}
