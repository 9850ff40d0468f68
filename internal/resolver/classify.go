package resolver

import (
	"net/url"
	"strings"

	"github.com/esm-dev/tsload/internal/npm"
	"github.com/ije/gox/valid"
)

// SpecifierKind is the shape of an import specifier.
type SpecifierKind uint8

const (
	SpecifierRelative SpecifierKind = iota + 1
	SpecifierInternal
	SpecifierURL
	SpecifierBare
)

func (k SpecifierKind) String() string {
	switch k {
	case SpecifierRelative:
		return "relative"
	case SpecifierInternal:
		return "internal"
	case SpecifierURL:
		return "url"
	case SpecifierBare:
		return "bare"
	default:
		return "unknown"
	}
}

// Specifier is a classified import specifier.
type Specifier struct {
	Kind    SpecifierKind
	Raw     string
	URL     *url.URL        // SpecifierURL only
	Package npm.PackageName // SpecifierBare only
}

// PassThrough reports whether the specifier is a URL the resolver returns unchanged.
func (s Specifier) PassThrough() bool {
	return s.Kind == SpecifierURL && (s.URL.Scheme == "data" || s.URL.Scheme == "node")
}

var schemeNaming = valid.Validator{valid.Range{'a', 'z'}, valid.Range{'A', 'Z'}, valid.Range{'0', '9'}, valid.Eq('+'), valid.Eq('-'), valid.Eq('.')}

// Classify categorizes the specifier. base is only used in error messages.
func Classify(specifier string, base string) (Specifier, error) {
	if specifier == "" {
		return Specifier{}, errInvalidSpecifier(specifier, "must not be empty", base)
	}
	if isRelativeOrAbsolute(specifier) {
		return Specifier{Kind: SpecifierRelative, Raw: specifier}, nil
	}
	if specifier[0] == '#' {
		if specifier == "#" || strings.HasPrefix(specifier, "#/") {
			return Specifier{}, errInvalidSpecifier(specifier, "is not a valid internal imports specifier name", base)
		}
		return Specifier{Kind: SpecifierInternal, Raw: specifier}, nil
	}
	if u, ok := parseAbsoluteURL(specifier); ok {
		switch u.Scheme {
		case "file", "data", "node":
			return Specifier{Kind: SpecifierURL, Raw: specifier, URL: u}, nil
		default:
			return Specifier{}, newError(UnsupportedScheme, specifier, base, "Only file and data URLs are supported by the default ESM loader. Received protocol '"+u.Scheme+":'")
		}
	}
	pkg, err := npm.ParsePackageName(specifier)
	if err != nil {
		return Specifier{}, errInvalidSpecifier(specifier, err.Error(), base)
	}
	return Specifier{Kind: SpecifierBare, Raw: specifier, Package: pkg}, nil
}

func errInvalidSpecifier(specifier string, reason string, base string) *Error {
	return newError(InvalidSpecifier, specifier, base, "Invalid module \""+specifier+"\" "+reason+importedFrom(base))
}

// isRelativeOrAbsolute matches "/...", ".", "..", "./..." and "../...".
func isRelativeOrAbsolute(specifier string) bool {
	if specifier == "" {
		return false
	}
	if specifier[0] == '/' {
		return true
	}
	if specifier[0] != '.' {
		return false
	}
	if len(specifier) == 1 || specifier[1] == '/' {
		return true
	}
	return specifier[1] == '.' && (len(specifier) == 2 || specifier[2] == '/')
}

func parseAbsoluteURL(s string) (*url.URL, bool) {
	scheme, _, found := strings.Cut(s, ":")
	if !found || scheme == "" || !isAlpha(scheme[0]) || !schemeNaming.Match(scheme) {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	return u, true
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
