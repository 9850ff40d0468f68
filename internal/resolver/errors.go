package resolver

import (
	"errors"
)

// Kind classifies a resolution failure.
type Kind uint8

const (
	InvalidSpecifier Kind = iota + 1
	UnsupportedScheme
	InvalidPackageConfig
	InvalidPackageTarget
	InvalidModuleSpecifier
	PackageSubpathNotExported
	PackageImportNotDefined
	ModuleNotFound
	UnsupportedDirectoryImport
)

var kindCodes = map[Kind]string{
	InvalidSpecifier:           "ERR_INVALID_MODULE_SPECIFIER",
	UnsupportedScheme:          "ERR_UNSUPPORTED_ESM_URL_SCHEME",
	InvalidPackageConfig:       "ERR_INVALID_PACKAGE_CONFIG",
	InvalidPackageTarget:       "ERR_INVALID_PACKAGE_TARGET",
	InvalidModuleSpecifier:     "ERR_INVALID_MODULE_SPECIFIER",
	PackageSubpathNotExported:  "ERR_PACKAGE_PATH_NOT_EXPORTED",
	PackageImportNotDefined:    "ERR_PACKAGE_IMPORT_NOT_DEFINED",
	ModuleNotFound:             "ERR_MODULE_NOT_FOUND",
	UnsupportedDirectoryImport: "ERR_UNSUPPORTED_DIR_IMPORT",
}

var kindNames = map[Kind]string{
	InvalidSpecifier:           "InvalidSpecifier",
	UnsupportedScheme:          "UnsupportedScheme",
	InvalidPackageConfig:       "InvalidPackageConfig",
	InvalidPackageTarget:       "InvalidPackageTarget",
	InvalidModuleSpecifier:     "InvalidModuleSpecifier",
	PackageSubpathNotExported:  "PackageSubpathNotExported",
	PackageImportNotDefined:    "PackageImportNotDefined",
	ModuleNotFound:             "ModuleNotFound",
	UnsupportedDirectoryImport: "UnsupportedDirectoryImport",
}

// Code returns the Node.js error code of the kind.
func (k Kind) Code() string {
	return kindCodes[k]
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Error is a failed resolution.
type Error struct {
	Kind      Kind
	Specifier string
	Referrer  string
	Message   string
	// Hint is the CommonJS resolution of the specifier, if any.
	Hint string
	// URL is the rejected directory of an UnsupportedDirectoryImport.
	URL string
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return e.Message + "\nDid you mean to import " + e.Hint + "?"
	}
	return e.Message
}

// Code returns the Node.js error code.
func (e *Error) Code() string {
	return e.Kind.Code()
}

// IsKind reports whether err is a resolution error of the kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func newError(kind Kind, specifier string, referrer string, message string) *Error {
	return &Error{Kind: kind, Specifier: specifier, Referrer: referrer, Message: message}
}

func importedFrom(base string) string {
	if base == "" {
		return ""
	}
	return " imported from " + base
}

func errModuleNotFound(path string, base string) *Error {
	return newError(ModuleNotFound, path, base, "Cannot find module '"+path+"'"+importedFrom(base))
}

func errPackageNotFound(name string, base string) *Error {
	return newError(ModuleNotFound, name, base, "Cannot find package '"+name+"'"+importedFrom(base))
}

func errUnsupportedDirImport(path string, base string) *Error {
	return newError(UnsupportedDirectoryImport, path, base, "Directory import '"+path+"' is not supported resolving ES modules"+importedFrom(base))
}

func errInvalidModuleSpecifier(request string, reason string, base string) *Error {
	return newError(InvalidModuleSpecifier, request, base, "Invalid module \""+request+"\" "+reason+importedFrom(base))
}

func errInvalidPackageConfig(path string, base string, message string) *Error {
	msg := "Invalid package config " + path
	if base != "" {
		msg += " while importing " + base
	}
	if message != "" {
		msg += ". " + message
	}
	return newError(InvalidPackageConfig, "", base, msg)
}
