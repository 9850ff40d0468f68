package loader

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	"github.com/esm-dev/tsload/internal/resolver"
	"github.com/esm-dev/tsload/internal/vfs"
	logx "github.com/ije/gox/log"
	"github.com/ije/gox/utils"
)

var log = &logx.Logger{}

// SetLogger sets the logger of the loader package.
func SetLogger(l *logx.Logger) {
	log = l
}

// LoadContext is the per-call input of Load.
type LoadContext struct {
	// Format is the format returned by the resolve step, if any.
	Format string `json:"format,omitempty"`
}

// LoadResult is the source of a module.
type LoadResult struct {
	Format string `json:"format"`
	Source []byte `json:"-"`
	// Map is the external source map of a transpiled module.
	Map []byte `json:"-"`
}

// Loader reads module sources.
type Loader interface {
	Load(u *url.URL, ctx LoadContext) (*LoadResult, error)
}

// DefaultLoader loads file, node and data URLs without transformation.
type DefaultLoader struct {
	FS vfs.FS
	// Resolver provides the module format when the context has none.
	Resolver *resolver.Resolver
}

func (l *DefaultLoader) Load(u *url.URL, ctx LoadContext) (*LoadResult, error) {
	switch u.Scheme {
	case "node":
		return &LoadResult{Format: resolver.FormatBuiltin}, nil
	case "data":
		source, err := decodeDataURL(u)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Format: l.format(u, ctx), Source: source}, nil
	case "file":
		fsys := l.FS
		if fsys == nil {
			fsys = vfs.OS{}
		}
		source, err := fsys.ReadFile(resolver.FileURLToPath(u))
		if err != nil {
			return nil, err
		}
		return &LoadResult{Format: l.format(u, ctx), Source: source}, nil
	}
	return nil, errors.New("unsupported URL scheme '" + u.Scheme + ":'")
}

func (l *DefaultLoader) format(u *url.URL, ctx LoadContext) string {
	if ctx.Format != "" {
		return ctx.Format
	}
	if l.Resolver != nil {
		return l.Resolver.Format(u)
	}
	return ""
}

// decodeDataURL returns the payload of a `data:[<mime>][;base64],<data>` URL.
func decodeDataURL(u *url.URL) ([]byte, error) {
	meta, data := utils.SplitByFirstByte(u.Opaque, ',')
	data, err := url.PathUnescape(data)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(data)
	}
	return []byte(data), nil
}
