package server

import (
	"errors"
	"io/fs"
	"net/url"
	"strings"

	"github.com/esm-dev/tsload/internal/config"
	"github.com/esm-dev/tsload/internal/loader"
	"github.com/esm-dev/tsload/internal/resolver"
	"github.com/esm-dev/tsload/internal/tsconfig"
	logx "github.com/ije/gox/log"
	"github.com/ije/rex"
)

const (
	ctJavaScript = "application/javascript; charset=utf-8"
	ctJSON       = "application/json; charset=utf-8"
)

// requestError is a failed request with its HTTP status.
type requestError struct {
	status  int
	code    string
	message string
}

func (e *requestError) Error() string {
	return e.message
}

func badRequest(message string) *requestError {
	return &requestError{status: 400, code: "ERR_INVALID_ARG_VALUE", message: message}
}

func router(hooks *loader.Hooks, logger *logx.Logger) rex.Handle {
	return func(ctx *rex.Context) any {
		switch ctx.R.Method {
		case "HEAD", "GET":
			// continue
		default:
			return rex.Status(405, "method not allowed")
		}

		query := ctx.Query()
		switch ctx.R.URL.Path {
		case "/":
			return map[string]any{
				"name":    "tsload",
				"version": VERSION,
				"project": hooks.Project() != nil,
			}

		case "/resolve":
			res, err := resolveQuery(hooks, query)
			if err != nil {
				return errorResponse(err, logger)
			}
			ctx.Header.Set("Cache-Control", "no-cache")
			return map[string]any{
				"url":    res.URL,
				"format": res.Format,
			}

		case "/load":
			res, err := loadQuery(hooks, query)
			if err != nil {
				return errorResponse(err, logger)
			}
			ctx.Header.Set("X-Module-Format", res.Format)
			ctx.Header.Set("Cache-Control", "no-cache")
			if res.Source == nil {
				return rex.Status(204, nil)
			}
			ctx.Header.Set("Content-Type", contentType(res.Format))
			return res.Source

		case "/sourcemap":
			res, err := loadQuery(hooks, query)
			if err != nil {
				return errorResponse(err, logger)
			}
			if len(res.Map) == 0 {
				return rex.Status(404, map[string]any{
					"code":    "ERR_MODULE_NOT_FOUND",
					"message": "no source map for " + query.Get("url"),
				})
			}
			ctx.Header.Set("Content-Type", ctJSON)
			return res.Map

		case "/project":
			graph := hooks.Project()
			if graph == nil {
				return errorResponse(config.ErrNoProject, logger)
			}
			return graph

		default:
			return rex.Status(404, "not found")
		}
	}
}

func resolveQuery(hooks *loader.Hooks, query url.Values) (*loader.ResolveResult, error) {
	specifier := query.Get("specifier")
	if specifier == "" {
		return nil, badRequest("missing 'specifier' query")
	}
	return hooks.Resolve(specifier, loader.ResolveContext{
		Referrer:   query.Get("referrer"),
		Conditions: splitList(query.Get("conditions")),
	})
}

func loadQuery(hooks *loader.Hooks, query url.Values) (*loader.LoadResult, error) {
	location := query.Get("url")
	if location == "" {
		return nil, badRequest("missing 'url' query")
	}
	return hooks.Load(location, loader.LoadContext{Format: query.Get("format")})
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var list []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func contentType(format string) string {
	switch format {
	case resolver.FormatJSON:
		return ctJSON
	case resolver.FormatWasm:
		return "application/wasm"
	default:
		return ctJavaScript
	}
}

// errorStatus maps err to an HTTP status and a Node.js style error code.
func errorStatus(err error) (int, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.status, reqErr.code
	}
	var resolveErr *resolver.Error
	if errors.As(err, &resolveErr) {
		switch resolveErr.Kind {
		case resolver.ModuleNotFound:
			return 404, resolveErr.Code()
		case resolver.InvalidPackageConfig:
			return 500, resolveErr.Code()
		default:
			return 400, resolveErr.Code()
		}
	}
	switch {
	case errors.Is(err, config.ErrNoProject):
		return 404, "ERR_NO_PROJECT"
	case errors.Is(err, tsconfig.ErrMissingOutDir), errors.Is(err, tsconfig.ErrReferenceNotFound), errors.Is(err, tsconfig.ErrExtendsCycle):
		return 500, "ERR_INVALID_PROJECT_CONFIG"
	case errors.Is(err, fs.ErrNotExist):
		return 404, "ERR_MODULE_NOT_FOUND"
	}
	return 500, "ERR_INTERNAL"
}

func errorResponse(err error, logger *logx.Logger) any {
	status, code := errorStatus(err)
	if status >= 500 {
		logger.Errorf("%s: %v", code, err)
	}
	return rex.Status(status, map[string]any{
		"code":    code,
		"message": err.Error(),
	})
}
