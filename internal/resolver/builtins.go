package resolver

import (
	"strings"

	"github.com/ije/gox/set"
)

// nodeBuiltinModules lists the modules that can be imported without the `node:` prefix.
var nodeBuiltinModules = set.NewReadOnly(
	"assert",
	"assert/strict",
	"async_hooks",
	"buffer",
	"child_process",
	"cluster",
	"console",
	"constants",
	"crypto",
	"dgram",
	"diagnostics_channel",
	"dns",
	"dns/promises",
	"domain",
	"events",
	"fs",
	"fs/promises",
	"http",
	"http2",
	"https",
	"inspector",
	"module",
	"net",
	"os",
	"path",
	"path/posix",
	"path/win32",
	"perf_hooks",
	"process",
	"punycode",
	"querystring",
	"readline",
	"readline/promises",
	"repl",
	"stream",
	"stream/consumers",
	"stream/promises",
	"stream/web",
	"string_decoder",
	"sys",
	"timers",
	"timers/promises",
	"tls",
	"trace_events",
	"tty",
	"url",
	"util",
	"util/types",
	"v8",
	"vm",
	"wasi",
	"worker_threads",
	"zlib",
)

// IsBuiltinModule reports whether the specifier names a Node.js builtin module.
func IsBuiltinModule(specifier string) bool {
	return nodeBuiltinModules.Has(strings.TrimPrefix(specifier, "node:"))
}
