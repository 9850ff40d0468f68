package resolver

import (
	"sync"

	"github.com/ije/gox/set"
)

// Deprecation codes emitted while resolving.
const (
	DepFolderMapping        = "DEP0148"
	DepLegacyMainResolution = "DEP0151"
	DepTrailingSlashPattern = "DEP0155"
)

// Diagnostic is a non-fatal deprecation notice.
type Diagnostic struct {
	Code    string
	Message string
}

// Diagnostics emits deprecation notices, each at most once per key.
type Diagnostics struct {
	lock    sync.Mutex
	emitted *set.Set[string]
	handler func(Diagnostic)
}

// NewDiagnostics creates a Diagnostics sink. A nil handler logs a warning.
func NewDiagnostics(handler func(Diagnostic)) *Diagnostics {
	if handler == nil {
		handler = func(d Diagnostic) {
			log.Warnf("[%s] DeprecationWarning: %s", d.Code, d.Message)
		}
	}
	return &Diagnostics{
		emitted: set.New[string](),
		handler: handler,
	}
}

// Emit sends the diagnostic unless one with the same key was already sent.
func (d *Diagnostics) Emit(key string, diag Diagnostic) {
	d.lock.Lock()
	if d.emitted.Has(key) {
		d.lock.Unlock()
		return
	}
	d.emitted.Add(key)
	d.lock.Unlock()
	d.handler(diag)
}

// Len returns the number of distinct diagnostics emitted.
func (d *Diagnostics) Len() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.emitted.Len()
}
