package resolver

import (
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/esm-dev/tsload/internal/npm"
	"github.com/esm-dev/tsload/internal/vfs"
	syncx "github.com/ije/gox/sync"
)

// Store reads and memoizes package.json files. Entries never expire.
type Store struct {
	fs    vfs.FS
	lock  syncx.KeyedMutex
	cache sync.Map
}

type storeEntry struct {
	config   *npm.PackageConfig
	parseErr string
}

// NewStore creates a Store reading from the given FS.
func NewStore(fsys vfs.FS) *Store {
	if fsys == nil {
		fsys = vfs.OS{}
	}
	return &Store{fs: fsys}
}

// Get returns the package config at pjsonPath. A missing file yields a config
// with Exists == false.
func (s *Store) Get(pjsonPath string, specifier string, base string) (*npm.PackageConfig, error) {
	entry := s.load(pjsonPath)
	if entry.parseErr != "" {
		from := base
		if specifier != "" && base != "" {
			from = "\"" + specifier + "\" from " + base
		}
		return nil, errInvalidPackageConfig(pjsonPath, from, entry.parseErr)
	}
	return entry.config, nil
}

func (s *Store) load(pjsonPath string) *storeEntry {
	// check cache first
	if v, ok := s.cache.Load(pjsonPath); ok {
		return v.(*storeEntry)
	}

	unlock := s.lock.Lock(pjsonPath)
	defer unlock()

	// check cache again after lock
	if v, ok := s.cache.Load(pjsonPath); ok {
		return v.(*storeEntry)
	}

	entry := &storeEntry{}
	data, err := s.fs.ReadFile(pjsonPath)
	if err != nil {
		entry.config = &npm.PackageConfig{Path: pjsonPath, Type: npm.TypeNone}
	} else {
		config, err := npm.ParsePackageConfig(pjsonPath, data)
		if err != nil {
			entry.parseErr = err.Error()
		} else {
			entry.config = config
		}
	}
	s.cache.Store(pjsonPath, entry)
	log.Debugf("package config loaded: %s (exists: %v)", pjsonPath, entry.config != nil && entry.config.Exists)
	return entry
}

// Scope returns the config of the nearest package.json enclosing the location.
// The walk never crosses a node_modules directory.
func (s *Store) Scope(location *url.URL) (*npm.PackageConfig, error) {
	dir := urlDir(location)
	pjsonPath := filepath.Join(dir, "package.json")
	for {
		if strings.HasSuffix(filepath.ToSlash(pjsonPath), "node_modules/package.json") {
			break
		}
		config, err := s.Get(pjsonPath, "", fileURLToPath(location))
		if err != nil {
			return nil, err
		}
		if config.Exists {
			return config, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		pjsonPath = filepath.Join(dir, "package.json")
	}
	return &npm.PackageConfig{Path: pjsonPath, Type: npm.TypeNone}, nil
}
