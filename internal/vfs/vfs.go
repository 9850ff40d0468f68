package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FS is the set of filesystem probes the resolver and the project loader need.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	Realpath(name string) (string, error)
}

// OS is the FS backed by the host filesystem.
type OS struct{}

func (OS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OS) Realpath(name string) (string, error) {
	return filepath.EvalSymlinks(name)
}

// IsFile reports whether the name exists and is a regular file.
func IsFile(fsys FS, name string) bool {
	fi, err := fsys.Stat(name)
	return err == nil && fi.Mode().IsRegular()
}

// IsDir reports whether the name exists and is a directory.
func IsDir(fsys FS, name string) bool {
	fi, err := fsys.Stat(name)
	return err == nil && fi.IsDir()
}

// Counter wraps an FS and records how many times each path was probed.
type Counter struct {
	FS     FS
	lock   sync.Mutex
	stats  map[string]int
	reads  map[string]int
	probes []string
}

// NewCounter returns a Counter over the given FS.
func NewCounter(fsys FS) *Counter {
	return &Counter{FS: fsys, stats: map[string]int{}, reads: map[string]int{}}
}

func (c *Counter) Stat(name string) (fs.FileInfo, error) {
	c.lock.Lock()
	c.stats[name]++
	c.probes = append(c.probes, name)
	c.lock.Unlock()
	return c.FS.Stat(name)
}

func (c *Counter) ReadFile(name string) ([]byte, error) {
	c.lock.Lock()
	c.reads[name]++
	c.lock.Unlock()
	return c.FS.ReadFile(name)
}

func (c *Counter) Realpath(name string) (string, error) {
	return c.FS.Realpath(name)
}

// Reads returns the number of ReadFile calls made for the name.
func (c *Counter) Reads(name string) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.reads[name]
}

// Stats returns the number of Stat calls made for the name.
func (c *Counter) Stats(name string) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.stats[name]
}

// Probes returns the Stat calls made so far, in order.
func (c *Counter) Probes() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.probes...)
}
