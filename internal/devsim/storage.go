package devsim

import (
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	errNotFound  = errors.New("not found")
	errProtected = errors.New("protected path")
	errNoSpace   = errors.New("insufficient storage")
	errBadPath   = errors.New("invalid path")
)

// ConfigPath is where an uploaded layout is stored.
const ConfigPath = "/config.json"

// card is an in-memory SD card keyed by absolute, cleaned path.
type card struct {
	mu       sync.RWMutex
	files    map[string][]byte
	capacity int64
}

func newCard(capacity int64) *card {
	return &card{files: make(map[string][]byte), capacity: capacity}
}

// cleanPath returns p as an absolute slash path, or errBadPath.
func cleanPath(p string) (string, error) {
	if p == "" || strings.ContainsRune(p, 0) {
		return "", errBadPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", errBadPath
		}
	}
	return path.Clean("/" + p), nil
}

func isProtected(p string) bool {
	return p == ConfigPath || p == "/system" || strings.HasPrefix(p, "/system/")
}

func (c *card) used() int64 {
	var n int64
	for _, d := range c.files {
		n += int64(len(d))
	}
	return n
}

// write stores data at p, replacing any previous file.
func (c *card) write(p string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	used := c.used() - int64(len(c.files[p]))
	if used+int64(len(data)) > c.capacity {
		return errNoSpace
	}
	c.files[p] = append([]byte(nil), data...)
	return nil
}

func (c *card) read(p string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.files[p]
	return d, ok
}

func (c *card) remove(p string) error {
	if isProtected(p) {
		return errProtected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[p]; !ok {
		return errNotFound
	}
	delete(c.files, p)
	return nil
}

type entry struct {
	name string
	size int64
	dir  bool
}

// list returns the direct children of dir. Directories exist implicitly
// while they contain a file; the root always exists.
func (c *card) list(dir string) ([]entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := strings.TrimSuffix(dir, "/") + "/"
	children := make(map[string]entry)
	found := dir == "/"

	for p, d := range c.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		found = true
		rest := strings.TrimPrefix(p, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			children[name] = entry{name: name, dir: true}
		} else {
			children[name] = entry{name: name, size: int64(len(d))}
		}
	}

	if !found {
		if _, isFile := c.files[dir]; isFile {
			return nil, errBadPath
		}
		return nil, errNotFound
	}

	out := make([]entry, 0, len(children))
	for _, e := range children {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].dir != out[j].dir {
			return out[i].dir
		}
		return out[i].name < out[j].name
	})
	return out, nil
}

func (c *card) usage() (total, used int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacity, c.used()
}
