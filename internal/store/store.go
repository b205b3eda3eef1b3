// Package store provides durable, corruption-free file writes for scan
// artifacts. Writes go through a temp-file-and-rename sequence so a file is
// either fully old or fully new, and a per-path lock table serializes
// read-modify-write sequences so concurrent appenders cannot lose data.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultMaxMemory is the content size above which StreamingWrite stops
	// buffering the whole payload and switches to chunked writes.
	DefaultMaxMemory = 1 << 20

	chunkSize = 64 * 1024
)

// Store is a thread-safe atomic file writer with streaming support.
type Store struct {
	maxMemory int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store with the given memory threshold for StreamingWrite.
// A threshold <= 0 selects DefaultMaxMemory.
func New(maxMemory int) *Store {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}
	return &Store{
		maxMemory: maxMemory,
		locks:     make(map[string]*sync.Mutex),
	}
}

// pathLock returns the mutex for path, creating it on first use. Lock objects
// are never replaced once created, so two goroutines racing on the same path
// always end up with the same mutex.
func (s *Store) pathLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// Write atomically replaces the contents of the file at path. Parent
// directories are created on demand. If the write fails at any point the
// pre-existing file, if any, is left untouched.
func (s *Store) Write(path, content string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}

	lock := s.pathLock(p)
	lock.Lock()
	defer lock.Unlock()

	return writeAtomic(p, content)
}

// Append logically appends content to the file at path, creating it if
// absent. The read-concatenate-write sequence runs under the path lock so
// interleaved appenders cannot drop each other's payloads. A trailing newline
// is added when content does not end with one, keeping the file line-oriented.
func (s *Store) Append(path, content string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}

	lock := s.pathLock(p)
	lock.Lock()
	defer lock.Unlock()

	existing := ""
	if data, err := os.ReadFile(p); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s for append: %w", p, err)
	}

	combined := existing + content
	if content != "" && !strings.HasSuffix(content, "\n") {
		combined += "\n"
	}

	return writeAtomic(p, combined)
}

// StreamingWrite writes content to path. Below the memory threshold it
// behaves exactly like Write. Above it, content is appended in fixed-size
// chunks under the path lock, trading whole-file atomicity for bounded
// memory use on very large payloads.
func (s *Store) StreamingWrite(path, content string) error {
	if len(content) <= s.maxMemory {
		return s.Write(path, content)
	}

	p, err := canonical(path)
	if err != nil {
		return err
	}

	lock := s.pathLock(p)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", p, err)
	}

	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for streaming write: %w", p, err)
	}

	for off := 0; off < len(content); off += chunkSize {
		end := off + chunkSize
		if end > len(content) {
			end = len(content)
		}
		if _, err := f.WriteString(content[off:end]); err != nil {
			_ = f.Close()
			return fmt.Errorf("streaming write to %s: %w", p, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s after streaming write: %w", p, err)
	}
	return nil
}

// writeAtomic performs the temp-write-fsync-rename sequence. The caller must
// hold the path lock. The temp file lives in the target's directory so the
// final rename never crosses a filesystem boundary.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.WriteString(content); err != nil {
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file into %s: %w", path, err)
	}
	return nil
}
