// Package workspace manages the on-disk layout of a scan run: the output
// tree rooted at a caller-supplied base directory, markdown artifact files,
// and their title headers. All file content goes through the atomic store.
package workspace

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/saddatahmad19/deepdomain/internal/store"
)

// Manager resolves relative artifact paths against the run's base directory.
type Manager struct {
	base  string
	store *store.Store
}

// NewManager creates a Manager rooted at baseDir. The directory must already
// exist; artifacts below it are created on demand.
func NewManager(baseDir string, st *store.Store) (*Manager, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("workspace base directory is empty")
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace base %q: %w", baseDir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open workspace base %q: %w", baseDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace base %q is not a directory", baseDir)
	}

	return &Manager{base: abs, store: st}, nil
}

// Base returns the absolute base directory.
func (m *Manager) Base() string {
	return m.base
}

// Abs validates rel and joins it onto the base directory.
func (m *Manager) Abs(rel string) (string, error) {
	if err := validateRel(rel); err != nil {
		return "", err
	}
	return filepath.Join(m.base, rel), nil
}

// EnsureDir creates the directory at rel (and parents) if absent, returning
// its absolute path.
func (m *Manager) EnsureDir(rel string) (string, error) {
	path, err := m.Abs(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create workspace directory %q: %w", rel, err)
	}
	return path, nil
}

// CreateFile ensures the file name exists under location (relative to base).
// A name without an extension gets ".md" appended, matching the convention
// that scan artifacts are markdown documents. Returns the file's path
// relative to base.
func (m *Manager) CreateFile(name, location string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("file name is empty")
	}
	if !strings.Contains(name, ".") {
		name += ".md"
	}

	rel := name
	if location != "" {
		rel = filepath.Join(location, name)
	}

	path, err := m.Abs(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent directory for %q: %w", rel, err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := m.store.Write(path, ""); err != nil {
			return "", fmt.Errorf("create file %q: %w", rel, err)
		}
	} else if err != nil {
		return "", fmt.Errorf("stat file %q: %w", rel, err)
	}

	return rel, nil
}

// EnsureTitle writes a "# Title" markdown header to the file at rel unless
// its first line already matches. Re-running a scan against an existing
// workspace must not stack duplicate headers.
func (m *Manager) EnsureTitle(rel, title string) error {
	path, err := m.Abs(rel)
	if err != nil {
		return err
	}

	expected := "# " + capitalize(title)

	first, err := firstLine(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read first line of %q: %w", rel, err)
	}
	if first == expected {
		return nil
	}

	if err := m.store.Write(path, expected+"\n\n"); err != nil {
		return fmt.Errorf("write title to %q: %w", rel, err)
	}
	return nil
}

// WriteFile atomically replaces the artifact at rel with content.
func (m *Manager) WriteFile(rel, content string) error {
	path, err := m.Abs(rel)
	if err != nil {
		return err
	}
	if err := m.store.Write(path, content); err != nil {
		return fmt.Errorf("write %q: %w", rel, err)
	}
	return nil
}

// Append appends content to the artifact at rel through the atomic store.
func (m *Manager) Append(rel, content string) error {
	path, err := m.Abs(rel)
	if err != nil {
		return err
	}
	if err := m.store.Append(path, content); err != nil {
		return fmt.Errorf("append to %q: %w", rel, err)
	}
	return nil
}

// ReadFile returns the contents of the artifact at rel, or "" if absent.
func (m *Manager) ReadFile(rel string) (string, error) {
	path, err := m.Abs(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %q: %w", rel, err)
	}
	return string(data), nil
}

// Exists reports whether the path at rel exists.
func (m *Manager) Exists(rel string) bool {
	path, err := m.Abs(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	return "", scanner.Err()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func validateRel(rel string) error {
	trimmed := strings.TrimSpace(rel)
	if trimmed == "" {
		return fmt.Errorf("relative path is empty")
	}
	if filepath.IsAbs(trimmed) {
		return fmt.Errorf("path %q must be relative to the workspace base", rel)
	}
	clean := filepath.Clean(trimmed)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes the workspace base", rel)
	}
	return nil
}
