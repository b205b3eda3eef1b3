package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/saddatahmad19/deepdomain/internal/store"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(dir, store.New(store.DefaultMaxMemory))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, dir
}

func TestNewManager_Validation(t *testing.T) {
	st := store.New(store.DefaultMaxMemory)

	if _, err := NewManager("", st); err == nil {
		t.Fatal("expected error for empty base")
	}
	if _, err := NewManager(filepath.Join(t.TempDir(), "missing"), st); err == nil {
		t.Fatal("expected error for missing base")
	}

	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewManager(file, st); err == nil {
		t.Fatal("expected error for base that is a file")
	}
}

func TestCreateFile_AppendsMarkdownExtension(t *testing.T) {
	m, dir := newManager(t)

	rel, err := m.CreateFile("subdomains", "recon")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if rel != filepath.Join("recon", "subdomains.md") {
		t.Fatalf("unexpected rel path %q", rel)
	}
	if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}

func TestCreateFile_KeepsExplicitExtension(t *testing.T) {
	m, _ := newManager(t)

	rel, err := m.CreateFile("hosts.txt", "")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if rel != "hosts.txt" {
		t.Fatalf("unexpected rel path %q", rel)
	}
}

func TestCreateFile_PreservesExistingContent(t *testing.T) {
	m, dir := newManager(t)

	path := filepath.Join(dir, "record.md")
	if err := os.WriteFile(path, []byte("existing\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if _, err := m.CreateFile("record.md", ""); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "existing\n" {
		t.Fatalf("existing content clobbered: %q", data)
	}
}

func TestEnsureTitle_WritesHeaderOnce(t *testing.T) {
	m, _ := newManager(t)

	rel, err := m.CreateFile("whoami", "recon")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if err := m.EnsureTitle(rel, "whoami"); err != nil {
		t.Fatalf("EnsureTitle: %v", err)
	}

	content, err := m.ReadFile(rel)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(content, "# Whoami\n") {
		t.Fatalf("missing capitalized title: %q", content)
	}

	// A second call must not stack another header.
	if err := m.EnsureTitle(rel, "whoami"); err != nil {
		t.Fatalf("EnsureTitle again: %v", err)
	}
	after, err := m.ReadFile(rel)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if after != content {
		t.Fatalf("title rewritten on second call: %q", after)
	}
}

func TestAppend_GoesThroughStore(t *testing.T) {
	m, _ := newManager(t)

	rel, err := m.CreateFile("notes", "")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := m.Append(rel, "first"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := m.Append(rel, "second"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	content, err := m.ReadFile(rel)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "first\nsecond\n" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestAbs_RejectsEscapes(t *testing.T) {
	m, _ := newManager(t)

	for _, rel := range []string{"", "/etc/passwd", "../outside", "a/../../b"} {
		if _, err := m.Abs(rel); err == nil {
			t.Fatalf("expected rejection for %q", rel)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	m, dir := newManager(t)

	path, err := m.EnsureDir("scanning/hosts")
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if path != filepath.Join(dir, "scanning", "hosts") {
		t.Fatalf("unexpected path %q", path)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}
