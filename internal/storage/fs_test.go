package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempDownloads(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func mustWrite(t *testing.T, s *FS, path string, content []byte) {
	t.Helper()
	if _, err := s.WriteNew(path, content); err != nil {
		t.Fatalf("WriteNew %s: %v", path, err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s := tempDownloads(t)
	content := []byte("shopping list\n")
	mustWrite(t, s, "todo.txt", content)
	got, err := s.Read("todo.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	info, err := os.Stat(filepath.Join(s.Root(), "todo.txt"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempDownloads(t)
	mustWrite(t, s, "a/b/photo.png", []byte("deep"))
	got, err := s.Read("a/b/photo.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempDownloads(t)
	mustWrite(t, s, "del.bin", []byte("bye"))
	if err := s.Delete("del.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.bin"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempDownloads(t)
	mustWrite(t, s, "a.txt", []byte("a"))
	mustWrite(t, s, "sub/b.png", []byte("b"))
	_ = os.WriteFile(filepath.Join(s.Root(), tempPrefix+"123"), []byte("partial"), 0o600)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("missing checksum for %s", it.Path)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempDownloads(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.txt",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if _, err := s.WriteNew(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestNewFS_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads", "nested")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be created", dir)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "hedgey-test-*")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestWriteNew_KeepsExisting(t *testing.T) {
	s := tempDownloads(t)

	for i, want := range []string{"report.pdf", "report (2).pdf", "report (3).pdf"} {
		got, err := s.WriteNew("report.pdf", []byte{byte('a' + i)})
		if err != nil {
			t.Fatalf("WriteNew #%d: %v", i, err)
		}
		if got != want {
			t.Errorf("WriteNew #%d = %q, want %q", i, got, want)
		}
	}

	first, _ := s.Read("report.pdf")
	if string(first) != "a" {
		t.Errorf("first export overwritten: %q", first)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestWriteNew_RejectsTraversal(t *testing.T) {
	s := tempDownloads(t)
	if _, err := s.WriteNew("../escape.txt", []byte("x")); err == nil {
		t.Error("expected error for path outside root")
	}
}
