package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomicCreatesParentsAndHashes(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "renders", "a", "out.mp4")
	written, err := WriteAtomic(dst, strings.NewReader("hello world"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if written.Size != 11 {
		t.Fatalf("expected 11 bytes, got %d", written.Size)
	}
	// sha256("hello world")
	if written.SHA256 != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("unexpected digest %s", written.SHA256)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "hello world" {
		t.Fatalf("content mismatch: %q %v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dst))
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleaned up, found %d entries", len(entries))
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "nested", "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.bin")
	if _, err := CopyFileVerified(filepath.Join(dir, "nonexistent"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err=%v", err)
	}
}
