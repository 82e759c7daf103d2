// Package fileutil writes files atomically: content lands in a temporary
// sibling and is renamed into place only after it is fully written and
// synced, so readers never observe a partial artifact.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Written describes a completed atomic write.
type Written struct {
	Path   string
	Size   int64
	SHA256 string
}

// WriteAtomic streams r into path via a temporary file in the same
// directory, creating parent directories with 0o755.
func WriteAtomic(path string, r io.Reader, mode os.FileMode) (Written, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Written{}, fmt.Errorf("create parent: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return Written{}, fmt.Errorf("create temp: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return Written{}, fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Written{}, fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return Written{}, fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Written{}, fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Written{}, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return Written{Path: path, Size: size, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// CopyFileVerified atomically copies src to dst and checks the copied size
// against the source. dst is left untouched on failure.
func CopyFileVerified(src, dst string) (Written, error) {
	info, err := os.Stat(src)
	if err != nil {
		return Written{}, fmt.Errorf("stat source: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return Written{}, err
	}
	defer in.Close()

	written, err := WriteAtomic(dst, in, 0o644)
	if err != nil {
		return Written{}, err
	}
	if written.Size != info.Size() {
		_ = os.Remove(dst)
		return Written{}, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written.Size)
	}
	return written, nil
}
