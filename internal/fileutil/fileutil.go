package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyResult describes a finished copy.
type CopyResult struct {
	Bytes  int64
	SHA256 string
}

// CopyFile copies src to dst without integrity checks. See CopyAtomic.
func CopyFile(src, dst string) error {
	_, err := copyAtomic(src, dst, false)
	return err
}

// CopyAtomic copies src into a temporary file next to dst, syncs it, checks
// that the byte count matches the source, and renames it over dst. Readers of
// dst never observe a partial file. The returned digest covers the bytes
// written.
func CopyAtomic(src, dst string) (CopyResult, error) {
	return copyAtomic(src, dst, true)
}

func copyAtomic(src, dst string, verify bool) (CopyResult, error) {
	var result CopyResult
	in, err := os.Open(src)
	if err != nil {
		return result, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return result, fmt.Errorf("stat source: %w", err)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("create parent directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return result, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	var w io.Writer = tmp
	hasher := sha256.New()
	if verify {
		w = io.MultiWriter(tmp, hasher)
	}
	written, err := io.Copy(w, in)
	if err != nil {
		return result, err
	}
	if verify && written != info.Size() {
		return result, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if err := tmp.Sync(); err != nil {
		return result, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return result, err
	}
	if err := tmp.Close(); err != nil {
		return result, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return result, err
	}
	committed = true

	result.Bytes = written
	if verify {
		result.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	}
	return result, nil
}
