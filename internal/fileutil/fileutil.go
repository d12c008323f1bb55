// Package fileutil holds the filesystem primitives the sorter and reporter
// share: streamed hashing, metadata-preserving copies, and collision-free path
// selection. Everything goes through an afero.Fs so callers can substitute an
// in-memory or fault-injecting filesystem.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// ChunkSize is the read size used when streaming file contents.
const ChunkSize = 1 << 20

// HashFile returns the hex SHA-256 of the file at path, streamed in ChunkSize reads.
func HashFile(fsys afero.Fs, path string) (string, error) {
	in, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	hasher := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(hasher, onlyReader{in}, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// onlyReader hides WriterTo/ReaderFrom so CopyBuffer honours the chunk size.
type onlyReader struct{ io.Reader }

// CopyPreserving streams src to dst, creating or truncating dst, then applies
// the source permission bits and access/modification times. It returns the
// number of bytes written. A short copy is reported as an error; the caller
// decides what to do with a partial dst.
func CopyPreserving(fsys afero.Fs, src, dst string) (int64, error) {
	info, err := fsys.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	in, err := fsys.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := fsys.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = out.Close()
	}()

	buf := make([]byte, ChunkSize)
	written, err := io.CopyBuffer(out, onlyReader{in}, buf)
	if err != nil {
		return written, err
	}
	if err := out.Close(); err != nil {
		return written, err
	}
	if written != info.Size() {
		return written, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}

	if err := fsys.Chmod(dst, info.Mode().Perm()); err != nil {
		return written, fmt.Errorf("preserve mode: %w", err)
	}
	if err := fsys.Chtimes(dst, accessTime(info), info.ModTime()); err != nil {
		return written, fmt.Errorf("preserve times: %w", err)
	}
	return written, nil
}

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(fsys afero.Fs, path string) (bool, error) {
	_, err := fsys.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// UniquePath returns path when nothing exists there, otherwise the first free
// sibling named stem_1.ext, stem_2.ext, and so on.
func UniquePath(fsys afero.Fs, path string) (string, error) {
	exists, err := Exists(fsys, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return path, nil
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, stem+"_"+strconv.Itoa(i)+ext)
		exists, err := Exists(fsys, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}

// Resolve returns the absolute form of path. On the OS filesystem symlinks in
// the deepest existing ancestor are resolved and the missing tail is appended
// unchanged. A dangling symlink anywhere on the path is an error.
func Resolve(fsys afero.Fs, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, ok := fsys.(*afero.OsFs); !ok {
		return abs, nil
	}
	rest := ""
	for cur := abs; ; {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("dangling symlink %s", cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// ResolvedWithin reports whether target stays inside root once both are
// resolved with Resolve.
func ResolvedWithin(fsys afero.Fs, root, target string) (bool, error) {
	if !Within(root, target) {
		return false, nil
	}
	resolvedRoot, err := Resolve(fsys, root)
	if err != nil {
		return false, err
	}
	resolvedTarget, err := Resolve(fsys, target)
	if err != nil {
		return false, err
	}
	return Within(resolvedRoot, resolvedTarget), nil
}

// SameFile reports whether a and b name the same file. Paths that clean to the
// same string always match; otherwise both must exist and os.SameFile must
// agree, which only happens for OS-backed file infos.
func SameFile(fsys afero.Fs, a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := fsys.Stat(a)
	if err != nil {
		return false
	}
	bi, err := fsys.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// Within reports whether target lies inside root after lexical cleaning.
// No symlinks are resolved; see ResolvedWithin.
func Within(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
