package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yndnr/snapkeep/internal/storage/serializer"
)

const latestBase = "latest"

// LatestPath returns the latest pointer path for a stream directory.
func LatestPath(dir string, s serializer.Serializer) string {
	if s == nil {
		s = serializer.JSON()
	}
	return s.Extension(filepath.Join(dir, latestBase))
}

// pointLatest makes latest resolve to target. It tries a relative symlink,
// then a hard link, then a plain copy, and swaps the pointer in with a
// rename. It returns the method used.
func pointLatest(latest, target string) (string, error) {
	tmp := filepath.Join(filepath.Dir(latest), "."+filepath.Base(latest)+".tmp-link")
	_ = os.Remove(tmp)

	method := "symlink"
	if err := os.Symlink(filepath.Base(target), tmp); err != nil {
		method = "hardlink"
		if err := os.Link(target, tmp); err != nil {
			method = "copy"
			if err := copyFile(target, tmp); err != nil {
				_ = os.Remove(tmp)
				return "", fmt.Errorf("snapshot: point latest at %s: %w", filepath.Base(target), err)
			}
		}
	}

	if err := os.Rename(tmp, latest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("snapshot: replace latest: %w", err)
	}
	return method, nil
}

func removeLatest(latest string) error {
	if err := os.Remove(latest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshot: remove latest: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// latestResolvesTo reports whether latest currently resolves to target,
// whichever pointer method created it.
func latestResolvesTo(latest, target string) (bool, error) {
	info, err := os.Lstat(latest)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		dest, err := os.Readlink(latest)
		if err != nil {
			return false, err
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(latest), dest)
		}
		if filepath.Clean(dest) != filepath.Clean(target) {
			return false, nil
		}
		_, err = os.Stat(latest)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return err == nil, err
	}

	tinfo, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if os.SameFile(info, tinfo) {
		return true, nil
	}

	a, err := os.ReadFile(latest)
	if err != nil {
		return false, err
	}
	b, err := os.ReadFile(target)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}
