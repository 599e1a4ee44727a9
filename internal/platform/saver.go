package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirSaver saves files into a directory.
type DirSaver struct {
	Dir string
}

// Save writes data to Dir/name through a temporary file that is renamed
// into place, so readers never see a partial file.
func (s DirSaver) Save(ctx context.Context, name, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	dst := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	if err := os.Chmod(dst, 0644); err != nil {
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}

	abs, err := filepath.Abs(dst)
	if err != nil {
		return dst, nil
	}
	return abs, nil
}

// UserDir turns an SSH user name into a single safe path element.
func UserDir(user string) string {
	name := filepath.Base(filepath.Clean("/" + user))
	if name == "/" || name == "." || name == "" {
		return "anonymous"
	}
	return name
}
