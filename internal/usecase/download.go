package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hszk-dev/framestream/internal/domain/repository"
)

// downloadBlob copies the object at key into dir and returns the local path
// and the hex SHA-256 of its content.
func downloadBlob(ctx context.Context, storage repository.ObjectStorage, key, dir string) (string, string, error) {
	reader, err := storage.Download(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("storage download: %w", err)
	}
	defer func() { _ = reader.Close() }()

	filename := filepath.Base(key)
	if filename == "." || filename == "/" {
		filename = "original"
	}

	localPath := filepath.Join(dir, filename)
	file, err := os.Create(localPath)
	if err != nil {
		return "", "", fmt.Errorf("create local file: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(file, h), reader); err != nil {
		_ = file.Close()
		return "", "", fmt.Errorf("copy to local file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", "", fmt.Errorf("close local file: %w", err)
	}

	return localPath, hex.EncodeToString(h.Sum(nil)), nil
}
