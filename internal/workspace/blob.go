package workspace

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
)

const BlobsDir = "blobs"

func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the SHA-256 of the file at path, or "" when it does not
// exist.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// WriteBlob stores content zlib-compressed under dir/blobs/hash.
func WriteBlob(dir string, hash string, content []byte) error {
	blobDir := filepath.Join(dir, BlobsDir)
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return err
	}

	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	if _, err := w.Write(content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(blobDir, hash), b.Bytes(), 0o644)
}

func ReadBlob(dir string, hash string) ([]byte, error) {
	if hash == "" {
		return []byte{}, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, BlobsDir, hash))
	if err != nil {
		return nil, err
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
