// Package blob implements the content-addressed byte store backing every
// emulated object. Files live under <dir>/objects/<xx>/<hash> where <hash>
// is the hex SHA-256 of the content and <xx> its first two characters.
// Writes of identical bytes land on the same path, so concurrent writers
// race harmlessly.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Store is a content-addressed blob store rooted at a data directory.
type Store struct {
	root string
}

// NewStore creates the objects directory if needed and returns the store.
func NewStore(dataDir string) (*Store, error) {
	root := filepath.Join(dataDir, "objects")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root}, nil
}

// Hash returns the hex SHA-256 of b.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ETag returns the quoted first 32 hex characters of a content hash, the
// form S3 responses carry.
func ETag(hash string) string {
	if len(hash) < 32 {
		return `"` + hash + `"`
	}
	return `"` + hash[:32] + `"`
}

// Put stores b and returns its hash. Re-putting existing content is a no-op.
func (s *Store) Put(b []byte) (string, error) {
	hash := Hash(b)
	path := s.path(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	// Write-then-rename keeps readers from observing partial content.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename blob: %w", err)
	}
	return hash, nil
}

// Get returns the bytes stored under hash. The empty hash reads as empty
// content; delete markers carry it.
func (s *Store) Get(hash string) ([]byte, error) {
	if hash == "" {
		return []byte{}, nil
	}
	b, err := os.ReadFile(s.path(hash))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	return b, nil
}

// Exists reports whether content with the given hash is stored.
func (s *Store) Exists(hash string) bool {
	if hash == "" {
		return true
	}
	_, err := os.Stat(s.path(hash))
	return err == nil
}

func (s *Store) path(hash string) string {
	return filepath.Join(s.root, hash[:2], hash)
}
