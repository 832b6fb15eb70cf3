package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"voice-memories-go/internal/types"
)

// FSStore keeps objects under a root directory for local development.
// Writes go through a temp file and rename while holding a per-key lock.
type FSStore struct {
	root string
}

func NewFS(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return "", &types.StoreError{Op: "put", Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &types.StoreError{Op: "put", Key: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &types.StoreError{Op: "put", Key: key, Err: err}
	}

	lock := flock.New(target + ".lock")
	if err := lock.Lock(); err != nil {
		return "", &types.StoreError{Op: "put", Key: key, Err: fmt.Errorf("lock: %w", err)}
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(target + ".lock")
	}()

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", &types.StoreError{Op: "put", Key: key, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", &types.StoreError{Op: "put", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", &types.StoreError{Op: "put", Key: key, Err: err}
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", &types.StoreError{Op: "put", Key: key, Err: err}
	}
	return key, nil
}

func (s *FSStore) Get(ctx context.Context, reference string) ([]byte, error) {
	target, err := s.resolve(reference)
	if err != nil {
		return nil, &types.StoreError{Op: "get", Key: reference, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &types.StoreError{Op: "get", Key: reference, Err: err}
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, &types.StoreError{Op: "get", Key: reference, Err: err}
	}
	return data, nil
}

func (s *FSStore) Delete(_ context.Context, reference string) error {
	target, err := s.resolve(reference)
	if err != nil {
		return &types.StoreError{Op: "delete", Key: reference, Err: err}
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &types.StoreError{Op: "delete", Key: reference, Err: err}
	}
	return nil
}

// resolve maps a key to a path under root, rejecting traversal.
func (s *FSStore) resolve(key string) (string, error) {
	key = strings.TrimPrefix(key, "file://")
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", errors.New("empty key")
	}
	return filepath.Join(s.root, clean), nil
}
