package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/techspec-reviewer/backend/internal/models"
)

// Store keeps uploaded specifications until they are reviewed and deleted.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	SaveBytes(name string, data []byte) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	SetStatus(id string, status string) error
	GetFilePath(id string) (string, error)
}

// LocalStore writes uploads under one directory, named by ID. Metadata lives
// in memory; callers always receive copies.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.FileInfo
}

// NewLocalStore creates uploadDir if needed.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.FileInfo),
	}, nil
}

// Save streams r to disk and records its size and SHA-256.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := s.pathFor(id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		SHA256:     hex.EncodeToString(h.Sum(nil)),
		UploadedAt: time.Now(),
		Status:     models.FileStatusUploaded,
	}

	s.mu.Lock()
	s.files[id] = info
	s.mu.Unlock()

	copied := *info
	return &copied, nil
}

// SaveBytes is Save for content already in memory (JSON and WebSocket uploads).
func (s *LocalStore) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	return s.Save(name, bytes.NewReader(data))
}

func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(id)
}

// List returns up to limit files, newest first. limit <= 0 means all.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		copied := *info
		list = append(list, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes both the metadata and the stored bytes.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return notFound(id)
	}
	if err := os.Remove(s.pathFor(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	delete(s.files, id)
	return nil
}

// Rename changes the display name only; the stored path is keyed by ID.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	return s.update(id, func(info *models.FileInfo) { info.Name = newName })
}

// SetStatus records where the file's latest review stands.
func (s *LocalStore) SetStatus(id string, status string) error {
	_, err := s.update(id, func(info *models.FileInfo) { info.Status = status })
	return err
}

func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", notFound(id)
	}
	return s.pathFor(id), nil
}

func (s *LocalStore) update(id string, fn func(*models.FileInfo)) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, notFound(id)
	}
	fn(info)
	copied := *info
	return &copied, nil
}

// lookup must be called with s.mu held.
func (s *LocalStore) lookup(id string) (*models.FileInfo, error) {
	info, ok := s.files[id]
	if !ok {
		return nil, notFound(id)
	}
	copied := *info
	return &copied, nil
}

func (s *LocalStore) pathFor(id string) string {
	return filepath.Join(s.uploadDir, id)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
