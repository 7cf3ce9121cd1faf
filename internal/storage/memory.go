package storage

import (
	"context"
	"errors"
	"io"
	"sync"
)

// MemoryStore keeps objects in process. Used for local development and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	objects    map[string]Object
	publicBase string
	failWith   error
}

type Object struct {
	Data        []byte
	ContentType string
}

func NewMemoryStore(publicBase string) *MemoryStore {
	if publicBase == "" {
		publicBase = "memory://objects"
	}
	return &MemoryStore{objects: make(map[string]Object), publicBase: publicBase}
}

func (m *MemoryStore) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	if path == "" {
		return errors.New("object key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	failWith := m.failWith
	m.mu.RUnlock()
	if failWith != nil {
		return failWith
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[path] = Object{Data: data, ContentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	return joinPublic(m.publicBase, path)
}

func (m *MemoryStore) Get(path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	return obj, ok
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// SetFailure makes every later Put fail with err until cleared with nil.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}
