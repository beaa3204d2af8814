package repository

import (
	"context"
	"sync"
)

// MemoryLocalStore はインメモリのセッションローカルストレージ。
// 単体テストおよびDBなしのローカル起動で使用する。
type MemoryLocalStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]string // session_id -> key -> value
}

// NewMemoryLocalStore はMemoryLocalStoreを生成する。
func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{
		entries: make(map[string]map[string]string),
	}
}

// Get は指定キーの値を取得する。存在しない場合はErrNotFoundを返す。
func (s *MemoryLocalStore) Get(_ context.Context, sessionID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, ok := s.entries[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	value, ok := keys[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set は指定キーの値を設定する。既存キーは上書きする。
func (s *MemoryLocalStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.entries[sessionID]
	if !ok {
		keys = make(map[string]string)
		s.entries[sessionID] = keys
	}
	keys[key] = value
	return nil
}

// Remove は指定キーを削除する。存在しないキーの削除はエラーにならない。
func (s *MemoryLocalStore) Remove(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keys, ok := s.entries[sessionID]; ok {
		delete(keys, key)
	}
	return nil
}

// RemoveAll は指定セッションの全キーを削除する。
func (s *MemoryLocalStore) RemoveAll(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
	return nil
}

// compile-time interface check
var _ LocalStore = (*MemoryLocalStore)(nil)
