package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/repository"
)

// NotifierFactory はセッションIDに束縛された通知の送り口を生成する。
type NotifierFactory func(sessionID string) Notifier

// storeEntry はキャッシュされたストアと、そのセッションの有効期限。
type storeEntry struct {
	store     *Store
	expiresAt time.Time
}

// Manager はセッションのライフサイクルと、セッションごとの
// Store インスタンスの単一性を管理する。
type Manager struct {
	mu            sync.Mutex
	stores        map[string]storeEntry
	sessions      repository.SessionRepository
	local         repository.LocalStore
	maxAge        time.Duration
	buildNotifier NotifierFactory
}

func NewManager(sessions repository.SessionRepository, local repository.LocalStore, maxAge time.Duration, buildNotifier NotifierFactory) *Manager {
	if buildNotifier == nil {
		buildNotifier = func(string) Notifier { return nopNotifier{} }
	}
	return &Manager{
		stores:        make(map[string]storeEntry),
		sessions:      sessions,
		local:         local,
		maxAge:        maxAge,
		buildNotifier: buildNotifier,
	}
}

// Create は新しいセッションを発行し、空のストアを返す。
func (m *Manager) Create(ctx context.Context) (*Store, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	if err := m.sessions.Create(ctx, &model.Session{
		ID:        id,
		ExpiresAt: now.Add(m.maxAge),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	store := NewStore(id, m.local, m.buildNotifier(id))

	m.mu.Lock()
	m.stores[id] = storeEntry{store: store, expiresAt: now.Add(m.maxAge)}
	m.mu.Unlock()

	return store, nil
}

// Get は既存セッションのストアを返す。セッションが存在しないか
// 期限切れの場合は nil を返す。同一セッションに対しては常に
// 同じ Store インスタンスを返す。
func (m *Manager) Get(ctx context.Context, sessionID string) (*Store, error) {
	now := time.Now()

	m.mu.Lock()
	if entry, ok := m.stores[sessionID]; ok {
		if now.Before(entry.expiresAt) {
			m.mu.Unlock()
			return entry.store, nil
		}
		// キャッシュヒットでも期限切れなら失効として扱う
		delete(m.stores, sessionID)
	}
	m.mu.Unlock()

	sess, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if sess == nil || !now.Before(sess.ExpiresAt) {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// 同時リクエストが同じセッションを復元した場合は先勝ち
	if entry, ok := m.stores[sessionID]; ok {
		return entry.store, nil
	}
	store := NewStore(sessionID, m.local, m.buildNotifier(sessionID))
	m.stores[sessionID] = storeEntry{store: store, expiresAt: sess.ExpiresAt}
	return store, nil
}

// Destroy はセッションと関連する永続値をすべて破棄する。
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.stores, sessionID)
	m.mu.Unlock()

	if err := m.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Evict はメモリ上のストアだけを解放する。永続状態には触れない。
func (m *Manager) Evict(sessionID string) {
	m.mu.Lock()
	delete(m.stores, sessionID)
	m.mu.Unlock()
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
