// Package toast はセッション単位のユーザー通知キューを提供する。
// 操作の成否メッセージを一時的に蓄積し、クライアントが次回取得するまで保持する。
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level はトーストの種別。
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Toast は一件の通知メッセージ。
type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Center はセッションごとのトーストキューを管理する。
type Center struct {
	mu     sync.Mutex
	queues map[string][]Toast
}

func NewCenter() *Center {
	return &Center{
		queues: make(map[string][]Toast),
	}
}

// Push は指定セッションのキューへトーストを追加する。
func (c *Center) Push(sessionID string, level Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queues[sessionID] = append(c.queues[sessionID], Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// Drain は指定セッションの未取得トーストをすべて返し、キューを空にする。
// キューが空の場合は空スライスを返す。
func (c *Center) Drain(sessionID string) []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()

	toasts := c.queues[sessionID]
	delete(c.queues, sessionID)
	if toasts == nil {
		return []Toast{}
	}
	return toasts
}

// Discard は指定セッションのキューを破棄する。セッション終了時に呼ぶ。
func (c *Center) Discard(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.queues, sessionID)
}

// SessionNotifier は特定セッションに束縛された通知の送り口。
type SessionNotifier struct {
	center    *Center
	sessionID string
}

func (c *Center) For(sessionID string) *SessionNotifier {
	return &SessionNotifier{center: c, sessionID: sessionID}
}

func (n *SessionNotifier) Success(message string) { n.center.Push(n.sessionID, LevelSuccess, message) }
func (n *SessionNotifier) Error(message string)   { n.center.Push(n.sessionID, LevelError, message) }
func (n *SessionNotifier) Info(message string)    { n.center.Push(n.sessionID, LevelInfo, message) }
