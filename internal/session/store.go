// Package session はブラウザセッションごとの認証状態と永続キーを管理する。
// プロバイダ上の身元とアプリケーション上のユーザーを別々に保持し、
// 両者が揃ったときだけ Reconciled とみなす。
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/repository"
)

// 永続ストアのキー。クライアント互換のため名前は固定。
const (
	KeyUser      = "pawhaven_user"
	KeyToken     = "pawhaven_token"
	KeyWatchlist = "pawhaven_watchlist"
	KeyTheme     = "pawhaven_theme"
)

// Phase は認証状態の段階を表す。
type Phase string

const (
	// PhaseLoading は初期化が未完了で状態が未確定であることを示す。
	PhaseLoading Phase = "loading"
	// PhaseUnauthenticated はどの身元も保持していないことを示す。
	PhaseUnauthenticated Phase = "unauthenticated"
	// PhaseProviderOnly はプロバイダ身元のみ確認済みで、
	// アプリケーションユーザーがまだ解決されていないことを示す。
	PhaseProviderOnly Phase = "provider_only"
	// PhaseReconciled は両方の身元が揃った完全な認証状態を示す。
	PhaseReconciled Phase = "reconciled"
)

// Snapshot はストアの現在状態の読み取り専用コピー。
type Snapshot struct {
	Phase     Phase                  `json:"phase"`
	Profile   *model.ProviderProfile `json:"profile,omitempty"`
	User      *model.User            `json:"user,omitempty"`
	Theme     string                 `json:"theme"`
	Watchlist []model.WatchlistEntry `json:"watchlist"`
}

// Notifier はユーザー向け通知の送り口。
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}
func (nopNotifier) Info(string)    {}

// Store は単一セッションの認証状態と永続値を保持する。
// すべての公開メソッドは並行呼び出しに対して安全。
type Store struct {
	mu        sync.Mutex
	sessionID string
	local     repository.LocalStore
	notifier  Notifier

	phase        Phase
	profile      *model.ProviderProfile
	user         *model.User
	token        string
	refreshToken string
	watchlist    []model.WatchlistEntry
	theme        string

	nextSubID   int
	subscribers map[int]func(Snapshot)
}

// NewStore は未解決（Loading）状態のストアを作成する。
func NewStore(sessionID string, local repository.LocalStore, notifier Notifier) *Store {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Store{
		sessionID:   sessionID,
		local:       local,
		notifier:    notifier,
		phase:       PhaseLoading,
		theme:       "light",
		subscribers: make(map[int]func(Snapshot)),
	}
}

func (s *Store) SessionID() string {
	return s.sessionID
}

// Hydrate は永続ストアから保存済みの値を読み戻す。
// 壊れた値は存在しないものとして扱い、ストアから取り除く。
// 何度呼んでも結果は変わらない。
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, err := s.getLocal(ctx, KeyUser); err == nil {
		var user model.User
		if jsonErr := json.Unmarshal([]byte(raw), &user); jsonErr != nil || user.ID == 0 {
			slog.Warn("discarding corrupt persisted user", "session_id", s.sessionID)
			_ = s.local.Remove(ctx, s.sessionID, KeyUser)
		} else {
			s.user = &user
		}
	} else if !repository.IsNotFound(err) {
		return fmt.Errorf("failed to hydrate user: %w", err)
	}

	if raw, err := s.getLocal(ctx, KeyToken); err == nil {
		s.token = raw
	} else if !repository.IsNotFound(err) {
		return fmt.Errorf("failed to hydrate token: %w", err)
	}

	if raw, err := s.getLocal(ctx, KeyWatchlist); err == nil {
		var entries []model.WatchlistEntry
		if jsonErr := json.Unmarshal([]byte(raw), &entries); jsonErr != nil {
			slog.Warn("discarding corrupt persisted watchlist", "session_id", s.sessionID)
			_ = s.local.Remove(ctx, s.sessionID, KeyWatchlist)
		} else {
			s.watchlist = entries
		}
	} else if !repository.IsNotFound(err) {
		return fmt.Errorf("failed to hydrate watchlist: %w", err)
	}

	if raw, err := s.getLocal(ctx, KeyTheme); err == nil {
		if raw == "light" || raw == "dark" {
			s.theme = raw
		} else {
			_ = s.local.Remove(ctx, s.sessionID, KeyTheme)
		}
	} else if !repository.IsNotFound(err) {
		return fmt.Errorf("failed to hydrate theme: %w", err)
	}

	return nil
}

func (s *Store) getLocal(ctx context.Context, key string) (string, error) {
	return s.local.Get(ctx, s.sessionID, key)
}

// SetProviderProfile はプロバイダ身元を設定する。
// アプリケーションユーザーが未解決なら ProviderOnly へ遷移する。
func (s *Store) SetProviderProfile(profile *model.ProviderProfile) {
	s.mu.Lock()
	s.profile = profile
	if profile == nil {
		s.phase = PhaseUnauthenticated
	} else if s.user != nil {
		s.phase = PhaseReconciled
	} else {
		s.phase = PhaseProviderOnly
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetApplicationUser はアプリケーションユーザーを設定・永続化し、
// Reconciled へ遷移する。
func (s *Store) SetApplicationUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	s.mu.Lock()
	if err := s.local.Set(ctx, s.sessionID, KeyUser, string(data)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist user: %w", err)
	}
	s.user = user
	s.phase = PhaseReconciled
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// SetToken はIDトークンを設定・永続化する。
func (s *Store) SetToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.local.Set(ctx, s.sessionID, KeyToken, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	s.token = token
	return nil
}

// Token は現在のIDトークンを返す。未設定なら空文字列。
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetRefreshToken はリフレッシュトークンを設定する。
// リフレッシュトークンはプロセス外へ永続化しない。
func (s *Store) SetRefreshToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshToken = token
}

// RefreshToken は現在のリフレッシュトークンを返す。
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// MarkResolved は初期化の完了を確定する。
// Loading のままの場合、保持している身元に応じた段階へ遷移する。
func (s *Store) MarkResolved() {
	s.mu.Lock()
	if s.phase == PhaseLoading {
		switch {
		case s.user != nil:
			// 復元済みユーザーがいればプロバイダ確認を待たずに認証済みとする
			s.phase = PhaseReconciled
		case s.profile != nil:
			s.phase = PhaseProviderOnly
		default:
			s.phase = PhaseUnauthenticated
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Clear は両方の身元とすべての永続キーを破棄し、
// Unauthenticated へ遷移する。サインアウトと強制無効化の両方で使う。
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.local.RemoveAll(ctx, s.sessionID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to clear persisted state: %w", err)
	}
	s.profile = nil
	s.user = nil
	s.token = ""
	s.refreshToken = ""
	s.watchlist = nil
	s.theme = "light"
	s.phase = PhaseUnauthenticated
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Profile はプロバイダ身元を返す。未設定なら nil。
func (s *Store) Profile() *model.ProviderProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// User はアプリケーションユーザーを返す。未解決なら nil。
func (s *Store) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Phase は現在の認証段階を返す。
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot は現在状態のコピーを返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	entries := make([]model.WatchlistEntry, len(s.watchlist))
	copy(entries, s.watchlist)
	return Snapshot{
		Phase:     s.phase,
		Profile:   s.profile,
		User:      s.user,
		Theme:     s.theme,
		Watchlist: entries,
	}
}

// AddToWatchlist はペットをウォッチリストへ追加する。
// すでに追加済みの場合は通知のみ行い、重複は作らない。
func (s *Store) AddToWatchlist(ctx context.Context, entry model.WatchlistEntry) error {
	s.mu.Lock()
	for _, existing := range s.watchlist {
		if existing.PetID == entry.PetID {
			s.mu.Unlock()
			s.notifier.Info(fmt.Sprintf("%s はすでにウォッチリストに追加されています", entry.Name))
			return nil
		}
	}

	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	updated := append(append([]model.WatchlistEntry{}, s.watchlist...), entry)
	if err := s.persistWatchlistLocked(ctx, updated); err != nil {
		s.mu.Unlock()
		return err
	}
	s.watchlist = updated
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notifier.Success(fmt.Sprintf("%s をウォッチリストに追加しました", entry.Name))
	s.notify(snap)
	return nil
}

// RemoveFromWatchlist はペットをウォッチリストから除去する。
// 存在しないIDを渡してもエラーにはならない。
func (s *Store) RemoveFromWatchlist(ctx context.Context, petID int64) error {
	s.mu.Lock()
	updated := make([]model.WatchlistEntry, 0, len(s.watchlist))
	removed := false
	for _, existing := range s.watchlist {
		if existing.PetID == petID {
			removed = true
			continue
		}
		updated = append(updated, existing)
	}
	if !removed {
		s.mu.Unlock()
		return nil
	}

	if err := s.persistWatchlistLocked(ctx, updated); err != nil {
		s.mu.Unlock()
		return err
	}
	s.watchlist = updated
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notifier.Info("ウォッチリストから削除しました")
	s.notify(snap)
	return nil
}

// IsInWatchlist はペットがウォッチリストに含まれるかを返す。
func (s *Store) IsInWatchlist(petID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.watchlist {
		if existing.PetID == petID {
			return true
		}
	}
	return false
}

// Watchlist は現在のウォッチリストのコピーを返す。
func (s *Store) Watchlist() []model.WatchlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]model.WatchlistEntry, len(s.watchlist))
	copy(entries, s.watchlist)
	return entries
}

func (s *Store) persistWatchlistLocked(ctx context.Context, entries []model.WatchlistEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal watchlist: %w", err)
	}
	if err := s.local.Set(ctx, s.sessionID, KeyWatchlist, string(data)); err != nil {
		return fmt.Errorf("failed to persist watchlist: %w", err)
	}
	return nil
}

// SetTheme はテーマ設定を保存する。light と dark のみ受け付ける。
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if theme != "light" && theme != "dark" {
		return fmt.Errorf("unknown theme: %s", theme)
	}

	s.mu.Lock()
	if err := s.local.Set(ctx, s.sessionID, KeyTheme, theme); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist theme: %w", err)
	}
	s.theme = theme
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Theme は現在のテーマを返す。
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Subscribe は状態変化の購読を開始する。戻り値の関数で購読を解除する。
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
