// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pawhaven/pawgate/internal/guard"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/session"
)

const (
	// sessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
	sessionCookieName = "pawgate_sid"
	// preservedPathCookieName はサインイン後の復帰先を保持するCookieの名前。
	preservedPathCookieName = "pawgate_return_to"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// storeContextKey はリクエストコンテキストにセッションストアを格納するためのキー。
var storeContextKey = contextKey("session_store")

// SessionRestorer は未確定のセッション状態を復元する。
type SessionRestorer interface {
	RestoreSession(ctx context.Context, store *session.Store) (session.Snapshot, error)
}

// SessionConfig はセッションCookieの設定。
type SessionConfig struct {
	CookieSecure bool
	MaxAge       int
	// Secret はセッションCookieのHMAC署名キー。空の場合は署名しない。
	Secret string
}

// signSessionID はセッションIDにHMAC-SHA256署名を付けたCookie値を返す。
func signSessionID(id, secret string) string {
	if secret == "" {
		return id
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

// verifySessionID はCookie値の署名を検証し、セッションIDを取り出す。
// 署名が一致しない値は偽造として棄却する。
func verifySessionID(value, secret string) (string, bool) {
	if secret == "" {
		return value, value != ""
	}
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return id, true
}

// NewSessionMiddleware はすべてのリクエストにセッションストアを割り当てる
// ミドルウェアを返す。Cookieが無い・無効な場合は新しいセッションを発行する。
// 状態が未確定（Loading）の場合は応答前に復元を完了させる。
// ストアはリクエストコンテキストに注入される。
func NewSessionMiddleware(manager *session.Manager, restorer SessionRestorer, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, err := resolveStore(r, manager, config.Secret)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if store == nil {
				store, err = manager.Create(r.Context())
				if err != nil {
					slog.Error("failed to create session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookieName,
					Value:    signSessionID(store.SessionID(), config.Secret),
					Path:     "/",
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			// 状態が未確定のまま後続処理へ進ませない
			if store.Phase() == session.PhaseLoading {
				if _, err := restorer.RestoreSession(r.Context(), store); err != nil {
					slog.Error("failed to restore session state",
						slog.String("session_id", store.SessionID()),
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
			}

			ctx := context.WithValue(r.Context(), storeContextKey, store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveStore(r *http.Request, manager *session.Manager, secret string) (*session.Store, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	id, ok := verifySessionID(cookie.Value, secret)
	if !ok {
		slog.Warn("session cookie signature mismatch")
		return nil, nil
	}
	return manager.Get(r.Context(), id)
}

// NewRequireAuthMiddleware は認証済みセッションを要求するミドルウェアを返す。
// ProviderOnly は閲覧を許可する。未認証のリクエストには401を返し、
// 元の行き先を復帰先Cookieに保存する。SessionMiddlewareの後に配置する。
// 更新系の操作は reconcile.RequireReconciled で完全な照合を要求する。
func NewRequireAuthMiddleware(config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, err := StoreFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			decision := guard.Decide(store.Phase(), true, r.URL.Path, "")
			if decision.Action == guard.ActionAllow {
				next.ServeHTTP(w, r)
				return
			}

			if decision.PreserveLocation {
				http.SetCookie(w, &http.Cookie{
					Name:     preservedPathCookieName,
					Value:    r.URL.Path,
					Path:     "/",
					MaxAge:   600,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		})
	}
}

// StoreFromContext はリクエストコンテキストからセッションストアを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func StoreFromContext(ctx context.Context) (*session.Store, error) {
	store, ok := ctx.Value(storeContextKey).(*session.Store)
	if !ok || store == nil {
		return nil, fmt.Errorf("session store not found in context")
	}
	return store, nil
}

// ContextWithStore はコンテキストにセッションストアを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithStore(ctx context.Context, store *session.Store) context.Context {
	return context.WithValue(ctx, storeContextKey, store)
}

// PreservedPath はサインイン後の復帰先をリクエストから読み取る。無ければ空文字列。
func PreservedPath(r *http.Request) string {
	cookie, err := r.Cookie(preservedPathCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ClearPreservedPath は復帰先Cookieを破棄する。
func ClearPreservedPath(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   preservedPathCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// ClearSessionCookie はセッションCookieを破棄する。ログアウト時に呼ぶ。
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
