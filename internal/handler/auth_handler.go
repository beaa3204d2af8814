package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/session"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, store *session.Store, email, password string) (session.Snapshot, error)
	Register(ctx context.Context, store *session.Store, name, email, password, address string) (session.Snapshot, error)
	LoginWithBackend(ctx context.Context, store *session.Store, email, password string) (session.Snapshot, error)
	OAuthLoginURL(state string) string
	LoginWithProvider(ctx context.Context, store *session.Store, code string) (session.Snapshot, error)
	Logout(ctx context.Context, store *session.Store) error
	ResetPassword(ctx context.Context, email string) error
}

// SessionDestroyer はログアウト時のセッション破棄インターフェース。
type SessionDestroyer interface {
	Destroy(ctx context.Context, sessionID string) error
}

// SessionCleaner はログアウト時にセッション付随データを破棄する。
// 進行中のウィザードや未配信のトーストが対象。
type SessionCleaner interface {
	Discard(sessionID string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionDestroyer
	cleaners []SessionCleaner
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionDestroyer, config AuthHandlerConfig, cleaners ...SessionCleaner) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		cleaners: cleaners,
		config:   config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest は新規登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address,omitempty"`
}

// resetPasswordRequest はパスワードリセットリクエストのボディ。
type resetPasswordRequest struct {
	Email string `json:"email"`
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "メールアドレスとパスワードは必須です。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		})
		return
	}

	snapshot, err := h.service.Login(r.Context(), store, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// Register はIDプロバイダーとバックエンドの両方にユーザーを登録する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "名前、メールアドレス、パスワードは必須です。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		})
		return
	}

	snapshot, err := h.service.Register(r.Context(), store, req.Name, req.Email, req.Password, req.Address)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, snapshot)
}

// LoginBackend はバックエンド直結のフォールバックログインを処理する。
// POST /auth/login/backend
func (h *AuthHandler) LoginBackend(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	snapshot, err := h.service.LoginWithBackend(r.Context(), store, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	if logoutErr := h.service.Logout(r.Context(), store); logoutErr != nil {
		slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		// ログアウト失敗してもCookieはクリアする
	}

	sessionID := store.SessionID()
	if destroyErr := h.sessions.Destroy(r.Context(), sessionID); destroyErr != nil {
		slog.Error("failed to destroy session", slog.String("error", destroyErr.Error()))
	}
	for _, cleaner := range h.cleaners {
		cleaner.Discard(sessionID)
	}

	middleware.ClearSessionCookie(w)
	middleware.ClearPreservedPath(w)
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword はパスワードリセットメールの送信を依頼する。
// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "メールアドレスは必須です。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		})
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ProviderLogin はIDプロバイダーのOAuthフローを開始する。
// GET /auth/provider/login
func (h *AuthHandler) ProviderLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.OAuthLoginURL(state), http.StatusTemporaryRedirect)
}

// ProviderCallback はOAuthコールバックを処理する。
// GET /auth/provider/callback?code=xxx&state=yyy
func (h *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_STATE",
			Message:  "OAuthのstateパラメータが一致しません。",
			Category: "auth",
			Action:   "もう一度ログインしてください。",
		})
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. ユーザーが同意画面を閉じた場合はエラー理由付きでトップへ戻す
	if errCode := r.URL.Query().Get("error"); errCode != "" {
		http.Redirect(w, r, h.config.BaseURL+"?auth_error="+string(model.AuthReasonPopupClosed), http.StatusTemporaryRedirect)
		return
	}

	// 3. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "認可コードがありません。",
			Category: "auth",
			Action:   "もう一度ログインしてください。",
		})
		return
	}

	// 4. 認証処理
	if _, err := h.service.LoginWithProvider(r.Context(), store, code); err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.config.BaseURL+"?auth_error="+string(model.AuthReasonUnknown), http.StatusTemporaryRedirect)
		return
	}

	// 5. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Me は現在のセッションのスナップショットを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, store.Snapshot())
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
