package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pawhaven/pawgate/internal/backend"
	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/reconcile"
	"github.com/pawhaven/pawgate/internal/security"
)

// ProfileBackendInterface はプロフィールハンドラーが必要とするバックエンドインターフェース。
type ProfileBackendInterface interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, req backend.UpdateUserRequest) (*model.User, error)
}

// ProfileHandler はプロフィールと表示設定のHTTPハンドラー。
type ProfileHandler struct {
	backend    ProfileBackendInterface
	imageGuard security.ImageGuardService
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(backend ProfileBackendInterface, imageGuard security.ImageGuardService) *ProfileHandler {
	return &ProfileHandler{
		backend:    backend,
		imageGuard: imageGuard,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Name         string `json:"name,omitempty"`
	Address      string `json:"address,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// themeRequest はテーマ変更リクエストのボディ。
type themeRequest struct {
	Theme string `json:"theme"`
}

// Get は現在のユーザーのプロフィールを返す。
// バックエンドから最新の内容を取得してセッションを揃える。
// 取得に失敗した場合はセッションの保持する内容で応答する。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	userID, err := reconcile.RequireReconciled(store)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.backend.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		if err != nil {
			slog.Warn("profile refresh failed, serving session copy",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		writeJSON(w, http.StatusOK, store.User())
		return
	}

	if err := store.SetApplicationUser(r.Context(), user); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update はプロフィールを更新する。
// プロフィール画像URLは内部ネットワークを指すものを拒否する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	userID, err := reconcile.RequireReconciled(store)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.ProfileImage != "" {
		if err := h.imageGuard.ValidateImageURL(req.ProfileImage); err != nil {
			slog.Warn("profile image url rejected",
				slog.String("error", err.Error()),
			)
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnsafeImageURLError())
			return
		}
	}

	user, err := h.backend.UpdateUser(r.Context(), userID, backend.UpdateUserRequest{
		Name:         req.Name,
		Address:      req.Address,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションの保持するユーザーも更新後の内容に揃える
	if err := store.SetApplicationUser(r.Context(), user); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateTheme は表示テーマを切り替える。
// PUT /api/theme
func (h *ProfileHandler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Theme != "light" && req.Theme != "dark" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_THEME",
			Message:  "テーマは light または dark を指定してください。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		})
		return
	}

	if err := store.SetTheme(r.Context(), req.Theme); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"theme": store.Theme()})
}
