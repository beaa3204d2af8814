package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/reconcile"
)

// NotificationBackendInterface は通知ハンドラーが必要とするバックエンドインターフェース。
type NotificationBackendInterface interface {
	ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
	DeleteNotification(ctx context.Context, notificationID int64) error
}

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	backend NotificationBackendInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(backend NotificationBackendInterface) *NotificationHandler {
	return &NotificationHandler{backend: backend}
}

// List は自分宛の通知一覧を取得する。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := reconciledUserID(w, r)
	if !ok {
		return
	}

	notifications, err := h.backend.ListNotifications(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// MarkRead は通知を既読にする。
// PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if _, ok := reconciledUserID(w, r); !ok {
		return
	}

	id, ok := parseNotificationID(w, r)
	if !ok {
		return
	}

	if err := h.backend.MarkNotificationRead(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead は自分宛の通知をすべて既読にする。
// PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := reconciledUserID(w, r)
	if !ok {
		return
	}

	if err := h.backend.MarkAllNotificationsRead(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete は通知を削除する。
// DELETE /api/notifications/:id
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := reconciledUserID(w, r); !ok {
		return
	}

	id, ok := parseNotificationID(w, r)
	if !ok {
		return
	}

	if err := h.backend.DeleteNotification(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// reconciledUserID はセッションからバックエンドの数値IDを取り出す。
// 取り出せない場合はエラーレスポンスを書き込む。
func reconciledUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return 0, false
	}

	userID, err := reconcile.RequireReconciled(store)
	if err != nil {
		handleServiceError(w, err)
		return 0, false
	}
	return userID, true
}

// parseNotificationID はURLパラメータの通知IDを数値に変換する。
func parseNotificationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "通知IDは数値で指定してください。",
			Category: "validation",
			Action:   "URLを確認してください。",
		})
		return 0, false
	}
	return id, true
}
