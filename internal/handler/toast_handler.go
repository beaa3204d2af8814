package handler

import (
	"net/http"

	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/toast"
)

// ToastHandler は未配信トーストのHTTPハンドラー。
type ToastHandler struct {
	center *toast.Center
}

// NewToastHandler はToastHandlerを生成する。
func NewToastHandler(center *toast.Center) *ToastHandler {
	return &ToastHandler{center: center}
}

// Drain は未配信のトーストをすべて取り出して返す。
// 取り出したトーストはキューから消える。
// GET /api/toasts
func (h *ToastHandler) Drain(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	toasts := h.center.Drain(store.SessionID())
	if toasts == nil {
		toasts = []toast.Toast{}
	}
	writeJSON(w, http.StatusOK, toasts)
}
