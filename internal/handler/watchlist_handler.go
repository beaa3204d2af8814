package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/model"
)

// WatchlistHandler はウォッチリストのHTTPハンドラー。
// エントリはセッションストアに保持され、ペット情報の解決にのみカタログを使う。
type WatchlistHandler struct {
	catalog PetCatalogInterface
}

// NewWatchlistHandler はWatchlistHandlerを生成する。
func NewWatchlistHandler(catalog PetCatalogInterface) *WatchlistHandler {
	return &WatchlistHandler{catalog: catalog}
}

// addWatchlistRequest はウォッチリスト追加リクエストのボディ。
type addWatchlistRequest struct {
	PetID int64 `json:"petId"`
}

// List はウォッチリストの現在の内容を返す。
// GET /api/watchlist
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, store.Watchlist())
}

// Add はペットをウォッチリストに追加する。
// すでに登録済みの場合は何も変更せず現在の内容を返す。
// POST /api/watchlist
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	var req addWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	pet, err := h.catalog.GetPet(r.Context(), req.PetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if pet == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPetNotFoundError(req.PetID))
		return
	}

	entry := model.WatchlistEntry{
		PetID:   pet.ID,
		Name:    pet.Name,
		Image:   pet.Image,
		AddedAt: time.Now(),
	}
	if err := store.AddToWatchlist(r.Context(), entry); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, store.Watchlist())
}

// Remove はペットをウォッチリストから外す。
// 登録されていないIDを指定しても成功として扱う。
// DELETE /api/watchlist/:petId
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	petID, err := parsePetID(chi.URLParam(r, "petId"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ペットIDは数値で指定してください。",
			Category: "validation",
			Action:   "URLを確認してください。",
		})
		return
	}

	if err := store.RemoveFromWatchlist(r.Context(), petID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
