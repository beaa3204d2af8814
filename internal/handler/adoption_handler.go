package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pawhaven/pawgate/internal/forms"
	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/reconcile"
	"github.com/pawhaven/pawgate/internal/toast"
)

// AdoptionBackendInterface は譲渡申請ハンドラーが必要とするバックエンドインターフェース。
type AdoptionBackendInterface interface {
	SubmitAdoption(ctx context.Context, userID int64, app *model.AdoptionApplication) (*model.AdoptionApplication, error)
	ListAdoptionsByUser(ctx context.Context, userID int64) ([]model.AdoptionApplication, error)
}

// CatalogInvalidator は申請成立時にカタログキャッシュを破棄する。
type CatalogInvalidator interface {
	Invalidate(id int64)
}

// AdoptionHandler は里親申請ウィザードのHTTPハンドラー。
type AdoptionHandler struct {
	backend     AdoptionBackendInterface
	catalog     PetCatalogInterface
	invalidator CatalogInvalidator
	registry    *forms.Registry
	toasts      *toast.Center
}

// NewAdoptionHandler はAdoptionHandlerを生成する。
func NewAdoptionHandler(backend AdoptionBackendInterface, catalog PetCatalogInterface, invalidator CatalogInvalidator, registry *forms.Registry, toasts *toast.Center) *AdoptionHandler {
	return &AdoptionHandler{
		backend:     backend,
		catalog:     catalog,
		invalidator: invalidator,
		registry:    registry,
		toasts:      toasts,
	}
}

// startAdoptionRequest はウィザード開始リクエストのボディ。
type startAdoptionRequest struct {
	PetID int64 `json:"petId"`
}

// adoptionWizardResponse は里親申請ウィザードの現在状態。
type adoptionWizardResponse struct {
	PetID int64              `json:"petId"`
	Step  string             `json:"step"`
	Steps []string           `json:"steps"`
	Data  forms.AdoptionData `json:"data"`
}

func toAdoptionWizardResponse(wiz *forms.AdoptionWizard) adoptionWizardResponse {
	return adoptionWizardResponse{
		PetID: wiz.PetID,
		Step:  wiz.CurrentStep(),
		Steps: wiz.StepNames(),
		Data:  wiz.Snapshot(),
	}
}

// Start は指定ペットに対する申請ウィザードを開始する。
// 進行中のウィザードがあれば破棄して新しく始める。
// POST /api/adoptions/wizard
func (h *AdoptionHandler) Start(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	var req startAdoptionRequest
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

	wiz := h.registry.StartAdoption(store.SessionID(), pet.ID)
	writeJSON(w, http.StatusCreated, toAdoptionWizardResponse(wiz))
}

// Get は進行中のウィザードの状態を返す。
// GET /api/adoptions/wizard
func (h *AdoptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.currentWizard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAdoptionWizardResponse(wiz))
}

// Update は現在のステップの入力値を更新する。
// 現在のステップに属さないフィールドは無視される。
// PUT /api/adoptions/wizard
func (h *AdoptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.currentWizard(w, r)
	if !ok {
		return
	}

	var data forms.AdoptionData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	wiz.Update(data)
	writeJSON(w, http.StatusOK, toAdoptionWizardResponse(wiz))
}

// Next は現在のステップを検証して次へ進む。
// POST /api/adoptions/wizard/next
func (h *AdoptionHandler) Next(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.currentWizard(w, r)
	if !ok {
		return
	}

	if err := wiz.Next(); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAdoptionWizardResponse(wiz))
}

// Back は前のステップに戻る。先頭で呼んでも何も起きない。
// POST /api/adoptions/wizard/back
func (h *AdoptionHandler) Back(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.currentWizard(w, r)
	if !ok {
		return
	}

	wiz.Back()
	writeJSON(w, http.StatusOK, toAdoptionWizardResponse(wiz))
}

// Submit は全ステップを検証してバックエンドに申請を送信する。
// 数値IDを持たないセッションからの送信は拒否される。
// POST /api/adoptions/wizard/submit
func (h *AdoptionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	wiz := h.registry.Adoption(store.SessionID())
	if wiz == nil {
		writeWizardNotStarted(w)
		return
	}

	userID, err := reconcile.RequireReconciled(store)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	app, err := wiz.Build()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	submitted, err := h.backend.SubmitAdoption(r.Context(), userID, app)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.registry.FinishAdoption(store.SessionID())
	h.invalidator.Invalidate(wiz.PetID)
	h.toasts.For(store.SessionID()).Success("里親申請を受け付けました。")

	writeJSON(w, http.StatusCreated, submitted)
}

// List は自分の申請履歴を取得する。
// GET /api/adoptions
func (h *AdoptionHandler) List(w http.ResponseWriter, r *http.Request) {
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

	apps, err := h.backend.ListAdoptionsByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apps)
}

// currentWizard は進行中のウィザードを取り出す。なければ404を書き込む。
func (h *AdoptionHandler) currentWizard(w http.ResponseWriter, r *http.Request) (*forms.AdoptionWizard, bool) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return nil, false
	}

	wiz := h.registry.Adoption(store.SessionID())
	if wiz == nil {
		writeWizardNotStarted(w)
		return nil, false
	}
	return wiz, true
}

// writeWizardNotStarted は未開始ウィザードへの操作エラーを書き込む。
func writeWizardNotStarted(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
		Code:     "WIZARD_NOT_STARTED",
		Message:  "進行中のフォームがありません。",
		Category: "form",
		Action:   "フォームを最初から始めてください。",
	})
}
