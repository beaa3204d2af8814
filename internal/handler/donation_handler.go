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

// DonationBackendInterface は寄付ハンドラーが必要とするバックエンドインターフェース。
type DonationBackendInterface interface {
	CreateDonation(ctx context.Context, user *model.User, donation *model.Donation) (*model.Donation, error)
	ListDonationsByUser(ctx context.Context, userID int64) ([]model.Donation, error)
}

// DonationHandler は寄付ウィザードのHTTPハンドラー。
type DonationHandler struct {
	backend  DonationBackendInterface
	registry *forms.Registry
	toasts   *toast.Center
}

// NewDonationHandler はDonationHandlerを生成する。
func NewDonationHandler(backend DonationBackendInterface, registry *forms.Registry, toasts *toast.Center) *DonationHandler {
	return &DonationHandler{
		backend:  backend,
		registry: registry,
		toasts:   toasts,
	}
}

// donationWizardResponse は寄付ウィザードの現在状態。
// トランザクションIDはウィザード開始時に発行され、以後変わらない。
type donationWizardResponse struct {
	TranID string             `json:"tranId"`
	Step   string             `json:"step"`
	Steps  []string           `json:"steps"`
	Data   forms.DonationData `json:"data"`
}

func toDonationWizardResponse(wiz *forms.DonationWizard) donationWizardResponse {
	return donationWizardResponse{
		TranID: wiz.TranID,
		Step:   wiz.CurrentStep(),
		Steps:  wiz.StepNames(),
		Data:   wiz.Snapshot(),
	}
}

// Start は寄付ウィザードを開始する。
// POST /api/donations/wizard
func (h *DonationHandler) Start(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	wiz := h.registry.StartDonation(store.SessionID())
	writeJSON(w, http.StatusCreated, toDonationWizardResponse(wiz))
}

// Get は進行中のウィザードの状態を返す。
// GET /api/donations/wizard
func (h *DonationHandler) Get(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.currentWizard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toDonationWizardResponse(wiz))
}

// Update は現在のステップの入力値を更新する。
// PUT /api/donations/wizard
func (h *DonationHandler) Update(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.currentWizard(w, r)
	if !ok {
		return
	}

	var data forms.DonationData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	wiz.Update(data)
	writeJSON(w, http.StatusOK, toDonationWizardResponse(wiz))
}

// Next は現在のステップを検証して次へ進む。
// POST /api/donations/wizard/next
func (h *DonationHandler) Next(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.currentWizard(w, r)
	if !ok {
		return
	}

	if err := wiz.Next(); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDonationWizardResponse(wiz))
}

// Back は前のステップに戻る。
// POST /api/donations/wizard/back
func (h *DonationHandler) Back(w http.ResponseWriter, r *http.Request) {
	wiz, ok := h.currentWizard(w, r)
	if !ok {
		return
	}

	wiz.Back()
	writeJSON(w, http.StatusOK, toDonationWizardResponse(wiz))
}

// Submit は全ステップを検証して寄付を送信する。
// POST /api/donations/wizard/submit
func (h *DonationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	wiz := h.registry.Donation(store.SessionID())
	if wiz == nil {
		writeWizardNotStarted(w)
		return
	}

	if _, err := reconcile.RequireReconciled(store); err != nil {
		handleServiceError(w, err)
		return
	}

	donation, err := wiz.Build()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.backend.CreateDonation(r.Context(), store.User(), donation)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.registry.FinishDonation(store.SessionID())
	h.toasts.For(store.SessionID()).Success("ご寄付ありがとうございます。")

	writeJSON(w, http.StatusCreated, created)
}

// List は自分の寄付履歴を取得する。
// GET /api/donations
func (h *DonationHandler) List(w http.ResponseWriter, r *http.Request) {
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

	donations, err := h.backend.ListDonationsByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, donations)
}

// currentWizard は進行中のウィザードを取り出す。なければ404を書き込む。
func (h *DonationHandler) currentWizard(w http.ResponseWriter, r *http.Request) (*forms.DonationWizard, bool) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return nil, false
	}

	wiz := h.registry.Donation(store.SessionID())
	if wiz == nil {
		writeWizardNotStarted(w)
		return nil, false
	}
	return wiz, true
}
