package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pawhaven/pawgate/internal/forms"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/session"
	"github.com/pawhaven/pawgate/internal/toast"
)

// mockAdoptionBackend はAdoptionBackendInterfaceのモック。
type mockAdoptionBackend struct {
	submitFunc func(ctx context.Context, userID int64, app *model.AdoptionApplication) (*model.AdoptionApplication, error)
	listFunc   func(ctx context.Context, userID int64) ([]model.AdoptionApplication, error)
}

func (m *mockAdoptionBackend) SubmitAdoption(ctx context.Context, userID int64, app *model.AdoptionApplication) (*model.AdoptionApplication, error) {
	return m.submitFunc(ctx, userID, app)
}

func (m *mockAdoptionBackend) ListAdoptionsByUser(ctx context.Context, userID int64) ([]model.AdoptionApplication, error) {
	return m.listFunc(ctx, userID)
}

// mockInvalidator はCatalogInvalidatorのモック。
type mockInvalidator struct {
	invalidated []int64
}

func (m *mockInvalidator) Invalidate(id int64) {
	m.invalidated = append(m.invalidated, id)
}

func newAdoptionHandler(backend *mockAdoptionBackend, catalog *mockCatalog, invalidator *mockInvalidator, toasts *toast.Center) (*AdoptionHandler, *forms.Registry) {
	registry := forms.NewRegistry()
	if toasts == nil {
		toasts = toast.NewCenter()
	}
	return NewAdoptionHandler(backend, catalog, invalidator, registry, toasts), registry
}

func reconcileTestStore(t *testing.T, store *session.Store, userID int64) {
	t.Helper()
	store.SetProviderProfile(&model.ProviderProfile{UID: "uid-1", Email: "taro@example.com"})
	if err := store.SetApplicationUser(context.Background(), &model.User{ID: userID, Email: "taro@example.com"}); err != nil {
		t.Fatalf("failed to set application user: %v", err)
	}
}

func TestAdoptionHandler_Start_UnknownPet_ReturnsNotFound(t *testing.T) {
	store := newTestStore("sess-ad-start")
	catalog := &mockCatalog{
		getPetFunc: func(ctx context.Context, id int64) (*model.Pet, error) { return nil, nil },
	}
	h, _ := newAdoptionHandler(&mockAdoptionBackend{}, catalog, &mockInvalidator{}, nil)

	body, _ := json.Marshal(startAdoptionRequest{PetID: 9})
	req := requestWithStore(http.MethodPost, "/api/adoptions/wizard", body, store)
	rec := httptest.NewRecorder()

	h.Start(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestAdoptionHandler_Next_InvalidStep_ReturnsValidationDetails(t *testing.T) {
	store := newTestStore("sess-ad-next")
	catalog := &mockCatalog{
		getPetFunc: func(ctx context.Context, id int64) (*model.Pet, error) {
			return &model.Pet{ID: id, Name: "Pochi"}, nil
		},
	}
	h, _ := newAdoptionHandler(&mockAdoptionBackend{}, catalog, &mockInvalidator{}, nil)

	body, _ := json.Marshal(startAdoptionRequest{PetID: 1})
	req := requestWithStore(http.MethodPost, "/api/adoptions/wizard", body, store)
	h.Start(httptest.NewRecorder(), req)

	// 入力なしで次へ進もうとする
	req = requestWithStore(http.MethodPost, "/api/adoptions/wizard/next", nil, store)
	rec := httptest.NewRecorder()
	h.Next(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rec.Code)
	}

	var resp validationErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeInvalidForm {
		t.Errorf("expected code %s, got %s", model.ErrCodeInvalidForm, resp.Code)
	}
	if resp.Step != "applicant" {
		t.Errorf("expected step applicant, got %s", resp.Step)
	}
	if len(resp.Fields) == 0 {
		t.Error("expected field errors in response")
	}
}

func TestAdoptionHandler_Submit_NotReconciled_ReturnsUnauthorized(t *testing.T) {
	store := newTestStore("sess-ad-unrec")
	store.SetProviderProfile(&model.ProviderProfile{UID: "uid-1", Email: "taro@example.com"})
	catalog := &mockCatalog{
		getPetFunc: func(ctx context.Context, id int64) (*model.Pet, error) {
			return &model.Pet{ID: id, Name: "Pochi"}, nil
		},
	}
	h, _ := newAdoptionHandler(&mockAdoptionBackend{}, catalog, &mockInvalidator{}, nil)

	body, _ := json.Marshal(startAdoptionRequest{PetID: 1})
	h.Start(httptest.NewRecorder(), requestWithStore(http.MethodPost, "/api/adoptions/wizard", body, store))

	rec := httptest.NewRecorder()
	h.Submit(rec, requestWithStore(http.MethodPost, "/api/adoptions/wizard/submit", nil, store))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestAdoptionHandler_Submit_FullFlow(t *testing.T) {
	store := newTestStore("sess-ad-flow")
	reconcileTestStore(t, store, 42)

	var submittedUserID int64
	var submittedApp *model.AdoptionApplication
	backend := &mockAdoptionBackend{
		submitFunc: func(ctx context.Context, userID int64, app *model.AdoptionApplication) (*model.AdoptionApplication, error) {
			submittedUserID = userID
			submittedApp = app
			return app, nil
		},
	}
	catalog := &mockCatalog{
		getPetFunc: func(ctx context.Context, id int64) (*model.Pet, error) {
			return &model.Pet{ID: id, Name: "Pochi"}, nil
		},
	}
	invalidator := &mockInvalidator{}
	toasts := toast.NewCenter()
	h, registry := newAdoptionHandler(backend, catalog, invalidator, toasts)

	body, _ := json.Marshal(startAdoptionRequest{PetID: 7})
	h.Start(httptest.NewRecorder(), requestWithStore(http.MethodPost, "/api/adoptions/wizard", body, store))

	// ステップ1: 申請者情報
	data, _ := json.Marshal(forms.AdoptionData{
		ApplicantName: "山田太郎",
		Phone:         "090-1234-5678",
		Address:       "東京都渋谷区1-2-3",
	})
	h.Update(httptest.NewRecorder(), requestWithStore(http.MethodPut, "/api/adoptions/wizard", data, store))
	h.Next(httptest.NewRecorder(), requestWithStore(http.MethodPost, "/api/adoptions/wizard/next", nil, store))

	// ステップ2: 住環境
	data, _ = json.Marshal(forms.AdoptionData{HousingType: "house", ExperienceYears: 3})
	h.Update(httptest.NewRecorder(), requestWithStore(http.MethodPut, "/api/adoptions/wizard", data, store))
	h.Next(httptest.NewRecorder(), requestWithStore(http.MethodPost, "/api/adoptions/wizard/next", nil, store))

	// ステップ3: 動機
	data, _ = json.Marshal(forms.AdoptionData{Reason: "家族みんなで犬を迎える準備ができています。"})
	h.Update(httptest.NewRecorder(), requestWithStore(http.MethodPut, "/api/adoptions/wizard", data, store))

	rec := httptest.NewRecorder()
	h.Submit(rec, requestWithStore(http.MethodPost, "/api/adoptions/wizard/submit", nil, store))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if submittedUserID != 42 {
		t.Errorf("expected backend user id 42, got %d", submittedUserID)
	}
	if submittedApp == nil || submittedApp.PetID != 7 {
		t.Errorf("unexpected submitted application: %+v", submittedApp)
	}
	if registry.Adoption("sess-ad-flow") != nil {
		t.Error("expected wizard to be finished after submit")
	}
	if len(invalidator.invalidated) != 1 || invalidator.invalidated[0] != 7 {
		t.Errorf("expected pet 7 cache invalidation, got %v", invalidator.invalidated)
	}
	if toastList := toasts.Drain("sess-ad-flow"); len(toastList) != 1 || toastList[0].Level != toast.LevelSuccess {
		t.Errorf("expected success toast, got %v", toastList)
	}
}

func TestAdoptionHandler_Get_NoWizard_ReturnsNotFound(t *testing.T) {
	store := newTestStore("sess-ad-none")
	h, _ := newAdoptionHandler(&mockAdoptionBackend{}, &mockCatalog{}, &mockInvalidator{}, nil)

	rec := httptest.NewRecorder()
	h.Get(rec, requestWithStore(http.MethodGet, "/api/adoptions/wizard", nil, store))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestAdoptionHandler_List_ReturnsBackendApplications(t *testing.T) {
	store := newTestStore("sess-ad-list")
	reconcileTestStore(t, store, 5)

	backend := &mockAdoptionBackend{
		listFunc: func(ctx context.Context, userID int64) ([]model.AdoptionApplication, error) {
			if userID != 5 {
				t.Errorf("expected user id 5, got %d", userID)
			}
			return []model.AdoptionApplication{{PetID: 1, ApplicantName: "山田太郎"}}, nil
		},
	}
	h, _ := newAdoptionHandler(backend, &mockCatalog{}, &mockInvalidator{}, nil)

	rec := httptest.NewRecorder()
	h.List(rec, requestWithStore(http.MethodGet, "/api/adoptions", nil, store))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var apps []model.AdoptionApplication
	if err := json.Unmarshal(rec.Body.Bytes(), &apps); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(apps) != 1 || apps[0].PetID != 1 {
		t.Errorf("unexpected applications: %+v", apps)
	}
}
