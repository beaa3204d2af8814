package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pawhaven/pawgate/internal/forms"
	"github.com/pawhaven/pawgate/internal/middleware"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/repository"
	"github.com/pawhaven/pawgate/internal/security"
	"github.com/pawhaven/pawgate/internal/session"
	"github.com/pawhaven/pawgate/internal/toast"
)

// fakeSessionRepo はSessionRepositoryのメモリ実装。
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id], nil
}

func (r *fakeSessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// fakeRestorer はセッションを未認証として即解決する。
type fakeRestorer struct{}

func (fakeRestorer) RestoreSession(ctx context.Context, store *session.Store) (session.Snapshot, error) {
	store.MarkResolved()
	return store.Snapshot(), nil
}

// fullBackend はウィザード系バックエンドの合成モック。
type fullBackend struct {
	mockAdoptionBackend
	mockDonationBackend
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	manager := session.NewManager(newFakeSessionRepo(), repository.NewMemoryLocalStore(), time.Hour, nil)
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	deps := &RouterDeps{
		SessionManager:    manager,
		SessionRestorer:   fakeRestorer{},
		SessionConfig:     middleware.SessionConfig{MaxAge: 3600},
		CSRFConfig:        middleware.CSRFConfig{},
		CORSAllowedOrigin: "https://pawhaven.example.com",
		RateLimiter:       rl,
		Logger:            logger,

		AuthService: &mockAuthService{},
		AuthConfig:  AuthHandlerConfig{BaseURL: "https://pawhaven.example.com"},

		Catalog: &mockCatalog{
			listPetsFunc: func(ctx context.Context, filter model.PetFilter) ([]model.Pet, error) {
				return []model.Pet{{ID: 1, Name: "Pochi"}}, nil
			},
			getPetFunc: func(ctx context.Context, id int64) (*model.Pet, error) {
				return &model.Pet{ID: id, Name: "Pochi"}, nil
			},
		},
		Invalidator: &mockInvalidator{},
		Sanitizer:   security.NewDescriptionSanitizer(),

		AdoptionBackend: &fullBackend{},
		FormRegistry:    forms.NewRegistry(),
		Toasts:          toast.NewCenter(),

		ProfileBackend: &mockProfileBackend{},
		ImageGuard:     &mockImageGuard{},
		ImageUploader:  &mockUploader{},

		NotificationBackend: &mockNotificationBackend{},
	}

	return NewRouter(deps)
}

func TestNewRouter_PublicPetListing_AccessibleWithoutLogin(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/pets", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewRouter_IssuesSessionCookieOnFirstRequest(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/pets", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	found := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "pawgate_sid" && cookie.Value != "" {
			found = true
			if !cookie.HttpOnly {
				t.Error("expected session cookie to be HttpOnly")
			}
		}
	}
	if !found {
		t.Error("expected session cookie to be issued")
	}
}

func TestNewRouter_ProtectedRoute_UnauthenticatedReturns401(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/adoptions/wizard", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewRouter_StateChangingRequest_WithoutCSRFTokenReturns403(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/watchlist", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewRouter_CSRFTokenEndpoint_ReturnsToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	found := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "csrf_token" && cookie.Value != "" {
			found = true
			if cookie.HttpOnly {
				t.Error("expected csrf cookie to be readable from JavaScript")
			}
		}
	}
	if !found {
		t.Error("expected csrf token cookie to be set")
	}
}

func TestNewRouter_SessionReusedAcrossRequests(t *testing.T) {
	router := newTestRouter(t)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/pets", nil))

	var sessionCookie *http.Cookie
	for _, cookie := range first.Result().Cookies() {
		if cookie.Name == "pawgate_sid" {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session cookie on first request")
	}

	second := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/pets", nil)
	req.AddCookie(sessionCookie)
	router.ServeHTTP(second, req)

	for _, cookie := range second.Result().Cookies() {
		if cookie.Name == "pawgate_sid" && cookie.Value != sessionCookie.Value {
			t.Error("expected existing session to be reused, got a new cookie")
		}
	}
}
