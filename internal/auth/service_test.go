package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pawhaven/pawgate/internal/backend"
	"github.com/pawhaven/pawgate/internal/idp"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/repository"
	"github.com/pawhaven/pawgate/internal/session"
)

type mockProvider struct {
	signInFunc       func(ctx context.Context, email, password string) (*idp.Credential, error)
	registerFunc     func(ctx context.Context, email, password string) (*idp.Credential, error)
	signOutFunc      func(ctx context.Context, refreshToken string) error
	resetFunc        func(ctx context.Context, email string) error
	exchangeCodeFunc func(ctx context.Context, code string) (*idp.Credential, error)
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*idp.Credential, error) {
	return m.signInFunc(ctx, email, password)
}

func (m *mockProvider) RegisterWithPassword(ctx context.Context, email, password string) (*idp.Credential, error) {
	return m.registerFunc(ctx, email, password)
}

func (m *mockProvider) SignOut(ctx context.Context, refreshToken string) error {
	if m.signOutFunc != nil {
		return m.signOutFunc(ctx, refreshToken)
	}
	return nil
}

func (m *mockProvider) SendPasswordReset(ctx context.Context, email string) error {
	if m.resetFunc != nil {
		return m.resetFunc(ctx, email)
	}
	return nil
}

func (m *mockProvider) OAuthLoginURL(state string) string {
	return "https://provider.example.com/authorize?state=" + state
}

func (m *mockProvider) ExchangeCode(ctx context.Context, code string) (*idp.Credential, error) {
	return m.exchangeCodeFunc(ctx, code)
}

type mockBackend struct {
	getUserByEmailFunc func(ctx context.Context, email string) (*model.User, error)
	registerUserFunc   func(ctx context.Context, req backend.RegisterUserRequest) (*model.User, error)
	loginUserFunc      func(ctx context.Context, req backend.LoginRequest) (*model.User, error)
}

func (m *mockBackend) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getUserByEmailFunc != nil {
		return m.getUserByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockBackend) RegisterUser(ctx context.Context, req backend.RegisterUserRequest) (*model.User, error) {
	return m.registerUserFunc(ctx, req)
}

func (m *mockBackend) LoginUser(ctx context.Context, req backend.LoginRequest) (*model.User, error) {
	return m.loginUserFunc(ctx, req)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore() *session.Store {
	return session.NewStore("sess-1", repository.NewMemoryLocalStore(), nil)
}

func testCredential(email string) *idp.Credential {
	return &idp.Credential{
		Profile:      &model.ProviderProfile{UID: "uid-1", Email: email},
		IDToken:      "id-token-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestLogin_ReconciledWhenBackendUserExists(t *testing.T) {
	provider := &mockProvider{
		signInFunc: func(ctx context.Context, email, password string) (*idp.Credential, error) {
			return testCredential(email), nil
		},
	}
	b := &mockBackend{
		getUserByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: 42, Email: email}, nil
		},
	}
	svc := NewService(provider, b, nil, nil, testLogger())
	store := newTestStore()

	snap, err := svc.Login(context.Background(), store, "a@example.com", "pw")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Phase != session.PhaseReconciled {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseReconciled)
	}
	if store.Token() != "id-token-1" {
		t.Errorf("Token = %q", store.Token())
	}
	if store.RefreshToken() != "refresh-1" {
		t.Errorf("RefreshToken = %q", store.RefreshToken())
	}
}

func TestLogin_ProviderOnlyWhenNoBackendUser(t *testing.T) {
	provider := &mockProvider{
		signInFunc: func(ctx context.Context, email, password string) (*idp.Credential, error) {
			return testCredential(email), nil
		},
	}
	svc := NewService(provider, &mockBackend{}, nil, nil, testLogger())
	store := newTestStore()

	snap, err := svc.Login(context.Background(), store, "a@example.com", "pw")
	if err != nil {
		t.Fatalf("unmatched identity must not be a login error: %v", err)
	}
	if snap.Phase != session.PhaseProviderOnly {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseProviderOnly)
	}
}

func TestLogin_ProviderFailurePropagates(t *testing.T) {
	provider := &mockProvider{
		signInFunc: func(ctx context.Context, email, password string) (*idp.Credential, error) {
			return nil, &model.AuthError{Reason: model.AuthReasonInvalidCredential}
		},
	}
	svc := NewService(provider, &mockBackend{}, nil, nil, testLogger())
	store := newTestStore()

	_, err := svc.Login(context.Background(), store, "a@example.com", "wrong")
	var authErr *model.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if store.Token() != "" {
		t.Error("failed login must not leave a token behind")
	}
}

func TestRegister_CreatesBothIdentities(t *testing.T) {
	provider := &mockProvider{
		registerFunc: func(ctx context.Context, email, password string) (*idp.Credential, error) {
			return testCredential(email), nil
		},
	}
	var registered backend.RegisterUserRequest
	b := &mockBackend{
		registerUserFunc: func(ctx context.Context, req backend.RegisterUserRequest) (*model.User, error) {
			registered = req
			return &model.User{ID: 9, Email: req.Email, Name: req.Name}, nil
		},
	}
	svc := NewService(provider, b, nil, nil, testLogger())
	store := newTestStore()

	snap, err := svc.Register(context.Background(), store, "Hana", "hana@example.com", "pw", "Tokyo")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Phase != session.PhaseReconciled {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseReconciled)
	}
	if registered.Name != "Hana" || registered.Address != "Tokyo" {
		t.Errorf("registered = %+v", registered)
	}
}

func TestRegister_BackendFailureLeavesProviderOnly(t *testing.T) {
	provider := &mockProvider{
		registerFunc: func(ctx context.Context, email, password string) (*idp.Credential, error) {
			return testCredential(email), nil
		},
	}
	b := &mockBackend{
		registerUserFunc: func(ctx context.Context, req backend.RegisterUserRequest) (*model.User, error) {
			return nil, errors.New("backend down")
		},
	}
	svc := NewService(provider, b, nil, nil, testLogger())
	store := newTestStore()

	snap, err := svc.Register(context.Background(), store, "Hana", "hana@example.com", "pw", "")
	if err == nil {
		t.Error("expected backend error to propagate")
	}
	if snap.Phase != session.PhaseProviderOnly {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseProviderOnly)
	}
}

func TestLoginWithBackend_Reconciles(t *testing.T) {
	b := &mockBackend{
		loginUserFunc: func(ctx context.Context, req backend.LoginRequest) (*model.User, error) {
			return &model.User{ID: 3, Email: req.Email}, nil
		},
	}
	svc := NewService(&mockProvider{}, b, nil, nil, testLogger())
	store := newTestStore()

	snap, err := svc.LoginWithBackend(context.Background(), store, "a@example.com", "pw")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Phase != session.PhaseReconciled {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseReconciled)
	}
}

func TestLogout_RevokesAndClears(t *testing.T) {
	revoked := ""
	provider := &mockProvider{
		signInFunc: func(ctx context.Context, email, password string) (*idp.Credential, error) {
			return testCredential(email), nil
		},
		signOutFunc: func(ctx context.Context, refreshToken string) error {
			revoked = refreshToken
			return nil
		},
	}
	svc := NewService(provider, &mockBackend{}, nil, nil, testLogger())
	store := newTestStore()
	svc.Login(context.Background(), store, "a@example.com", "pw")

	if err := svc.Logout(context.Background(), store); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if revoked != "refresh-1" {
		t.Errorf("revoked = %q", revoked)
	}
	if store.Phase() != session.PhaseUnauthenticated {
		t.Errorf("Phase = %q", store.Phase())
	}
}

func TestLogout_ProviderFailureStillClears(t *testing.T) {
	provider := &mockProvider{
		signInFunc: func(ctx context.Context, email, password string) (*idp.Credential, error) {
			return testCredential(email), nil
		},
		signOutFunc: func(ctx context.Context, refreshToken string) error {
			return errors.New("revocation endpoint down")
		},
	}
	svc := NewService(provider, &mockBackend{}, nil, nil, testLogger())
	store := newTestStore()
	svc.Login(context.Background(), store, "a@example.com", "pw")

	if err := svc.Logout(context.Background(), store); err != nil {
		t.Fatalf("logout must succeed despite provider failure: %v", err)
	}
	if store.Phase() != session.PhaseUnauthenticated {
		t.Errorf("Phase = %q", store.Phase())
	}
}

func signedToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "uid-1",
		"email": email,
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestRestoreSession_ValidTokenReconciles(t *testing.T) {
	b := &mockBackend{
		getUserByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: 5, Email: email}, nil
		},
	}
	svc := NewService(&mockProvider{}, b, nil, nil, testLogger())
	store := newTestStore()
	store.SetToken(context.Background(), signedToken(t, "a@example.com", time.Now().Add(time.Hour)))

	snap, err := svc.RestoreSession(context.Background(), store)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Phase != session.PhaseReconciled {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseReconciled)
	}
}

func TestRestoreSession_ExpiredTokenClearsState(t *testing.T) {
	svc := NewService(&mockProvider{}, &mockBackend{}, nil, nil, testLogger())
	store := newTestStore()
	ctx := context.Background()
	store.SetToken(ctx, signedToken(t, "a@example.com", time.Now().Add(-time.Hour)))

	snap, err := svc.RestoreSession(ctx, store)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Phase != session.PhaseUnauthenticated {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseUnauthenticated)
	}
	if store.Token() != "" {
		t.Error("stale token should be discarded")
	}
}

func TestRestoreSession_NoToken_ResolvesUnauthenticated(t *testing.T) {
	svc := NewService(&mockProvider{}, &mockBackend{}, nil, nil, testLogger())
	store := newTestStore()

	snap, err := svc.RestoreSession(context.Background(), store)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Phase != session.PhaseUnauthenticated {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseUnauthenticated)
	}
}

func TestRestoreSession_PersistedUserWithoutToken_Reconciled(t *testing.T) {
	ctx := context.Background()
	local := repository.NewMemoryLocalStore()
	local.Set(ctx, "sess-1", session.KeyUser, `{"id":7,"name":"Hana","email":"hana@example.com","role":"USER"}`)
	store := session.NewStore("sess-1", local, nil)

	notifier := idp.NewStateNotifier()
	var published *model.ProviderProfile
	notifier.Subscribe(func(p *model.ProviderProfile) { published = p })

	svc := NewService(&mockProvider{}, &mockBackend{}, notifier, nil, testLogger())
	snap, err := svc.RestoreSession(ctx, store)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Phase != session.PhaseReconciled {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseReconciled)
	}
	if published == nil || published.Email != "hana@example.com" {
		t.Errorf("published = %+v, want profile for hana@example.com", published)
	}
}

func TestRestoreSession_BackendDown_ProviderOnly(t *testing.T) {
	b := &mockBackend{
		getUserByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return nil, errors.New("backend down")
		},
	}
	svc := NewService(&mockProvider{}, b, nil, nil, testLogger())
	store := newTestStore()
	ctx := context.Background()
	store.SetToken(ctx, signedToken(t, "a@example.com", time.Now().Add(time.Hour)))

	snap, err := svc.RestoreSession(ctx, store)
	if err != nil {
		t.Fatalf("restore must resolve even when the backend is down: %v", err)
	}
	if snap.Phase != session.PhaseProviderOnly {
		t.Errorf("Phase = %q, want %q", snap.Phase, session.PhaseProviderOnly)
	}
}
