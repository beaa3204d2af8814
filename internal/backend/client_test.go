package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pawhaven/pawgate/internal/model"
)

type staticTokens struct {
	token string
}

func (s *staticTokens) Token(ctx context.Context) string { return s.token }

func newTestClient(baseURL string, token string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(http.DefaultClient, baseURL, &staticTokens{token: token}, logger)
}

func TestClient_AttachesBearerTokenWhenPresent(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]model.Pet{})
	}))
	defer server.Close()

	c := newTestClient(server.URL, "token-1")
	if _, err := c.ListPets(context.Background(), model.PetFilter{}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotAuth != "Bearer token-1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer token-1")
	}
}

func TestClient_OmitsAuthorizationWhenTokenEmpty(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]model.Pet{})
	}))
	defer server.Close()

	c := newTestClient(server.URL, "")
	c.ListPets(context.Background(), model.PetFilter{})

	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestClient_UnauthorizedTriggersHookAndReturnsError(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := newTestClient(server.URL, "stale-token")
		hookStatus := 0
		c.OnUnauthorized(func(ctx context.Context, s int) {
			hookStatus = s
		})

		// どのエンドポイントからの401/403でも同じ無効化経路を通る
		_, err := c.GetUser(context.Background(), 1)
		if err == nil {
			t.Errorf("status %d: expected error", status)
		}
		if !IsStatus(err, status) {
			t.Errorf("status %d: IsStatus = false for %v", status, err)
		}
		if hookStatus != status {
			t.Errorf("status %d: hook received %d", status, hookStatus)
		}
		server.Close()
	}
}

func TestClient_UnauthorizedHook_FiresFromAnyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(server.URL, "stale-token")
	fired := 0
	c.OnUnauthorized(func(ctx context.Context, s int) { fired++ })

	ctx := context.Background()
	c.GetUser(ctx, 1)
	c.ListNotifications(ctx, 1)
	c.SubmitAdoption(ctx, 1, &model.AdoptionApplication{PetID: 2})
	c.CreateDonation(ctx, &model.User{ID: 1}, &model.Donation{Amount: 10})

	if fired != 4 {
		t.Errorf("hook fired %d times, want 4", fired)
	}
}

func TestClient_NetworkFailureReturnsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := newTestClient(server.URL, "")
	_, err := c.ListPets(context.Background(), model.PetFilter{})

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("expected NetworkError, got %v", err)
	}
}

func TestGetUserByEmail_NotFoundReturnsNilNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL, "token-1")
	user, err := c.GetUserByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestLoginUser_SendsUsernameKeyAndUnwrapsEnvelope(t *testing.T) {
	var gotPath string
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "Login successful",
			"user":    model.User{ID: 5, Email: "a@example.com", Name: "Alice"},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL, "")
	user, err := c.LoginUser(context.Background(), LoginRequest{Email: "a@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != 5 {
		t.Errorf("user.ID = %d, want 5", user.ID)
	}

	if gotPath != "/users/login" {
		t.Errorf("path = %q", gotPath)
	}
	// バックエンドはメールアドレスをusernameキーで受け取る
	if payload["username"] != "a@example.com" {
		t.Errorf("username = %v", payload["username"])
	}
	if _, ok := payload["email"]; ok {
		t.Error("email key should not be sent")
	}
}

func TestLoginUser_RejectedEnvelopeReturnsAuthError(t *testing.T) {
	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"SuccessFalse", map[string]interface{}{"success": false, "message": "Invalid credentials"}},
		{"ZeroUserID", map[string]interface{}{"success": true, "user": model.User{ID: 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.body)
			}))
			defer server.Close()

			c := newTestClient(server.URL, "")
			_, err := c.LoginUser(context.Background(), LoginRequest{Email: "a@example.com", Password: "bad"})

			var authErr *model.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthError, got %v", err)
			}
			if authErr.Reason != model.AuthReasonInvalidCredential {
				t.Errorf("Reason = %q", authErr.Reason)
			}
		})
	}
}

func TestClient_PathsFollowBackendControllers(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	c := newTestClient(server.URL, "")
	ctx := context.Background()

	cases := []struct {
		name string
		call func()
		want string
	}{
		{"ListDonations", func() { c.ListDonationsByUser(ctx, 7) }, "/payments/user/7"},
		{"ListAdoptions", func() { c.ListAdoptionsByUser(ctx, 7) }, "/adoption-applications/user/7"},
		{"ListNotifications", func() { c.ListNotifications(ctx, 7) }, "/notifications/user/7"},
		{"MarkAllRead", func() { c.MarkAllNotificationsRead(ctx, 7) }, "/notifications/user/7/read-all"},
		{"GetUserRole", func() { c.GetUserRole(ctx, 7) }, "/users/7"},
		{"GetUserByEmail", func() { c.GetUserByEmail(ctx, "a b@example.com") }, "/users/email/a b@example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.call()
			if gotPath != tc.want {
				t.Errorf("path = %q, want %q", gotPath, tc.want)
			}
		})
	}
}

func TestSubmitAdoption_SendsEntityReferences(t *testing.T) {
	var gotPath string
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(model.AdoptionApplication{PetID: 3})
	}))
	defer server.Close()

	c := newTestClient(server.URL, "token-1")
	_, err := c.SubmitAdoption(context.Background(), 9, &model.AdoptionApplication{
		PetID:        3,
		Reason:       "lifelong home",
		HousingType:  "house",
		HasOtherPets: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotPath != "/adoption-applications" {
		t.Errorf("path = %q", gotPath)
	}
	userRef, ok := payload["user"].(map[string]interface{})
	if !ok || userRef["id"] != float64(9) {
		t.Errorf("user reference = %v", payload["user"])
	}
	petRef, ok := payload["pet"].(map[string]interface{})
	if !ok || petRef["id"] != float64(3) {
		t.Errorf("pet reference = %v", payload["pet"])
	}
	if payload["applicationReason"] != "lifelong home" {
		t.Errorf("applicationReason = %v", payload["applicationReason"])
	}
	if payload["status"] != "PENDING" {
		t.Errorf("status = %v", payload["status"])
	}
}

func TestCreateDonation_PostsToPayments(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(model.Donation{TranID: "tran-1"})
	}))
	defer server.Close()

	c := newTestClient(server.URL, "token-1")
	_, err := c.CreateDonation(context.Background(), &model.User{ID: 1}, &model.Donation{Amount: 25})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotPath != "/payments" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestListPets_SendsFilterAsQueryParams(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode([]model.Pet{{ID: 1, Name: "Pochi"}})
	}))
	defer server.Close()

	c := newTestClient(server.URL, "")
	pets, err := c.ListPets(context.Background(), model.PetFilter{
		Species: "dog",
		Size:    "small",
		Query:   "friendly",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pets) != 1 || pets[0].Name != "Pochi" {
		t.Errorf("pets = %+v", pets)
	}

	if got := gotQuery["species"]; len(got) != 1 || got[0] != "dog" {
		t.Errorf("species = %v", got)
	}
	if got := gotQuery["q"]; len(got) != 1 || got[0] != "friendly" {
		t.Errorf("q = %v", got)
	}
	if _, ok := gotQuery["gender"]; ok {
		t.Error("empty filter fields should not be sent")
	}
}

func TestCreateDonation_SendsUserReference(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(model.Donation{TranID: "tran-1", Status: "completed"})
	}))
	defer server.Close()

	c := newTestClient(server.URL, "token-1")
	created, err := c.CreateDonation(context.Background(),
		&model.User{ID: 9, Email: "d@example.com", Name: "Donor"},
		&model.Donation{Amount: 50, Purpose: "shelter", TranID: "tran-1", Status: "completed", PaymentMethod: "card", Currency: "USD"},
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.TranID != "tran-1" {
		t.Errorf("TranID = %q", created.TranID)
	}

	userRef, ok := payload["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("user reference missing from payload: %v", payload)
	}
	if userRef["email"] != "d@example.com" {
		t.Errorf("user.email = %v", userRef["email"])
	}
	if payload["tranId"] != "tran-1" {
		t.Errorf("tranId = %v", payload["tranId"])
	}
}
