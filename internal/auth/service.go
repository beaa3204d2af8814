// Package auth は認証フローの編成を提供する。
// 身元プロバイダでの認証とアプリケーションユーザーの照合を
// ひとつの操作に束ね、セッションストアへ状態を反映する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pawhaven/pawgate/internal/backend"
	"github.com/pawhaven/pawgate/internal/idp"
	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/reconcile"
	"github.com/pawhaven/pawgate/internal/session"
)

// Backend は認証フローが必要とするアプリケーションAPIの操作。
type Backend interface {
	reconcile.UserFetcher
	RegisterUser(ctx context.Context, req backend.RegisterUserRequest) (*model.User, error)
	LoginUser(ctx context.Context, req backend.LoginRequest) (*model.User, error)
}

// MetricsSink はサインイン結果の計測を受け取る。
type MetricsSink interface {
	RecordSignIn(method string, outcome string)
	RecordReconciliation(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSignIn(string, string) {}
func (nopMetrics) RecordReconciliation(string) {}

// Service は認証フローのオーケストレーター。
type Service struct {
	provider idp.Provider
	backend  Backend
	notifier *idp.StateNotifier
	metrics  MetricsSink
	logger   *slog.Logger
}

func NewService(provider idp.Provider, b Backend, notifier *idp.StateNotifier, metrics MetricsSink, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if notifier == nil {
		notifier = idp.NewStateNotifier()
	}
	return &Service{
		provider: provider,
		backend:  b,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Notifier は認証状態変化の通知器を返す。
func (s *Service) Notifier() *idp.StateNotifier {
	return s.notifier
}

// Login はメールとパスワードでサインインし、アプリケーションユーザーと
// 照合する。照合に失敗してもプロバイダ認証が成功していればエラーに
// ならず、ストアは ProviderOnly のまま返る。
func (s *Service) Login(ctx context.Context, store *session.Store, email, password string) (session.Snapshot, error) {
	cred, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.metrics.RecordSignIn("password", "failure")
		return store.Snapshot(), err
	}

	snap, err := s.adoptCredential(ctx, store, cred)
	if err != nil {
		s.metrics.RecordSignIn("password", "failure")
		return snap, err
	}

	s.metrics.RecordSignIn("password", "success")
	return snap, nil
}

// Register はプロバイダとアプリケーションの両方にユーザーを作成する。
// 両方が成功したときだけ Reconciled で返る。
func (s *Service) Register(ctx context.Context, store *session.Store, name, email, password, address string) (session.Snapshot, error) {
	cred, err := s.provider.RegisterWithPassword(ctx, email, password)
	if err != nil {
		s.metrics.RecordSignIn("register", "failure")
		return store.Snapshot(), err
	}

	store.SetProviderProfile(cred.Profile)
	store.SetRefreshToken(cred.RefreshToken)
	if err := store.SetToken(ctx, cred.IDToken); err != nil {
		return store.Snapshot(), err
	}

	user, err := s.backend.RegisterUser(ctx, backend.RegisterUserRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Address:  address,
	})
	if err != nil {
		// プロバイダ登録は成立している。アプリケーション側の作成失敗は
		// ProviderOnly として残し、後続の照合または再登録に委ねる。
		s.logger.Warn("application user creation failed after provider registration",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordSignIn("register", "partial")
		s.notifier.Publish(cred.Profile)
		return store.Snapshot(), err
	}

	if err := store.SetApplicationUser(ctx, user); err != nil {
		return store.Snapshot(), err
	}

	s.metrics.RecordSignIn("register", "success")
	s.notifier.Publish(cred.Profile)
	return store.Snapshot(), nil
}

// OAuthLoginURL は外部プロバイダの認可URLを返す。
func (s *Service) OAuthLoginURL(state string) string {
	return s.provider.OAuthLoginURL(state)
}

// LoginWithProvider はOAuthコールバックの認可コードを資格情報に交換し、
// アプリケーションユーザーと照合する。
func (s *Service) LoginWithProvider(ctx context.Context, store *session.Store, code string) (session.Snapshot, error) {
	cred, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordSignIn("oauth", "failure")
		return store.Snapshot(), err
	}

	snap, err := s.adoptCredential(ctx, store, cred)
	if err != nil {
		s.metrics.RecordSignIn("oauth", "failure")
		return snap, err
	}

	s.metrics.RecordSignIn("oauth", "success")
	return snap, nil
}

// LoginWithBackend はアプリケーションAPIの資格情報で直接認証する。
// プロバイダ経由の照合が成立しない場合の明示的なフォールバック。
func (s *Service) LoginWithBackend(ctx context.Context, store *session.Store, email, password string) (session.Snapshot, error) {
	user, err := s.backend.LoginUser(ctx, backend.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.metrics.RecordSignIn("backend", "failure")
		return store.Snapshot(), err
	}

	if err := store.SetApplicationUser(ctx, user); err != nil {
		return store.Snapshot(), err
	}

	s.metrics.RecordSignIn("backend", "success")
	return store.Snapshot(), nil
}

// Logout はプロバイダ側の資格情報を失効させ、ストアを完全に初期化する。
// プロバイダ側の失効失敗はログアウト自体を妨げない。
func (s *Service) Logout(ctx context.Context, store *session.Store) error {
	if refreshToken := store.RefreshToken(); refreshToken != "" {
		if err := s.provider.SignOut(ctx, refreshToken); err != nil {
			s.logger.Warn("provider sign-out failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}

	s.notifier.Publish(nil)
	return nil
}

// ResetPassword はパスワード再設定メールの送信を依頼する。
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	return s.provider.SendPasswordReset(ctx, email)
}

// RestoreSession は永続化された状態からセッションを復元する。
// トークンが失効・破損している場合は全状態を破棄して未認証とする。
// この関数が返った時点で状態は必ず確定している。
func (s *Service) RestoreSession(ctx context.Context, store *session.Store) (session.Snapshot, error) {
	if err := store.Hydrate(ctx); err != nil {
		return store.Snapshot(), err
	}

	token := store.Token()
	if token == "" {
		// トークンがなくても復元済みユーザーだけでセッションは成立する
		store.MarkResolved()
		if user := store.User(); user != nil {
			s.notifier.Publish(&model.ProviderProfile{Email: user.Email, DisplayName: user.Name})
		} else {
			s.notifier.Publish(nil)
		}
		return store.Snapshot(), nil
	}

	profile := idp.RestoreProfile(token, time.Now())
	if profile == nil {
		s.logger.Info("persisted token is stale, discarding session state",
			slog.String("session_id", store.SessionID()),
		)
		if err := store.Clear(ctx); err != nil {
			return store.Snapshot(), err
		}
		s.notifier.Publish(nil)
		return store.Snapshot(), nil
	}

	store.SetProviderProfile(profile)
	if store.User() == nil {
		if err := reconcile.Run(ctx, store, s.backend); err != nil {
			// 照合失敗は復元を妨げない。ProviderOnly のまま確定する。
			s.metrics.RecordReconciliation("error")
		}
	}

	store.MarkResolved()
	s.notifier.Publish(profile)
	return store.Snapshot(), nil
}

// adoptCredential はプロバイダ資格情報をストアへ反映し、照合を試みる。
func (s *Service) adoptCredential(ctx context.Context, store *session.Store, cred *idp.Credential) (session.Snapshot, error) {
	store.SetProviderProfile(cred.Profile)
	store.SetRefreshToken(cred.RefreshToken)
	if err := store.SetToken(ctx, cred.IDToken); err != nil {
		return store.Snapshot(), err
	}

	if err := reconcile.Run(ctx, store, s.backend); err != nil {
		s.metrics.RecordReconciliation("error")
	} else if store.User() != nil {
		s.metrics.RecordReconciliation("reconciled")
	} else {
		s.metrics.RecordReconciliation("unmatched")
	}

	s.notifier.Publish(cred.Profile)
	return store.Snapshot(), nil
}
