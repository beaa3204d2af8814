// Package idp は外部IDプロバイダーとの連携を提供する。
// パスワード認証・OAuthコードフロー・パスワードリセットのREST呼び出しと、
// 認証状態変化の通知プリミティブを含む。
package idp

import (
	"context"
	"time"

	"github.com/pawhaven/pawgate/internal/model"
)

// Credential はIDプロバイダーが発行した認証結果を表す。
// IDTokenはJWTであり、バックエンドへのBearer credentialとして使用される。
type Credential struct {
	Profile      *model.ProviderProfile
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Provider はIDプロバイダーのインターフェース。
// 将来的に複数IdPに対応するための抽象化。
type Provider interface {
	// SignInWithPassword はメールアドレスとパスワードでサインインする。
	// 失敗時はmodel.AuthErrorを返す。
	SignInWithPassword(ctx context.Context, email, password string) (*Credential, error)

	// RegisterWithPassword は新規アカウントを作成しサインインする。
	RegisterWithPassword(ctx context.Context, email, password string) (*Credential, error)

	// SignOut はプロバイダー側のリフレッシュトークンを失効させる。
	// ベストエフォート。失敗してもローカルのセッション破棄は続行される。
	SignOut(ctx context.Context, refreshToken string) error

	// SendPasswordReset はパスワードリセットメールの送信を要求する。
	SendPasswordReset(ctx context.Context, email string) error

	// OAuthLoginURL はOAuth認可URLを生成する。
	// ポップアップサインインのサーバーサイド版。
	OAuthLoginURL(state string) string

	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*Credential, error)
}
