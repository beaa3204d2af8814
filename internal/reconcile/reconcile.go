// Package reconcile はプロバイダ身元とアプリケーションユーザーの照合を行う。
// プロバイダでの認証成功はアプリケーション機能の利用条件を満たさない。
// メールアドレスでアプリケーションユーザーを解決できたときだけ完全な認証となる。
package reconcile

import (
	"context"
	"log/slog"

	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/session"
)

// UserFetcher はメールアドレスによるユーザー検索を提供する。
// 見つからない場合は (nil, nil) を返す。
type UserFetcher interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// RoleFetcher はユーザーIDによるロールの検索を提供する。
// ロールを欠いたユーザーレコードの補完にのみ使われる。
type RoleFetcher interface {
	GetUserRole(ctx context.Context, id int64) (model.UserRole, error)
}

// Run はストアのプロバイダ身元をアプリケーションユーザーと照合する。
// すでに照合済みなら何もしない。ユーザーが見つからない、または検索に
// 失敗した場合、ストアは ProviderOnly のまま残る。照合の失敗自体は
// エラーではないため、検索エラーのみを返す。
func Run(ctx context.Context, store *session.Store, fetcher UserFetcher) error {
	if store.User() != nil {
		return nil
	}

	profile := store.Profile()
	if profile == nil || profile.Email == "" {
		return nil
	}

	user, err := fetcher.GetUserByEmail(ctx, profile.Email)
	if err != nil {
		slog.Warn("user lookup failed during reconciliation",
			slog.String("email", profile.Email),
			slog.String("error", err.Error()),
		)
		return err
	}
	if user == nil {
		slog.Info("provider identity has no application user",
			slog.String("email", profile.Email),
		)
		return nil
	}

	if user.Role == "" {
		if roles, ok := fetcher.(RoleFetcher); ok {
			role, err := roles.GetUserRole(ctx, user.ID)
			if err != nil {
				slog.Warn("role lookup failed during reconciliation",
					slog.Int64("user_id", user.ID),
					slog.String("error", err.Error()),
				)
			} else {
				user.Role = role
			}
		}
	}

	return store.SetApplicationUser(ctx, user)
}

// RequireReconciled は操作の実行前に完全な認証を要求する。
// 照合済みならアプリケーションユーザーIDを返す。
func RequireReconciled(store *session.Store) (int64, error) {
	user := store.User()
	if user != nil && user.ID != 0 {
		return user.ID, nil
	}

	email := ""
	if profile := store.Profile(); profile != nil {
		email = profile.Email
	}
	return 0, &model.IdentityNotReconciledError{Email: email}
}
