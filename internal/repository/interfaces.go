// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/pawhaven/pawgate/internal/model"
)

// ErrNotFound はキーが存在しないことを表すセンチネルエラー。
// 破損データ・未設定データはすべてこのエラーに正規化される。
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "entry not found" }

// IsNotFound はエラーがErrNotFoundかどうかを判定する。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// SessionRepository はブラウザセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	// 関連するlocal_entriesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// LocalStore はブラウザのlocalStorageに相当するセッション単位の
// キー/バリュー永続化インターフェース。値はJSON文字列をそのまま保持する。
type LocalStore interface {
	// Get は指定キーの値を取得する。存在しない場合はErrNotFoundを返す。
	Get(ctx context.Context, sessionID, key string) (string, error)
	// Set は指定キーの値を設定する。既存キーは上書きする。
	Set(ctx context.Context, sessionID, key, value string) error
	// Remove は指定キーを削除する。存在しないキーの削除はエラーにならない。
	Remove(ctx context.Context, sessionID, key string) error
	// RemoveAll は指定セッションの全キーを削除する。
	RemoveAll(ctx context.Context, sessionID string) error
}
