// Package model はドメインモデルを定義する。
package model

import "time"

// UserRole はバックエンドが発行するユーザーロール。
type UserRole string

const (
	// RoleUser は一般ユーザー。
	RoleUser UserRole = "USER"
	// RoleAdmin は管理者。
	RoleAdmin UserRole = "ADMIN"
	// RoleModerator はモデレーター。
	RoleModerator UserRole = "MODERATOR"
)

// User はバックエンドのユーザーテーブルに対応するレコードを表す。
// IDはバックエンドが採番する数値IDであり、寄付・譲渡申請など
// すべてのドメイン操作の外部キーとして使用される。
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         UserRole  `json:"role"`
	Address      string    `json:"address,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

// ProviderProfile は外部IDプロバイダーが返す生のプロフィールを表す。
// UIDはプロバイダーが採番する不透明な文字列IDであり、
// バックエンドの数値IDの代わりに使ってはならない。
type ProviderProfile struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Session はブラウザセッションのレコードを表す。
// どのユーザーにも紐付いていない匿名セッションも存在する。
type Session struct {
	ID        string
	ExpiresAt time.Time
	CreatedAt time.Time
}
