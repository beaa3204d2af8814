package idp

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pawhaven/pawgate/internal/model"
)

// TokenClaims はIDトークンから取り出すクレームの部分集合。
type TokenClaims struct {
	UID       string
	Email     string
	Name      string
	Picture   string
	ExpiresAt time.Time
}

// idTokenClaims はIDトークンのJWTクレーム。
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	UserID  string `json:"user_id"`
}

// ParseIDToken はIDトークン（JWT）からクレームを取り出す。
// 署名検証は行わない。トークンの真正性検証はバックエンドの責務であり、
// ゲートウェイはセッション復元と期限判定のためにクレームを読むだけである。
func ParseIDToken(token string) (*TokenClaims, error) {
	parser := jwt.NewParser()
	claims := &idTokenClaims{}

	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}

	uid := claims.Subject
	if uid == "" {
		uid = claims.UserID
	}
	if uid == "" {
		return nil, fmt.Errorf("id token has no subject")
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &TokenClaims{
		UID:       uid,
		Email:     claims.Email,
		Name:      claims.Name,
		Picture:   claims.Picture,
		ExpiresAt: expiresAt,
	}, nil
}

// RestoreProfile は永続化されたIDトークンからプロフィールを復元する。
// トークンが不正または期限切れの場合はnilを返す（復元失敗はエラーではなく未認証）。
func RestoreProfile(token string, now time.Time) *model.ProviderProfile {
	if token == "" {
		return nil
	}
	claims, err := ParseIDToken(token)
	if err != nil {
		return nil
	}
	if !claims.ExpiresAt.IsZero() && !claims.ExpiresAt.After(now) {
		return nil
	}
	return &model.ProviderProfile{
		UID:         claims.UID,
		Email:       claims.Email,
		DisplayName: claims.Name,
		PhotoURL:    claims.Picture,
	}
}
