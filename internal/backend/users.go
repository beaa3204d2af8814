package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pawhaven/pawgate/internal/model"
)

// RegisterUserRequest はユーザー登録のリクエストボディ。
type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address,omitempty"`
}

// LoginRequest は明示的な再認証のリクエストボディ。
// バックエンドはメールアドレスをusernameキーで受け取る。
type LoginRequest struct {
	Email    string `json:"username"`
	Password string `json:"password"`
}

// loginResponse はログインエンドポイントのレスポンスエンベロープ。
type loginResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// RegisterUser はアプリケーションユーザーを作成する。
func (c *Client) RegisterUser(ctx context.Context, req RegisterUserRequest) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodPost, "/users", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LoginUser はバックエンド側の資格情報で直接認証する。
// プロバイダ経由の照合が失敗した場合の明示的なフォールバックとしてのみ使う。
// 数値IDを持たないユーザーが返った場合は認証失敗として扱う。
func (c *Client) LoginUser(ctx context.Context, req LoginRequest) (*model.User, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/users/login", nil, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil || resp.User.ID == 0 {
		return nil, &model.AuthError{
			Reason: model.AuthReasonInvalidCredential,
			Err:    fmt.Errorf("backend login rejected: %s", resp.Message),
		}
	}
	return resp.User, nil
}

// GetUserByEmail はメールアドレスでユーザーを検索する。
// 存在しない場合は (nil, nil) を返す。
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "/users/email/"+url.PathEscape(email), nil, nil, &user)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUser はIDでユーザーを取得する。
func (c *Client) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, userPath(id), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserRole はIDでユーザーのロールを取得する。
// ロール単体のエンドポイントはないため、ユーザーリソース経由で引く。
func (c *Client) GetUserRole(ctx context.Context, id int64) (model.UserRole, error) {
	user, err := c.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// UpdateUserRequest はプロフィール更新のリクエストボディ。
type UpdateUserRequest struct {
	Name         string `json:"name,omitempty"`
	Address      string `json:"address,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// UpdateUser はユーザーのプロフィールを更新し、更新後のユーザーを返す。
func (c *Client) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodPut, userPath(id), nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func userPath(id int64) string {
	return "/users/" + formatID(id)
}
