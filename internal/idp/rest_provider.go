package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pawhaven/pawgate/internal/model"
)

const (
	defaultAccountsURL = "https://identitytoolkit.googleapis.com/v1"
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// RESTProviderConfig はRESTProviderの設定。
type RESTProviderConfig struct {
	APIKey       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	// テスト用にオーバーライド可能なURL
	AccountsURL string
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// RESTProvider はIdentity Toolkit互換のREST APIによる認証と
// OAuth 2.0認可コードフローを提供する。
type RESTProvider struct {
	config RESTProviderConfig
	client *http.Client
}

// NewRESTProvider はRESTProviderを生成する。
func NewRESTProvider(config RESTProviderConfig) *RESTProvider {
	if config.AccountsURL == "" {
		config.AccountsURL = defaultAccountsURL
	}
	if config.AuthURL == "" {
		config.AuthURL = defaultAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultUserInfoURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &RESTProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// accountsResponse はアカウントエンドポイントのレスポンス。
type accountsResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"` // 秒数の文字列表現
}

// accountsError はアカウントエンドポイントのエラーレスポンス。
type accountsError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (p *RESTProvider) SignInWithPassword(ctx context.Context, email, password string) (*Credential, error) {
	return p.accountsCall(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// RegisterWithPassword は新規アカウントを作成しサインインする。
func (p *RESTProvider) RegisterWithPassword(ctx context.Context, email, password string) (*Credential, error) {
	return p.accountsCall(ctx, "accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
}

// SignOut はプロバイダー側のリフレッシュトークンを失効させる。
func (p *RESTProvider) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	_, err := p.accountsCall(ctx, "accounts:revokeToken", map[string]interface{}{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// SendPasswordReset はパスワードリセットメールの送信を要求する。
func (p *RESTProvider) SendPasswordReset(ctx context.Context, email string) error {
	_, err := p.accountsCall(ctx, "accounts:sendOobCode", map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	})
	return err
}

// accountsCall はアカウントエンドポイントへのJSON POSTを実行する。
func (p *RESTProvider) accountsCall(ctx context.Context, endpoint string, payload map[string]interface{}) (*Credential, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s?key=%s", p.config.AccountsURL, endpoint, url.QueryEscape(p.config.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonNetwork, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyAccountsError(resp.StatusCode, respBody)
	}

	var acct accountsResponse
	if err := json.Unmarshal(respBody, &acct); err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonUnknown, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return &Credential{
		Profile: &model.ProviderProfile{
			UID:         acct.LocalID,
			Email:       acct.Email,
			DisplayName: acct.DisplayName,
			PhotoURL:    acct.PhotoURL,
		},
		IDToken:      acct.IDToken,
		RefreshToken: acct.RefreshToken,
		ExpiresAt:    expiryFrom(acct.ExpiresIn),
	}, nil
}

// classifyAccountsError はプロバイダーのエラーメッセージをAuthErrorに分類する。
func classifyAccountsError(status int, body []byte) *model.AuthError {
	var acctErr accountsError
	_ = json.Unmarshal(body, &acctErr)

	msg := acctErr.Error.Message
	switch {
	case strings.HasPrefix(msg, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(msg, "INVALID_PASSWORD"),
		strings.HasPrefix(msg, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(msg, "EMAIL_EXISTS"),
		strings.HasPrefix(msg, "USER_DISABLED"):
		return &model.AuthError{Reason: model.AuthReasonInvalidCredential, Err: fmt.Errorf("%s (status %d)", msg, status)}
	default:
		return &model.AuthError{Reason: model.AuthReasonUnknown, Err: fmt.Errorf("%s (status %d)", msg, status)}
	}
}

// expiryFrom は秒数文字列から有効期限を算出する。
func expiryFrom(expiresIn string) time.Time {
	sec, err := strconv.Atoi(expiresIn)
	if err != nil || sec <= 0 {
		sec = 3600
	}
	return time.Now().Add(time.Duration(sec) * time.Second)
}

// OAuthLoginURL はOAuth認可URLを生成する。
// スコープにはemail, profileを含む。
func (p *RESTProvider) OAuthLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// oauthTokenResponse はトークンエンドポイントのレスポンス。
type oauthTokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// oauthUserInfo はユーザー情報エンドポイントのレスポンス。
type oauthUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
func (p *RESTProvider) ExchangeCode(ctx context.Context, code string) (*Credential, error) {
	// 1. 認可コードをトークンに交換
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, err
	}

	// 2. アクセストークンでプロフィールを取得
	userInfo, err := p.fetchUserInfo(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, err
	}

	return &Credential{
		Profile: &model.ProviderProfile{
			UID:         userInfo.Sub,
			Email:       userInfo.Email,
			DisplayName: userInfo.Name,
			PhotoURL:    userInfo.Picture,
		},
		IDToken:      tokenResp.IDToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// exchangeToken は認可コードをトークンに交換する。
func (p *RESTProvider) exchangeToken(ctx context.Context, code string) (*oauthTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonNetwork, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &model.AuthError{
			Reason: model.AuthReasonUnknown,
			Err:    fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var tokenResp oauthTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonUnknown, Err: fmt.Errorf("failed to parse token response: %w", err)}
	}

	if tokenResp.AccessToken == "" {
		return nil, &model.AuthError{Reason: model.AuthReasonUnknown, Err: fmt.Errorf("empty access token in response")}
	}

	return &tokenResp, nil
}

// fetchUserInfo はアクセストークンでプロフィールを取得する。
func (p *RESTProvider) fetchUserInfo(ctx context.Context, accessToken string) (*oauthUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonNetwork, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &model.AuthError{
			Reason: model.AuthReasonUnknown,
			Err:    fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var userInfo oauthUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, &model.AuthError{Reason: model.AuthReasonUnknown, Err: fmt.Errorf("failed to parse user info response: %w", err)}
	}

	if userInfo.Sub == "" {
		return nil, &model.AuthError{Reason: model.AuthReasonUnknown, Err: fmt.Errorf("empty sub in user info response")}
	}

	return &userInfo, nil
}

// compile-time interface check
var _ Provider = (*RESTProvider)(nil)
