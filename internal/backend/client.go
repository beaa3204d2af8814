// Package backend はアプリケーションAPIサーバーへの認証付きクライアントを提供する。
// すべてのリクエストを単一の実行経路に集約し、401/403応答に対する
// セッション無効化を一箇所で保証する。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NetworkError は接続失敗・タイムアウトなど応答が得られなかったことを表す。
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError はバックエンドが2xx以外のステータスを返したことを表す。
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// IsStatus はエラーが指定ステータスのHTTPErrorかを判定する。
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}

// TokenSource はリクエストに対応するセッションのIDトークンを供給する。
// 未認証時は空文字列を返す。
type TokenSource interface {
	Token(ctx context.Context) string
}

// UnauthorizedHook は401/403応答を受けたときに呼ばれる。
// どのエンドポイントからの応答でも同じ経路で無効化を実行する。
type UnauthorizedHook func(ctx context.Context, status int)

// MetricsRecorder はリクエストの結果を計測系へ記録する。
type MetricsRecorder func(method, path string, status int, elapsed time.Duration)

// Client はバックエンドAPIクライアント。
type Client struct {
	httpClient     *http.Client
	baseURL        string
	tokens         TokenSource
	onUnauthorized UnauthorizedHook
	recordMetrics  MetricsRecorder
	logger         *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// tokens がnilの場合、すべてのリクエストは匿名で送信される。
func NewClient(httpClient *http.Client, baseURL string, tokens TokenSource, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		logger:     logger,
	}
}

// OnUnauthorized は401/403応答時のフックを登録する。
func (c *Client) OnUnauthorized(hook UnauthorizedHook) {
	c.onUnauthorized = hook
}

// WithMetrics はリクエスト計測のレコーダーを登録する。
func (c *Client) WithMetrics(recorder MetricsRecorder) {
	c.recordMetrics = recorder
}

// do はすべてのバックエンドリクエストの共通実行経路。
// トークンがあればBearerヘッダーを付与し、401/403は無効化フックを
// 呼んだうえでエラーとして返す。リトライはしない。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		if c.recordMetrics != nil {
			c.recordMetrics(method, path, 0, time.Since(start))
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if c.recordMetrics != nil {
		c.recordMetrics(method, path, resp.StatusCode, time.Since(start))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.logger.Warn("backend rejected credentials",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx, resp.StatusCode)
		}
		return &HTTPError{Status: resp.StatusCode}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response body: %w", err)
		}
	}
	return nil
}
