// Package imagehost は外部画像ホスティングサービス連携機能を提供する。
// プロフィール画像のアップロードを仲介し、公開URLを返す。
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
)

const (
	// defaultEndpoint は画像ホスティングサービスのアップロードAPIのエンドポイント。
	defaultEndpoint = "https://api.imgbb.com/1/upload"
	// maxImageBytes は1画像あたりの最大サイズ。
	maxImageBytes = 10 << 20
)

// Client は画像ホスティングAPIのクライアント。
// APIキーをクエリパラメータで渡し、multipart/form-dataで画像を送信する。
type Client struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
		endpoint:   defaultEndpoint,
	}
}

// uploadResponse は画像ホスティングAPIのレスポンス。
type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
}

// Upload は画像をホスティングサービスへアップロードし、公開URLを返す。
// 画像はmaxImageBytesを超えてはならない。失敗時はエラーを返す
// （呼び出し元が画像なしで処理を継続するかを判断する）。
func (c *Client) Upload(ctx context.Context, filename string, image io.Reader) (string, error) {
	// multipartボディ構築。送信前にサイズ上限を確定させる
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("multipartボディの構築に失敗しました: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(image, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("画像の読み取りに失敗しました: %w", err)
	}
	if n > maxImageBytes {
		return "", fmt.Errorf("画像サイズが上限を超えています: %d バイト超", maxImageBytes)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("multipartボディの構築に失敗しました: %w", err)
	}

	// HTTPリクエスト作成
	reqURL := fmt.Sprintf("%s?key=%s", c.endpoint, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("画像ホスティングAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("filename", filename),
		)
		return "", err
	}
	defer resp.Body.Close()

	// HTTPステータスチェック
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("画像ホスティングAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("filename", filename),
		)
		return "", fmt.Errorf("画像ホスティングAPIがステータス %d を返しました", resp.StatusCode)
	}

	// レスポンスボディ読み取り
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	// JSONデコード
	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("画像ホスティングAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if !result.Success || result.Data.URL == "" {
		return "", fmt.Errorf("画像ホスティングAPIがアップロード失敗を返しました")
	}

	return result.Data.URL, nil
}
