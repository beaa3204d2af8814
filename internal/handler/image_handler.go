package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/security"
)

const (
	// maxUploadBytes はアップロードで受け付ける画像の最大サイズ。
	maxUploadBytes = 10 << 20
	// maxProxyBytes は画像プロキシが転送する最大サイズ。
	maxProxyBytes = 20 << 20
	// proxyFetchTimeout は外部画像取得のタイムアウト。
	proxyFetchTimeout = 10 * time.Second
)

// ImageUploader は画像ホスティングサービスへのアップロードインターフェース。
type ImageUploader interface {
	Upload(ctx context.Context, filename string, image io.Reader) (string, error)
}

// ImageHandler は画像アップロードと画像プロキシのHTTPハンドラー。
type ImageHandler struct {
	uploader ImageUploader
	guard    security.ImageGuardService
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(uploader ImageUploader, guard security.ImageGuardService) *ImageHandler {
	return &ImageHandler{
		uploader: uploader,
		guard:    guard,
	}
}

// uploadImageResponse は画像アップロード成功時のレスポンス。
type uploadImageResponse struct {
	URL string `json:"url"`
}

// Upload はプロフィール画像をホスティングサービスへアップロードする。
// POST /api/images
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("image")
	if err != nil {
		writeInvalidRequestBody(w)
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		slog.Error("image upload failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
		return
	}

	writeJSON(w, http.StatusCreated, uploadImageResponse{URL: url})
}

// Proxy は外部の画像URLを検証した上で取得し、そのまま転送する。
// 内部ネットワークを指すURLはSSRFガードで拒否される。
// GET /api/images/proxy?url=...
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.guard.ValidateImageURL(rawURL); err != nil {
		slog.Warn("blocked unsafe image URL",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnsafeImageURLError())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnsafeImageURLError())
		return
	}

	// SSRFガード付きクライアントで取得する。DNS解決後の内部IPもここで弾かれる
	client := h.guard.NewSafeClient(proxyFetchTimeout)
	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("image fetch failed",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnsafeImageURLError())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, io.LimitReader(resp.Body, maxProxyBytes))
}
