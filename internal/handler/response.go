// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pawhaven/pawgate/internal/backend"
	"github.com/pawhaven/pawgate/internal/forms"
	"github.com/pawhaven/pawgate/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// validationErrorResponse はウィザード検証失敗のレスポンス。
// 統一エラーフォーマットにステップ名とフィールド別の内訳を加える。
type validationErrorResponse struct {
	apiErrorResponse
	Step   string             `json:"step"`
	Fields []forms.FieldError `json:"fields"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はJSONボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var validationErr *forms.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusUnprocessableEntity, validationErrorResponse{
			apiErrorResponse: apiErrorResponse{
				Code:     model.ErrCodeInvalidForm,
				Message:  "入力内容に誤りがあります。",
				Category: "validation",
				Action:   "指摘されたフィールドを修正してください。",
			},
			Step:   validationErr.Step,
			Fields: validationErr.Fields,
		})
		return
	}

	var notReconciled *model.IdentityNotReconciledError
	if errors.As(err, &notReconciled) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotReconciledError())
		return
	}

	var authErr *model.AuthError
	if errors.As(err, &authErr) {
		writeAuthError(w, authErr)
		return
	}

	var netErr *backend.NetworkError
	if errors.As(err, &netErr) {
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
		return
	}

	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		slog.Warn("backend returned an error response",
			slog.Int("status", httpErr.Status),
		)
		// バックエンドに資格情報を拒否された場合はゲートウェイ障害ではなく
		// セッション失効として扱う
		if httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
			return
		}
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// writeAuthError はIDプロバイダー由来の失敗を理由コード付きで書き込む。
func writeAuthError(w http.ResponseWriter, authErr *model.AuthError) {
	statusCode := http.StatusInternalServerError
	message := "認証処理に失敗しました。"
	action := "しばらく待ってから再度お試しください。"

	switch authErr.Reason {
	case model.AuthReasonInvalidCredential:
		statusCode = http.StatusUnauthorized
		message = "メールアドレスまたはパスワードが正しくありません。"
		action = "入力内容を確認してください。"
	case model.AuthReasonPopupClosed:
		statusCode = http.StatusBadRequest
		message = "ログインがキャンセルされました。"
		action = "もう一度ログインしてください。"
	case model.AuthReasonNetwork:
		statusCode = http.StatusBadGateway
		message = "認証サーバーに接続できませんでした。"
		action = "通信環境を確認して再度お試しください。"
	}

	writeJSON(w, statusCode, struct {
		apiErrorResponse
		Reason string `json:"reason"`
	}{
		apiErrorResponse: apiErrorResponse{
			Code:     "AUTH_FAILED",
			Message:  message,
			Category: "auth",
			Action:   action,
		},
		Reason: string(authErr.Reason),
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeSessionExpired, model.ErrCodeNotReconciled:
		return http.StatusUnauthorized
	case model.ErrCodePetNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyInWatchlist:
		return http.StatusConflict
	case model.ErrCodeInvalidForm:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidStep:
		return http.StatusConflict
	case model.ErrCodeUnsafeImageURL:
		return http.StatusBadRequest
	case model.ErrCodeBackendUnavailable, model.ErrCodePaymentFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
