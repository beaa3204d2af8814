// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeNotReconciled      = "IDENTITY_NOT_RECONCILED"
	ErrCodeAlreadyInWatchlist = "ALREADY_IN_WATCHLIST"
	ErrCodePetNotFound        = "PET_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidForm        = "INVALID_FORM"
	ErrCodeInvalidStep        = "INVALID_STEP"
	ErrCodeUnsafeImageURL     = "UNSAFE_IMAGE_URL"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodePaymentFailed      = "PAYMENT_FAILED"
)

// AuthErrorReason はIDプロバイダー起因の失敗理由。
type AuthErrorReason string

const (
	// AuthReasonInvalidCredential は認証情報の不一致。
	AuthReasonInvalidCredential AuthErrorReason = "invalid-credential"
	// AuthReasonPopupClosed はOAuthフローのユーザー中断。
	AuthReasonPopupClosed AuthErrorReason = "popup-closed"
	// AuthReasonNetwork はプロバイダーへの到達失敗。
	AuthReasonNetwork AuthErrorReason = "network"
	// AuthReasonUnknown は分類できない失敗。
	AuthReasonUnknown AuthErrorReason = "unknown"
)

// AuthError はIDプロバイダーとのやり取りで発生した失敗を表す。
type AuthError struct {
	Reason AuthErrorReason
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth error (%s)", e.Reason)
}

// Unwrap はラップされたエラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// IdentityNotReconciledError は認証済みだがバックエンドの数値IDを
// 持たないセッションで数値ID必須の操作が試行されたことを表す。
// このエラーを握りつぶしたり、文字列IDで代用してはならない。
type IdentityNotReconciledError struct {
	Email string
}

// Error はerrorインターフェースを実装する。
func (e *IdentityNotReconciledError) Error() string {
	return fmt.Sprintf("identity not reconciled for %s: backend numeric id is missing", e.Email)
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "サインインページからログインしてください。",
	}
}

// NewSessionExpiredError はバックエンド側で資格情報が失効したエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewNotReconciledError はID未照合エラーを生成する。
func NewNotReconciledError() *APIError {
	return &APIError{
		Code:     ErrCodeNotReconciled,
		Message:  "アカウント情報の照合が完了していません。",
		Category: "auth",
		Action:   "メールアドレスとパスワードで再ログインしてください。",
	}
}

// NewAlreadyInWatchlistError はウォッチリスト重複登録の通知を生成する。
// エラーではなく既登録の通知として扱う。
func NewAlreadyInWatchlistError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyInWatchlist,
		Message:  fmt.Sprintf("%s はすでにウォッチリストに登録されています。", name),
		Category: "validation",
		Action:   "ウォッチリストから該当ペットを確認してください。",
	}
}

// NewPetNotFoundError はペット未検出エラーを生成する。
func NewPetNotFoundError(petID int64) *APIError {
	return &APIError{
		Code:     ErrCodePetNotFound,
		Message:  fmt.Sprintf("指定されたペットが見つかりません: %d", petID),
		Category: "validation",
		Action:   "ペット一覧から再度選択してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidStepError はフォームステップ遷移の違反エラーを生成する。
func NewInvalidStepError(step int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStep,
		Message:  fmt.Sprintf("ステップ%dにはまだ進めません。", step),
		Category: "validation",
		Action:   "現在のステップの入力を完了してください。",
	}
}

// NewUnsafeImageURLError は画像URLの安全性検証失敗エラーを生成する。
func NewUnsafeImageURLError() *APIError {
	return &APIError{
		Code:     ErrCodeUnsafeImageURL,
		Message:  "セキュリティポリシーにより、指定された画像URLは使用できません。",
		Category: "validation",
		Action:   "公開されている画像ホスティングサービスのURLを指定してください。",
	}
}

// NewBackendUnavailableError はバックエンド到達失敗エラーを生成する。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "サーバーに接続できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPaymentFailedError は寄付送信失敗エラーを生成する。
func NewPaymentFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePaymentFailed,
		Message:  fmt.Sprintf("寄付の送信に失敗しました: %s", reason),
		Category: "payment",
		Action:   "時間をおいて再度お試しください。金額が引き落とされていないかご確認ください。",
	}
}
