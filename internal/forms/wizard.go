// Package forms は複数ステップの入力フォームを提供する。
// 各ステップは検証を通過するまで先に進めず、送信は全ステップの
// 完了を前提とする。
package forms

import (
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// FieldError は単一フィールドの検証エラー。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError はステップ検証の失敗をまとめたもの。
type ValidationError struct {
	Step   string       `json:"step"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("step %s has invalid fields: %s", e.Step, strings.Join(names, ", "))
}

// sanitizePolicy は自由入力テキストからマークアップを取り除く。
var sanitizePolicy = bluemonday.StrictPolicy()

func sanitizeText(s string) string {
	return strings.TrimSpace(sanitizePolicy.Sanitize(s))
}

// step はウィザードの1ステップ。
type step struct {
	name     string
	validate func() *ValidationError
}

// wizard はステップ遷移の共通実装。進行は検証済みステップの
// 範囲内に制限される。
type wizard struct {
	mu      sync.Mutex
	steps   []step
	current int
}

func (w *wizard) init(steps []step) {
	w.steps = steps
}

// CurrentStep は現在のステップ名を返す。
func (w *wizard) CurrentStep() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps[w.current].name
}

// StepNames は全ステップ名を順に返す。
func (w *wizard) StepNames() []string {
	names := make([]string, len(w.steps))
	for i, s := range w.steps {
		names[i] = s.name
	}
	return names
}

// Next は現在のステップを検証し、通過すれば次へ進む。
// 最終ステップで呼ばれた場合は検証のみ行いその場に留まる。
func (w *wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if verr := w.steps[w.current].validate(); verr != nil {
		return verr
	}
	if w.current < len(w.steps)-1 {
		w.current++
	}
	return nil
}

// Back は前のステップへ戻る。先頭では何もしない。
func (w *wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current > 0 {
		w.current--
	}
}

// validateAll は全ステップを順に検証し、最初の失敗を返す。
func (w *wizard) validateAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range w.steps {
		if verr := s.validate(); verr != nil {
			return verr
		}
	}
	return nil
}
