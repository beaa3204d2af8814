package forms

import (
	"github.com/google/uuid"
	"github.com/pawhaven/pawgate/internal/model"
)

// 寄付ウィザードのステップ名。
const (
	DonationStepAmount  = "amount"
	DonationStepPayment = "payment"
	DonationStepConfirm = "confirm"
)

// DonationData は寄付フォームの入力値。
type DonationData struct {
	Amount        float64 `json:"amount"`
	Purpose       string  `json:"purpose"`
	PaymentMethod string  `json:"paymentMethod"`
	Currency      string  `json:"currency"`
	Notes         string  `json:"notes"`
	Confirmed     bool    `json:"confirmed"`
}

var paymentMethods = map[string]bool{
	"card":   true,
	"paypal": true,
	"bank":   true,
}

var currencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"JPY": true,
}

// DonationWizard は寄付フォームの進行を管理する。
// トランザクションIDはウィザード作成時に一度だけ発行される。
type DonationWizard struct {
	wizard
	TranID string
	Data   DonationData
}

func NewDonationWizard() *DonationWizard {
	w := &DonationWizard{TranID: uuid.NewString()}
	w.init([]step{
		{name: DonationStepAmount, validate: w.validateAmount},
		{name: DonationStepPayment, validate: w.validatePayment},
		{name: DonationStepConfirm, validate: w.validateConfirm},
	})
	return w
}

// Update は現在のステップに属する入力値を取り込む。
func (w *DonationWizard) Update(data DonationData) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.steps[w.current].name {
	case DonationStepAmount:
		w.Data.Amount = data.Amount
		w.Data.Purpose = sanitizeText(data.Purpose)
	case DonationStepPayment:
		w.Data.PaymentMethod = data.PaymentMethod
		w.Data.Currency = data.Currency
	case DonationStepConfirm:
		w.Data.Notes = sanitizeText(data.Notes)
		w.Data.Confirmed = data.Confirmed
	}
}

// Snapshot は入力値の整合したコピーを返す。
// Update と並行して呼ばれても途中状態を観測しない。
func (w *DonationWizard) Snapshot() DonationData {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Data
}

func (w *DonationWizard) validateAmount() *ValidationError {
	var fields []FieldError
	if w.Data.Amount <= 0 {
		fields = append(fields, FieldError{Field: "amount", Message: "寄付金額は0より大きい必要があります"})
	}
	if w.Data.Purpose == "" {
		fields = append(fields, FieldError{Field: "purpose", Message: "寄付の目的を選択してください"})
	}
	if fields != nil {
		return &ValidationError{Step: DonationStepAmount, Fields: fields}
	}
	return nil
}

func (w *DonationWizard) validatePayment() *ValidationError {
	var fields []FieldError
	if !paymentMethods[w.Data.PaymentMethod] {
		fields = append(fields, FieldError{Field: "paymentMethod", Message: "支払い方法を選択してください"})
	}
	if !currencies[w.Data.Currency] {
		fields = append(fields, FieldError{Field: "currency", Message: "通貨を選択してください"})
	}
	if fields != nil {
		return &ValidationError{Step: DonationStepPayment, Fields: fields}
	}
	return nil
}

func (w *DonationWizard) validateConfirm() *ValidationError {
	if !w.Data.Confirmed {
		return &ValidationError{
			Step: DonationStepConfirm,
			Fields: []FieldError{
				{Field: "confirmed", Message: "内容の確認が必要です"},
			},
		}
	}
	return nil
}

// Build は全ステップを検証し、送信用の寄付レコードを組み立てる。
func (w *DonationWizard) Build() (*model.Donation, error) {
	if err := w.validateAll(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return &model.Donation{
		Amount:        w.Data.Amount,
		Purpose:       w.Data.Purpose,
		TranID:        w.TranID,
		Status:        "pending",
		PaymentMethod: w.Data.PaymentMethod,
		Currency:      w.Data.Currency,
		Notes:         w.Data.Notes,
	}, nil
}
