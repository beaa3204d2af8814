package forms

import (
	"strings"

	"github.com/pawhaven/pawgate/internal/model"
)

// 里親申請ウィザードのステップ名。
const (
	AdoptionStepApplicant  = "applicant"
	AdoptionStepHousehold  = "household"
	AdoptionStepMotivation = "motivation"
)

// AdoptionData は里親申請フォームの入力値。
type AdoptionData struct {
	ApplicantName   string `json:"applicantName"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	HousingType     string `json:"housingType"`
	HasOtherPets    bool   `json:"hasOtherPets"`
	ExperienceYears int    `json:"experienceYears"`
	Reason          string `json:"reason"`
}

var housingTypes = map[string]bool{
	"house":     true,
	"apartment": true,
	"farm":      true,
	"other":     true,
}

// AdoptionWizard は特定のペットに対する里親申請の進行を管理する。
type AdoptionWizard struct {
	wizard
	PetID int64
	Data  AdoptionData
}

func NewAdoptionWizard(petID int64) *AdoptionWizard {
	w := &AdoptionWizard{PetID: petID}
	w.init([]step{
		{name: AdoptionStepApplicant, validate: w.validateApplicant},
		{name: AdoptionStepHousehold, validate: w.validateHousehold},
		{name: AdoptionStepMotivation, validate: w.validateMotivation},
	})
	return w
}

// Update は現在のステップに属する入力値を取り込む。
func (w *AdoptionWizard) Update(data AdoptionData) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.steps[w.current].name {
	case AdoptionStepApplicant:
		w.Data.ApplicantName = sanitizeText(data.ApplicantName)
		w.Data.Phone = strings.TrimSpace(data.Phone)
		w.Data.Address = sanitizeText(data.Address)
	case AdoptionStepHousehold:
		w.Data.HousingType = data.HousingType
		w.Data.HasOtherPets = data.HasOtherPets
		w.Data.ExperienceYears = data.ExperienceYears
	case AdoptionStepMotivation:
		w.Data.Reason = sanitizeText(data.Reason)
	}
}

// Snapshot は入力値の整合したコピーを返す。
// Update と並行して呼ばれても途中状態を観測しない。
func (w *AdoptionWizard) Snapshot() AdoptionData {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Data
}

func (w *AdoptionWizard) validateApplicant() *ValidationError {
	var fields []FieldError
	if w.Data.ApplicantName == "" {
		fields = append(fields, FieldError{Field: "applicantName", Message: "氏名を入力してください"})
	}
	if len(w.Data.Phone) < 7 {
		fields = append(fields, FieldError{Field: "phone", Message: "電話番号を入力してください"})
	}
	if w.Data.Address == "" {
		fields = append(fields, FieldError{Field: "address", Message: "住所を入力してください"})
	}
	if fields != nil {
		return &ValidationError{Step: AdoptionStepApplicant, Fields: fields}
	}
	return nil
}

func (w *AdoptionWizard) validateHousehold() *ValidationError {
	var fields []FieldError
	if !housingTypes[w.Data.HousingType] {
		fields = append(fields, FieldError{Field: "housingType", Message: "住居の種類を選択してください"})
	}
	if w.Data.ExperienceYears < 0 {
		fields = append(fields, FieldError{Field: "experienceYears", Message: "飼育経験年数が不正です"})
	}
	if fields != nil {
		return &ValidationError{Step: AdoptionStepHousehold, Fields: fields}
	}
	return nil
}

func (w *AdoptionWizard) validateMotivation() *ValidationError {
	if len(w.Data.Reason) < 20 {
		return &ValidationError{
			Step: AdoptionStepMotivation,
			Fields: []FieldError{
				{Field: "reason", Message: "申請理由を20文字以上で入力してください"},
			},
		}
	}
	return nil
}

// Build は全ステップを検証し、送信用の申請を組み立てる。
func (w *AdoptionWizard) Build() (*model.AdoptionApplication, error) {
	if err := w.validateAll(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return &model.AdoptionApplication{
		PetID:           w.PetID,
		ApplicantName:   w.Data.ApplicantName,
		Phone:           w.Data.Phone,
		Address:         w.Data.Address,
		HousingType:     w.Data.HousingType,
		HasOtherPets:    w.Data.HasOtherPets,
		ExperienceYears: w.Data.ExperienceYears,
		Reason:          w.Data.Reason,
	}, nil
}
