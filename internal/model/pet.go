// Package model はドメインモデルを定義する。
package model

import "time"

// Pet はバックエンドが返すペットレコードを表す。
type Pet struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Species           string  `json:"species"`
	Breed             string  `json:"breed,omitempty"`
	Gender            string  `json:"gender"`
	Age               int     `json:"age,omitempty"`
	Color             string  `json:"color,omitempty"`
	Size              string  `json:"size,omitempty"`
	Weight            float64 `json:"weight,omitempty"`
	Description       string  `json:"description,omitempty"`
	HealthStatus      string  `json:"healthStatus,omitempty"`
	VaccinationStatus string  `json:"vaccinationStatus,omitempty"`
	Image             string  `json:"image,omitempty"`
	IsAdopted         bool    `json:"isAdopted"`
	ShelterID         int64   `json:"shelterId,omitempty"`
}

// PetFilter はペット検索のフィルタ条件を表す。
// ゼロ値のフィールドは条件として送信しない。
type PetFilter struct {
	Species   string
	Size      string
	Gender    string
	AgeBucket string // "young", "adult", "senior"
	Query     string // フリーテキスト検索
}

// WatchlistEntry はウォッチリストに登録されたペットへの参照を表す。
// ペットIDで一意であり、挿入順以外の順序は持たない。
type WatchlistEntry struct {
	PetID   int64     `json:"petId"`
	Name    string    `json:"name"`
	Image   string    `json:"image,omitempty"`
	AddedAt time.Time `json:"addedAt"`
}

// Donation は寄付の送信ボディを表す。
type Donation struct {
	UserID        int64   `json:"-"`
	Amount        float64 `json:"amount"`
	Purpose       string  `json:"purpose"`
	TranID        string  `json:"tranId"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"paymentMethod"`
	Currency      string  `json:"currency"`
	Notes         string  `json:"notes,omitempty"`
}

// AdoptionApplication は譲渡申請の送信ボディを表す。
type AdoptionApplication struct {
	UserID          int64  `json:"-"`
	PetID           int64  `json:"petId"`
	ApplicantName   string `json:"applicantName"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	HousingType     string `json:"housingType"`
	HasOtherPets    bool   `json:"hasOtherPets"`
	ExperienceYears int    `json:"experienceYears"`
	Reason          string `json:"reason"`
}

// Notification はバックエンドが返す通知レコードを表す。
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}
