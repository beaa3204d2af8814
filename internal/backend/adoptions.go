package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pawhaven/pawgate/internal/model"
)

// entityRef はリクエストに埋め込む関連エンティティのID参照。
type entityRef struct {
	ID int64 `json:"id"`
}

// submitAdoptionRequest はバックエンドの申請レコードのカラム名に合わせる。
type submitAdoptionRequest struct {
	User               entityRef `json:"user"`
	Pet                entityRef `json:"pet"`
	ApplicationReason  string    `json:"applicationReason"`
	LivingSituation    string    `json:"livingSituation"`
	HasOtherPets       bool      `json:"hasOtherPets"`
	ExperienceWithPets string    `json:"experienceWithPets"`
	Status             string    `json:"status"`
}

// SubmitAdoption は里親申請を送信する。ステータスは常にPENDINGで作成される。
func (c *Client) SubmitAdoption(ctx context.Context, userID int64, app *model.AdoptionApplication) (*model.AdoptionApplication, error) {
	req := submitAdoptionRequest{
		User:               entityRef{ID: userID},
		Pet:                entityRef{ID: app.PetID},
		ApplicationReason:  app.Reason,
		LivingSituation:    formatLivingSituation(app),
		HasOtherPets:       app.HasOtherPets,
		ExperienceWithPets: fmt.Sprintf("%d years", app.ExperienceYears),
		Status:             "PENDING",
	}

	var created model.AdoptionApplication
	if err := c.do(ctx, http.MethodPost, "/adoption-applications", nil, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// formatLivingSituation は住環境の各項目を1つの記述にまとめる。
func formatLivingSituation(app *model.AdoptionApplication) string {
	s := app.HousingType
	if app.Address != "" {
		s += " (" + app.Address + ")"
	}
	return s
}

// ListAdoptionsByUser はユーザーの里親申請履歴を取得する。
func (c *Client) ListAdoptionsByUser(ctx context.Context, userID int64) ([]model.AdoptionApplication, error) {
	var apps []model.AdoptionApplication
	if err := c.do(ctx, http.MethodGet, "/adoption-applications/user/"+formatID(userID), nil, nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}
