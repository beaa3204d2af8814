package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pawhaven/pawgate/internal/model"
)

// ListPets は条件に合致するペットの一覧を取得する。
// フィルタの空フィールドはクエリに含めない。
func (c *Client) ListPets(ctx context.Context, filter model.PetFilter) ([]model.Pet, error) {
	query := url.Values{}
	if filter.Species != "" {
		query.Set("species", filter.Species)
	}
	if filter.Size != "" {
		query.Set("size", filter.Size)
	}
	if filter.Gender != "" {
		query.Set("gender", filter.Gender)
	}
	if filter.AgeBucket != "" {
		query.Set("age", filter.AgeBucket)
	}
	if filter.Query != "" {
		query.Set("q", filter.Query)
	}

	var pets []model.Pet
	if err := c.do(ctx, http.MethodGet, "/pets", query, nil, &pets); err != nil {
		return nil, err
	}
	return pets, nil
}

// GetPet はIDでペットを取得する。存在しない場合は (nil, nil) を返す。
func (c *Client) GetPet(ctx context.Context, id int64) (*model.Pet, error) {
	var pet model.Pet
	err := c.do(ctx, http.MethodGet, "/pets/"+formatID(id), nil, nil, &pet)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pet, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
