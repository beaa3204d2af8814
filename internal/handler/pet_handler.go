package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pawhaven/pawgate/internal/model"
	"github.com/pawhaven/pawgate/internal/security"
)

// PetCatalogInterface はペットハンドラーが必要とするカタログインターフェース。
type PetCatalogInterface interface {
	ListPets(ctx context.Context, filter model.PetFilter) ([]model.Pet, error)
	GetPet(ctx context.Context, id int64) (*model.Pet, error)
}

// PetHandler はペットカタログのHTTPハンドラー。
type PetHandler struct {
	catalog   PetCatalogInterface
	sanitizer security.DescriptionSanitizerService
}

// NewPetHandler はPetHandlerを生成する。
func NewPetHandler(catalog PetCatalogInterface, sanitizer security.DescriptionSanitizerService) *PetHandler {
	return &PetHandler{
		catalog:   catalog,
		sanitizer: sanitizer,
	}
}

// ListPets はペット一覧を取得する。
// GET /api/pets?species=&size=&gender=&age=&q=
func (h *PetHandler) ListPets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.PetFilter{
		Species:   query.Get("species"),
		Size:      query.Get("size"),
		Gender:    query.Get("gender"),
		AgeBucket: query.Get("age"),
		Query:     query.Get("q"),
	}

	pets, err := h.catalog.ListPets(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// バックエンド由来のHTMLはそのまま返さない
	for i := range pets {
		pets[i].Description = h.sanitizer.Sanitize(pets[i].Description)
	}

	writeJSON(w, http.StatusOK, pets)
}

// GetPet はペット詳細を取得する。
// GET /api/pets/:id
func (h *PetHandler) GetPet(w http.ResponseWriter, r *http.Request) {
	id, err := parsePetID(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ペットIDは数値で指定してください。",
			Category: "validation",
			Action:   "URLを確認してください。",
		})
		return
	}

	pet, err := h.catalog.GetPet(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if pet == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPetNotFoundError(id))
		return
	}

	sanitized := *pet
	sanitized.Description = h.sanitizer.Sanitize(pet.Description)
	writeJSON(w, http.StatusOK, sanitized)
}

// parsePetID はURLパラメータのペットIDを数値に変換する。
func parsePetID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}
