// Package catalog はペット一覧の取得に短期キャッシュを被せる。
// 一覧・詳細は頻繁に閲覧されるため、バックエンドへの問い合わせを
// TTLの範囲で抑制する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pawhaven/pawgate/internal/model"
)

// PetSource はペット情報の取得元。
type PetSource interface {
	ListPets(ctx context.Context, filter model.PetFilter) ([]model.Pet, error)
	GetPet(ctx context.Context, id int64) (*model.Pet, error)
}

// Service はPetSourceのキャッシュ付きプロキシ。
type Service struct {
	source PetSource
	cache  *gocache.Cache
	logger *slog.Logger
}

func NewService(source PetSource, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{
		source: source,
		cache:  gocache.New(ttl, 5*time.Minute),
		logger: logger,
	}
}

// ListPets は条件に合致するペット一覧を返す。
// 同一条件の結果はTTLの間キャッシュされる。
func (s *Service) ListPets(ctx context.Context, filter model.PetFilter) ([]model.Pet, error) {
	key := listKey(filter)
	if v, ok := s.cache.Get(key); ok {
		return v.([]model.Pet), nil
	}

	pets, err := s.source.ListPets(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, pets)
	return pets, nil
}

// GetPet はIDでペットを返す。存在しない場合は (nil, nil)。
// 不在の結果はキャッシュしない。
func (s *Service) GetPet(ctx context.Context, id int64) (*model.Pet, error) {
	key := petKey(id)
	if v, ok := s.cache.Get(key); ok {
		return v.(*model.Pet), nil
	}

	pet, err := s.source.GetPet(ctx, id)
	if err != nil {
		return nil, err
	}
	if pet == nil {
		return nil, nil
	}

	s.cache.SetDefault(key, pet)
	return pet, nil
}

// Invalidate は指定ペットのキャッシュを破棄する。
// 里親申請が成立した場合などに呼ぶ。
func (s *Service) Invalidate(id int64) {
	s.cache.Delete(petKey(id))
	// 一覧キャッシュはキーが条件ごとに異なるため全消しする
	for key := range s.cache.Items() {
		if len(key) > 5 && key[:5] == "list:" {
			s.cache.Delete(key)
		}
	}
	s.logger.Debug("pet cache invalidated", slog.Int64("pet_id", id))
}

func listKey(filter model.PetFilter) string {
	return fmt.Sprintf("list:%s|%s|%s|%s|%s",
		filter.Species, filter.Size, filter.Gender, filter.AgeBucket, filter.Query)
}

func petKey(id int64) string {
	return fmt.Sprintf("pet:%d", id)
}
