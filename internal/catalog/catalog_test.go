package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pawhaven/pawgate/internal/model"
)

type mockSource struct {
	listCalls int
	getCalls  int
	listFunc  func(ctx context.Context, filter model.PetFilter) ([]model.Pet, error)
	getFunc   func(ctx context.Context, id int64) (*model.Pet, error)
}

func (m *mockSource) ListPets(ctx context.Context, filter model.PetFilter) ([]model.Pet, error) {
	m.listCalls++
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []model.Pet{{ID: 1, Name: "Pochi"}}, nil
}

func (m *mockSource) GetPet(ctx context.Context, id int64) (*model.Pet, error) {
	m.getCalls++
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &model.Pet{ID: id, Name: "Pochi"}, nil
}

func newTestService(source *mockSource) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(source, time.Minute, logger)
}

func TestListPets_SecondCallServedFromCache(t *testing.T) {
	source := &mockSource{}
	svc := newTestService(source)
	ctx := context.Background()
	filter := model.PetFilter{Species: "dog"}

	svc.ListPets(ctx, filter)
	svc.ListPets(ctx, filter)

	if source.listCalls != 1 {
		t.Errorf("listCalls = %d, want 1", source.listCalls)
	}
}

func TestListPets_DifferentFiltersNotShared(t *testing.T) {
	source := &mockSource{}
	svc := newTestService(source)
	ctx := context.Background()

	svc.ListPets(ctx, model.PetFilter{Species: "dog"})
	svc.ListPets(ctx, model.PetFilter{Species: "cat"})

	if source.listCalls != 2 {
		t.Errorf("listCalls = %d, want 2", source.listCalls)
	}
}

func TestGetPet_CachesFoundPet(t *testing.T) {
	source := &mockSource{}
	svc := newTestService(source)
	ctx := context.Background()

	svc.GetPet(ctx, 7)
	pet, err := svc.GetPet(ctx, 7)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pet.ID != 7 {
		t.Errorf("ID = %d", pet.ID)
	}
	if source.getCalls != 1 {
		t.Errorf("getCalls = %d, want 1", source.getCalls)
	}
}

func TestGetPet_MissingPetNotCached(t *testing.T) {
	source := &mockSource{
		getFunc: func(ctx context.Context, id int64) (*model.Pet, error) {
			return nil, nil
		},
	}
	svc := newTestService(source)
	ctx := context.Background()

	svc.GetPet(ctx, 404)
	svc.GetPet(ctx, 404)

	if source.getCalls != 2 {
		t.Errorf("getCalls = %d, absent pets must not be cached", source.getCalls)
	}
}

func TestInvalidate_DropsPetAndListCaches(t *testing.T) {
	source := &mockSource{}
	svc := newTestService(source)
	ctx := context.Background()
	filter := model.PetFilter{Species: "dog"}

	svc.GetPet(ctx, 1)
	svc.ListPets(ctx, filter)
	svc.Invalidate(1)
	svc.GetPet(ctx, 1)
	svc.ListPets(ctx, filter)

	if source.getCalls != 2 {
		t.Errorf("getCalls = %d, want 2", source.getCalls)
	}
	if source.listCalls != 2 {
		t.Errorf("listCalls = %d, want 2", source.listCalls)
	}
}
