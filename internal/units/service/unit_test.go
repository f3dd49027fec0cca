package service

import (
	"context"
	"testing"
	"time"

	unitserrors "lodgic/internal/units/errors"
	"lodgic/internal/units/validator"
	"lodgic/pkg/config"
	apperrors "lodgic/pkg/errors"
	"lodgic/pkg/logger"
	"lodgic/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type mockUnitRepository struct {
	createFunc   func(ctx context.Context, unit *model.Unit) error
	findByIDFunc func(ctx context.Context, id string) (*model.Unit, error)
	findAllFunc  func(ctx context.Context, limit int, offset int64) ([]*model.Unit, error)
	updateFunc   func(ctx context.Context, id string, unit *model.Unit) (*mongo.UpdateResult, error)
	deleteFunc   func(ctx context.Context, id string) error
	countFunc    func(ctx context.Context) (int64, error)
}

func (m *mockUnitRepository) Create(ctx context.Context, unit *model.Unit) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, unit)
	}
	unit.ID = "665f1f77bcf86cd799439011"
	return nil
}

func (m *mockUnitRepository) FindByID(ctx context.Context, id string) (*model.Unit, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, unitserrors.ErrNotFound
}

func (m *mockUnitRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Unit, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Unit{}, nil
}

func (m *mockUnitRepository) Update(ctx context.Context, id string, unit *model.Unit) (*mongo.UpdateResult, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, unit)
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (m *mockUnitRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockUnitRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func newTestService(repo *mockUnitRepository) UnitService {
	cfg := &config.Config{
		Log:                logger.Discard(),
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		DefaultMinStayDays: 1,
		DefaultMaxGuests:   2,
	}
	return NewUnitService(repo, validator.NewUnitValidator(logger.Discard()), cfg)
}

func existingUnit() *model.Unit {
	return &model.Unit{
		ID:          "665f1f77bcf86cd799439011",
		LessorID:    "lessor-1",
		Title:       "Seaside cabin",
		MinStayDays: 2,
		MaxStayDays: 30,
		MaxGuests:   4,
	}
}

func TestCreate_AppliesDefaults(t *testing.T) {
	var captured *model.Unit
	repo := &mockUnitRepository{
		createFunc: func(ctx context.Context, unit *model.Unit) error {
			captured = unit
			return nil
		},
	}
	svc := newTestService(repo)

	unit := &model.Unit{
		LessorID: "lessor-1",
		Title:    "City loft",
	}
	if err := svc.Create(context.Background(), unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.MinStayDays != 1 {
		t.Errorf("MinStayDays = %d, want default 1", captured.MinStayDays)
	}
	if captured.MaxGuests != 2 {
		t.Errorf("MaxGuests = %d, want default 2", captured.MaxGuests)
	}
}

func TestCreate_SanitizesTitle(t *testing.T) {
	var captured *model.Unit
	repo := &mockUnitRepository{
		createFunc: func(ctx context.Context, unit *model.Unit) error {
			captured = unit
			return nil
		},
	}
	svc := newTestService(repo)

	unit := &model.Unit{
		LessorID:    "lessor-1",
		Title:       "  Seaside <b>cabin</b>  ",
		MinStayDays: 2,
		MaxGuests:   4,
	}
	if err := svc.Create(context.Background(), unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Title != "Seaside bcabinb" {
		t.Errorf("title = %q", captured.Title)
	}
}

func TestCreate_InvalidStayBounds(t *testing.T) {
	svc := newTestService(&mockUnitRepository{})

	unit := &model.Unit{
		LessorID:    "lessor-1",
		Title:       "City loft",
		MinStayDays: 10,
		MaxStayDays: 5,
		MaxGuests:   4,
	}
	err := svc.Create(context.Background(), unit)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got: %v", err)
	}
}

func TestCreate_MissingLessor(t *testing.T) {
	svc := newTestService(&mockUnitRepository{})

	unit := &model.Unit{
		Title:       "City loft",
		MinStayDays: 1,
		MaxGuests:   2,
	}
	err := svc.Create(context.Background(), unit)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc := newTestService(&mockUnitRepository{})

	_, err := svc.GetByID(context.Background(), "665f1f77bcf86cd799439099")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got: %v", err)
	}
}

func TestUpdate_NotLessor(t *testing.T) {
	repo := &mockUnitRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Unit, error) {
			return existingUnit(), nil
		},
	}
	svc := newTestService(repo)

	err := svc.Update(context.Background(), "665f1f77bcf86cd799439011", "intruder", &model.UnitUpdate{Title: "Mine now"})
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got: %v", err)
	}
}

func TestUpdate_MergesFields(t *testing.T) {
	var captured *model.Unit
	repo := &mockUnitRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Unit, error) {
			return existingUnit(), nil
		},
		updateFunc: func(ctx context.Context, id string, unit *model.Unit) (*mongo.UpdateResult, error) {
			captured = unit
			return &mongo.UpdateResult{MatchedCount: 1}, nil
		},
	}
	svc := newTestService(repo)

	minStay := 3
	err := svc.Update(context.Background(), "665f1f77bcf86cd799439011", "lessor-1", &model.UnitUpdate{
		MinStayDays: &minStay,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.MinStayDays != 3 {
		t.Errorf("MinStayDays = %d, want 3", captured.MinStayDays)
	}
	if captured.Title != "Seaside cabin" {
		t.Errorf("Title = %q, untouched fields must survive the merge", captured.Title)
	}
	if captured.MaxGuests != 4 {
		t.Errorf("MaxGuests = %d, want 4", captured.MaxGuests)
	}
}

func TestDelete_NotLessor(t *testing.T) {
	repo := &mockUnitRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Unit, error) {
			return existingUnit(), nil
		},
	}
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), "665f1f77bcf86cd799439011", "intruder")
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got: %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	var deleted string
	repo := &mockUnitRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Unit, error) {
			return existingUnit(), nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(repo)

	if err := svc.Delete(context.Background(), "665f1f77bcf86cd799439011", "lessor-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "665f1f77bcf86cd799439011" {
		t.Errorf("deleted id = %q", deleted)
	}
}

func TestGetAll_Success(t *testing.T) {
	repo := &mockUnitRepository{
		countFunc: func(ctx context.Context) (int64, error) {
			return 7, nil
		},
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Unit, error) {
			return []*model.Unit{existingUnit()}, nil
		},
	}
	svc := newTestService(repo)

	units, count, err := svc.GetAll(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
	if len(units) != 1 {
		t.Errorf("got %d units, want 1", len(units))
	}
}
