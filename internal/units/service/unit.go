package service

import (
	"context"
	"errors"
	"sync"

	unitserrors "lodgic/internal/units/errors"
	"lodgic/internal/units/repository"
	"lodgic/internal/units/validator"
	"lodgic/pkg/config"
	apperrors "lodgic/pkg/errors"
	"lodgic/pkg/model"
	"lodgic/pkg/sanitizer"
)

type UnitService interface {
	Create(ctx context.Context, unit *model.Unit) error
	GetByID(ctx context.Context, id string) (*model.Unit, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Unit, int64, error)
	Update(ctx context.Context, id string, actorID string, updates *model.UnitUpdate) error
	Delete(ctx context.Context, id string, actorID string) error
}

type unitService struct {
	repo      repository.UnitRepository
	validator *validator.UnitValidator
	cfg       *config.Config
}

func NewUnitService(
	repo repository.UnitRepository,
	validator *validator.UnitValidator,
	cfg *config.Config,
) UnitService {
	return &unitService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *unitService) Create(ctx context.Context, unit *model.Unit) error {
	s.applyDefaults(unit)
	unit.Title = sanitizer.SanitizeName(unit.Title)

	if err := s.validator.Validate(unit); err != nil {
		s.cfg.Log.Warn("Unit validation failed", "error", err)
		return apperrors.Validation("Unit validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, unit); err != nil {
		s.cfg.Log.Error("Failed to create unit", "error", err)
		return apperrors.Internal("Failed to create unit", err)
	}

	s.cfg.Log.Info("Unit created successfully",
		"id", unit.ID,
		"lessor_id", unit.LessorID,
		"min_stay_days", unit.MinStayDays,
		"max_guests", unit.MaxGuests,
	)
	return nil
}

func (s *unitService) GetByID(ctx context.Context, id string) (*model.Unit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Unit ID cannot be empty")
	}

	unit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, unitserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Unit", id)
		}
		if errors.Is(err, unitserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid unit ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve unit", err)
	}

	return unit, nil
}

func (s *unitService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Unit, int64, error) {
	var count int64
	var units []*model.Unit
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count units", "error", errCount)
			errCount = apperrors.Internal("Failed to count units", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		units, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list units", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve units", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return units, count, nil
}

func (s *unitService) Update(ctx context.Context, id string, actorID string, updates *model.UnitUpdate) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if existing.LessorID != actorID {
		return apperrors.Forbidden("Only the unit lessor may update it")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Unit update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeUnitUpdates(existing, updates)
	merged.Title = sanitizer.SanitizeName(merged.Title)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Unit validation failed", "id", id, "error", err)
		return apperrors.Validation("Unit validation failed", map[string]any{"error": err.Error()})
	}

	if _, err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, unitserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Unit", id)
		}
		s.cfg.Log.Error("Failed to update unit", "id", id, "error", err)
		return apperrors.Internal("Failed to update unit", err)
	}

	s.cfg.Log.Info("Unit updated successfully", "id", id)
	return nil
}

func (s *unitService) Delete(ctx context.Context, id string, actorID string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if existing.LessorID != actorID {
		return apperrors.Forbidden("Only the unit lessor may delete it")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, unitserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Unit", id)
		}
		return apperrors.Internal("Failed to delete unit", err)
	}

	s.cfg.Log.Info("Unit deleted successfully", "id", id)
	return nil
}

func (s *unitService) applyDefaults(u *model.Unit) {
	if u.MinStayDays == 0 {
		u.MinStayDays = s.cfg.DefaultMinStayDays
	}
	if u.MaxGuests == 0 {
		u.MaxGuests = s.cfg.DefaultMaxGuests
	}
}

func (s *unitService) mergeUnitUpdates(existing *model.Unit, updates *model.UnitUpdate) *model.Unit {
	merged := *existing

	if updates.Title != "" {
		merged.Title = updates.Title
	}
	if updates.MinStayDays != nil {
		merged.MinStayDays = *updates.MinStayDays
	}
	if updates.MaxStayDays != nil {
		merged.MaxStayDays = *updates.MaxStayDays
	}
	if updates.MaxGuests != nil {
		merged.MaxGuests = *updates.MaxGuests
	}

	return &merged
}
