package service

import (
	"context"
	"sync"
	"time"

	"lodgic/internal/calendar/repository"
	"lodgic/pkg/config"
	apperrors "lodgic/pkg/errors"
	"lodgic/pkg/model"
)

// UnitGetter resolves unit metadata for owner checks. Satisfied by
// client.UnitsClient in production and by function mocks in tests.
type UnitGetter interface {
	GetUnit(ctx context.Context, id string) (*model.Unit, error)
}

type CalendarService interface {
	ListDays(ctx context.Context, unitID string, from, to *time.Time, limit int, offset int64) ([]*model.CalendarDay, int64, error)
	BlockRange(ctx context.Context, unitID string, actorID string, r model.DateRange) error
	FreeRange(ctx context.Context, unitID string, actorID string, r model.DateRange) error
}

type calendarService struct {
	repo  repository.CalendarRepository
	units UnitGetter
	cfg   *config.Config
}

func NewCalendarService(
	repo repository.CalendarRepository,
	units UnitGetter,
	cfg *config.Config,
) CalendarService {
	return &calendarService{
		repo:  repo,
		units: units,
		cfg:   cfg,
	}
}

func (s *calendarService) ListDays(ctx context.Context, unitID string, from, to *time.Time, limit int, offset int64) ([]*model.CalendarDay, int64, error) {
	if unitID == "" {
		return nil, 0, apperrors.InvalidInput("Unit ID cannot be empty")
	}

	var count int64
	var days []*model.CalendarDay
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUnit(ctx, unitID, from, to)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count calendar days", "unit_id", unitID, "error", errCount)
			errCount = apperrors.Internal("Failed to count calendar days", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		days, errFind = s.repo.FindByUnit(ctx, unitID, from, to, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list calendar days", "unit_id", unitID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve calendar days", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return days, count, nil
}

// BlockRange marks a range occupied with no reservation reference, the unit
// owner's manual hold. Days already held by a reservation cannot be blocked
// over; the reservation core owns those rows until its own transitions free
// them.
func (s *calendarService) BlockRange(ctx context.Context, unitID string, actorID string, r model.DateRange) error {
	if err := s.authorizeOwner(ctx, unitID, actorID); err != nil {
		return err
	}
	if !r.IsValid() {
		return apperrors.Validation("Check-out must be after check-in", map[string]any{"range": r.String()})
	}

	days, err := s.repo.FindRange(ctx, unitID, r)
	if err != nil {
		s.cfg.Log.Error("Failed to read calendar range", "unit_id", unitID, "range", r.String(), "error", err)
		return apperrors.Internal("Failed to read calendar range", err)
	}
	for _, day := range days {
		if !day.IsAvailable && day.ReservationID != "" {
			return apperrors.DateConflict("Range intersects reservation-held days", map[string]any{
				"unit_id":        unitID,
				"date":           day.Date.Format(model.DateLayout),
				"reservation_id": day.ReservationID,
			})
		}
	}

	if err := s.repo.SetOccupied(ctx, unitID, r, ""); err != nil {
		s.cfg.Log.Error("Failed to block calendar range", "unit_id", unitID, "range", r.String(), "error", err)
		return apperrors.Internal("Failed to block calendar range", err)
	}

	s.cfg.Log.Info("Calendar range blocked", "unit_id", unitID, "range", r.String(), "actor_id", actorID)
	return nil
}

// FreeRange releases a manually blocked range. It also clears reservation
// holds in the range, so owners only get it after cancellation flows; the
// reservation core itself frees through its own transitions.
func (s *calendarService) FreeRange(ctx context.Context, unitID string, actorID string, r model.DateRange) error {
	if err := s.authorizeOwner(ctx, unitID, actorID); err != nil {
		return err
	}
	if !r.IsValid() {
		return apperrors.Validation("Check-out must be after check-in", map[string]any{"range": r.String()})
	}

	if err := s.repo.SetFree(ctx, unitID, r); err != nil {
		s.cfg.Log.Error("Failed to free calendar range", "unit_id", unitID, "range", r.String(), "error", err)
		return apperrors.Internal("Failed to free calendar range", err)
	}

	s.cfg.Log.Info("Calendar range freed", "unit_id", unitID, "range", r.String(), "actor_id", actorID)
	return nil
}

func (s *calendarService) authorizeOwner(ctx context.Context, unitID string, actorID string) error {
	if unitID == "" {
		return apperrors.InvalidInput("Unit ID cannot be empty")
	}

	unit, err := s.units.GetUnit(ctx, unitID)
	if err != nil {
		return err
	}
	if unit.LessorID != actorID {
		return apperrors.Forbidden("Only the unit lessor may manage its calendar")
	}
	return nil
}
