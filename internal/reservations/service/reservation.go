package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	calrepo "lodgic/internal/calendar/repository"
	reserrors "lodgic/internal/reservations/errors"
	"lodgic/internal/reservations/events"
	"lodgic/internal/reservations/repository"
	"lodgic/internal/reservations/validator"
	unitserrors "lodgic/internal/units/errors"
	unitsrepo "lodgic/internal/units/repository"
	"lodgic/pkg/clock"
	"lodgic/pkg/config"
	apperrors "lodgic/pkg/errors"
	"lodgic/pkg/model"
	"lodgic/pkg/sanitizer"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

type ReservationService interface {
	CheckAvailability(ctx context.Context, unitID string, checkIn, checkOut time.Time) (bool, string, error)
	Create(ctx context.Context, reservation *model.Reservation) error
	Confirm(ctx context.Context, id string, actorID string) (*model.Reservation, error)
	Reject(ctx context.Context, id string, actorID string, reason string) (*model.Reservation, error)
	Cancel(ctx context.Context, id string, actorID string, reason string) (*model.Reservation, error)
	Complete(ctx context.Context, id string) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)

	// GetAll and SearchByUnit match the status filter against the stored
	// status, then label each result with its derived effective status. A
	// confirmed filter can therefore return items reading active or
	// completed once their dates have passed.
	GetAll(ctx context.Context, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, int64, error)
	SearchByUnit(ctx context.Context, unitID string, from, to *time.Time, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, int64, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.UnitLockRepository
	calendar  calrepo.CalendarRepository
	units     unitsrepo.UnitRepository
	validator *validator.ReservationValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.UnitLockRepository,
	calendar calrepo.CalendarRepository,
	units unitsrepo.UnitRepository,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		calendar:  calendar,
		units:     units,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// CheckAvailability reports whether the half-open range is free for the unit.
// It consults both the calendar ledger and the reservation table; any
// disagreement or storage failure reads as not free.
func (s *reservationService) CheckAvailability(ctx context.Context, unitID string, checkIn, checkOut time.Time) (bool, string, error) {
	dr := model.NewDateRange(checkIn, checkOut)
	if !dr.IsValid() {
		return false, "", apperrors.Validation("Check-out must be after check-in", map[string]any{"range": dr.String()})
	}
	if dr.CheckIn.Before(clock.Today(s.cfg.Clock)) {
		return false, "", apperrors.Validation("Check-in cannot be in the past", map[string]any{"check_in": dr.CheckIn.Format(model.DateLayout)})
	}

	return s.probeAvailability(ctx, unitID, dr, "")
}

// probeAvailability is the two-source availability check shared by reads and
// the in-transaction re-check before inserts and confirms.
func (s *reservationService) probeAvailability(ctx context.Context, unitID string, dr model.DateRange, excludeReservationID string) (bool, string, error) {
	blocked, err := s.calendar.CountUnavailable(ctx, unitID, dr, excludeReservationID)
	if err != nil {
		s.cfg.Log.Error("Failed to probe calendar ledger", "unit_id", unitID, "range", dr.String(), "error", err)
		return false, "", apperrors.Unavailable("Availability check failed, please retry")
	}
	if blocked > 0 {
		return false, "dates are blocked on the unit calendar", nil
	}

	overlapping, err := s.repo.FindOverlapping(ctx, unitID, dr, excludeReservationID)
	if err != nil {
		s.cfg.Log.Error("Failed to probe overlapping reservations", "unit_id", unitID, "range", dr.String(), "error", err)
		return false, "", apperrors.Unavailable("Availability check failed, please retry")
	}
	if len(overlapping) > 0 {
		return false, "dates conflict with an existing reservation", nil
	}

	return true, "", nil
}

// verifyAvailable converts an availability probe into a DATE_CONFLICT error.
func (s *reservationService) verifyAvailable(ctx context.Context, unitID string, dr model.DateRange, excludeReservationID string) error {
	free, reason, err := s.probeAvailability(ctx, unitID, dr, excludeReservationID)
	if err != nil {
		return err
	}
	if !free {
		return apperrors.DateConflict("Requested dates are not available", map[string]any{
			"unit_id":   unitID,
			"check_in":  dr.CheckIn.Format(model.DateLayout),
			"check_out": dr.CheckOut.Format(model.DateLayout),
			"reason":    reason,
		})
	}
	return nil
}

// Create inserts a pending reservation. Pending holds dates through the
// reservation table overlap rule only; the calendar ledger is written at
// confirmation.
func (s *reservationService) Create(ctx context.Context, reservation *model.Reservation) error {
	s.applyDefaults(reservation)
	s.sanitize(reservation)

	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	unit, err := s.findUnit(ctx, reservation.UnitID)
	if err != nil {
		return err
	}
	if err := s.checkUnitConstraints(unit, reservation); err != nil {
		return err
	}

	dr := reservation.Range()

	lockID, err := s.acquireUnitLock(ctx, reservation.UnitID)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.releaseUnitLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release unit lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyAvailable(sessCtx, reservation.UnitID, dr, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation", "unit_id", reservation.UnitID, "error", err)
		return err
	}

	s.publish(ctx, events.EventCreated, reservation)

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"code", reservation.Code,
		"unit_id", reservation.UnitID,
		"check_in", reservation.CheckIn.Format(model.DateLayout),
		"check_out", reservation.CheckOut.Format(model.DateLayout),
	)
	return nil
}

// Confirm moves a pending reservation to confirmed and occupies the calendar
// ledger. Only the unit lessor may confirm.
func (s *reservationService) Confirm(ctx context.Context, id string, actorID string) (*model.Reservation, error) {
	reservation, err := s.findReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	unit, err := s.findUnit(ctx, reservation.UnitID)
	if err != nil {
		return nil, err
	}
	if unit.LessorID != actorID {
		return nil, apperrors.Forbidden("Only the unit lessor may confirm a reservation")
	}

	if reservation.Status != model.StatusPending {
		return nil, apperrors.StateConflict(string(reservation.Status), "confirm")
	}

	dr := reservation.Range()
	now := s.cfg.Clock.Now().UTC()

	lockID, err := s.acquireUnitLock(ctx, reservation.UnitID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseUnitLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release unit lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyAvailable(sessCtx, reservation.UnitID, dr, reservation.ID); err != nil {
			return err
		}
		if err := s.repo.SetConfirmed(sessCtx, id, now); err != nil {
			if errors.Is(err, reserrors.ErrStatusChanged) {
				return apperrors.StateConflict(string(reservation.Status), "confirm")
			}
			return apperrors.Internal("Failed to confirm reservation", err)
		}
		if err := s.calendar.SetOccupied(sessCtx, reservation.UnitID, dr, reservation.ID); err != nil {
			return apperrors.Internal("Failed to occupy calendar days", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to confirm reservation", "id", id, "error", err)
		return nil, err
	}

	reservation.Status = model.StatusConfirmed
	reservation.ConfirmedAt = &now

	s.publish(ctx, events.EventConfirmed, reservation)

	s.cfg.Log.Info("Reservation confirmed successfully", "id", id, "unit_id", reservation.UnitID)
	return reservation, nil
}

// Reject declines a pending reservation. No calendar change: pending never
// wrote the ledger.
func (s *reservationService) Reject(ctx context.Context, id string, actorID string, reason string) (*model.Reservation, error) {
	reservation, err := s.findReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	unit, err := s.findUnit(ctx, reservation.UnitID)
	if err != nil {
		return nil, err
	}
	if unit.LessorID != actorID {
		return nil, apperrors.Forbidden("Only the unit lessor may reject a reservation")
	}

	if reservation.Status != model.StatusPending {
		return nil, apperrors.StateConflict(string(reservation.Status), "reject")
	}

	reason = sanitizer.SanitizeFreeText(reason, config.MaxReasonLength)
	now := s.cfg.Clock.Now().UTC()

	if err := s.repo.SetRejected(ctx, id, actorID, reason, now); err != nil {
		if errors.Is(err, reserrors.ErrStatusChanged) {
			return nil, apperrors.StateConflict(string(reservation.Status), "reject")
		}
		s.cfg.Log.Error("Failed to reject reservation", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to reject reservation", err)
	}

	reservation.Status = model.StatusRejected
	reservation.CancelledBy = actorID
	reservation.CancellationReason = reason
	reservation.CancelledAt = &now

	s.publish(ctx, events.EventRejected, reservation)

	s.cfg.Log.Info("Reservation rejected successfully", "id", id, "unit_id", reservation.UnitID)
	return reservation, nil
}

// Cancel withdraws a reservation on the requester's behalf. Allowed only for
// pending or confirmed stays, and only strictly before the cutoff deadline.
// Cancelling a confirmed reservation frees its calendar days.
func (s *reservationService) Cancel(ctx context.Context, id string, actorID string, reason string) (*model.Reservation, error) {
	reservation, err := s.findReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if reservation.RequesterID != actorID {
		return nil, apperrors.Forbidden("Only the requester may cancel a reservation")
	}

	today := clock.Today(s.cfg.Clock)
	if !reservation.CanBeCancelled(today) {
		if reservation.Status != model.StatusPending && reservation.Status != model.StatusConfirmed {
			return nil, apperrors.StateConflict(string(reservation.Status), "cancel")
		}
		deadline := reservation.CheckIn.AddDate(0, 0, -model.CancellationCutoffDays)
		return nil, apperrors.New(
			apperrors.CodeStateConflict,
			fmt.Sprintf("Cancellation is only allowed until %d days before check-in", model.CancellationCutoffDays),
			http.StatusConflict,
		).WithDetails(map[string]any{
			"check_in": reservation.CheckIn.Format(model.DateLayout),
			"deadline": deadline.Format(model.DateLayout),
			"today":    today.Format(model.DateLayout),
		})
	}

	reason = sanitizer.SanitizeFreeText(reason, config.MaxReasonLength)
	now := s.cfg.Clock.Now().UTC()
	wasConfirmed := reservation.Status == model.StatusConfirmed
	dr := reservation.Range()

	lockID, err := s.acquireUnitLock(ctx, reservation.UnitID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseUnitLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release unit lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.SetCancelled(sessCtx, id, reservation.Status, actorID, reason, now); err != nil {
			if errors.Is(err, reserrors.ErrStatusChanged) {
				return apperrors.StateConflict(string(reservation.Status), "cancel")
			}
			return apperrors.Internal("Failed to cancel reservation", err)
		}
		if wasConfirmed {
			if err := s.calendar.SetFree(sessCtx, reservation.UnitID, dr); err != nil {
				return apperrors.Internal("Failed to free calendar days", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel reservation", "id", id, "error", err)
		return nil, err
	}

	reservation.Status = model.StatusCancelled
	reservation.CancelledBy = actorID
	reservation.CancellationReason = reason
	reservation.CancelledAt = &now

	s.publish(ctx, events.EventCancelled, reservation)

	s.cfg.Log.Info("Reservation cancelled successfully",
		"id", id,
		"unit_id", reservation.UnitID,
		"was_confirmed", wasConfirmed,
	)
	return reservation, nil
}

// Complete finalizes a stay whose check-out has passed. The derived status
// already reads completed by then; this persists it and stamps completed_at.
func (s *reservationService) Complete(ctx context.Context, id string) (*model.Reservation, error) {
	reservation, err := s.findReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if reservation.Status != model.StatusConfirmed && reservation.Status != model.StatusActive {
		return nil, apperrors.StateConflict(string(reservation.Status), "complete")
	}

	today := clock.Today(s.cfg.Clock)
	if today.Before(reservation.CheckOut) {
		return nil, apperrors.New(
			apperrors.CodeStateConflict,
			"Cannot complete a reservation before its check-out date",
			http.StatusConflict,
		).WithDetails(map[string]any{
			"check_out": reservation.CheckOut.Format(model.DateLayout),
			"today":     today.Format(model.DateLayout),
		})
	}

	now := s.cfg.Clock.Now().UTC()
	if err := s.repo.SetCompleted(ctx, id, now); err != nil {
		if errors.Is(err, reserrors.ErrStatusChanged) {
			return nil, apperrors.StateConflict(string(reservation.Status), "complete")
		}
		s.cfg.Log.Error("Failed to complete reservation", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to complete reservation", err)
	}

	reservation.Status = model.StatusCompleted
	reservation.CompletedAt = &now

	s.publish(ctx, events.EventCompleted, reservation)

	s.cfg.Log.Info("Reservation completed successfully", "id", id, "unit_id", reservation.UnitID)
	return reservation, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	reservation, err := s.findReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	s.deriveStatus(reservation)
	return reservation, nil
}

func (s *reservationService) GetAll(ctx context.Context, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, int64, error) {
	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, status)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = s.repo.FindAll(ctx, status, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	for _, r := range reservations {
		s.deriveStatus(r)
	}
	return reservations, count, nil
}

func (s *reservationService) SearchByUnit(ctx context.Context, unitID string, from, to *time.Time, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if unitID == "" {
		return nil, 0, apperrors.InvalidInput("Unit ID is required")
	}

	var count int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.CountByUnit(ctx, unitID, from, to, status)
		if err != nil {
			s.cfg.Log.Error("Failed to count reservations by search", "unit_id", unitID, "error", err)
			errCount = apperrors.Internal("Failed to count reservations", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		reservations, err = s.repo.FindByUnit(ctx, unitID, from, to, status, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to search reservations", "unit_id", unitID, "error", err)
			errFind = apperrors.Internal("Failed to search reservations", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	for _, r := range reservations {
		s.deriveStatus(r)
	}
	return reservations, count, nil
}

// --- Helpers ---

func (s *reservationService) applyDefaults(r *model.Reservation) {
	r.CheckIn = model.NormalizeDate(r.CheckIn)
	r.CheckOut = model.NormalizeDate(r.CheckOut)
	r.Status = model.StatusPending
	if r.Code == "" {
		r.Code = uuid.NewString()
	}
}

func (s *reservationService) sanitize(r *model.Reservation) {
	r.Guest.FirstName = sanitizer.SanitizeName(r.Guest.FirstName)
	r.Guest.LastName = sanitizer.SanitizeName(r.Guest.LastName)
	r.Guest.Phone = sanitizer.NormalizePhone(r.Guest.Phone)
	r.Guest.Notes = sanitizer.SanitizeFreeText(r.Guest.Notes, 1000)
}

func (s *reservationService) checkUnitConstraints(unit *model.Unit, r *model.Reservation) error {
	nights := r.Nights()
	if !unit.AllowsStay(nights) {
		return apperrors.Validation("Stay length violates unit constraints", map[string]any{
			"nights":        nights,
			"min_stay_days": unit.MinStayDays,
			"max_stay_days": unit.MaxStayDays,
		})
	}
	if !unit.AllowsGuests(r.GuestCount) {
		return apperrors.Validation("Guest count exceeds unit capacity", map[string]any{
			"guest_count": r.GuestCount,
			"max_guests":  unit.MaxGuests,
		})
	}
	return nil
}

// deriveStatus overlays the clock-derived status on a read. The stored status
// is untouched; persistence of active/completed happens at Complete or not at
// all.
func (s *reservationService) deriveStatus(r *model.Reservation) {
	r.Status = r.EffectiveStatus(clock.Today(s.cfg.Clock))
}

func (s *reservationService) findReservation(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

func (s *reservationService) findUnit(ctx context.Context, unitID string) (*model.Unit, error) {
	unit, err := s.units.FindByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, unitserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Unit", unitID)
		}
		if errors.Is(err, unitserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid unit ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve unit", err)
	}
	return unit, nil
}

// acquireUnitLock serializes check-then-write operations per unit. A held lock
// is a transient condition: the caller retries, it is never a date conflict.
func (s *reservationService) acquireUnitLock(ctx context.Context, unitID string) (string, error) {
	lockID := fmt.Sprintf("unit_lock_%s", unitID)

	lock := &model.UnitLock{
		ID:        lockID,
		UnitID:    unitID,
		ExpiresAt: s.cfg.Clock.Now().Add(s.cfg.UnitLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Unavailable("Another reservation request for this unit is in flight. Please retry.")
		}
		return "", apperrors.Internal("Failed to acquire unit lock", err)
	}

	return lockID, nil
}

func (s *reservationService) releaseUnitLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}

func (s *reservationService) publish(ctx context.Context, eventType string, reservation *model.Reservation) {
	if err := s.publisher.Publish(ctx, eventType, reservation); err != nil {
		s.cfg.Log.Warn("Failed to publish reservation event",
			"event", eventType,
			"id", reservation.ID,
			"error", err,
		)
	}
}
