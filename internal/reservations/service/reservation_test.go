package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	reserrors "lodgic/internal/reservations/errors"
	"lodgic/internal/reservations/validator"
	unitserrors "lodgic/internal/units/errors"
	"lodgic/pkg/clock"
	"lodgic/pkg/config"
	mongotx "lodgic/pkg/db/mongo"
	apperrors "lodgic/pkg/errors"
	"lodgic/pkg/logger"
	"lodgic/pkg/model"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// --- In-memory fakes ---

type fakeReservationRepo struct {
	mu                 sync.Mutex
	reservations       map[string]*model.Reservation
	findOverlappingErr error
	createErr          error
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[string]*model.Reservation)}
}

func (f *fakeReservationRepo) Create(ctx context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if r.ID == "" {
		r.ID = primitive.NewObjectID().Hex()
	}
	r.CreatedAt = time.Now().UTC()
	stored := *r
	f.reservations[r.ID] = &stored
	return nil
}

func (f *fakeReservationRepo) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, reserrors.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeReservationRepo) FindAll(ctx context.Context, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reservation
	for _, r := range f.reservations {
		if status != "" && r.Status != status {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeReservationRepo) Count(ctx context.Context, status model.ReservationStatus) (int64, error) {
	all, _ := f.FindAll(ctx, status, 0, 0)
	return int64(len(all)), nil
}

func (f *fakeReservationRepo) FindByUnit(ctx context.Context, unitID string, from, to *time.Time, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reservation
	for _, r := range f.reservations {
		if r.UnitID != unitID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		if from != nil && !r.CheckOut.After(*from) {
			continue
		}
		if to != nil && !r.CheckIn.Before(*to) {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeReservationRepo) CountByUnit(ctx context.Context, unitID string, from, to *time.Time, status model.ReservationStatus) (int64, error) {
	found, _ := f.FindByUnit(ctx, unitID, from, to, status, 0, 0)
	return int64(len(found)), nil
}

func (f *fakeReservationRepo) FindOverlapping(ctx context.Context, unitID string, dr model.DateRange, excludeID string) ([]*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findOverlappingErr != nil {
		return nil, f.findOverlappingErr
	}
	var out []*model.Reservation
	for _, r := range f.reservations {
		if r.UnitID != unitID || !r.Status.Holds() {
			continue
		}
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if r.Range().Overlaps(dr) {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) transition(id string, from []model.ReservationStatus, apply func(r *model.Reservation)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return reserrors.ErrNotFound
	}
	for _, s := range from {
		if r.Status == s {
			apply(r)
			return nil
		}
	}
	return reserrors.ErrStatusChanged
}

func (f *fakeReservationRepo) SetConfirmed(ctx context.Context, id string, at time.Time) error {
	return f.transition(id, []model.ReservationStatus{model.StatusPending}, func(r *model.Reservation) {
		r.Status = model.StatusConfirmed
		r.ConfirmedAt = &at
	})
}

func (f *fakeReservationRepo) SetRejected(ctx context.Context, id string, by string, reason string, at time.Time) error {
	return f.transition(id, []model.ReservationStatus{model.StatusPending}, func(r *model.Reservation) {
		r.Status = model.StatusRejected
		r.CancelledBy = by
		r.CancellationReason = reason
		r.CancelledAt = &at
	})
}

func (f *fakeReservationRepo) SetCancelled(ctx context.Context, id string, from model.ReservationStatus, by string, reason string, at time.Time) error {
	return f.transition(id, []model.ReservationStatus{from}, func(r *model.Reservation) {
		r.Status = model.StatusCancelled
		r.CancelledBy = by
		r.CancellationReason = reason
		r.CancelledAt = &at
	})
}

func (f *fakeReservationRepo) SetCompleted(ctx context.Context, id string, at time.Time) error {
	return f.transition(id, []model.ReservationStatus{model.StatusConfirmed, model.StatusActive}, func(r *model.Reservation) {
		r.Status = model.StatusCompleted
		r.CompletedAt = &at
	})
}

func (f *fakeReservationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	sessCtx := mongo.NewSessionContext(ctx, nil)
	return fn(sessCtx)
}

type fakeLockRepo struct {
	mu   sync.Mutex
	held map[string]bool
	fail error
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{held: make(map[string]bool)}
}

// duplicateKeyErr is recognized by mongo.IsDuplicateKeyError.
var duplicateKeyErr = mongo.WriteException{
	WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
}

func (f *fakeLockRepo) Create(ctx context.Context, lock *model.UnitLock) (*model.UnitLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	if f.held[lock.ID] {
		return nil, duplicateKeyErr
	}
	f.held[lock.ID] = true
	return lock, nil
}

func (f *fakeLockRepo) Delete(ctx context.Context, lockID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, lockID)
	return nil
}

type fakeCalendarRepo struct {
	mu       sync.Mutex
	days     map[string]*model.CalendarDay
	countErr error
}

func newFakeCalendarRepo() *fakeCalendarRepo {
	return &fakeCalendarRepo{days: make(map[string]*model.CalendarDay)}
}

func dayKey(unitID string, d time.Time) string {
	return unitID + "|" + d.Format(model.DateLayout)
}

func (f *fakeCalendarRepo) GetOrInit(ctx context.Context, unitID string, date time.Time) (*model.CalendarDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dayKey(unitID, date)
	if d, ok := f.days[key]; ok {
		return d, nil
	}
	d := &model.CalendarDay{UnitID: unitID, Date: model.NormalizeDate(date), IsAvailable: true}
	f.days[key] = d
	return d, nil
}

func (f *fakeCalendarRepo) SetOccupied(ctx context.Context, unitID string, r model.DateRange, reservationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range r.Days() {
		f.days[dayKey(unitID, d)] = &model.CalendarDay{
			UnitID:        unitID,
			Date:          d,
			IsAvailable:   false,
			ReservationID: reservationID,
		}
	}
	return nil
}

func (f *fakeCalendarRepo) SetFree(ctx context.Context, unitID string, r model.DateRange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range r.Days() {
		f.days[dayKey(unitID, d)] = &model.CalendarDay{
			UnitID:      unitID,
			Date:        d,
			IsAvailable: true,
		}
	}
	return nil
}

func (f *fakeCalendarRepo) FindRange(ctx context.Context, unitID string, r model.DateRange) ([]*model.CalendarDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.CalendarDay
	for _, d := range r.Days() {
		if day, ok := f.days[dayKey(unitID, d)]; ok {
			out = append(out, day)
		}
	}
	return out, nil
}

func (f *fakeCalendarRepo) CountUnavailable(ctx context.Context, unitID string, r model.DateRange, excludeReservationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	var count int64
	for _, d := range r.Days() {
		day, ok := f.days[dayKey(unitID, d)]
		if !ok || day.IsAvailable {
			continue
		}
		if excludeReservationID != "" && day.ReservationID == excludeReservationID {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeCalendarRepo) FindByUnit(ctx context.Context, unitID string, from, to *time.Time, limit int, offset int64) ([]*model.CalendarDay, error) {
	return nil, nil
}

func (f *fakeCalendarRepo) CountByUnit(ctx context.Context, unitID string, from, to *time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeCalendarRepo) occupied(unitID string, d time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	day, ok := f.days[dayKey(unitID, d)]
	return ok && !day.IsAvailable
}

// snapshot copies the ledger state for before/after comparisons.
func (f *fakeCalendarRepo) snapshot() map[string]model.CalendarDay {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]model.CalendarDay, len(f.days))
	for k, d := range f.days {
		out[k] = *d
	}
	return out
}

type fakeUnitRepo struct {
	mu    sync.Mutex
	units map[string]*model.Unit
}

func newFakeUnitRepo() *fakeUnitRepo {
	return &fakeUnitRepo{units: make(map[string]*model.Unit)}
}

func (f *fakeUnitRepo) Create(ctx context.Context, u *model.Unit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = primitive.NewObjectID().Hex()
	}
	f.units[u.ID] = u
	return nil
}

func (f *fakeUnitRepo) FindByID(ctx context.Context, id string) (*model.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return nil, unitserrors.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUnitRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Unit, error) {
	return nil, nil
}

func (f *fakeUnitRepo) Update(ctx context.Context, id string, unit *model.Unit) (*mongo.UpdateResult, error) {
	return nil, nil
}

func (f *fakeUnitRepo) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeUnitRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

type capturingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturingPublisher) Publish(ctx context.Context, eventType string, r *model.Reservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return ""
	}
	return p.events[len(p.events)-1]
}

// --- Fixture ---

type fixture struct {
	service   ReservationService
	repo      *fakeReservationRepo
	locks     *fakeLockRepo
	calendar  *fakeCalendarRepo
	units     *fakeUnitRepo
	publisher *capturingPublisher
	clock     *clockwork.FakeClock
	unitID    string
	lessorID  string
}

func newFixture(t *testing.T, today time.Time) *fixture {
	t.Helper()

	fakeClock := clock.NewFakeAt(today)
	cfg := &config.Config{
		Log:          logger.Discard(),
		Clock:        fakeClock,
		UnitLockTTL:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	repo := newFakeReservationRepo()
	locks := newFakeLockRepo()
	calendar := newFakeCalendarRepo()
	units := newFakeUnitRepo()
	publisher := &capturingPublisher{}

	lessorID := "lessor-1"
	unit := &model.Unit{
		LessorID:    lessorID,
		Title:       "Seaside cabin",
		MinStayDays: 2,
		MaxStayDays: 30,
		MaxGuests:   4,
	}
	if err := units.Create(context.Background(), unit); err != nil {
		t.Fatalf("failed to seed unit: %v", err)
	}

	svc := NewReservationService(
		repo,
		locks,
		calendar,
		units,
		validator.NewReservationValidator(fakeClock, logger.Discard()),
		publisher,
		cfg,
	)

	return &fixture{
		service:   svc,
		repo:      repo,
		locks:     locks,
		calendar:  calendar,
		units:     units,
		publisher: publisher,
		clock:     fakeClock,
		unitID:    unit.ID,
		lessorID:  lessorID,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) newReservation(checkIn, checkOut time.Time) *model.Reservation {
	return &model.Reservation{
		UnitID:      f.unitID,
		RequesterID: "requester-1",
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		GuestCount:  2,
		Guest: model.GuestInfo{
			FirstName: "Dana",
			LastName:  "Levi",
		},
	}
}

func (f *fixture) mustCreate(t *testing.T, checkIn, checkOut time.Time) *model.Reservation {
	t.Helper()
	r := f.newReservation(checkIn, checkOut)
	if err := f.service.Create(context.Background(), r); err != nil {
		t.Fatalf("failed to create reservation: %v", err)
	}
	return r
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.IsCode(err, code) {
		t.Fatalf("expected %s error, got: %v", code, err)
	}
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
	if err := f.service.Create(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.ID == "" {
		t.Error("reservation ID not assigned")
	}
	if r.Code == "" {
		t.Error("confirmation code not assigned")
	}
	if r.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", r.Status)
	}
	if f.publisher.last() != "reservation.created" {
		t.Errorf("published event = %q, want reservation.created", f.publisher.last())
	}

	// Pending must not touch the calendar ledger.
	if f.calendar.occupied(f.unitID, date(2026, time.June, 10)) {
		t.Error("pending reservation should not occupy calendar days")
	}

	// Lock released after the operation.
	if len(f.locks.held) != 0 {
		t.Error("unit lock not released")
	}
}

func TestCreate_SanitizesGuest(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
	r.Guest.FirstName = "  Dana<>"
	r.Guest.Phone = "415-555-2671"
	r.Guest.Notes = strings.Repeat("x", 2000)

	if err := f.service.Create(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Guest.FirstName != "Dana" {
		t.Errorf("first name = %q, want Dana", r.Guest.FirstName)
	}
	if r.Guest.Phone != "+14155552671" {
		t.Errorf("phone = %q, want +14155552671", r.Guest.Phone)
	}
	if len(r.Guest.Notes) != 1000 {
		t.Errorf("notes length = %d, want 1000", len(r.Guest.Notes))
	}
}

func TestCreate_OverlapConflict(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	r := f.newReservation(date(2026, time.June, 12), date(2026, time.June, 16))
	err := f.service.Create(context.Background(), r)
	assertCode(t, err, apperrors.CodeDateConflict)

	appErr := apperrors.AsAppError(err)
	if appErr.Details["reason"] != "dates conflict with an existing reservation" {
		t.Errorf("unexpected conflict reason: %v", appErr.Details["reason"])
	}
}

func TestCreate_BackToBackAllowed(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	// Check-in on the previous stay's check-out day must succeed.
	r := f.newReservation(date(2026, time.June, 14), date(2026, time.June, 17))
	if err := f.service.Create(context.Background(), r); err != nil {
		t.Fatalf("back-to-back reservation should be allowed: %v", err)
	}
}

func TestCreate_BlockedCalendarConflict(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	blocked := model.NewDateRange(date(2026, time.June, 12), date(2026, time.June, 13))
	if err := f.calendar.SetOccupied(context.Background(), f.unitID, blocked, ""); err != nil {
		t.Fatalf("failed to block calendar: %v", err)
	}

	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
	err := f.service.Create(context.Background(), r)
	assertCode(t, err, apperrors.CodeDateConflict)

	appErr := apperrors.AsAppError(err)
	if appErr.Details["reason"] != "dates are blocked on the unit calendar" {
		t.Errorf("unexpected conflict reason: %v", appErr.Details["reason"])
	}
}

func TestCreate_CancelledReservationDoesNotBlock(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	first := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Cancel(context.Background(), first.ID, "requester-1", "changed plans"); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}

	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
	if err := f.service.Create(context.Background(), r); err != nil {
		t.Fatalf("cancelled reservation should not block dates: %v", err)
	}
}

func TestCreate_StayTooShort(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	// MinStayDays is 2; one night violates it.
	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 11))
	err := f.service.Create(context.Background(), r)
	assertCode(t, err, apperrors.CodeValidation)

	appErr := apperrors.AsAppError(err)
	if appErr.Details["nights"] != 1 {
		t.Errorf("details nights = %v, want 1", appErr.Details["nights"])
	}
}

func TestCreate_MinStayBoundary(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	// Exactly MinStayDays nights is allowed.
	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 12))
	if err := f.service.Create(context.Background(), r); err != nil {
		t.Fatalf("minimum-length stay should be allowed: %v", err)
	}
}

func TestCreate_TooManyGuests(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
	r.GuestCount = 5

	err := f.service.Create(context.Background(), r)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestCreate_UnitNotFound(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
	r.UnitID = primitive.NewObjectID().Hex()

	err := f.service.Create(context.Background(), r)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestCreate_PastCheckIn(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 20))

	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
	err := f.service.Create(context.Background(), r)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestCreate_LockHeld(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	f.locks.held["unit_lock_"+f.unitID] = true

	r := f.newReservation(date(2026, time.June, 10), date(2026, time.June, 14))
	err := f.service.Create(context.Background(), r)
	assertCode(t, err, apperrors.CodeUnavailable)
}

// --- CheckAvailability ---

func TestCheckAvailability_Free(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	free, reason, err := f.service.CheckAvailability(context.Background(), f.unitID, date(2026, time.June, 10), date(2026, time.June, 14))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !free {
		t.Errorf("expected free, got reason %q", reason)
	}
}

func TestCheckAvailability_Blocked(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	free, reason, err := f.service.CheckAvailability(context.Background(), f.unitID, date(2026, time.June, 13), date(2026, time.June, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free {
		t.Error("expected not free")
	}
	if reason == "" {
		t.Error("expected a reason for unavailability")
	}
}

func TestCheckAvailability_InvalidRange(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	_, _, err := f.service.CheckAvailability(context.Background(), f.unitID, date(2026, time.June, 14), date(2026, time.June, 10))
	assertCode(t, err, apperrors.CodeValidation)
}

func TestCheckAvailability_FailsClosed(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	f.calendar.countErr = context.DeadlineExceeded

	_, _, err := f.service.CheckAvailability(context.Background(), f.unitID, date(2026, time.June, 10), date(2026, time.June, 14))
	assertCode(t, err, apperrors.CodeUnavailable)
}

// --- Confirm ---

func TestConfirm_Success(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	confirmed, err := f.service.Confirm(context.Background(), r.ID, f.lessorID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}
	if confirmed.ConfirmedAt == nil {
		t.Error("confirmed_at not stamped")
	}
	if f.publisher.last() != "reservation.confirmed" {
		t.Errorf("published event = %q, want reservation.confirmed", f.publisher.last())
	}

	// Calendar ledger occupied for [check-in, check-out).
	if !f.calendar.occupied(f.unitID, date(2026, time.June, 10)) {
		t.Error("check-in day should be occupied")
	}
	if !f.calendar.occupied(f.unitID, date(2026, time.June, 13)) {
		t.Error("last night should be occupied")
	}
	if f.calendar.occupied(f.unitID, date(2026, time.June, 14)) {
		t.Error("check-out day should not be occupied")
	}
}

func TestConfirm_OccupyReapplyLeavesLedgerUnchanged(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	once := f.calendar.snapshot()
	if len(once) != 4 {
		t.Fatalf("ledger rows after confirm = %d, want 4", len(once))
	}

	// A retried confirm re-applies the same occupy write.
	dr := model.NewDateRange(r.CheckIn, r.CheckOut)
	if err := f.calendar.SetOccupied(context.Background(), f.unitID, dr, r.ID); err != nil {
		t.Fatalf("re-occupy failed: %v", err)
	}

	twice := f.calendar.snapshot()
	if len(twice) != len(once) {
		t.Fatalf("ledger rows after re-occupy = %d, want %d", len(twice), len(once))
	}
	for key, before := range once {
		after, ok := twice[key]
		if !ok {
			t.Fatalf("ledger row %s disappeared after re-occupy", key)
		}
		if after != before {
			t.Errorf("ledger row %s changed after re-occupy: %+v != %+v", key, after, before)
		}
		if after.ReservationID != r.ID {
			t.Errorf("ledger row %s reservation_id = %q, want %q", key, after.ReservationID, r.ID)
		}
	}
}

func TestConfirm_NotLessor(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	_, err := f.service.Confirm(context.Background(), r.ID, "someone-else")
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestConfirm_AlreadyConfirmed(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	_, err := f.service.Confirm(context.Background(), r.ID, f.lessorID)
	assertCode(t, err, apperrors.CodeStateConflict)
}

func TestConfirm_NotFound(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	_, err := f.service.Confirm(context.Background(), primitive.NewObjectID().Hex(), f.lessorID)
	assertCode(t, err, apperrors.CodeNotFound)
}

// --- Reject ---

func TestReject_Success(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	rejected, err := f.service.Reject(context.Background(), r.ID, f.lessorID, "unit under maintenance")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != model.StatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	if rejected.CancellationReason != "unit under maintenance" {
		t.Errorf("reason = %q", rejected.CancellationReason)
	}
	if rejected.CancelledBy != f.lessorID {
		t.Errorf("cancelled_by = %q, want lessor", rejected.CancelledBy)
	}
	if f.publisher.last() != "reservation.rejected" {
		t.Errorf("published event = %q, want reservation.rejected", f.publisher.last())
	}

	// Reject never touches the ledger.
	if f.calendar.occupied(f.unitID, date(2026, time.June, 10)) {
		t.Error("reject should not touch calendar days")
	}
}

func TestReject_TruncatesReason(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	rejected, err := f.service.Reject(context.Background(), r.ID, f.lessorID, strings.Repeat("a", 600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rejected.CancellationReason) != config.MaxReasonLength {
		t.Errorf("reason length = %d, want %d", len(rejected.CancellationReason), config.MaxReasonLength)
	}
}

func TestReject_NotLessor(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	_, err := f.service.Reject(context.Background(), r.ID, "requester-1", "no")
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestReject_NotPending(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	_, err := f.service.Reject(context.Background(), r.ID, f.lessorID, "too late")
	assertCode(t, err, apperrors.CodeStateConflict)
}

// --- Cancel ---

func TestCancel_Pending(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	cancelled, err := f.service.Cancel(context.Background(), r.ID, "requester-1", "changed plans")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if f.publisher.last() != "reservation.cancelled" {
		t.Errorf("published event = %q, want reservation.cancelled", f.publisher.last())
	}
}

func TestCancel_ConfirmedFreesCalendar(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !f.calendar.occupied(f.unitID, date(2026, time.June, 10)) {
		t.Fatal("precondition: calendar should be occupied after confirm")
	}

	if _, err := f.service.Cancel(context.Background(), r.ID, "requester-1", ""); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	for d := date(2026, time.June, 10); d.Before(date(2026, time.June, 14)); d = d.AddDate(0, 0, 1) {
		if f.calendar.occupied(f.unitID, d) {
			t.Errorf("day %s should be free after cancel", d.Format(model.DateLayout))
		}
	}
}

func TestCancel_NotRequester(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	_, err := f.service.Cancel(context.Background(), r.ID, f.lessorID, "mine now")
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestCancel_PastCutoff(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	// Advance to the cutoff deadline: check-in minus two days.
	f.clock.Advance(7 * 24 * time.Hour)

	_, err := f.service.Cancel(context.Background(), r.ID, "requester-1", "too late")
	assertCode(t, err, apperrors.CodeStateConflict)

	appErr := apperrors.AsAppError(err)
	if appErr.Details["deadline"] != "2026-06-08" {
		t.Errorf("deadline = %v, want 2026-06-08", appErr.Details["deadline"])
	}
}

func TestCancel_DayBeforeCutoffAllowed(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	// June 7: still strictly before the June 8 deadline.
	f.clock.Advance(6 * 24 * time.Hour)

	if _, err := f.service.Cancel(context.Background(), r.ID, "requester-1", ""); err != nil {
		t.Fatalf("cancel one day before deadline should succeed: %v", err)
	}
}

func TestCancel_TerminalStatus(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Reject(context.Background(), r.ID, f.lessorID, ""); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	_, err := f.service.Cancel(context.Background(), r.ID, "requester-1", "")
	assertCode(t, err, apperrors.CodeStateConflict)
}

// --- Complete ---

func TestComplete_Success(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// Advance past check-out.
	f.clock.Advance(13 * 24 * time.Hour)

	completed, err := f.service.Complete(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
	if f.publisher.last() != "reservation.completed" {
		t.Errorf("published event = %q, want reservation.completed", f.publisher.last())
	}
}

func TestComplete_BeforeCheckOut(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	_, err := f.service.Complete(context.Background(), r.ID)
	assertCode(t, err, apperrors.CodeStateConflict)
}

func TestComplete_Pending(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	_, err := f.service.Complete(context.Background(), r.ID)
	assertCode(t, err, apperrors.CodeStateConflict)
}

// --- Reads ---

func TestGetByID_DerivesActiveStatus(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// Mid-stay: stored confirmed reads as active.
	f.clock.Advance(11 * 24 * time.Hour)

	got, err := f.service.GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusActive {
		t.Errorf("derived status = %s, want active", got.Status)
	}

	// The stored status must remain confirmed.
	stored, err := f.repo.FindByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != model.StatusConfirmed {
		t.Errorf("stored status = %s, want confirmed", stored.Status)
	}
}

func TestGetByID_EmptyID(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	_, err := f.service.GetByID(context.Background(), "")
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestSearchByUnit_RequiresUnitID(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	_, _, err := f.service.SearchByUnit(context.Background(), "", nil, nil, "", 10, 0)
	assertCode(t, err, apperrors.CodeInvalidInput)
}

// Status filters match the stored status; labels on the results are derived.
// A confirmed filter mid-stay still returns the reservation, labeled active.
func TestSearchByUnit_ConfirmedFilterLabelsDerivedStatus(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))
	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	f.clock.Advance(11 * 24 * time.Hour)

	found, count, err := f.service.SearchByUnit(context.Background(), f.unitID, nil, nil, model.StatusConfirmed, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 || len(found) != 1 {
		t.Fatalf("count = %d, len = %d, want 1 and 1", count, len(found))
	}
	if found[0].Status != model.StatusActive {
		t.Errorf("derived status = %s, want active", found[0].Status)
	}

	// Filtering on the derived label finds nothing stored under it.
	_, count, err = f.service.SearchByUnit(context.Background(), f.unitID, nil, nil, model.StatusActive, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("active filter count = %d, want 0", count)
	}
}

// --- Full lifecycle ---

func TestLifecycle_CreateConfirmComplete(t *testing.T) {
	f := newFixture(t, date(2026, time.June, 1))

	r := f.mustCreate(t, date(2026, time.June, 10), date(2026, time.June, 14))

	if _, err := f.service.Confirm(context.Background(), r.ID, f.lessorID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// Another requester cannot take the same dates while confirmed.
	other := f.newReservation(date(2026, time.June, 11), date(2026, time.June, 13))
	other.RequesterID = "requester-2"
	assertCode(t, f.service.Create(context.Background(), other), apperrors.CodeDateConflict)

	// On check-in day the derived status reads active.
	f.clock.Advance(9 * 24 * time.Hour)
	got, err := f.service.GetByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusActive {
		t.Errorf("status on check-in day = %s, want active", got.Status)
	}

	// After check-out the stay completes.
	f.clock.Advance(4 * 24 * time.Hour)
	completed, err := f.service.Complete(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != model.StatusCompleted {
		t.Errorf("final status = %s, want completed", completed.Status)
	}

	wantEvents := []string{"reservation.created", "reservation.confirmed", "reservation.completed"}
	if len(f.publisher.events) != len(wantEvents) {
		t.Fatalf("published %d events, want %d: %v", len(f.publisher.events), len(wantEvents), f.publisher.events)
	}
	for i, want := range wantEvents {
		if f.publisher.events[i] != want {
			t.Errorf("event[%d] = %q, want %q", i, f.publisher.events[i], want)
		}
	}
}
