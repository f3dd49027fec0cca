package model

import (
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusActive    ReservationStatus = "active"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
	StatusRejected  ReservationStatus = "rejected"
)

// CancellationCutoffDays is the fixed domain policy: a requester may cancel
// only while today is strictly before check-in minus this many days.
const CancellationCutoffDays = 2

// Terminal reports whether no further transitions are allowed from s.
func (s ReservationStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusRejected
}

// Holds reports whether a reservation in this status counts toward the
// per-unit overlap invariant.
func (s ReservationStatus) Holds() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusActive
}

// HoldingStatuses is the set of statuses that occupy a date range.
func HoldingStatuses() []ReservationStatus {
	return []ReservationStatus{StatusPending, StatusConfirmed, StatusActive}
}

// GuestInfo is the contact snapshot captured at creation time. It is
// pass-through payload for collaborators; the core never reads it back.
type GuestInfo struct {
	FirstName string `json:"first_name" bson:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" bson:"last_name" validate:"required,min=1,max=100"`
	Phone     string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,max=20"`
	Email     string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Notes     string `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=1000"`
}

type Reservation struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Code        string    `json:"code,omitempty" bson:"code,omitempty" validate:"omitempty,uuid4"`
	UnitID      string    `json:"unit_id" bson:"unit_id" validate:"required,mongodb"`
	RequesterID string    `json:"requester_id" bson:"requester_id" validate:"required"`
	CheckIn     time.Time `json:"check_in" bson:"check_in" validate:"required,dateonly"`
	CheckOut    time.Time `json:"check_out" bson:"check_out" validate:"required,dateonly,gtfield=CheckIn"`
	GuestCount  int       `json:"guest_count" bson:"guest_count" validate:"required,min=1"`
	Guest       GuestInfo `json:"guest" bson:"guest"`

	Status             ReservationStatus `json:"status" bson:"status" validate:"required,oneof=pending confirmed active cancelled completed rejected"`
	CancelledBy        string            `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty" validate:"omitempty,max=500"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Range returns the half-open stay interval.
func (r *Reservation) Range() DateRange {
	return DateRange{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
}

// Nights is the stay length in days.
func (r *Reservation) Nights() int {
	return r.Range().Nights()
}

// EffectiveStatus derives the wall-clock-dependent statuses from the stored
// one. A confirmed reservation whose check-in has passed reads as active; one
// whose check-out has passed reads as completed. The derived status only ever
// moves forward, so readers never observe a regression. Stored terminal
// statuses are returned as-is.
func (r *Reservation) EffectiveStatus(today time.Time) ReservationStatus {
	today = NormalizeDate(today)
	switch r.Status {
	case StatusConfirmed:
		if !today.Before(r.CheckOut) {
			return StatusCompleted
		}
		if !today.Before(r.CheckIn) {
			return StatusActive
		}
	case StatusActive:
		if !today.Before(r.CheckOut) {
			return StatusCompleted
		}
	}
	return r.Status
}

// CanBeCancelled reports whether the requester may still cancel: only pending
// or confirmed reservations, and only strictly before the cutoff deadline.
func (r *Reservation) CanBeCancelled(today time.Time) bool {
	if r.Status != StatusPending && r.Status != StatusConfirmed {
		return false
	}
	deadline := r.CheckIn.AddDate(0, 0, -CancellationCutoffDays)
	return NormalizeDate(today).Before(deadline)
}
