package model

import "time"

// CalendarDay is one row of the per-unit availability ledger. Rows are created
// lazily the first time a date is checked or blocked, then only ever flipped
// between available and occupied; they are never deleted.
//
// Invariant: at most one row per (unit_id, date), enforced by a unique index.
// An occupied day normally references the reservation holding it; days blocked
// manually by the unit owner carry no reservation reference.
type CalendarDay struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty"`
	UnitID        string    `json:"unit_id" bson:"unit_id" validate:"required,mongodb"`
	Date          time.Time `json:"date" bson:"date" validate:"required"`
	IsAvailable   bool      `json:"is_available" bson:"is_available"`
	ReservationID string    `json:"reservation_id,omitempty" bson:"reservation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// HeldBy reports whether the day is occupied on behalf of the given
// reservation. Used to make occupy operations idempotent.
func (d *CalendarDay) HeldBy(reservationID string) bool {
	return !d.IsAvailable && d.ReservationID == reservationID
}
