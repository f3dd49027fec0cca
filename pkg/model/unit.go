package model

import "time"

// Unit is the rentable resource being scheduled. The reservation core treats
// it as external metadata: only the stay and guest constraints matter here,
// the rest (address, photos, pricing) lives with other collaborators.
type Unit struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	LessorID    string    `json:"lessor_id" bson:"lessor_id" validate:"required"`
	Title       string    `json:"title" bson:"title" validate:"required,min=2,max=200"`
	MinStayDays int       `json:"min_stay_days" bson:"min_stay_days" validate:"required,min=1,max=365"`
	MaxStayDays int       `json:"max_stay_days" bson:"max_stay_days" validate:"omitempty,min=0,max=730"`
	MaxGuests   int       `json:"max_guests" bson:"max_guests" validate:"required,min=1,max=50"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// UnitUpdate carries the mutable constraint fields.
type UnitUpdate struct {
	Title       string `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	MinStayDays *int   `json:"min_stay_days,omitempty" validate:"omitempty,min=1,max=365"`
	MaxStayDays *int   `json:"max_stay_days,omitempty" validate:"omitempty,min=0,max=730"`
	MaxGuests   *int   `json:"max_guests,omitempty" validate:"omitempty,min=1,max=50"`
}

// AllowsStay checks a stay length against the unit's bounds. MaxStayDays of
// zero means no upper bound.
func (u *Unit) AllowsStay(nights int) bool {
	if nights < u.MinStayDays {
		return false
	}
	if u.MaxStayDays > 0 && nights > u.MaxStayDays {
		return false
	}
	return true
}

// AllowsGuests checks a party size against the unit's capacity.
func (u *Unit) AllowsGuests(count int) bool {
	return count >= 1 && count <= u.MaxGuests
}
