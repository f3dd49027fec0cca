package model

import "time"

// UnitLock is an advisory lock serializing reservation writes per unit.
// Acquisition is an insert into a collection with a unique _id; a duplicate
// key means another request holds the unit. A TTL index on expires_at reaps
// locks leaked by crashed holders.
type UnitLock struct {
	ID        string    `json:"id" bson:"_id"`
	UnitID    string    `json:"unit_id" bson:"unit_id"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
