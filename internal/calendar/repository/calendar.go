package repository

import (
	"context"
	"fmt"
	"time"

	calendarerrors "lodgic/internal/calendar/errors"
	"lodgic/pkg/config"
	"lodgic/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Calendar_days"
)

// CalendarRepository is the per-unit per-day availability ledger. Rows are
// upserted lazily and flipped in place; nothing here ever deletes a row.
type CalendarRepository interface {
	GetOrInit(ctx context.Context, unitID string, date time.Time) (*model.CalendarDay, error)
	SetOccupied(ctx context.Context, unitID string, r model.DateRange, reservationID string) error
	SetFree(ctx context.Context, unitID string, r model.DateRange) error
	FindRange(ctx context.Context, unitID string, r model.DateRange) ([]*model.CalendarDay, error)
	CountUnavailable(ctx context.Context, unitID string, r model.DateRange, excludeReservationID string) (int64, error)
	FindByUnit(ctx context.Context, unitID string, from, to *time.Time, limit int, offset int64) ([]*model.CalendarDay, error)
	CountByUnit(ctx context.Context, unitID string, from, to *time.Time) (int64, error)
}

type mongoCalendarRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCalendarRepository(cfg *config.Config) CalendarRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCalendarRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction, where wrapping the SessionContext would break its semantics.
func (r *mongoCalendarRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GetOrInit returns the ledger row for (unitID, date), creating it as
// available on first touch. The unique (unit_id, date) index makes concurrent
// first touches converge on a single row.
func (r *mongoCalendarRepository) GetOrInit(ctx context.Context, unitID string, date time.Time) (*model.CalendarDay, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	date = model.NormalizeDate(date)
	now := time.Now().UTC().Truncate(time.Millisecond)

	filter := bson.M{"unit_id": unitID, "date": date}
	update := bson.M{
		"$setOnInsert": bson.M{
			"unit_id":      unitID,
			"date":         date,
			"is_available": true,
			"created_at":   now,
			"updated_at":   now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var day model.CalendarDay
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&day); err != nil {
		return nil, fmt.Errorf("failed to init calendar day: %w", err)
	}

	return &day, nil
}

// SetOccupied flips every day in [CheckIn, CheckOut) to unavailable with the
// holding reservation's reference. Re-applying the same reservation is a
// no-op, so retried confirms are safe.
func (r *mongoCalendarRepository) SetOccupied(ctx context.Context, unitID string, dr model.DateRange, reservationID string) error {
	if !dr.IsValid() {
		return calendarerrors.ErrInvalidRange
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	writes := make([]mongo.WriteModel, 0, dr.Nights())
	for _, day := range dr.Days() {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"unit_id": unitID, "date": day}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"is_available":   false,
					"reservation_id": reservationID,
					"updated_at":     now,
				},
				"$setOnInsert": bson.M{
					"unit_id":    unitID,
					"date":       day,
					"created_at": now,
				},
			}).
			SetUpsert(true))
	}

	if _, err := r.collection.BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("failed to occupy calendar days: %w", err)
	}

	return nil
}

// SetFree flips every day in [CheckIn, CheckOut) back to available and clears
// the reservation reference.
func (r *mongoCalendarRepository) SetFree(ctx context.Context, unitID string, dr model.DateRange) error {
	if !dr.IsValid() {
		return calendarerrors.ErrInvalidRange
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	writes := make([]mongo.WriteModel, 0, dr.Nights())
	for _, day := range dr.Days() {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"unit_id": unitID, "date": day}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"is_available": true,
					"updated_at":   now,
				},
				"$unset": bson.M{
					"reservation_id": "",
				},
				"$setOnInsert": bson.M{
					"unit_id":    unitID,
					"date":       day,
					"created_at": now,
				},
			}).
			SetUpsert(true))
	}

	if _, err := r.collection.BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("failed to free calendar days: %w", err)
	}

	return nil
}

func (r *mongoCalendarRepository) FindRange(ctx context.Context, unitID string, dr model.DateRange) ([]*model.CalendarDay, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"unit_id": unitID,
		"date":    bson.M{"$gte": dr.CheckIn, "$lt": dr.CheckOut},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar days: %w", err)
	}
	defer cursor.Close(ctx)

	var days []*model.CalendarDay
	if err = cursor.All(ctx, &days); err != nil {
		return nil, fmt.Errorf("failed to decode calendar days: %w", err)
	}

	return days, nil
}

// CountUnavailable counts occupied days in the range, ignoring days held by
// excludeReservationID so a reservation never conflicts with its own hold.
func (r *mongoCalendarRepository) CountUnavailable(ctx context.Context, unitID string, dr model.DateRange, excludeReservationID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"unit_id":      unitID,
		"date":         bson.M{"$gte": dr.CheckIn, "$lt": dr.CheckOut},
		"is_available": false,
	}
	if excludeReservationID != "" {
		filter["reservation_id"] = bson.M{"$ne": excludeReservationID}
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count unavailable days: %w", err)
	}

	return count, nil
}

func (r *mongoCalendarRepository) FindByUnit(ctx context.Context, unitID string, from, to *time.Time, limit int, offset int64) ([]*model.CalendarDay, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := buildUnitFilter(unitID, from, to)
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar days: %w", err)
	}
	defer cursor.Close(ctx)

	var days []*model.CalendarDay
	if err = cursor.All(ctx, &days); err != nil {
		return nil, fmt.Errorf("failed to decode calendar days: %w", err)
	}

	return days, nil
}

func (r *mongoCalendarRepository) CountByUnit(ctx context.Context, unitID string, from, to *time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildUnitFilter(unitID, from, to))
	if err != nil {
		return 0, fmt.Errorf("failed to count calendar days: %w", err)
	}
	return count, nil
}

func buildUnitFilter(unitID string, from, to *time.Time) bson.M {
	filter := bson.M{"unit_id": unitID}

	dateFilter := bson.M{}
	if from != nil {
		dateFilter["$gte"] = model.NormalizeDate(*from)
	}
	if to != nil {
		dateFilter["$lt"] = model.NormalizeDate(*to)
	}
	if len(dateFilter) > 0 {
		filter["date"] = dateFilter
	}

	return filter
}
