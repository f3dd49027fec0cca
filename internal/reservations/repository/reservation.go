package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reserrors "lodgic/internal/reservations/errors"
	"lodgic/pkg/config"
	mongotx "lodgic/pkg/db/mongo"
	"lodgic/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindAll(ctx context.Context, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context, status model.ReservationStatus) (int64, error)
	FindByUnit(ctx context.Context, unitID string, from, to *time.Time, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, error)
	CountByUnit(ctx context.Context, unitID string, from, to *time.Time, status model.ReservationStatus) (int64, error)
	FindOverlapping(ctx context.Context, unitID string, dr model.DateRange, excludeID string) ([]*model.Reservation, error)
	SetConfirmed(ctx context.Context, id string, at time.Time) error
	SetRejected(ctx context.Context, id string, by string, reason string, at time.Time) error
	SetCancelled(ctx context.Context, id string, from model.ReservationStatus, by string, reason string, at time.Time) error
	SetCompleted(ctx context.Context, id string, at time.Time) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction, where wrapping the SessionContext would break its semantics.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reserrors.ErrInvalidID, id)
	}

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindAll(ctx context.Context, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "check_in", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) Count(ctx context.Context, status model.ReservationStatus) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	return count, nil
}

func (r *mongoReservationRepository) FindByUnit(ctx context.Context, unitID string, from, to *time.Time, status model.ReservationStatus, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := buildUnitSearchFilter(unitID, from, to, status)

	opts := options.Find().
		SetSort(bson.D{{Key: "check_in", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) CountByUnit(ctx context.Context, unitID string, from, to *time.Time, status model.ReservationStatus) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildUnitSearchFilter(unitID, from, to, status))
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations by search: %w", err)
	}
	return count, nil
}

// FindOverlapping returns reservations holding dates that intersect the given
// half-open range: check_in < range.CheckOut AND check_out > range.CheckIn,
// status in {pending, confirmed, active}.
func (r *mongoReservationRepository) FindOverlapping(ctx context.Context, unitID string, dr model.DateRange, excludeID string) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"unit_id":   unitID,
		"status":    bson.M{"$in": model.HoldingStatuses()},
		"check_in":  bson.M{"$lt": dr.CheckOut},
		"check_out": bson.M{"$gt": dr.CheckIn},
	}
	if excludeID != "" {
		if oid, err := primitive.ObjectIDFromHex(excludeID); err == nil {
			filter["_id"] = bson.M{"$ne": oid}
		}
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping reservations: %w", err)
	}

	return reservations, nil
}

func (r *mongoReservationRepository) SetConfirmed(ctx context.Context, id string, at time.Time) error {
	return r.guardedUpdate(ctx, id, []model.ReservationStatus{model.StatusPending}, bson.M{
		"status":       model.StatusConfirmed,
		"confirmed_at": at,
	})
}

func (r *mongoReservationRepository) SetRejected(ctx context.Context, id string, by string, reason string, at time.Time) error {
	return r.guardedUpdate(ctx, id, []model.ReservationStatus{model.StatusPending}, bson.M{
		"status":              model.StatusRejected,
		"cancelled_by":        by,
		"cancellation_reason": reason,
		"cancelled_at":        at,
	})
}

func (r *mongoReservationRepository) SetCancelled(ctx context.Context, id string, from model.ReservationStatus, by string, reason string, at time.Time) error {
	return r.guardedUpdate(ctx, id, []model.ReservationStatus{from}, bson.M{
		"status":              model.StatusCancelled,
		"cancelled_by":        by,
		"cancellation_reason": reason,
		"cancelled_at":        at,
	})
}

func (r *mongoReservationRepository) SetCompleted(ctx context.Context, id string, at time.Time) error {
	return r.guardedUpdate(ctx, id, []model.ReservationStatus{model.StatusConfirmed, model.StatusActive}, bson.M{
		"status":       model.StatusCompleted,
		"completed_at": at,
	})
}

// guardedUpdate applies a status transition as a compare-and-set: the filter
// requires the current status to still be one of from, so a concurrent
// transition makes the update match nothing instead of clobbering it.
func (r *mongoReservationRepository) guardedUpdate(ctx context.Context, id string, from []model.ReservationStatus, set bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": from},
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}

	if result.MatchedCount == 0 {
		return reserrors.ErrStatusChanged
	}

	return nil
}

func buildUnitSearchFilter(unitID string, from, to *time.Time, status model.ReservationStatus) bson.M {
	filter := bson.M{"unit_id": unitID}

	if status != "" {
		filter["status"] = status
	}

	if from != nil || to != nil {
		timeFilter := bson.M{}
		if to != nil {
			timeFilter["check_in"] = bson.M{"$lt": model.NormalizeDate(*to)}
		}
		if from != nil {
			timeFilter["check_out"] = bson.M{"$gt": model.NormalizeDate(*from)}
		}
		filter["$and"] = []bson.M{timeFilter}
	}

	return filter
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
