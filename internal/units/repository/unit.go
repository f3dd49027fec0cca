package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	unitserrors "lodgic/internal/units/errors"
	"lodgic/pkg/config"
	"lodgic/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Units"
)

type UnitRepository interface {
	Create(ctx context.Context, unit *model.Unit) error
	FindByID(ctx context.Context, id string) (*model.Unit, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Unit, error)
	Update(ctx context.Context, id string, unit *model.Unit) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type mongoUnitRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUnitRepository(cfg *config.Config) UnitRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUnitRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoUnitRepository) Create(ctx context.Context, unit *model.Unit) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	unit.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, unit)
	if err != nil {
		return fmt.Errorf("failed to create unit: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		unit.ID = oid.Hex()
	}
	return nil
}

func (r *mongoUnitRepository) FindByID(ctx context.Context, id string) (*model.Unit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", unitserrors.ErrInvalidID, id)
	}

	var unit model.Unit
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&unit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, unitserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find unit: %w", err)
	}

	return &unit, nil
}

func (r *mongoUnitRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Unit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find units: %w", err)
	}
	defer cursor.Close(ctx)

	var units []*model.Unit
	if err = cursor.All(ctx, &units); err != nil {
		return nil, fmt.Errorf("failed to decode units: %w", err)
	}

	return units, nil
}

func (r *mongoUnitRepository) Update(ctx context.Context, id string, unit *model.Unit) (*mongo.UpdateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", unitserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"title":         unit.Title,
			"min_stay_days": unit.MinStayDays,
			"max_stay_days": unit.MaxStayDays,
			"max_guests":    unit.MaxGuests,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update unit: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, unitserrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoUnitRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", unitserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete unit: %w", err)
	}

	if result.DeletedCount == 0 {
		return unitserrors.ErrNotFound
	}

	return nil
}

func (r *mongoUnitRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count units: %w", err)
	}

	return count, nil
}
