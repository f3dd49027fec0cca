package repository

import (
	"context"
	"time"

	"lodgic/pkg/config"
	"lodgic/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UnitLockRepository provides operations for per-unit advisory locks.
type UnitLockRepository interface {
	Create(ctx context.Context, lock *model.UnitLock) (*model.UnitLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoUnitLockRepository struct {
	collection *mongo.Collection
}

func NewUnitLockRepository(cfg *config.Config) UnitLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUnitLockRepository{
		collection: db.Collection("Unit_locks"),
	}
}

// Returns duplicate key error if the lock is already held.
func (r *mongoUnitLockRepository) Create(ctx context.Context, lock *model.UnitLock) (*model.UnitLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

// Delete releases an advisory lock.
func (r *mongoUnitLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
