// internal/interface/repository/dead_letter_repo.go
package repository

import (
	"context"
	"fmt"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDeadLetterRepository implements the DeadLetterRepository interface
type MongoDeadLetterRepository struct {
	collection *mongo.Collection
}

// NewMongoDeadLetterRepository creates a new MongoDB dead letter repository
func NewMongoDeadLetterRepository(db *mongo.Database) repository.DeadLetterRepository {
	collection := db.Collection("deadLetters")

	ctx := context.Background()

	taskIDIndex := mongo.IndexModel{
		Keys:    bson.M{"taskId": 1},
		Options: options.Index().SetUnique(true),
	}

	deadAtIndex := mongo.IndexModel{
		Keys: bson.M{"deadAt": -1},
	}

	kindIndex := mongo.IndexModel{
		Keys: bson.M{"kind": 1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		taskIDIndex,
		deadAtIndex,
		kindIndex,
	})

	return &MongoDeadLetterRepository{
		collection: collection,
	}
}

// Archive saves a dead letter. Requeued duplicates of an already archived
// task are ignored via the unique taskId index.
func (r *MongoDeadLetterRepository) Archive(ctx context.Context, letter *entity.DeadLetter) error {
	if _, err := r.collection.InsertOne(ctx, letter); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("archive dead letter: %w", err)
	}
	return nil
}
