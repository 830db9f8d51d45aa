// internal/interface/repository/notification_log_repo.go
package repository

import (
	"context"
	"fmt"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoNotificationLogRepository implements the NotificationLogRepository interface
type MongoNotificationLogRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationLogRepository creates a new MongoDB notification log repository
func NewMongoNotificationLogRepository(db *mongo.Database) repository.NotificationLogRepository {
	collection := db.Collection("notificationLog")

	// Create indexes for better performance
	ctx := context.Background()

	recipientIndex := mongo.IndexModel{
		Keys: bson.M{"recipient": 1},
	}

	routeIndex := mongo.IndexModel{
		Keys: bson.M{"routeId": 1},
	}

	// Index on sentAt for sorting and retention jobs
	sentAtIndex := mongo.IndexModel{
		Keys: bson.M{"sentAt": -1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		recipientIndex,
		routeIndex,
		sentAtIndex,
	})

	return &MongoNotificationLogRepository{
		collection: collection,
	}
}

// Record saves a delivery record to MongoDB
func (r *MongoNotificationLogRepository) Record(ctx context.Context, record *entity.DeliveryRecord) error {
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}
