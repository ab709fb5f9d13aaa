package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/pkg/models"
)

const (
	StoresCollection    = "stores"
	EmployeesCollection = "employees"
)

// Directory reads stores and their cashiers from MongoDB.
type Directory struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

func NewDirectory(client *mongo.Client, database string, log *zap.Logger) *Directory {
	return &Directory{
		client: client,
		db:     client.Database(database),
		log:    log.Named("mongo_directory"),
	}
}

func (d *Directory) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

func (d *Directory) StoreByDisplayID(ctx context.Context, code string) (*models.Store, error) {
	return d.findStore(ctx, bson.D{{Key: "display_id", Value: code}})
}

func (d *Directory) StoreByID(ctx context.Context, id string) (*models.Store, error) {
	return d.findStore(ctx, bson.D{{Key: "_id", Value: id}})
}

func (d *Directory) findStore(ctx context.Context, filter bson.D) (*models.Store, error) {
	var store models.Store
	err := d.db.Collection(StoresCollection).FindOne(ctx, filter).Decode(&store)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find store: %w", err)
	}
	return &store, nil
}

func (d *Directory) CashiersByStore(ctx context.Context, storeID string) ([]models.Cashier, error) {
	cursor, err := d.db.Collection(EmployeesCollection).Find(ctx, cashiersFilter(storeID), cashiersOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to list cashiers: %w", err)
	}
	defer cursor.Close(ctx)

	cashiers := []models.Cashier{}
	if err := cursor.All(ctx, &cashiers); err != nil {
		return nil, fmt.Errorf("failed to decode cashiers: %w", err)
	}
	return cashiers, nil
}

func cashiersFilter(storeID string) bson.D {
	return bson.D{{Key: "store_id", Value: storeID}}
}

func cashiersOptions() *options.FindOptionsBuilder {
	return options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetProjection(bson.D{
			{Key: "_id", Value: 1},
			{Key: "name", Value: 1},
			{Key: "employee_id", Value: 1},
			{Key: "avatar_url", Value: 1},
		})
}
