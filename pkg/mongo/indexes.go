package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/pkg/global"
)

type IndexConfig struct {
	CollectionName string
	IndexModel     mongo.IndexModel
}

var requiredIndexes = []IndexConfig{
	// short-code resolution
	{
		CollectionName: StoresCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "display_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_store_display_id_unique"),
		},
	},
	// cashier enumeration, already in display order
	{
		CollectionName: EmployeesCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "store_id", Value: 1},
				{Key: "name", Value: 1},
			},
			Options: options.Index().SetName("idx_employee_store_name"),
		},
	},
}

func (d *Directory) EnsureIndexes(ctx context.Context) error {
	d.log.Info("starting index creation")

	for _, idxConfig := range requiredIndexes {
		collection := d.db.Collection(idxConfig.CollectionName)
		createCtx, cancel := global.GetTimer(ctx)
		indexName, err := collection.Indexes().CreateOne(createCtx, idxConfig.IndexModel)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idxConfig.CollectionName, err)
		}

		d.log.Info("created index", zap.String("index", indexName), zap.String("collection", idxConfig.CollectionName))
	}
	return nil
}
