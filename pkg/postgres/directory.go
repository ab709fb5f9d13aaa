package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tamias-pos/customer-display/pkg/models"
)

const (
	storeByDisplayIDQuery = `SELECT id, name, COALESCE(display_id, '') AS display_id FROM stores WHERE display_id = $1`
	storeByIDQuery        = `SELECT id, name, COALESCE(display_id, '') AS display_id FROM stores WHERE id = $1`
	cashiersByStoreQuery  = `SELECT id, name, employee_id, COALESCE(avatar_url, '') AS avatar_url
		FROM employees WHERE store_id = $1 ORDER BY name ASC`
)

// Directory reads stores and cashiers from Postgres.
type Directory struct {
	db *sqlx.DB
}

func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Directory) StoreByDisplayID(ctx context.Context, code string) (*models.Store, error) {
	return d.getStore(ctx, storeByDisplayIDQuery, code)
}

func (d *Directory) StoreByID(ctx context.Context, id string) (*models.Store, error) {
	return d.getStore(ctx, storeByIDQuery, id)
}

func (d *Directory) getStore(ctx context.Context, query, arg string) (*models.Store, error) {
	var store models.Store
	err := d.db.GetContext(ctx, &store, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query store: %w", err)
	}
	return &store, nil
}

func (d *Directory) CashiersByStore(ctx context.Context, storeID string) ([]models.Cashier, error) {
	cashiers := []models.Cashier{}
	if err := d.db.SelectContext(ctx, &cashiers, cashiersByStoreQuery, storeID); err != nil {
		return nil, fmt.Errorf("failed to query cashiers: %w", err)
	}
	return cashiers, nil
}
