package displaytest

import (
	"context"
	"sync"

	"github.com/tamias-pos/customer-display/pkg/models"
)

// Directory is an in-memory display.Directory that records which lookups ran.
type Directory struct {
	mu       sync.Mutex
	stores   []models.Store
	cashiers map[string][]models.Cashier

	ShortCodeLookups int
	IDLookups        int
	CashierLookups   int

	// Err, when set, fails every lookup.
	Err error
}

func NewDirectory() *Directory {
	return &Directory{cashiers: make(map[string][]models.Cashier)}
}

// AddStore registers a store and its cashiers (already in display order).
func (d *Directory) AddStore(store models.Store, cashiers ...models.Cashier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stores = append(d.stores, store)
	d.cashiers[store.ID] = cashiers
}

func (d *Directory) StoreByDisplayID(ctx context.Context, code string) (*models.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ShortCodeLookups++
	if d.Err != nil {
		return nil, d.Err
	}
	for _, s := range d.stores {
		if s.DisplayID == code {
			store := s
			return &store, nil
		}
	}
	return nil, models.ErrStoreNotFound
}

func (d *Directory) StoreByID(ctx context.Context, id string) (*models.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.IDLookups++
	if d.Err != nil {
		return nil, d.Err
	}
	for _, s := range d.stores {
		if s.ID == id {
			store := s
			return &store, nil
		}
	}
	return nil, models.ErrStoreNotFound
}

func (d *Directory) CashiersByStore(ctx context.Context, storeID string) ([]models.Cashier, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CashierLookups++
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]models.Cashier{}, d.cashiers[storeID]...), nil
}

func (d *Directory) Calls() (shortCode, byID, cashiers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ShortCodeLookups, d.IDLookups, d.CashierLookups
}
