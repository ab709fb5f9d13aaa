package display

import (
	"context"
	"fmt"

	"github.com/tamias-pos/customer-display/pkg/models"
)

// ChannelName is the broadcast topic shared with the cashier terminal.
func ChannelName(storeID, cashierID string) string {
	return fmt.Sprintf("store-%s-employee-%s", storeID, cashierID)
}

// Directory answers the store and cashier lookups needed to start a display.
type Directory interface {
	// StoreByDisplayID returns models.ErrStoreNotFound when no store has the code.
	StoreByDisplayID(ctx context.Context, code string) (*models.Store, error)
	StoreByID(ctx context.Context, id string) (*models.Store, error)
	// CashiersByStore is ordered by name ascending.
	CashiersByStore(ctx context.Context, storeID string) ([]models.Cashier, error)
}

// Broker opens channel subscriptions. Subscribe returns once the subscription is
// confirmed; ctx bounds the handshake only, not the life of the subscription.
type Broker interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

type Subscription interface {
	// Messages is closed when the subscription ends.
	Messages() <-chan models.Message
	// Announce publishes presence for this subscriber. It must be safe to call
	// concurrently with Close.
	Announce(ctx context.Context, p models.Presence) error
	// Close releases the subscription; no message is delivered after it returns.
	Close() error
}
