package models

import (
	"encoding/json"
	"time"
)

// Broadcast event names shared with the cashier terminal.
const (
	EventCartUpdate     = "cart-update"
	EventPaymentStart   = "payment-start"
	EventPaymentSuccess = "payment-success"
)

// Message is a single broadcast received on (or published to) a cashier channel.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Presence is the advisory marker a display announces once its subscription is confirmed.
type Presence struct {
	Type     string `json:"type"`
	OnlineAt string `json:"online_at"`
}

func DisplayPresence(now time.Time) Presence {
	return Presence{
		Type:     "display",
		OnlineAt: now.UTC().Format(time.RFC3339),
	}
}
