package display

import (
	"fmt"

	"github.com/tamias-pos/customer-display/pkg/models"
	"github.com/tidwall/gjson"
)

type EventKind int

const (
	CartUpdated EventKind = iota + 1
	PaymentStarted
	PaymentSucceeded
)

func (k EventKind) String() string {
	switch k {
	case CartUpdated:
		return models.EventCartUpdate
	case PaymentStarted:
		return models.EventPaymentStart
	case PaymentSucceeded:
		return models.EventPaymentSuccess
	default:
		return "unknown"
	}
}

// Event is a decoded broadcast. Only the fields of its Kind are meaningful.
type Event struct {
	Kind EventKind

	Cart []models.CartItem

	Method  string
	QrisURL string

	Change int64

	// Malformed is set when the payload was not valid JSON or lacked the fields
	// the terminal is expected to send. Defaults were applied in their place.
	Malformed bool
}

// UnknownEventError is returned for broadcasts the display does not handle.
type UnknownEventError struct {
	Event string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown display event %q", e.Event)
}

// DecodeEvent turns a channel message into an Event. Missing numbers decode as
// zero, missing arrays as empty and missing strings as "".
func DecodeEvent(msg models.Message) (Event, error) {
	raw := string(msg.Payload)
	valid := gjson.Valid(raw)
	if !valid {
		raw = "{}"
	}
	payload := gjson.Parse(raw)

	switch msg.Event {
	case models.EventCartUpdate:
		cart := payload.Get("cart")
		ev := Event{
			Kind:      CartUpdated,
			Cart:      decodeCart(cart),
			Malformed: !valid || !cart.IsArray(),
		}
		return ev, nil

	case models.EventPaymentStart:
		method := payload.Get("method")
		return Event{
			Kind:      PaymentStarted,
			Method:    method.String(),
			QrisURL:   payload.Get("qrisUrl").String(),
			Malformed: !valid || !method.Exists(),
		}, nil

	case models.EventPaymentSuccess:
		return Event{
			Kind:      PaymentSucceeded,
			Change:    payload.Get("change").Int(),
			Malformed: !valid,
		}, nil
	}

	return Event{}, &UnknownEventError{Event: msg.Event}
}

func decodeCart(cart gjson.Result) []models.CartItem {
	if !cart.IsArray() {
		return []models.CartItem{}
	}

	items := make([]models.CartItem, 0, len(cart.Array()))
	cart.ForEach(func(_, item gjson.Result) bool {
		items = append(items, models.CartItem{
			ProductID: item.Get("product_id").String(),
			Name:      item.Get("name").String(),
			Price:     item.Get("price").Int(),
			Qty:       item.Get("qty").Int(),
			ImageURL:  item.Get("image_url").String(),
		})
		return true
	})
	return items
}
