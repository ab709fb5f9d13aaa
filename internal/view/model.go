// Package view turns display snapshots into the screens shown on the customer-facing monitor.
package view

import (
	"fmt"

	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/pkg/models"
)

type Screen string

const (
	ScreenSelect   Screen = "select"
	ScreenIdle     Screen = "idle"
	ScreenOrder    Screen = "order"
	ScreenSuccess  Screen = "success"
	ScreenNotFound Screen = "notfound"
)

// Payment methods as sent by the terminal. Anything else is treated as a card payment.
const (
	MethodQRIS = "qris"
	MethodCash = "cash"
	MethodCard = "card"
)

type CashierCard struct {
	ID        string
	Name      string
	Code      string
	AvatarURL string
	Initial   string
}

type Line struct {
	Name      string
	ImageURL  string
	Initial   string
	Price     string
	Qty       int64
	LineTotal string
}

// Payment is the right-hand panel of the order screen while the customer pays.
type Payment struct {
	Method  string
	Title   string
	QrisURL string
	Notes   []string
}

// Model is everything the templates need; money is already formatted.
type Model struct {
	SessionID string
	Version   uint64
	Screen    Screen
	StoreName string
	Live      bool

	Cashiers []CashierCard
	Cashier  *CashierCard

	Lines    []Line
	Subtotal string
	Tax      string
	Total    string
	Payment  *Payment

	// Change is empty when there is no change to hand back.
	Change string
}

func (m Model) Greeting() string {
	return fmt.Sprintf("Selamat Datang di %s, Selamat Berbelanja", m.StoreName)
}

// FromSnapshot picks the screen for a session snapshot.
func FromSnapshot(s display.Snapshot) Model {
	m := Model{
		SessionID: s.SessionID,
		Version:   s.Version,
		StoreName: s.Store.Name,
		Live:      s.Subscribed,
		Cashiers:  make([]CashierCard, 0, len(s.Cashiers)),
	}
	for _, c := range s.Cashiers {
		m.Cashiers = append(m.Cashiers, cashierCard(c))
	}
	if s.Cashier != nil {
		card := cashierCard(*s.Cashier)
		m.Cashier = &card
	}

	if s.ChoosingCashier() && len(s.Cashiers) > 0 {
		m.Screen = ScreenSelect
		return m
	}

	switch s.State {
	case display.StateActive, display.StatePayment:
		m.Screen = ScreenOrder
		for _, item := range s.Cart {
			m.Lines = append(m.Lines, line(item))
		}
		m.Subtotal = FormatIDR(s.Totals.Subtotal)
		m.Tax = FormatIDR(s.Totals.Tax)
		m.Total = FormatIDR(s.Totals.Total)
		if s.State == display.StatePayment {
			m.Payment = payment(s.PaymentMethod, s.QrisURL)
		}

	case display.StateSuccess:
		m.Screen = ScreenSuccess
		if s.Change > 0 {
			m.Change = FormatIDR(s.Change)
		}

	default:
		m.Screen = ScreenIdle
	}
	return m
}

// NotFound is the terminal screen for a display whose store could not be resolved.
func NotFound() Model {
	return Model{Screen: ScreenNotFound, StoreName: display.NotFoundName}
}

func cashierCard(c models.Cashier) CashierCard {
	return CashierCard{
		ID:        c.ID,
		Name:      c.Name,
		Code:      c.EmployeeCode,
		AvatarURL: c.AvatarURL,
		Initial:   c.Initial(),
	}
}

func line(item models.CartItem) Line {
	initial := "?"
	for _, r := range item.Name {
		initial = string(r)
		break
	}
	return Line{
		Name:      item.Name,
		ImageURL:  item.ImageURL,
		Initial:   initial,
		Price:     FormatIDR(item.Price),
		Qty:       item.Qty,
		LineTotal: FormatIDR(item.LineTotal()),
	}
}

func payment(method, qrisURL string) *Payment {
	switch method {
	case MethodQRIS:
		return &Payment{
			Method:  MethodQRIS,
			Title:   "Scan QRIS",
			QrisURL: qrisURL,
			Notes:   []string{"Menunggu pembayaran"},
		}
	case MethodCash:
		return &Payment{
			Method: MethodCash,
			Title:  "Pembayaran Tunai",
			Notes:  []string{"Silakan lakukan pembayaran di kasir", "Mohon tunggu konfirmasi kasir"},
		}
	default:
		return &Payment{
			Method: MethodCard,
			Title:  "Pembayaran Kartu",
			Notes:  []string{"Silakan gunakan mesin EDC", "Debit / Kredit"},
		}
	}
}
