package display

import "github.com/tamias-pos/customer-display/pkg/models"

type State string

const (
	StateIdle    State = "idle"
	StateActive  State = "active"
	StatePayment State = "payment"
	StateSuccess State = "success"
)

// Machine holds the display state driven by terminal broadcasts. It performs no
// I/O; scheduling the success revert is the owning Session's job.
type Machine struct {
	state         State
	cart          []models.CartItem
	paymentMethod string
	qrisURL       string
	change        int64
}

func NewMachine() *Machine {
	return &Machine{
		state: StateIdle,
		cart:  []models.CartItem{},
	}
}

func (m *Machine) State() State {
	return m.state
}

// Apply runs one transition. The cart is replaced wholesale, never merged.
func (m *Machine) Apply(ev Event) {
	switch ev.Kind {
	case CartUpdated:
		m.cart = append([]models.CartItem{}, ev.Cart...)
		if len(m.cart) > 0 {
			m.state = StateActive
		} else {
			m.state = StateIdle
		}

	case PaymentStarted:
		m.paymentMethod = ev.Method
		m.qrisURL = ev.QrisURL
		m.state = StatePayment

	case PaymentSucceeded:
		m.change = ev.Change
		m.state = StateSuccess
	}
}

// Revert is the transition taken when the success timer fires.
func (m *Machine) Revert() {
	m.state = StateIdle
	m.cart = []models.CartItem{}
	m.paymentMethod = ""
	m.qrisURL = ""
	m.change = 0
}

func (m *Machine) Clone() *Machine {
	c := *m
	c.cart = append([]models.CartItem{}, m.cart...)
	return &c
}

func (m *Machine) Cart() []models.CartItem {
	return append([]models.CartItem{}, m.cart...)
}

func (m *Machine) Totals() models.Totals {
	return models.CalculateTotals(m.cart)
}

func (m *Machine) fill(s *Snapshot) {
	s.State = m.state
	s.Cart = m.Cart()
	s.Totals = m.Totals()
	s.PaymentMethod = m.paymentMethod
	s.QrisURL = m.qrisURL
	s.Change = m.change
}
