package display_test

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/internal/display/displaytest"
	"github.com/tamias-pos/customer-display/pkg/models"
	"go.uber.org/zap"
)

type displayWorld struct {
	hub     *display.Hub
	broker  *displaytest.Broker
	clock   *displaytest.Clock
	session *display.Session
	channel string
}

func (w *displayWorld) aDisplayForStore(ref string) error {
	w.broker = displaytest.NewBroker()
	w.clock = displaytest.NewClock()
	w.hub = display.NewHub(
		display.NewResolver(newDirectory(), defaultStoreName, zap.NewNop()),
		w.broker,
		display.HubOptions{RevertDelay: revertDelay, Clock: w.clock, Logger: zap.NewNop()},
	)

	s, res := w.hub.Open(context.Background(), ref)
	if !res.Found {
		return fmt.Errorf("store %q not found", ref)
	}
	w.session = s
	return nil
}

func (w *displayWorld) theCashierIsSelected(name string) error {
	for _, c := range w.session.Snapshot().Cashiers {
		if c.Name == name {
			if err := w.session.SelectCashier(context.Background(), c.ID); err != nil {
				return err
			}
			w.channel = display.ChannelName(kopiKita.ID, c.ID)
			return nil
		}
	}
	return fmt.Errorf("no cashier named %q", name)
}

// send publishes one broadcast and waits until the session has handled it.
func (w *displayWorld) send(event string, payload any) error {
	before := w.session.Snapshot().Version
	if !w.broker.Publish(w.channel, event, payload) {
		return fmt.Errorf("nobody is listening on %s", w.channel)
	}
	return w.await(func(s display.Snapshot) bool { return s.Version > before })
}

func (w *displayWorld) await(cond func(display.Snapshot) bool) error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond(w.session.Snapshot()) {
			return nil
		}
		time.Sleep(2 * time.Millisecond)
	}
	return fmt.Errorf("display did not settle, last snapshot %+v", w.session.Snapshot())
}

func (w *displayWorld) theTerminalSendsACartWith(table *godog.Table) error {
	if len(table.Rows) == 0 {
		return fmt.Errorf("empty cart table")
	}
	header := table.Rows[0].Cells
	items := make([]map[string]any, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		item := make(map[string]any, len(header))
		for i, cell := range row.Cells {
			key := header[i].Value
			switch key {
			case "price", "qty":
				n, err := strconv.ParseInt(cell.Value, 10, 64)
				if err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				item[key] = n
			default:
				item[key] = cell.Value
			}
		}
		items = append(items, item)
	}
	return w.send(models.EventCartUpdate, map[string]any{"cart": items})
}

func (w *displayWorld) theTerminalSendsAnEmptyCart() error {
	return w.send(models.EventCartUpdate, map[string]any{"cart": []any{}})
}

func (w *displayWorld) theTerminalStartsAPayment(method string) error {
	return w.send(models.EventPaymentStart, map[string]string{"method": method})
}

func (w *displayWorld) thePaymentSucceededWithChange(change int64) error {
	return w.send(models.EventPaymentSuccess, map[string]int64{"change": change})
}

func (w *displayWorld) millisecondsPass(ms int) error {
	w.clock.Advance(time.Duration(ms) * time.Millisecond)
	return nil
}

func (w *displayWorld) theDisplayShows(state string) error {
	return w.await(func(s display.Snapshot) bool { return string(s.State) == state })
}

func (w *displayWorld) theCartHasItems(n int) error {
	if got := len(w.session.Snapshot().Cart); got != n {
		return fmt.Errorf("expected %d cart items, got %d", n, got)
	}
	return nil
}

func (w *displayWorld) totalsField(name string, pick func(models.Totals) int64) func(int64) error {
	return func(want int64) error {
		if got := pick(w.session.Snapshot().Totals); got != want {
			return fmt.Errorf("expected %s %d, got %d", name, want, got)
		}
		return nil
	}
}

func (w *displayWorld) exactlyOneSubscriptionIsOpen() error {
	if n := w.broker.Active(); n != 1 {
		return fmt.Errorf("expected 1 open subscription, got %d", n)
	}
	if n := w.broker.Subscribes() - w.broker.Closes(); n != 1 {
		return fmt.Errorf("subscribes minus closes is %d", n)
	}
	return nil
}

func initializeScenario(ctx *godog.ScenarioContext) {
	w := &displayWorld{}

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if w.hub != nil {
			w.hub.Shutdown()
		}
		return ctx, nil
	})

	ctx.Step(`^a display for store "([^"]*)"$`, w.aDisplayForStore)
	ctx.Step(`^the cashier "([^"]*)" is selected$`, w.theCashierIsSelected)
	ctx.Step(`^the terminal sends a cart with:$`, w.theTerminalSendsACartWith)
	ctx.Step(`^the terminal sends an empty cart$`, w.theTerminalSendsAnEmptyCart)
	ctx.Step(`^the terminal starts a "([^"]*)" payment$`, w.theTerminalStartsAPayment)
	ctx.Step(`^the terminal reports the payment succeeded with change (\d+)$`, w.thePaymentSucceededWithChange)
	ctx.Step(`^(\d+) milliseconds pass$`, w.millisecondsPass)
	ctx.Step(`^the display shows "([^"]*)"$`, w.theDisplayShows)
	ctx.Step(`^the cart has (\d+) items$`, w.theCartHasItems)
	ctx.Step(`^the subtotal is (\d+)$`, w.totalsField("subtotal", func(t models.Totals) int64 { return t.Subtotal }))
	ctx.Step(`^the tax is (\d+)$`, w.totalsField("tax", func(t models.Totals) int64 { return t.Tax }))
	ctx.Step(`^the total is (\d+)$`, w.totalsField("total", func(t models.Totals) int64 { return t.Total }))
	ctx.Step(`^exactly one channel subscription is open$`, w.exactlyOneSubscriptionIsOpen)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
