// Command terminalsim plays a scripted sale onto a cashier channel, standing in
// for the cashier terminal when testing a display by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/internal/app"
	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/pkg/config"
	"github.com/tamias-pos/customer-display/pkg/global"
	"github.com/tamias-pos/customer-display/pkg/models"
)

type step struct {
	event   string
	payload any
}

func script(method string, change int64) []step {
	cart := []models.CartItem{
		{ProductID: "sim-1", Name: "Kopi Susu Gula Aren", Price: 18000, Qty: 2},
	}
	steps := []step{{models.EventCartUpdate, models.CartUpdate{Cart: cart}}}

	cart = append(cart, models.CartItem{ProductID: "sim-2", Name: "Roti Bakar Cokelat", Price: 12500, Qty: 1})
	steps = append(steps, step{models.EventCartUpdate, models.CartUpdate{Cart: cart}})

	start := models.PaymentStart{Method: method}
	if method == "qris" {
		start.QrisURL = "https://api.qrserver.com/v1/create-qr-code/?size=240x240&data=tamias-sim"
	}
	steps = append(steps,
		step{models.EventPaymentStart, start},
		step{models.EventPaymentSuccess, models.PaymentSuccess{Change: change}},
	)
	return steps
}

func main() {
	storeID := flag.String("store", "", "internal store id")
	cashierID := flag.String("cashier", "", "cashier (employee) id")
	method := flag.String("method", "cash", "payment method: qris, cash or card")
	change := flag.Int64("change", 15000, "change handed back on success")
	pause := flag.Duration("pause", 2*time.Second, "delay between events")
	flag.Parse()

	if *storeID == "" || *cashierID == "" {
		log.Fatal("both -store and -cashier are required")
	}

	envFile := global.GetEnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("No %s file loaded: %v", envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.CacheTTL = 0

	ctx := context.Background()
	backends, err := app.Open(ctx, cfg, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to open backends: %v", err)
	}
	defer backends.Close()

	channel := display.ChannelName(*storeID, *cashierID)
	fmt.Printf("Publishing to %s\n", channel)

	for i, s := range script(*method, *change) {
		if i > 0 {
			time.Sleep(*pause)
		}
		if err := backends.Publisher.Publish(ctx, channel, s.event, s.payload); err != nil {
			log.Fatalf("Failed to publish %s: %v", s.event, err)
		}
		fmt.Printf("sent %s\n", s.event)
	}
}
