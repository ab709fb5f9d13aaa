package view

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormatIDR renders whole rupiah the way Indonesian receipts do: "Rp 15.000".
func FormatIDR(amount int64) string {
	if amount < 0 {
		return "-" + FormatIDR(-amount)
	}
	p := message.NewPrinter(language.Indonesian)
	return "Rp " + p.Sprintf("%v", number.Decimal(amount))
}
