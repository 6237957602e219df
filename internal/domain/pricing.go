package domain

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Cart struct {
	Items []LineItem `json:"items"`
}

// LineSubtotal is price × quantity for a resolved product and 0 otherwise.
func LineSubtotal(item LineItem) int64 {
	if item.Product.Product == nil || item.Quantity <= 0 {
		return 0
	}
	return item.Product.Product.Price * int64(item.Quantity)
}

func ItemsTotal(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += LineSubtotal(item)
	}
	return total
}

// OrderTotal treats a nil order as empty.
func OrderTotal(order *Order) int64 {
	if order == nil {
		return 0
	}
	return ItemsTotal(order.Items)
}

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatUSD renders minor units (cents) as en-US currency, e.g. 123456 -> "$1,234.56".
func FormatUSD(minor int64) string {
	sign, abs := "", uint64(minor)
	if minor < 0 {
		// Negating in uint64 keeps math.MinInt64 representable.
		sign, abs = "-", uint64(-(minor+1))+1
	}
	return fmt.Sprintf("%s$%s.%02d", sign, usdPrinter.Sprintf("%d", abs/100), abs%100)
}
