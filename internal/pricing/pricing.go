// Package pricing содержит расчёт стоимости корзины.
package pricing

import (
	"math"

	"github.com/mmeshcher/storefront-system/internal/model"
)

const (
	// ShippingFee — фиксированная стоимость доставки для непустой корзины.
	ShippingFee = 10.0
	// TaxRate — ставка налога от промежуточной суммы.
	TaxRate = 0.10
)

// Breakdown содержит разбивку стоимости корзины. Значения всегда
// вычисляются заново и нигде не хранятся.
type Breakdown struct {
	Subtotal float64
	Shipping float64
	Tax      float64
	Total    float64
}

// Calculate вычисляет разбивку стоимости по позициям корзины и карте
// количеств. Отсутствующее количество считается нулевым. Функция чистая:
// результат не зависит от порядка позиций.
func Calculate(items []model.Product, quantities map[string]int) Breakdown {
	subtotal := 0.0
	for _, item := range items {
		qty := quantities[item.ID]
		if qty <= 0 {
			continue
		}
		subtotal += item.Price * float64(qty)
	}

	shipping := 0.0
	if subtotal > 0 {
		shipping = ShippingFee
	}

	tax := round2(subtotal * TaxRate)

	return Breakdown{
		Subtotal: round2(subtotal),
		Shipping: shipping,
		Tax:      tax,
		Total:    round2(subtotal + shipping + tax),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
