package usecase

import "github.com/promolens/backend/internal/domain"

// Derived holds the price and both discount forms after filling in what
// can be computed from the parsed values.
type Derived struct {
	Price           *domain.Price
	PriceDiscount   *domain.PriceDiscount
	PercentDiscount *domain.PercentDiscount
}

// Derive completes the price/discount triple. A missing value is computed
// from the other two only when both were parsed, never from another derived
// value:
//
//	priceDiscount = price × percent
//	percent       = priceDiscount / price
//	price         = priceDiscount / percent − priceDiscount
//
// A derivation that would divide by zero is skipped.
func Derive(price *domain.Price, priceDiscount *domain.PriceDiscount, percentDiscount *domain.PercentDiscount) Derived {
	out := Derived{Price: price, PriceDiscount: priceDiscount, PercentDiscount: percentDiscount}

	if price == nil && priceDiscount != nil && percentDiscount != nil && percentDiscount.Percent != 0 {
		out.Price = &domain.Price{
			Dollars: priceDiscount.Dollars/percentDiscount.Percent - priceDiscount.Dollars,
		}
	}

	if priceDiscount == nil && price != nil && percentDiscount != nil {
		out.PriceDiscount = &domain.PriceDiscount{
			Dollars:   price.Dollars * percentDiscount.Percent,
			UnitCount: percentDiscount.UnitCount,
		}
	}

	if percentDiscount == nil && price != nil && priceDiscount != nil && price.Dollars != 0 {
		out.PercentDiscount = &domain.PercentDiscount{
			Percent:   priceDiscount.Dollars / price.Dollars,
			UnitCount: priceDiscount.UnitCount,
		}
	}

	return out
}

// firstDiscounts picks the first discount of each kind
func firstDiscounts(discounts []domain.Discount) (*domain.PriceDiscount, *domain.PercentDiscount) {
	var priceDiscount *domain.PriceDiscount
	var percentDiscount *domain.PercentDiscount

	for _, d := range discounts {
		switch v := d.(type) {
		case domain.PriceDiscount:
			if priceDiscount == nil {
				priceDiscount = &v
			}
		case domain.PercentDiscount:
			if percentDiscount == nil {
				percentDiscount = &v
			}
		}
	}

	return priceDiscount, percentDiscount
}
