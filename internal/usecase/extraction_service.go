package usecase

import (
	"context"
	"strings"

	"github.com/promolens/backend/internal/domain"
)

// ExtractionConfig holds configuration for the extraction service
type ExtractionConfig struct {
	FixPriceMode FixPriceMode
}

// ExtractionService turns the text of one ad block into a promotion record
type ExtractionService struct {
	matcher      *MatchingService
	units        *UnitParser
	fixPriceMode FixPriceMode
}

// NewExtractionService creates a new extraction service with dependencies
func NewExtractionService(matcher *MatchingService, units *UnitParser, config ExtractionConfig) *ExtractionService {
	if units == nil {
		units = NewUnitParser(nil)
	}
	return &ExtractionService{
		matcher:      matcher,
		units:        units,
		fixPriceMode: config.FixPriceMode,
	}
}

// Extract parses the text of an ad block. It returns ErrLowConfidence or
// ErrNoProductMatch when the block does not name a known product, and an
// ErrUnexpectedPattern/ErrUnexpectedPrice error when the price heuristics
// meet text they were not built for. Every other field missing from the
// text is simply left nil.
func (s *ExtractionService) Extract(ctx context.Context, flyerName, text string) (*domain.Promotion, error) {
	match, err := s.matcher.FindProductName(ctx, text)
	if err != nil {
		return nil, err
	}

	prices, err := ParsePrices(text, s.fixPriceMode)
	if err != nil {
		return nil, err
	}

	discounts, err := ParseDiscounts(text, s.fixPriceMode)
	if err != nil {
		return nil, err
	}

	var price *domain.Price
	if len(prices) > 0 {
		price = &prices[0]
	}
	priceDiscount, percentDiscount := firstDiscounts(discounts)
	derived := Derive(price, priceDiscount, percentDiscount)

	promotion := &domain.Promotion{
		FlyerName:   flyerName,
		ProductName: match.Name,
		Confidence:  match.Confidence,
		IsOrganic:   boolPtr(IsOrganic(text)),
	}

	if derived.Price != nil {
		promotion.UnitPromoPrice = floatPtr(derived.Price.Dollars)
	}
	if derived.PriceDiscount != nil {
		promotion.PriceDiscount = floatPtr(derived.PriceDiscount.Dollars)
	}
	if derived.PercentDiscount != nil {
		promotion.PercentDiscount = floatPtr(derived.PercentDiscount.Percent)
	}

	switch {
	case percentDiscount != nil:
		promotion.LeastUnitCountForPromo = floatPtr(percentDiscount.UnitCount)
	case priceDiscount != nil:
		promotion.LeastUnitCountForPromo = floatPtr(priceDiscount.UnitCount)
	}

	if unit, ok := s.units.Parse(text); ok {
		promotion.UnitOfMeasurement = &unit
	}

	return promotion, nil
}

// IsOrganic reports whether the block text mentions "organic" in any case
func IsOrganic(text string) bool {
	return strings.Contains(strings.ToLower(text), "organic")
}

func floatPtr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }
