package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promolens/backend/internal/domain"
)

const cerealBlock = "Great Brand Cereal\n$3.99\nsave 20% on 2\nOrganic"

func newTestExtractor(products []string, mode FixPriceMode) *ExtractionService {
	matcher := NewMatchingService(products, MatchConfig{}, nil)
	units := NewUnitParser([]string{"oz", "lb", "gallon"})
	return NewExtractionService(matcher, units, ExtractionConfig{FixPriceMode: mode})
}

func TestExtract_CerealBlock(t *testing.T) {
	svc := newTestExtractor([]string{"Great Brand Cereal", "Whole Milk"}, FixPriceLenient)

	promotion, err := svc.Extract(context.Background(), "page_1", cerealBlock)
	require.NoError(t, err)

	assert.Equal(t, "page_1", promotion.FlyerName)
	assert.Equal(t, "Great Brand Cereal", promotion.ProductName)
	assert.Equal(t, 100, promotion.Confidence)

	require.NotNil(t, promotion.UnitPromoPrice)
	assert.InDelta(t, 3.99, *promotion.UnitPromoPrice, 1e-9)
	require.NotNil(t, promotion.PercentDiscount)
	assert.InDelta(t, 0.1, *promotion.PercentDiscount, 1e-9)
	require.NotNil(t, promotion.PriceDiscount)
	assert.InDelta(t, 0.399, *promotion.PriceDiscount, 1e-9)
	require.NotNil(t, promotion.LeastUnitCountForPromo)
	assert.Equal(t, 2.0, *promotion.LeastUnitCountForPromo)
	require.NotNil(t, promotion.IsOrganic)
	assert.True(t, *promotion.IsOrganic)
	assert.Nil(t, promotion.UnitOfMeasurement)
}

func TestExtract_MissingFieldsStayNil(t *testing.T) {
	svc := newTestExtractor([]string{"Whole Milk"}, FixPriceLenient)

	promotion, err := svc.Extract(context.Background(), "page_2", "Whole Milk\nhalf gallon")
	require.NoError(t, err)

	assert.Nil(t, promotion.UnitPromoPrice)
	assert.Nil(t, promotion.PriceDiscount)
	assert.Nil(t, promotion.PercentDiscount)
	assert.Nil(t, promotion.LeastUnitCountForPromo)
	require.NotNil(t, promotion.UnitOfMeasurement)
	assert.Equal(t, "half gallon", *promotion.UnitOfMeasurement)
	require.NotNil(t, promotion.IsOrganic)
	assert.False(t, *promotion.IsOrganic)
}

func TestExtract_PriceDiscountUnitCount(t *testing.T) {
	svc := newTestExtractor([]string{"Whole Milk"}, FixPriceLenient)

	promotion, err := svc.Extract(context.Background(), "page_3", "Whole Milk\n$5.00\nsave $2 on 2")
	require.NoError(t, err)

	require.NotNil(t, promotion.LeastUnitCountForPromo)
	assert.Equal(t, 2.0, *promotion.LeastUnitCountForPromo)
	require.NotNil(t, promotion.PriceDiscount)
	assert.InDelta(t, 1.0, *promotion.PriceDiscount, 1e-9)
	require.NotNil(t, promotion.PercentDiscount)
	assert.InDelta(t, 0.2, *promotion.PercentDiscount, 1e-9)
}

func TestExtract_LowConfidence(t *testing.T) {
	svc := newTestExtractor([]string{"Orange Juice"}, FixPriceLenient)

	promotion, err := svc.Extract(context.Background(), "page_1", "Bananas $0.59")
	assert.Nil(t, promotion)
	assert.True(t, errors.Is(err, domain.ErrLowConfidence))
}

func TestExtract_StrictPriceError(t *testing.T) {
	svc := newTestExtractor([]string{"Great Brand Cereal"}, FixPriceStrict)

	_, err := svc.Extract(context.Background(), "page_1", "Great Brand Cereal\n$1250")
	assert.ErrorIs(t, err, domain.ErrUnexpectedPrice)
}

func TestExtract_Idempotent(t *testing.T) {
	svc := newTestExtractor([]string{"Great Brand Cereal"}, FixPriceLenient)

	first, err := svc.Extract(context.Background(), "page_1", cerealBlock)
	require.NoError(t, err)
	second, err := svc.Extract(context.Background(), "page_1", cerealBlock)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestIsOrganic(t *testing.T) {
	assert.True(t, IsOrganic("ORGANIC apples"))
	assert.True(t, IsOrganic("Certified Organic"))
	assert.False(t, IsOrganic("Great Brand Cereal"))
}
