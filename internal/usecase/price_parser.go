package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/promolens/backend/internal/domain"
)

// FixPriceMode selects how integer prices missing their decimal point are
// repaired.
type FixPriceMode int

const (
	// FixPriceLenient moves the decimal point of any integer of three or
	// more digits two places left.
	FixPriceLenient FixPriceMode = iota
	// FixPriceStrict only repairs integers ending in 99 or 49 and rejects
	// every other integer of three or more digits.
	FixPriceStrict
)

// ParseFixPriceMode maps a configuration value to a FixPriceMode
func ParseFixPriceMode(s string) (FixPriceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return FixPriceLenient, nil
	case "strict":
		return FixPriceStrict, nil
	default:
		return FixPriceLenient, fmt.Errorf("unknown fix price mode %q", s)
	}
}

func (m FixPriceMode) String() string {
	if m == FixPriceStrict {
		return "strict"
	}
	return "lenient"
}

// numberPattern is an amount with at most one decimal point, so a sentence
// ending period is not part of it: "3.99", "5", ".99"
const numberPattern = `(?:\d+(?:\.\d+)?|\.\d+)`

var (
	// "2/$5", "$3.99", "89¢"; a leading "save " or trailing " off" marks a discount
	pricePattern = regexp.MustCompile(`(?i)(save )?(?:(\d+)/)?(\$` + numberPattern + `|` + numberPattern + `¢)( off)?`)

	// "save $1", "50¢ off", "save 20% on 2"; without save/off it is a price
	discountPattern = regexp.MustCompile(`(?i)(save )?(?:(\$` + numberPattern + `|` + numberPattern + `¢)|(` + numberPattern + `%))(?: on (\d+)?)?( off)?`)
)

// FixPrice repairs prices printed without a decimal point, such as 199 for
// $1.99. Values with a fractional part or fewer than three integer digits
// are returned unchanged.
func FixPrice(x float64, mode FixPriceMode) (float64, error) {
	if x != math.Trunc(x) {
		return x, nil
	}

	digits := strconv.FormatFloat(x, 'f', 0, 64)
	if len(digits) < 3 {
		return x, nil
	}

	if mode == FixPriceStrict && !strings.HasSuffix(digits, "99") && !strings.HasSuffix(digits, "49") {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnexpectedPrice, digits)
	}

	fixed, err := strconv.ParseFloat(digits[:len(digits)-2]+"."+digits[len(digits)-2:], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnexpectedPrice, digits)
	}
	return fixed, nil
}

// ParsePrices returns every base price in the text in order of appearance.
// Amounts marked as savings are skipped, and per-N prices ("2/$5") are
// reduced to the price of one unit.
func ParsePrices(text string, mode FixPriceMode) ([]domain.Price, error) {
	var prices []domain.Price

	for _, m := range pricePattern.FindAllStringSubmatch(text, -1) {
		prefix, count, amount, suffix := m[1], m[2], m[3], m[4]
		if prefix != "" || suffix != "" {
			continue
		}

		units, err := parseUnitCount(count)
		if err != nil {
			return nil, err
		}

		dollars, err := parseAmount(amount, mode)
		if err != nil {
			return nil, err
		}

		prices = append(prices, domain.Price{Dollars: dollars / units})
	}

	return prices, nil
}

// ParseDiscounts returns every saving in the text in order of appearance.
// Only amounts marked with "save" or "off" count; "on N" spreads the
// saving over N units.
func ParseDiscounts(text string, mode FixPriceMode) ([]domain.Discount, error) {
	var discounts []domain.Discount

	for _, m := range discountPattern.FindAllStringSubmatch(text, -1) {
		prefix, amount, percent, count, suffix := m[1], m[2], m[3], m[4], m[5]
		if prefix == "" && suffix == "" {
			continue
		}

		units, err := parseUnitCount(count)
		if err != nil {
			return nil, err
		}

		switch {
		case amount != "":
			dollars, err := parseAmount(amount, mode)
			if err != nil {
				return nil, err
			}
			discounts = append(discounts, domain.PriceDiscount{Dollars: dollars / units, UnitCount: units})
		case percent != "":
			value, err := parseNumber(strings.TrimSuffix(percent, "%"))
			if err != nil {
				return nil, err
			}
			discounts = append(discounts, domain.PercentDiscount{Percent: value / 100 / units, UnitCount: units})
		default:
			return nil, fmt.Errorf("%w: %q", domain.ErrUnexpectedPattern, m[0])
		}
	}

	return discounts, nil
}

// parseAmount converts "$3.99" or "89¢" to dollars
func parseAmount(amount string, mode FixPriceMode) (float64, error) {
	switch {
	case strings.HasPrefix(amount, "$"):
		value, err := parseNumber(strings.TrimPrefix(amount, "$"))
		if err != nil {
			return 0, err
		}
		return FixPrice(value, mode)
	case strings.HasSuffix(amount, "¢"):
		value, err := parseNumber(strings.TrimSuffix(amount, "¢"))
		if err != nil {
			return 0, err
		}
		fixed, err := FixPrice(value, mode)
		if err != nil {
			return 0, err
		}
		return fixed / 100, nil
	default:
		return 0, fmt.Errorf("%w: amount %q", domain.ErrUnexpectedPattern, amount)
	}
}

// parseUnitCount reads the optional unit count of a match; absent or zero
// counts mean a single unit.
func parseUnitCount(count string) (float64, error) {
	if count == "" {
		return 1, nil
	}
	units, err := parseNumber(count)
	if err != nil {
		return 0, err
	}
	if units == 0 {
		return 1, nil
	}
	return units, nil
}

func parseNumber(s string) (float64, error) {
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", domain.ErrUnexpectedPattern, s)
	}
	return value, nil
}
