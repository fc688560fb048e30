package domain

// Price is a base unit price in dollars
type Price struct {
	Dollars float64 `json:"dollars"`
}

// Discount is either a PriceDiscount or a PercentDiscount. The set of
// implementations is closed; switch over both when consuming one.
type Discount interface {
	Units() float64
	isDiscount()
}

// PriceDiscount is an amount saved per unit ("save $1", "50¢ off")
type PriceDiscount struct {
	Dollars   float64 `json:"dollars"`
	UnitCount float64 `json:"unitCount"`
}

// PercentDiscount is a fraction saved per unit ("save 20% on 2")
type PercentDiscount struct {
	Percent   float64 `json:"percent"` // 0-1 fraction
	UnitCount float64 `json:"unitCount"`
}

func (d PriceDiscount) Units() float64   { return d.UnitCount }
func (d PercentDiscount) Units() float64 { return d.UnitCount }

func (PriceDiscount) isDiscount()   {}
func (PercentDiscount) isDiscount() {}

// Promotion is the record extracted from one ad block. Nil fields could not
// be determined from the block text.
type Promotion struct {
	FlyerName              string   `json:"flyerName"`
	ProductName            string   `json:"productName"`
	UnitPromoPrice         *float64 `json:"unitPromoPrice,omitempty"`
	UnitOfMeasurement      *string  `json:"unitOfMeasurement,omitempty"`
	LeastUnitCountForPromo *float64 `json:"leastUnitCountForPromo,omitempty"`
	PriceDiscount          *float64 `json:"priceDiscount,omitempty"`
	PercentDiscount        *float64 `json:"percentDiscount,omitempty"`
	IsOrganic              *bool    `json:"isOrganic,omitempty"`
	Confidence             int      `json:"confidence"` // product name match score 0-100
}

// MatchResult represents the result of a product name lookup
type MatchResult struct {
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
	Exact      bool   `json:"exact"` // found verbatim in the block text
}

// ExtractRequest is the body of an extraction request over HTTP
type ExtractRequest struct {
	FlyerName  string      `json:"flyerName" binding:"required"`
	Annotation *Annotation `json:"annotation" binding:"required"`
}

// ExtractResponse lists the promotions found on one flyer page
type ExtractResponse struct {
	FlyerName  string      `json:"flyerName"`
	AdBlocks   int         `json:"adBlocks"`
	Promotions []Promotion `json:"promotions"`
}
