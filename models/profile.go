package models

import "time"

// Category classifies a source site.
type Category string

const (
	CategoryAuctionHouse Category = "auction_house"
	CategoryMarketplace  Category = "marketplace"
	CategoryDatabase     Category = "database"
	CategoryUnknown      Category = "unknown"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAuctionHouse, CategoryMarketplace, CategoryDatabase, CategoryUnknown:
		return true
	default:
		return false
	}
}

// Field names a logical value a profile can carry extraction hints for.
type Field string

const (
	FieldPrice       Field = "price"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldCondition   Field = "condition"
	FieldImages      Field = "images"
)

// SourceProfile is the static knowledge about one target domain.
// Profiles are never mutated once a registry snapshot holds them.
type SourceProfile struct {
	Domain               string             `json:"domain" yaml:"domain"`
	Category             Category           `json:"category" yaml:"category"`
	RequiresRendering    bool               `json:"requiresRendering" yaml:"requiresRendering"`
	HasAntiBot           bool               `json:"hasAntiBot" yaml:"hasAntiBot"`
	FieldHints           map[Field][]string `json:"fieldHints,omitempty" yaml:"fieldHints"`
	MinRequestIntervalMs int64              `json:"minRequestIntervalMs" yaml:"minRequestIntervalMs"`
}

// MinRequestInterval returns the minimum spacing between requests to the domain.
func (p *SourceProfile) MinRequestInterval() time.Duration {
	if p == nil || p.MinRequestIntervalMs <= 0 {
		return 0
	}
	return time.Duration(p.MinRequestIntervalMs) * time.Millisecond
}

// Hints returns the structural hints for field, if any.
func (p *SourceProfile) Hints(field Field) []string {
	if p == nil {
		return nil
	}
	return p.FieldHints[field]
}
