package profiles

import "github.com/aluiziolira/go-scrape-coins/models"

// DefaultInterval is the spacing applied to domains the registry does not know.
const DefaultInterval = 3000

// DefaultProfile is returned for unrecognized domains.
func DefaultProfile() models.SourceProfile {
	return models.SourceProfile{
		Domain:               "*",
		Category:             models.CategoryUnknown,
		HasAntiBot:           true,
		MinRequestIntervalMs: DefaultInterval,
	}
}

// BuiltinProfiles is the static table used when no backing store is configured.
func BuiltinProfiles() []models.SourceProfile {
	return []models.SourceProfile{
		{
			Domain:            "ha.com",
			Category:          models.CategoryAuctionHouse,
			RequiresRendering: true,
			HasAntiBot:        true,
			FieldHints: map[models.Field][]string{
				models.FieldPrice: {".price-realized", ".current-bid"},
				models.FieldTitle: {"h1.item-title", ".lot-title"},
			},
			MinRequestIntervalMs: 2500,
		},
		{
			Domain:     "stacksbowers.com",
			Category:   models.CategoryAuctionHouse,
			HasAntiBot: true,
			FieldHints: map[models.Field][]string{
				models.FieldPrice:       {".lot-price", ".realized"},
				models.FieldDescription: {".lot-description"},
			},
			MinRequestIntervalMs: 2500,
		},
		{
			Domain:     "greatcollections.com",
			Category:   models.CategoryAuctionHouse,
			HasAntiBot: false,
			FieldHints: map[models.Field][]string{
				models.FieldPrice: {".current-bid", ".winning-bid"},
				models.FieldTitle: {"h1"},
			},
			MinRequestIntervalMs: 1500,
		},
		{
			Domain:            "catawiki.com",
			Category:          models.CategoryAuctionHouse,
			RequiresRendering: true,
			HasAntiBot:        true,
			FieldHints: map[models.Field][]string{
				models.FieldPrice: {"[data-testid='lot-bid-amount']"},
			},
			MinRequestIntervalMs: 3000,
		},
		{
			Domain:     "ebay.com",
			Category:   models.CategoryMarketplace,
			HasAntiBot: true,
			FieldHints: map[models.Field][]string{
				models.FieldPrice:     {".s-item__price"},
				models.FieldTitle:     {".s-item__title"},
				models.FieldCondition: {".SECONDARY_INFO"},
				models.FieldImages:    {".s-item__image-img"},
			},
			MinRequestIntervalMs: 2000,
		},
		{
			Domain:     "vcoins.com",
			Category:   models.CategoryMarketplace,
			HasAntiBot: false,
			FieldHints: map[models.Field][]string{
				models.FieldPrice:       {".price"},
				models.FieldDescription: {".item-description"},
			},
			MinRequestIntervalMs: 1000,
		},
		{
			Domain:     "apmex.com",
			Category:   models.CategoryMarketplace,
			HasAntiBot: true,
			FieldHints: map[models.Field][]string{
				models.FieldPrice: {".product-price", ".price"},
			},
			MinRequestIntervalMs: 2000,
		},
		{
			Domain:     "numista.com",
			Category:   models.CategoryDatabase,
			HasAntiBot: false,
			FieldHints: map[models.Field][]string{
				models.FieldTitle:       {"h1"},
				models.FieldDescription: {"#fiche_descriptions"},
				models.FieldImages:      {".coin_picture img"},
			},
			MinRequestIntervalMs: 1000,
		},
		{
			Domain:     "pcgs.com",
			Category:   models.CategoryDatabase,
			HasAntiBot: true,
			FieldHints: map[models.Field][]string{
				models.FieldPrice: {".price-guide-value"},
			},
			MinRequestIntervalMs: 1500,
		},
		{
			Domain:     "ngccoin.com",
			Category:   models.CategoryDatabase,
			HasAntiBot: true,
			FieldHints: map[models.Field][]string{
				models.FieldPrice:       {".price-guide"},
				models.FieldDescription: {".coin-details"},
			},
			MinRequestIntervalMs: 1500,
		},
		{
			Domain:               "coinarchives.com",
			Category:             models.CategoryDatabase,
			HasAntiBot:           false,
			MinRequestIntervalMs: 2000,
		},
	}
}
