package core

import (
	"strings"

	"demand_service/internal/domain/model"
)

type contextRule struct {
	tag      model.LocationContext
	keywords []string
}

// contextRules is evaluated top to bottom and the first substring match wins,
// so a text naming both a city and a resort resolves to urban.
var contextRules = []contextRule{
	{
		tag: model.ContextUrban,
		keywords: []string{
			"milano", "roma", "torino", "firenze", "venezia", "napoli", "bologna",
			"genova", "palermo", "bari", "verona", "trieste", "padova",
		},
	},
	{
		tag: model.ContextSea,
		keywords: []string{
			"rimini", "riccione", "jesolo", "taormina", "amalfi", "positano", "sorrento",
			"capri", "ischia", "portofino", "cinque terre", "alghero", "porto cervo",
			"tropea", "gallipoli", "viareggio", "forte dei marmi", "cefalù", "lampedusa",
		},
	},
	{
		tag: model.ContextMountain,
		keywords: []string{
			"cortina", "madonna di campiglio", "livigno", "bormio", "courmayeur",
			"cervinia", "val gardena", "ortisei", "canazei", "sestriere", "dolomiti",
			"val di fassa", "alta badia",
		},
	},
}

// Classify maps free-text location to a coarse tourism context.
func Classify(location string) model.LocationContext {
	text := strings.ToLower(location)
	for _, rule := range contextRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.tag
			}
		}
	}
	return model.ContextGeneric
}

// contextMultiplier is the price uplift applied on top of the rating factor.
func contextMultiplier(ctx model.LocationContext) float64 {
	switch ctx {
	case model.ContextSea:
		return 1.05
	case model.ContextMountain:
		return 1.08
	default:
		return 1
	}
}
