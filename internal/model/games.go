package model

import (
	"fmt"
	"sort"
	"strings"
)

// Layout selects which canonical price table shape a game uses when the
// table has to be created.
type Layout int

const (
	// LayoutLean is a shared table keyed by (game, card_id) holding only a median.
	LayoutLean Layout = iota
	// LayoutRich is a per-game table keyed by card_id with low/median/high.
	LayoutRich
)

func (l Layout) String() string {
	switch l {
	case LayoutLean:
		return "lean"
	case LayoutRich:
		return "rich"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Game describes where a card game's catalog and prices live and how
// listings for it are searched.
type Game struct {
	Key          string
	Label        string
	CatalogTable string
	PriceTable   string
	Layout       Layout
	// Discriminator is written to the price table's game column when present.
	Discriminator string
	CategoryID    string
	// Aliases are category words appended to queries, most specific first.
	Aliases []string
}

// Games is the fixed registry of supported card games.
var Games = map[string]Game{
	"pokemon": {
		Key:          "pokemon",
		Label:        "Pokémon TCG",
		CatalogTable: "pokemon_cards",
		PriceTable:   "pokemon_card_prices",
		Layout:       LayoutRich,
		CategoryID:   "183454",
		Aliases:      []string{"pokemon card", "pokemon tcg", "pokemon"},
	},
	"mtg": {
		Key:           "mtg",
		Label:         "Magic: The Gathering",
		CatalogTable:  "mtg_cards",
		PriceTable:    "card_market_prices",
		Layout:        LayoutLean,
		Discriminator: "mtg",
		CategoryID:    "38292",
		Aliases:       []string{"mtg", "magic the gathering", "magic card"},
	},
	"yugioh": {
		Key:           "yugioh",
		Label:         "Yu-Gi-Oh!",
		CatalogTable:  "yugioh_cards",
		PriceTable:    "card_market_prices",
		Layout:        LayoutLean,
		Discriminator: "yugioh",
		CategoryID:    "31395",
		Aliases:       []string{"yugioh", "yu-gi-oh", "yugioh card"},
	},
}

// GameKeys returns the registered game keys in a stable order.
func GameKeys() []string {
	keys := make([]string, 0, len(Games))
	for k := range Games {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SelectGames resolves a CLI game selector ("all" or a single key).
func SelectGames(selector string) ([]Game, error) {
	selector = strings.ToLower(strings.TrimSpace(selector))
	if selector == "" || selector == "all" {
		out := make([]Game, 0, len(Games))
		for _, k := range GameKeys() {
			out = append(out, Games[k])
		}
		return out, nil
	}
	g, ok := Games[selector]
	if !ok {
		return nil, fmt.Errorf("unknown game %q (want all|%s)", selector, strings.Join(GameKeys(), "|"))
	}
	return []Game{g}, nil
}
