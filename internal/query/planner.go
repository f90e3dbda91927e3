// Package query turns catalog items into marketplace search strings.
package query

import (
	"strings"

	"github.com/guarzo/tcgcomps/internal/ebay"
	"github.com/guarzo/tcgcomps/internal/model"
)

// Options control how many variants the planner produces.
type Options struct {
	// ASCIIFirst tries an accent-stripped form of each query before the literal one.
	ASCIIFirst bool
	// AliasExpansion uses every alias of the game in fallbacks instead of only the first.
	AliasExpansion bool
}

// Planner generates the primary and fallback queries for an item.
type Planner struct {
	opts Options
}

// NewPlanner creates a planner.
func NewPlanner(opts Options) *Planner {
	return &Planner{opts: opts}
}

// builder assembles a query from optional parts.
type builder struct {
	parts []string
}

func newBuilder(name string) *builder {
	return &builder{parts: []string{name}}
}

func (b *builder) with(part string) *builder {
	if part = strings.TrimSpace(part); part != "" {
		b.parts = append(b.parts, part)
	}
	return b
}

func (b *builder) build() string {
	return ebay.TruncateQuery(strings.Join(b.parts, " "), ebay.MaxQueryLength)
}

// Primary returns the queries tried first for item, most preferred first.
// The set is identified by its code when known, otherwise by its name; the
// number is added whenever it is known.
func (p *Planner) Primary(game model.Game, item model.CatalogItem) []string {
	b := newBuilder(item.Name)
	if item.SetCode != "" {
		b.with(item.SetCode)
	} else {
		b.with(item.SetName)
	}
	b.with(item.Number)
	b.with(firstAlias(game))

	return p.variants(b.build())
}

// Fallbacks returns broader queries for item, skipping anything in exclude.
// Comparison is case-insensitive and the result has no duplicates.
func (p *Planner) Fallbacks(game model.Game, item model.CatalogItem, exclude []string) []string {
	seen := make(map[string]bool, len(exclude))
	for _, q := range exclude {
		seen[strings.ToLower(q)] = true
	}

	aliases := game.Aliases
	if !p.opts.AliasExpansion && len(aliases) > 1 {
		aliases = aliases[:1]
	}
	if len(aliases) == 0 {
		aliases = []string{""}
	}

	set := item.SetName
	if set == "" {
		set = item.SetCode
	}

	var out []string
	add := func(q string) {
		for _, v := range p.variants(q) {
			key := strings.ToLower(v)
			if v == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	for _, alias := range aliases {
		if set != "" {
			add(newBuilder(item.Name).with(set).with(alias).build())
		}
		add(newBuilder(item.Name).with(alias).build())
	}
	return out
}

// variants expands q into the forms that should be sent, in order.
func (p *Planner) variants(q string) []string {
	if !p.opts.ASCIIFirst || IsASCII(q) {
		return []string{q}
	}
	folded := ebay.TruncateQuery(ASCIIFold(q), ebay.MaxQueryLength)
	if folded == "" || strings.EqualFold(folded, q) {
		return []string{q}
	}
	return []string{folded, q}
}

func firstAlias(game model.Game) string {
	if len(game.Aliases) == 0 {
		return ""
	}
	return game.Aliases[0]
}
