package schema

import (
	"strings"
	"testing"
)

func TestChooseIDColumn(t *testing.T) {
	tests := []struct {
		cols map[string]bool
		want string
		ok   bool
	}{
		{map[string]bool{"card_id": true, "id": true}, "id", true},
		{map[string]bool{"card_id": true, "median": true}, "card_id", true},
		{map[string]bool{"cardId": true}, "cardId", true},
		{map[string]bool{"median": true}, "", false},
	}

	for _, tt := range tests {
		got, ok := chooseIDColumn(tt.cols)
		if got != tt.want || ok != tt.ok {
			t.Errorf("chooseIDColumn(%v) = %q, %v; want %q, %v", tt.cols, got, ok, tt.want, tt.ok)
		}
	}
}

func TestChooseKey(t *testing.T) {
	tests := []struct {
		name      string
		idCol     string
		hasGame   bool
		indexes   []uniqueIndex
		want      []string
		hasUnique bool
	}{
		{
			name:      "primary key on id",
			idCol:     "card_id",
			indexes:   []uniqueIndex{{"prices_pkey", []string{"card_id"}}},
			want:      []string{"card_id"},
			hasUnique: true,
		},
		{
			name:    "composite with game preferred",
			idCol:   "card_id",
			hasGame: true,
			indexes: []uniqueIndex{
				{"prices_card_key", []string{"card_id"}},
				{"prices_pkey", []string{"game", "card_id"}},
			},
			want:      []string{"game", "card_id"},
			hasUnique: true,
		},
		{
			name:      "id only constraint when game column exists",
			idCol:     "card_id",
			hasGame:   true,
			indexes:   []uniqueIndex{{"prices_card_key", []string{"card_id"}}},
			want:      []string{"card_id"},
			hasUnique: true,
		},
		{
			name:    "constraint with unpopulatable column is skipped",
			idCol:   "card_id",
			hasGame: true,
			indexes: []uniqueIndex{
				{"prices_variant_key", []string{"game", "card_id", "variant"}},
			},
			want:      []string{"card_id"},
			hasUnique: false,
		},
		{
			name:      "unique without id column is ignored",
			idCol:     "id",
			indexes:   []uniqueIndex{{"prices_url_key", []string{"sample_url"}}},
			want:      []string{"id"},
			hasUnique: false,
		},
		{
			name:    "smallest wins",
			idCol:   "id",
			hasGame: true,
			indexes: []uniqueIndex{
				{"b_key", []string{"id", "game"}},
				{"a_key", []string{"game", "id", "game"}},
			},
			want:      []string{"id", "game"},
			hasUnique: true,
		},
		{
			name:      "no indexes",
			idCol:     "id",
			want:      []string{"id"},
			hasUnique: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hasUnique := chooseKey(tt.idCol, tt.hasGame, tt.indexes)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") || hasUnique != tt.hasUnique {
				t.Errorf("chooseKey() = %v, %v; want %v, %v", got, hasUnique, tt.want, tt.hasUnique)
			}
		})
	}
}

func TestCastFor(t *testing.T) {
	tests := map[string]string{
		"bigint":            "bigint",
		"INTEGER":           "integer",
		"uuid":              "uuid",
		"character varying": "text",
		"":                  "text",
	}
	for in, want := range tests {
		if got := castFor(in); got != want {
			t.Errorf("castFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"pokemon_card_prices", `"pokemon_card_prices"`, true},
		{"cardId", `"cardId"`, true},
		{"median", `"median"`, true},
		{"prices; DROP TABLE x", "", false},
		{"Prices", "", false},
		{"1prices", "", false},
	}

	for _, tt := range tests {
		got, err := Quote(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("Quote(%q) = %q, %v; want %q ok=%v", tt.in, got, err, tt.want, tt.ok)
		}
	}
}
