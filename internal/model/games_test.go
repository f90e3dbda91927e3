package model

import "testing"

func TestSelectGames(t *testing.T) {
	tests := []struct {
		selector string
		want     int
		wantErr  bool
	}{
		{"all", 3, false},
		{"", 3, false},
		{"pokemon", 1, false},
		{"MTG", 1, false},
		{"digimon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			games, err := SelectGames(tt.selector)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.selector)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(games) != tt.want {
				t.Errorf("expected %d games, got %d", tt.want, len(games))
			}
		})
	}
}

func TestGamesRegistry(t *testing.T) {
	for key, g := range Games {
		if g.Key != key {
			t.Errorf("game %q has mismatched key %q", key, g.Key)
		}
		if len(g.Aliases) == 0 {
			t.Errorf("game %q has no aliases", key)
		}
		if g.Layout == LayoutLean && g.Discriminator == "" {
			t.Errorf("lean game %q needs a discriminator", key)
		}
	}
}

func TestCatalogItemLabel(t *testing.T) {
	item := CatalogItem{Name: "Charizard", Number: "4"}
	if got := item.Label(); got != "Charizard #4" {
		t.Errorf("expected 'Charizard #4', got '%s'", got)
	}
	item.Number = ""
	if got := item.Label(); got != "Charizard" {
		t.Errorf("expected 'Charizard', got '%s'", got)
	}
}
