package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/guarzo/tcgcomps/internal/ebay"
	"github.com/guarzo/tcgcomps/internal/model"
)

// TestDataFactory provides methods for generating dynamic test data
type TestDataFactory struct {
	rand *rand.Rand
	seq  int
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateTestToken generates a random test token
func (f *TestDataFactory) GenerateTestToken() string {
	return fmt.Sprintf("test-token-%d", f.rand.Int63())
}

// GenerateTestURL generates a test URL for the given service and resource
func (f *TestDataFactory) GenerateTestURL(service, resource string) string {
	return fmt.Sprintf("https://%s.test.local/%s/%d", service, resource, f.rand.Int63())
}

// GenerateTestCardNumber generates a random card number for testing
func (f *TestDataFactory) GenerateTestCardNumber() string {
	return fmt.Sprintf("%03d", f.rand.Intn(300)+1)
}

// GenerateTestSetName generates a random test set name
func (f *TestDataFactory) GenerateTestSetName() string {
	sets := []string{"Test Base Set", "Test Jungle", "Test Fossil", "Test Rocket", "Test Gym"}
	return sets[f.rand.Intn(len(sets))]
}

// GenerateTestCardName generates a random test card name
func (f *TestDataFactory) GenerateTestCardName() string {
	names := []string{"Test Pikachu", "Test Charizard", "Test Blastoise", "Test Venusaur", "Test Mewtwo"}
	return names[f.rand.Intn(len(names))]
}

// GenerateTestPrice generates a random price in dollars between $0.50 and $500
func (f *TestDataFactory) GenerateTestPrice() float64 {
	return float64(f.rand.Intn(49950)+50) / 100
}

// GenerateCatalogItem generates a catalog item with a unique id for game
func (f *TestDataFactory) GenerateCatalogItem(game string) model.CatalogItem {
	f.seq++
	return model.CatalogItem{
		ID:      fmt.Sprintf("%s-%d", game, f.seq),
		Name:    f.GenerateTestCardName(),
		SetName: f.GenerateTestSetName(),
		Number:  f.GenerateTestCardNumber(),
		Game:    game,
	}
}

// GenerateListings generates n priced listings
func (f *TestDataFactory) GenerateListings(n int) []ebay.Listing {
	out := make([]ebay.Listing, n)
	for i := range out {
		out[i] = ebay.Listing{
			ItemID:   fmt.Sprintf("v1|%d|0", f.rand.Int63()),
			Title:    f.GenerateTestCardName(),
			URL:      f.GenerateTestURL("ebay", "itm"),
			Price:    f.GenerateTestPrice(),
			Currency: "USD",
		}
		if f.rand.Intn(2) == 0 {
			out[i].ShippingCosts = []float64{float64(f.rand.Intn(500)) / 100}
		}
	}
	return out
}
