package schema

import (
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Columns the engine knows how to read or write. Anything else found on a
// table is recorded in the profile but never placed in generated SQL.
const (
	ColGame        = "game"
	ColLow         = "low"
	ColMedian      = "median"
	ColHigh        = "high"
	ColSampleCount = "sample_count"
	ColCurrency    = "currency"
	ColSampleURL   = "sample_url"
	ColMethod      = "method"
	ColBasis       = "basis"
	ColQuery       = "query"
	ColUpdatedAt   = "updated_at"
	ColLastRun     = "last_run"
	ColRefreshedAt = "refreshed_at"

	// catalog columns
	ColName            = "name"
	ColSetCode         = "set_code"
	ColSetName         = "set_name"
	ColSetNum          = "set_num"
	ColNumber          = "number"
	ColCollectorNumber = "collector_number"
)

// IDColumns are the accepted names for the card id column, in preference order.
var IDColumns = []string{"id", "card_id", "cardid", "cardId"}

// TimestampColumns are stamped with now() on every write, in preference
// order for staleness checks.
var TimestampColumns = []string{ColUpdatedAt, ColRefreshedAt, ColLastRun}

var knownColumns = map[string]bool{
	ColGame: true, ColLow: true, ColMedian: true, ColHigh: true,
	ColSampleCount: true, ColCurrency: true, ColSampleURL: true,
	ColMethod: true, ColBasis: true, ColQuery: true,
	ColUpdatedAt: true, ColLastRun: true, ColRefreshedAt: true,
	"id": true, "card_id": true, "cardid": true, "cardId": true,
	ColName: true, ColSetCode: true, ColSetName: true, ColSetNum: true,
	ColNumber: true, ColCollectorNumber: true,
}

// ValidTable reports whether name is acceptable as an unqualified table name.
func ValidTable(name string) bool {
	return tableName.MatchString(name)
}

// KnownColumn reports whether name is part of the engine's column vocabulary.
func KnownColumn(name string) bool {
	return knownColumns[name]
}

// Quote returns name as a quoted SQL identifier. It refuses anything outside
// the table pattern and the column vocabulary.
func Quote(name string) (string, error) {
	if !ValidTable(name) && !KnownColumn(name) {
		return "", fmt.Errorf("identifier %q is not allowed", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// MustQuote is Quote for names already validated by Resolve.
func MustQuote(name string) string {
	q, err := Quote(name)
	if err != nil {
		panic(err)
	}
	return q
}
