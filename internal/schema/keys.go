package schema

import (
	"slices"
	"sort"
	"strings"
)

// uniqueIndex is a unique constraint or index as reported by pg_index.
type uniqueIndex struct {
	Name    string
	Columns []string
}

// chooseIDColumn returns the first accepted id column present in cols.
func chooseIDColumn(cols map[string]bool) (string, bool) {
	for _, c := range IDColumns {
		if cols[c] {
			return c, true
		}
	}
	return "", false
}

// chooseKey picks the columns that identify a price row. Only unique indexes
// made entirely of columns the engine fills (the id and, when present, game)
// can back an ON CONFLICT target. Indexes that include game win over those
// that do not, and among equals the smallest one wins.
func chooseKey(idCol string, hasGame bool, indexes []uniqueIndex) ([]string, bool) {
	var withGame, withoutGame []uniqueIndex
	for _, idx := range indexes {
		if !slices.Contains(idx.Columns, idCol) || !populatable(idx.Columns, idCol, hasGame) {
			continue
		}
		if hasGame && slices.Contains(idx.Columns, ColGame) {
			withGame = append(withGame, idx)
		} else {
			withoutGame = append(withoutGame, idx)
		}
	}

	for _, group := range [][]uniqueIndex{withGame, withoutGame} {
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			if len(group[i].Columns) != len(group[j].Columns) {
				return len(group[i].Columns) < len(group[j].Columns)
			}
			return group[i].Name < group[j].Name
		})
		return append([]string(nil), group[0].Columns...), true
	}

	return []string{idCol}, false
}

func populatable(cols []string, idCol string, hasGame bool) bool {
	for _, c := range cols {
		if c == idCol || (hasGame && c == ColGame) {
			continue
		}
		return false
	}
	return true
}

// idCasts maps information_schema data types to the cast applied to id
// parameters. Unknown types are compared as text.
var idCasts = map[string]string{
	"integer":  "integer",
	"bigint":   "bigint",
	"smallint": "smallint",
	"uuid":     "uuid",
	"text":     "text",
}

func castFor(dataType string) string {
	if c, ok := idCasts[strings.ToLower(dataType)]; ok {
		return c
	}
	return "text"
}
