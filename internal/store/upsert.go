package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/guarzo/tcgcomps/internal/model"
	"github.com/guarzo/tcgcomps/internal/schema"
)

// statement is SQL with its positional arguments.
type statement struct {
	SQL  string
	Args []any
}

// assignment is one non-key column written by an upsert.
type assignment struct {
	column string
	// value is bound as a parameter; when raw is set it is inlined instead.
	value any
	raw   string
}

// Upsert writes rec into the profile's table so that exactly one row exists
// for its key afterwards.
func (s *Store) Upsert(ctx context.Context, p *schema.Profile, rec model.PriceRecord) error {
	if rec.CardID == "" {
		return fmt.Errorf("%w: record has no card id", ErrPersistence)
	}

	if p.HasUnique {
		st := buildUpsert(p, rec)
		_, err := s.exec(ctx, "upsert "+p.Table, st.SQL, st.Args...)
		return err
	}

	upd := buildUpdate(p, rec)
	tag, err := s.exec(ctx, "update "+p.Table, upd.SQL, upd.Args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// A concurrent writer may insert the same key between these statements.
	ins := buildInsert(p, rec, false)
	_, err = s.exec(ctx, "insert "+p.Table, ins.SQL, ins.Args...)
	return err
}

// Touch writes a zero-sample placeholder row for id, marking it as in progress.
func (s *Store) Touch(ctx context.Context, p *schema.Profile, id, query string) error {
	return s.Upsert(ctx, p, model.PriceRecord{
		CardID: id,
		Stats:  model.Stats{Method: model.MethodNone},
		Query:  query,
	})
}

// assignments lists the value columns of rec present on the table, followed
// by every timestamp column stamped with now().
func assignments(p *schema.Profile, rec model.PriceRecord) []assignment {
	candidates := []assignment{
		{column: schema.ColLow, value: rec.Stats.Low},
		{column: schema.ColMedian, value: rec.Stats.Median},
		{column: schema.ColHigh, value: rec.Stats.High},
		{column: schema.ColSampleCount, value: rec.Stats.Sample},
		{column: schema.ColCurrency, value: nullable(rec.Currency)},
		{column: schema.ColSampleURL, value: nullable(rec.SampleURL)},
		{column: schema.ColMethod, value: nullable(rec.Stats.Method)},
		{column: schema.ColBasis, value: nullable(rec.Stats.Method)},
		{column: schema.ColQuery, value: nullable(rec.Query)},
	}
	for _, c := range schema.TimestampColumns {
		candidates = append(candidates, assignment{column: c, raw: "now()"})
	}

	out := candidates[:0]
	for _, a := range candidates {
		if p.Has(a.column) && !p.IsKey(a.column) {
			out = append(out, a)
		}
	}
	return out
}

// keyValues returns the id and, when the table has one, the game column
// with their bound values.
func keyValues(p *schema.Profile, rec model.PriceRecord) ([]string, []any) {
	cols := []string{p.IDColumn}
	vals := []any{rec.CardID}
	if p.HasGameColumn() {
		cols = append(cols, schema.ColGame)
		vals = append(vals, p.GameValue)
	}
	return cols, vals
}

// placeholder returns the parameter reference for column n, casting ids to
// the column's type.
func placeholder(p *schema.Profile, column string, n int) string {
	if column == p.IDColumn && p.IDType != "text" {
		return fmt.Sprintf("$%d::text::%s", n, p.IDType)
	}
	if column == p.IDColumn {
		return fmt.Sprintf("$%d::text", n)
	}
	return fmt.Sprintf("$%d", n)
}

func buildInsert(p *schema.Profile, rec model.PriceRecord, onConflict bool) statement {
	keyCols, args := keyValues(p, rec)
	cols := make([]string, 0, len(keyCols)+8)
	vals := make([]string, 0, len(keyCols)+8)
	for i, c := range keyCols {
		cols = append(cols, schema.MustQuote(c))
		vals = append(vals, placeholder(p, c, i+1))
	}

	sets := assignments(p, rec)
	for _, a := range sets {
		cols = append(cols, schema.MustQuote(a.column))
		if a.raw != "" {
			vals = append(vals, a.raw)
			continue
		}
		args = append(args, a.value)
		vals = append(vals, placeholder(p, a.column, len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		schema.MustQuote(p.Table), strings.Join(cols, ", "), strings.Join(vals, ", "))

	if onConflict {
		targets := make([]string, len(p.KeyColumns))
		for i, c := range p.KeyColumns {
			targets[i] = schema.MustQuote(c)
		}
		fmt.Fprintf(&b, " ON CONFLICT (%s)", strings.Join(targets, ", "))

		var updates []string
		for _, c := range keyCols {
			if !p.IsKey(c) {
				updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", schema.MustQuote(c), schema.MustQuote(c)))
			}
		}
		for _, a := range sets {
			q := schema.MustQuote(a.column)
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
		}
		if len(updates) == 0 {
			b.WriteString(" DO NOTHING")
		} else {
			b.WriteString(" DO UPDATE SET " + strings.Join(updates, ", "))
		}
	}
	return statement{SQL: b.String(), Args: args}
}

func buildUpsert(p *schema.Profile, rec model.PriceRecord) statement {
	return buildInsert(p, rec, true)
}

// buildUpdate matches on the id and, when present, the game column so that
// rows of other games sharing the table are never touched.
func buildUpdate(p *schema.Profile, rec model.PriceRecord) statement {
	keyCols, args := keyValues(p, rec)

	var where []string
	for i, c := range keyCols {
		where = append(where, fmt.Sprintf("%s = %s", schema.MustQuote(c), placeholder(p, c, i+1)))
	}

	var sets []string
	for _, a := range assignments(p, rec) {
		q := schema.MustQuote(a.column)
		if a.raw != "" {
			sets = append(sets, fmt.Sprintf("%s = %s", q, a.raw))
			continue
		}
		args = append(args, a.value)
		sets = append(sets, fmt.Sprintf("%s = %s", q, placeholder(p, a.column, len(args))))
	}
	if len(sets) == 0 {
		// Nothing but keys on the table; make the statement still report a match.
		q := schema.MustQuote(p.IDColumn)
		sets = append(sets, fmt.Sprintf("%s = %s", q, q))
	}

	return statement{
		SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s",
			schema.MustQuote(p.Table), strings.Join(sets, ", "), strings.Join(where, " AND ")),
		Args: args,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
