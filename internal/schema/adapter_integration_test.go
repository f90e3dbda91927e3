package schema

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guarzo/tcgcomps/internal/model"
	"github.com/guarzo/tcgcomps/internal/testutil"
)

func TestAdapter_ResolveAgainstPostgres(t *testing.T) {
	dsn := testutil.DatabaseURL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	table := fmt.Sprintf("tcgcomps_schema_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+MustQuote(table))
	})

	game := model.Game{Key: "yugioh", PriceTable: table, Layout: model.LayoutLean, Discriminator: "yugioh"}
	p, err := NewAdapter(pool, quietLogger()).Resolve(ctx, game)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !p.HasUnique || strings.Join(p.KeyColumns, ",") != "game,card_id" {
		t.Errorf("expected primary key game,card_id, got %v (unique=%v)", p.KeyColumns, p.HasUnique)
	}
	if p.IDType != "text" || p.RefreshColumn != ColUpdatedAt {
		t.Errorf("unexpected profile %+v", p)
	}
}
