package eav

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fabrika/internal/apperr"
	"fabrika/internal/catalog"
	"fabrika/internal/meta"
	"fabrika/internal/pg"
)

// Интеграционный прогон против настоящего Postgres. Требует Docker;
// включается через FABRIKA_IT=1.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("FABRIKA_IT") == "" {
		t.Skip("set FABRIKA_IT=1 to run integration tests (requires Docker)")
	}

	ctx := context.Background()
	pgc, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fabrika"),
		tcpostgres.WithUsername("fabrika"),
		tcpostgres.WithPassword("fabrika"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgc.Terminate(ctx) })

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := pg.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, pg.ApplyDDL(db, zerolog.Nop(), pg.GenerateDDL()))
	// повторный накат — no-op
	require.NoError(t, pg.ApplyDDL(db, zerolog.Nop(), pg.GenerateDDL()))
	return db
}

func seedCatalog(t *testing.T, db *sql.DB) *meta.Registry {
	t.Helper()
	ctx := context.Background()
	cat := &catalog.Catalog{
		Roles: []catalog.RoleSpec{{Code: "ADMIN", Name: "Admin"}},
		Users: []catalog.UserSpec{{Username: "ivan", Roles: []string{"ADMIN"}}},
		Applications: []catalog.AppSpec{{
			Code: "ERP", Name: "ERP",
			Modules: []catalog.ModuleSpec{{
				Code: "WAREHOUSE", Name: "Warehouse",
				Entities: []catalog.EntitySpec{{
					Code: "MATERIAL", Name: "Material", Master: true,
					Attributes: []catalog.AttributeSpec{
						{Code: "NAME", Name: "Name", Type: "VARCHAR", MaxLength: 100, Required: true, Unique: true},
						{Code: "QTY", Name: "Quantity", Type: "INT", Rules: "min=0"},
						{Code: "PRICE", Name: "Price", Type: "DECIMAL"},
						{Code: "ACTIVE", Name: "Active", Type: "BOOLEAN"},
						{Code: "RECEIVED", Name: "Received", Type: "DATE"},
					},
					States: []catalog.StateSpec{
						{Code: "DRAFT", Name: "Draft", Initial: true},
						{Code: "POSTED", Name: "Posted", Final: true},
					},
					Permissions: []catalog.PermSpec{{Role: "ADMIN", CRUD: "crud"}},
				}},
			}},
		}},
	}
	require.NoError(t, catalog.Apply(ctx, db, cat, zerolog.Nop()))
	// идемпотентность: второй прогон не плодит дублей
	require.NoError(t, catalog.Apply(ctx, db, cat, zerolog.Nop()))

	snap, err := meta.Load(ctx, db)
	require.NoError(t, err)
	require.Len(t, snap.EntityTypes, 1)
	require.Len(t, snap.Attributes, 5)
	return meta.NewRegistry(snap)
}

func TestInstanceLifecycle(t *testing.T) {
	db := setupPostgres(t)
	reg := seedCatalog(t, db)
	ctx := context.Background()

	et, ok := reg.EntityTypeByCode(moduleID(t, reg), "MATERIAL")
	require.True(t, ok)

	m := NewManager(db, reg, zerolog.Nop())

	inst, err := m.Create(ctx, et.ID, map[string]any{
		"NAME":     "Coal",
		"QTY":      "42",
		"PRICE":    "19.5",
		"ACTIVE":   "on",
		"RECEIVED": "2024-03-15",
	}, "ivan")
	require.NoError(t, err)
	require.NotZero(t, inst.ID)
	require.Len(t, inst.InstanceCode, 26) // ULID
	require.Equal(t, "DRAFT", inst.Status)

	got, err := m.Get(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, "Coal", got.Values["NAME"])
	require.Equal(t, int64(42), got.Values["QTY"])
	require.Equal(t, 19.5, got.Values["PRICE"])
	require.Equal(t, true, got.Values["ACTIVE"])

	// required отсутствует
	_, err = m.Create(ctx, et.ID, map[string]any{"QTY": "1"}, "ivan")
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "NAME", ve.Attribute)

	// unique-дубль
	_, err = m.Create(ctx, et.ID, map[string]any{"NAME": "Coal"}, "ivan")
	require.True(t, errors.As(err, &ve))

	// правило min=0
	_, err = m.Create(ctx, et.ID, map[string]any{"NAME": "Iron", "QTY": "-1"}, "ivan")
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "QTY", ve.Attribute)

	// update: частичный, null стирает значение
	upd, err := m.Update(ctx, inst.ID, map[string]any{"QTY": "7", "PRICE": nil}, "ivan")
	require.NoError(t, err)
	require.Equal(t, int64(7), upd.Values["QTY"])

	got, err = m.Get(ctx, inst.ID)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.Values["QTY"])
	_, hasPrice := got.Values["PRICE"]
	require.False(t, hasPrice)
	require.Equal(t, "Coal", got.Values["NAME"]) // нетронутое осталось

	// неизвестный атрибут — not found
	var nf *apperr.NotFoundError
	_, err = m.Update(ctx, inst.ID, map[string]any{"BOGUS": "x"}, "ivan")
	require.True(t, errors.As(err, &nf))

	// soft delete / restore
	require.NoError(t, m.SoftDelete(ctx, inst.ID, "ivan"))
	list, err := m.List(ctx, et.ID, ListParams{})
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = m.List(ctx, et.ID, ListParams{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, m.Restore(ctx, inst.ID, "ivan"))

	// батчевый листинг со значениями
	_, err = m.Create(ctx, et.ID, map[string]any{"NAME": "Iron", "QTY": "3"}, "ivan")
	require.NoError(t, err)
	list, err = m.List(ctx, et.ID, ListParams{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, it := range list {
		require.NotEmpty(t, it.Values["NAME"])
	}

	// hard delete: значения уходят каскадом
	require.NoError(t, m.HardDelete(ctx, inst.ID))
	_, err = m.Get(ctx, inst.ID)
	require.True(t, errors.As(err, &nf))

	var orphans int
	require.NoError(t, db.QueryRowContext(ctx,
		`select count(*) from attribute_values_text where entity_instance_id = $1`, inst.ID).Scan(&orphans))
	require.Zero(t, orphans)
}

func TestOptionalCoercionFailureStoredAsNull(t *testing.T) {
	db := setupPostgres(t)
	reg := seedCatalog(t, db)
	ctx := context.Background()

	et, ok := reg.EntityTypeByCode(moduleID(t, reg), "MATERIAL")
	require.True(t, ok)

	m := NewManager(db, reg, zerolog.Nop())
	inst, err := m.Create(ctx, et.ID, map[string]any{
		"NAME": "Limestone",
		"QTY":  "not a number", // опционально и битое — null, не ошибка
	}, "ivan")
	require.NoError(t, err)

	got, err := m.Get(ctx, inst.ID)
	require.NoError(t, err)
	_, hasQty := got.Values["QTY"]
	require.False(t, hasQty)
}

func moduleID(t *testing.T, reg *meta.Registry) int64 {
	t.Helper()
	apps := reg.Applications()
	require.Len(t, apps, 1)
	mods := reg.ModulesOf(apps[0].ID)
	require.Len(t, mods, 1)
	return mods[0].ID
}
