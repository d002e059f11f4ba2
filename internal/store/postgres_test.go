package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/prospect-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

var leadCols = []string{"id", "client_code", "name", "category", "street", "neighborhood", "city", "state",
	"postal_code", "phone", "website", "rating", "reviews", "lat", "lng", "status", "priority", "seller_id",
	"source", "created_at", "updated_at"}

func leadRow(id string, code int, name string) []any {
	lat, lng := -23.55, -46.63
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []any{id, code, name, "Restaurante", "Rua A, 1", "Centro", "São Paulo", "SP",
		"01001000", "", "", 4.2, 10, &lat, &lng, "qualified", "gold", (*string)(nil),
		"maps.csv", now, now}
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, client_code, .* FROM leads WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLead(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_WithComments(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`FROM leads WHERE id = \$1`).
		WithArgs("l1").
		WillReturnRows(pgxmock.NewRows(leadCols).AddRow(leadRow("l1", 10000, "Cantina")...))
	mock.ExpectQuery(`FROM comments WHERE lead_id = \$1 ORDER BY position`).
		WithArgs("l1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "lead_id", "position", "text", "created_at"}).
			AddRow("c1", "l1", 1, "comida fria", created))

	lead, err := s.GetLead(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, 10000, lead.ClientCode)
	assert.Equal(t, model.PriorityGold, lead.Priority)
	require.NotNil(t, lead.Coordinates)
	assert.InDelta(t, -46.63, lead.Coordinates.Lng, 1e-9)
	assert.Nil(t, lead.SellerID)
	assert.Equal(t, []string{"comida fria"}, lead.CommentTexts())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindLead_Absent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM leads WHERE dedup_key = \$1`).
		WithArgs("bar|santos").
		WillReturnError(pgx.ErrNoRows)

	lead, err := s.FindLead(context.Background(), "bar|santos")
	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM leads WHERE 1=1 AND seller_id IS NULL AND client_code > \$1 ORDER BY client_code LIMIT \$2`).
		WithArgs(10000, 50).
		WillReturnRows(pgxmock.NewRows(leadCols).AddRow(leadRow("l2", 10001, "Bar")...))

	leads, err := s.ListLeads(context.Background(), model.LeadFilter{Unassigned: true, AfterCode: 10000, Limit: 50})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Bar", leads[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leads .* ST_GeomFromEWKB\(\$23\)`).
		WithArgs(anyArgs(23)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"comments"}, []string{"id", "lead_id", "position", "text", "created_at"}).
		WillReturnResult(2)
	mock.ExpectCommit()

	lead := testLead(10000, "Cantina", "São Paulo", "fria", "demorou")
	lead.Coordinates = &model.Coordinates{Lat: -23.5, Lng: -46.6}
	require.NoError(t, s.CreateLead(context.Background(), lead))
	assert.NotEmpty(t, lead.ID)
	require.Len(t, lead.Comments, 2)
	assert.Equal(t, 2, lead.Comments[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateLead_UniqueViolations(t *testing.T) {
	tests := []struct {
		constraint string
		check      func(t *testing.T, err error)
	}{
		{"leads_client_code_key", func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrClientCodeTaken) }},
		{"leads_dedup_key_key", func(t *testing.T, err error) { assert.True(t, model.IsDuplicate(err)) }},
		{"other_key", func(t *testing.T, err error) { assert.True(t, model.IsPersistence(err)) }},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			s, mock := newMockPostgresStore(t)

			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO leads`).
				WithArgs(anyArgs(23)...).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			err := s.CreateLead(context.Background(), testLead(10000, "Bar", "Santos"))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestPostgresStore_SetLeadSeller_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET seller_id = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("s1", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetLeadSeller(context.Background(), "missing", "s1")
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetLeadCoordinates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET lat = \$1, lng = \$2, location = ST_GeomFromEWKB\(\$3\)`).
		WithArgs(-23.5, -46.6, pgxmock.AnyArg(), pgxmock.AnyArg(), "l1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetLeadCoordinates(context.Background(), "l1", model.Coordinates{Lat: -23.5, Lng: -46.6}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddComment_LeadNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.AddComment(context.Background(), "missing", "texto")
	assert.True(t, model.IsNotFound(err))
}

func TestPostgresStore_AddComment(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE`).
		WithArgs("l1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectExec(`INSERT INTO comments`).
		WithArgs(pgxmock.AnyArg(), "l1", 4, "sem sal", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE leads SET updated_at`).
		WithArgs(pgxmock.AnyArg(), "l1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	c, err := s.AddComment(context.Background(), "l1", " sem sal ")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSellers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_sellers"},
		[]string{"id", "name", "email", "active", "territory", "created_at", "updated_at"}).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpsertSellers(context.Background(), []model.Seller{testSeller("s1", "Ana")}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSeller(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	territory, err := json.Marshal(model.RadiusTerritory(model.Coordinates{Lat: -23.5, Lng: -46.6}, 8))
	require.NoError(t, err)

	mock.ExpectQuery(`FROM sellers WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "active", "territory"}).
			AddRow("s1", "Ana", "", true, territory))

	sl, err := s.GetSeller(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, model.TerritoryRadius, sl.Territory.Kind)
	require.NotNil(t, sl.Territory.Radius)
	assert.InDelta(t, 8.0, sl.Territory.Radius.KM, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClientCodesFrom(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT client_code FROM leads WHERE client_code >= \$1`).
		WithArgs(10000).
		WillReturnRows(pgxmock.NewRows([]string{"client_code"}).AddRow(10000).AddRow(10003))

	codes, err := s.ClientCodesFrom(context.Background(), 10000)
	require.NoError(t, err)
	assert.Equal(t, []int{10000, 10003}, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetGeocode_CachedMiss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT lat, lng, matched FROM geocode_cache WHERE key = \$1`).
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lng", "matched"}).AddRow((*float64)(nil), (*float64)(nil), false))

	c, ok, err := s.GetGeocode(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutGeocode(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO geocode_cache .* ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("k", -22.9, -43.2, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.PutGeocode(context.Background(), "k", &model.Coordinates{Lat: -22.9, Lng: -43.2}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationEWKB(t *testing.T) {
	b, err := locationEWKB(&model.Coordinates{Lat: -23.5, Lng: -46.6})
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(b)
	require.NoError(t, err)
	p, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 4326, p.SRID())
	assert.InDelta(t, -46.6, p.X(), 1e-9)
	assert.InDelta(t, -23.5, p.Y(), 1e-9)

	b, err = locationEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, b)
}
