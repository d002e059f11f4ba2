package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_WALMode(t *testing.T) {
	st := newTestSQLiteStore(t)

	var mode string
	require.NoError(t, st.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, st.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_SetLeadSeller_UnknownSeller(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := testLead(10000, "Churrascaria", "Jundiaí")
	require.NoError(t, st.CreateLead(ctx, lead))

	err := st.SetLeadSeller(ctx, lead.ID, "ghost")
	require.Error(t, err)
	assert.True(t, model.IsPersistence(err))
}

func TestSQLite_SetLeadSeller_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertSellers(ctx, []model.Seller{testSeller("s1", "Ana")}))

	err := st.SetLeadSeller(ctx, "missing", "s1")
	assert.True(t, model.IsNotFound(err))
}

func TestSQLite_CreateLeadKeepsInputOnFailure(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateLead(ctx, testLead(10000, "Bar", "Santos")))

	dup := testLead(10000, "Outro Bar", "Santos", "barulho")
	require.Error(t, st.CreateLead(ctx, dup))
	assert.Empty(t, dup.ID)
	assert.Empty(t, dup.Comments[0].ID)

	leads, err := st.ListLeads(ctx, model.LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestSQLite_UpsertSellers_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.UpsertSellers(context.Background(), nil))
}

func TestIsSQLiteUnique_OtherErrors(t *testing.T) {
	assert.False(t, isSQLiteUnique(errors.New("UNIQUE constraint failed: leads.client_code"), "leads.client_code"))
	assert.False(t, isSQLiteUnique(nil, "leads.client_code"))
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, 25, listLimit(25))
	assert.Equal(t, maxListLimit, listLimit(5000))
}
