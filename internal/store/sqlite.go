package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/prospect-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps the foreign_keys pragma in effect and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sellers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	active     INTEGER NOT NULL DEFAULT 1,
	territory  TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	client_code  INTEGER NOT NULL UNIQUE,
	dedup_key    TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	street       TEXT NOT NULL DEFAULT '',
	neighborhood TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	postal_code  TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	rating       REAL NOT NULL DEFAULT 0,
	reviews      INTEGER NOT NULL DEFAULT 0,
	lat          REAL,
	lng          REAL,
	status       TEXT NOT NULL,
	priority     TEXT NOT NULL,
	seller_id    TEXT REFERENCES sellers(id) ON DELETE SET NULL,
	source       TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	text       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       REAL,
	lng       REAL,
	matched   INTEGER NOT NULL,
	cached_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_seller_id ON leads(seller_id);
CREATE INDEX IF NOT EXISTS idx_comments_lead_id ON comments(lead_id, position);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteLeadColumns = `id, client_code, name, category, street, neighborhood, city, state, postal_code,
	phone, website, rating, reviews, lat, lng, status, priority, seller_id, source, created_at, updated_at`

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	const op = "sqlite: create lead"
	if err := prepareLead(op, lead); err != nil {
		return err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	lat, lng := coordArgs(lead.Coordinates)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewPersistence(op, eris.Wrap(err, "begin tx"))
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO leads (`+sqliteLeadColumns+`, dedup_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, lead.ClientCode, lead.Name, lead.Category,
		lead.Address.Street, lead.Address.Neighborhood, lead.Address.City, lead.Address.State, lead.Address.PostalCode,
		lead.Phone, lead.Website, lead.Rating, lead.Reviews, lat, lng,
		string(lead.Status), string(lead.Priority), nullableSeller(lead.SellerID), lead.Source,
		now, now, lead.DedupKey(),
	)
	if err != nil {
		switch {
		case isSQLiteUnique(err, "leads.client_code"):
			return eris.Wrapf(ErrClientCodeTaken, "code %d", lead.ClientCode)
		case isSQLiteUnique(err, "leads.dedup_key"):
			return model.NewDuplicate(op, eris.Errorf("lead %q in %q already exists", lead.Name, lead.Address.City))
		}
		return model.NewPersistence(op, eris.Wrap(err, "insert lead"))
	}

	comments := make([]model.Comment, len(lead.Comments))
	for i, c := range lead.Comments {
		c.ID = uuid.New().String()
		c.LeadID = id
		c.Position = i + 1
		c.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comments (id, lead_id, position, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.LeadID, c.Position, c.Text, c.CreatedAt,
		); err != nil {
			return model.NewPersistence(op, eris.Wrap(err, "insert comment"))
		}
		comments[i] = c
	}

	if err := tx.Commit(); err != nil {
		return model.NewPersistence(op, eris.Wrap(err, "commit"))
	}

	lead.ID = id
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.Comments = comments
	return nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanSQLiteLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("sqlite: get lead", "lead", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	lead.Comments, err = s.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *SQLiteStore) FindLead(ctx context.Context, dedupKey string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteLeadColumns+` FROM leads WHERE dedup_key = ?`, dedupKey)
	lead, err := scanSQLiteLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find lead")
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.SellerID != "" {
		query += ` AND seller_id = ?`
		args = append(args, filter.SellerID)
	}
	if filter.Unassigned {
		query += ` AND seller_id IS NULL`
	}
	if filter.AfterCode > 0 {
		query += ` AND client_code > ?`
		args = append(args, filter.AfterCode)
	}
	query += ` ORDER BY client_code LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) SetLeadSeller(ctx context.Context, leadID, sellerID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET seller_id = ?, updated_at = ? WHERE id = ?`,
		nullableSeller(&sellerID), time.Now().UTC(), leadID,
	)
	if err != nil {
		return model.NewPersistence("sqlite: set lead seller", eris.Wrapf(err, "lead %s", leadID))
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) SetLeadPriority(ctx context.Context, leadID string, p model.Priority) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET priority = ?, updated_at = ? WHERE id = ?`,
		string(p), time.Now().UTC(), leadID,
	)
	if err != nil {
		return model.NewPersistence("sqlite: set lead priority", eris.Wrapf(err, "lead %s", leadID))
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) SetLeadCoordinates(ctx context.Context, leadID string, c model.Coordinates) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET lat = ?, lng = ?, updated_at = ? WHERE id = ?`,
		c.Lat, c.Lng, time.Now().UTC(), leadID,
	)
	if err != nil {
		return model.NewPersistence("sqlite: set lead coordinates", eris.Wrapf(err, "lead %s", leadID))
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, leadID string) error {
	const op = "sqlite: delete lead"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewPersistence(op, eris.Wrap(err, "begin tx"))
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE lead_id = ?`, leadID); err != nil {
		return model.NewPersistence(op, eris.Wrap(err, "delete comments"))
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, leadID)
	if err != nil {
		return model.NewPersistence(op, eris.Wrap(err, "delete lead"))
	}
	if err := checkRowsAffected(res, "lead", leadID); err != nil {
		return err
	}
	return commitErr(op, tx.Commit())
}

func (s *SQLiteStore) AddComment(ctx context.Context, leadID, text string) (*model.Comment, error) {
	const op = "sqlite: add comment"
	c, err := newComment(op, leadID, text)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.NewPersistence(op, eris.Wrap(err, "begin tx"))
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE leads SET updated_at = ? WHERE id = ?`, c.CreatedAt, leadID)
	if err != nil {
		return nil, model.NewPersistence(op, eris.Wrap(err, "touch lead"))
	}
	if err := checkRowsAffected(res, "lead", leadID); err != nil {
		return nil, err
	}

	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM comments WHERE lead_id = ?`, leadID,
	).Scan(&last); err != nil {
		return nil, eris.Wrap(err, "sqlite: next comment position")
	}
	c.Position = last + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO comments (id, lead_id, position, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.LeadID, c.Position, c.Text, c.CreatedAt,
	); err != nil {
		return nil, model.NewPersistence(op, eris.Wrap(err, "insert comment"))
	}
	if err := tx.Commit(); err != nil {
		return nil, model.NewPersistence(op, eris.Wrap(err, "commit"))
	}
	return c, nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, leadID string) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, position, text, created_at FROM comments WHERE lead_id = ? ORDER BY position`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list comments")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.LeadID, &c.Position, &c.Text, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comment")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list comments iterate")
}

func (s *SQLiteStore) UpsertSellers(ctx context.Context, sellers []model.Seller) error {
	const op = "sqlite: upsert sellers"
	if len(sellers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewPersistence(op, eris.Wrap(err, "begin tx"))
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, sl := range sellers {
		territory, err := json.Marshal(sl.Territory)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal territory of %s", sl.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sellers (id, name, email, active, territory, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name, email = excluded.email, active = excluded.active,
			   territory = excluded.territory, updated_at = excluded.updated_at`,
			sl.ID, sl.Name, sl.Email, sl.Active, string(territory), now, now,
		); err != nil {
			return model.NewPersistence(op, eris.Wrapf(err, "seller %s", sl.ID))
		}
	}
	return commitErr(op, tx.Commit())
}

func (s *SQLiteStore) ListSellers(ctx context.Context) ([]model.Seller, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, active, territory FROM sellers ORDER BY name, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sellers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Seller
	for rows.Next() {
		sl, err := scanSQLiteSeller(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sl)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sellers iterate")
}

func (s *SQLiteStore) GetSeller(ctx context.Context, id string) (*model.Seller, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, active, territory FROM sellers WHERE id = ?`, id,
	)
	sl, err := scanSQLiteSeller(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("sqlite: get seller", "seller", id)
	}
	return sl, err
}

func (s *SQLiteStore) ClientCodesFrom(ctx context.Context, from int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT client_code FROM leads WHERE client_code >= ? ORDER BY client_code`, from,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: client codes")
	}
	defer rows.Close() //nolint:errcheck

	var codes []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan client code")
		}
		codes = append(codes, c)
	}
	return codes, eris.Wrap(rows.Err(), "sqlite: client codes iterate")
}

func (s *SQLiteStore) GetGeocode(ctx context.Context, key string) (*model.Coordinates, bool, error) {
	var lat, lng sql.NullFloat64
	var matched bool
	err := s.db.QueryRowContext(ctx,
		`SELECT lat, lng, matched FROM geocode_cache WHERE key = ?`, key,
	).Scan(&lat, &lng, &matched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get geocode")
	}
	if !matched || !lat.Valid || !lng.Valid {
		return nil, true, nil
	}
	return &model.Coordinates{Lat: lat.Float64, Lng: lng.Float64}, true, nil
}

func (s *SQLiteStore) PutGeocode(ctx context.Context, key string, c *model.Coordinates) error {
	lat, lng := coordArgs(c)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, lat, lng, matched, cached_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET lat = excluded.lat, lng = excluded.lng,
		   matched = excluded.matched, cached_at = excluded.cached_at`,
		key, lat, lng, c != nil, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put geocode")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound("store: update "+entity, entity, id)
	}
	return nil
}

// isSQLiteUnique reports whether err is a UNIQUE violation on column ("table.column").
func isSQLiteUnique(err error, column string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return false
	}
	return strings.Contains(se.Error(), column)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status, priority string
	var lat, lng sql.NullFloat64
	var seller sql.NullString

	err := row.Scan(&l.ID, &l.ClientCode, &l.Name, &l.Category,
		&l.Address.Street, &l.Address.Neighborhood, &l.Address.City, &l.Address.State, &l.Address.PostalCode,
		&l.Phone, &l.Website, &l.Rating, &l.Reviews, &lat, &lng,
		&status, &priority, &seller, &l.Source, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	l.Priority = model.Priority(priority)
	if lat.Valid && lng.Valid {
		l.Coordinates = &model.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	if seller.Valid {
		id := seller.String
		l.SellerID = &id
	}
	return &l, nil
}

func scanSQLiteSeller(row scannable) (*model.Seller, error) {
	var sl model.Seller
	var territory string
	if err := row.Scan(&sl.ID, &sl.Name, &sl.Email, &sl.Active, &territory); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan seller")
	}
	if err := json.Unmarshal([]byte(territory), &sl.Territory); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal territory of %s", sl.ID)
	}
	return &sl, nil
}
