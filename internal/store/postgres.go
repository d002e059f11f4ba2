package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/prospect-cli/internal/db"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/territory"
)

// PostgresStore implements Store using pgxpool. Lead locations are kept in a
// PostGIS geometry column next to the plain lat/lng pair.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const pgLeadColumns = `id, client_code, name, category, street, neighborhood, city, state, postal_code,
	phone, website, rating, reviews, lat, lng, status, priority, seller_id, source, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_lead":        `SELECT ` + pgLeadColumns + ` FROM leads WHERE id = $1`,
	"find_lead":       `SELECT ` + pgLeadColumns + ` FROM leads WHERE dedup_key = $1`,
	"list_comments":   `SELECT id, lead_id, position, text, created_at FROM comments WHERE lead_id = $1 ORDER BY position`,
	"set_lead_seller": `UPDATE leads SET seller_id = $1, updated_at = $2 WHERE id = $3`,
	"set_priority":    `UPDATE leads SET priority = $1, updated_at = $2 WHERE id = $3`,
	"get_geocode":     `SELECT lat, lng, matched FROM geocode_cache WHERE key = $1`,
	"client_codes":    `SELECT client_code FROM leads WHERE client_code >= $1 ORDER BY client_code`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS sellers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	active     BOOLEAN NOT NULL DEFAULT true,
	territory  JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	client_code  INTEGER NOT NULL,
	dedup_key    TEXT NOT NULL,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	street       TEXT NOT NULL DEFAULT '',
	neighborhood TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	postal_code  TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
	reviews      INTEGER NOT NULL DEFAULT 0,
	lat          DOUBLE PRECISION,
	lng          DOUBLE PRECISION,
	location     geometry(Point, 4326),
	status       TEXT NOT NULL,
	priority     TEXT NOT NULL,
	seller_id    TEXT REFERENCES sellers(id) ON DELETE SET NULL,
	source       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT leads_client_code_key UNIQUE (client_code),
	CONSTRAINT leads_dedup_key_key UNIQUE (dedup_key)
);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       DOUBLE PRECISION,
	lng       DOUBLE PRECISION,
	matched   BOOLEAN NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_seller_id ON leads(seller_id);
CREATE INDEX IF NOT EXISTS idx_leads_location ON leads USING GIST (location);
CREATE INDEX IF NOT EXISTS idx_comments_lead_id ON comments(lead_id, position);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// locationEWKB encodes c as an EWKB point for the geometry column.
func locationEWKB(c *model.Coordinates) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	b, err := ewkb.Marshal(territory.Point(*c), ewkb.NDR)
	return b, eris.Wrap(err, "postgres: encode location")
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	const op = "postgres: create lead"
	if err := prepareLead(op, lead); err != nil {
		return err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	lat, lng := coordArgs(lead.Coordinates)
	loc, err := locationEWKB(lead.Coordinates)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.NewPersistence(op, eris.Wrap(err, "begin tx"))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO leads (`+pgLeadColumns+`, dedup_key, location)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, ST_GeomFromEWKB($23))`,
		id, lead.ClientCode, lead.Name, lead.Category,
		lead.Address.Street, lead.Address.Neighborhood, lead.Address.City, lead.Address.State, lead.Address.PostalCode,
		lead.Phone, lead.Website, lead.Rating, lead.Reviews, lat, lng,
		string(lead.Status), string(lead.Priority), nullableSeller(lead.SellerID), lead.Source,
		now, now, lead.DedupKey(), loc,
	)
	if err != nil {
		switch uniqueConstraint(err) {
		case "leads_client_code_key":
			return eris.Wrapf(ErrClientCodeTaken, "code %d", lead.ClientCode)
		case "leads_dedup_key_key":
			return model.NewDuplicate(op, eris.Errorf("lead %q in %q already exists", lead.Name, lead.Address.City))
		}
		return model.NewPersistence(op, eris.Wrap(err, "insert lead"))
	}

	comments := make([]model.Comment, len(lead.Comments))
	rows := make([][]any, len(lead.Comments))
	for i, c := range lead.Comments {
		c.ID = uuid.New().String()
		c.LeadID = id
		c.Position = i + 1
		c.CreatedAt = now
		comments[i] = c
		rows[i] = []any{c.ID, c.LeadID, c.Position, c.Text, c.CreatedAt}
	}
	if _, err := db.CopyFrom(ctx, tx, "comments", []string{"id", "lead_id", "position", "text", "created_at"}, rows); err != nil {
		return model.NewPersistence(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.NewPersistence(op, eris.Wrap(err, "commit"))
	}

	lead.ID = id
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.Comments = comments
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgLeadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanPgLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("postgres: get lead", "lead", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	lead.Comments, err = s.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *PostgresStore) FindLead(ctx context.Context, dedupKey string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgLeadColumns+` FROM leads WHERE dedup_key = $1`, dedupKey)
	lead, err := scanPgLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find lead")
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + pgLeadColumns + ` FROM leads WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SellerID != "" {
		query += ` AND seller_id = ` + arg(filter.SellerID)
	}
	if filter.Unassigned {
		query += ` AND seller_id IS NULL`
	}
	if filter.AfterCode > 0 {
		query += ` AND client_code > ` + arg(filter.AfterCode)
	}
	query += ` ORDER BY client_code LIMIT ` + arg(listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) SetLeadSeller(ctx context.Context, leadID, sellerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET seller_id = $1, updated_at = $2 WHERE id = $3`,
		nullableSeller(&sellerID), time.Now().UTC(), leadID,
	)
	if err != nil {
		return model.NewPersistence("postgres: set lead seller", eris.Wrapf(err, "lead %s", leadID))
	}
	return checkTag(tag, "lead", leadID)
}

func (s *PostgresStore) SetLeadPriority(ctx context.Context, leadID string, p model.Priority) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET priority = $1, updated_at = $2 WHERE id = $3`,
		string(p), time.Now().UTC(), leadID,
	)
	if err != nil {
		return model.NewPersistence("postgres: set lead priority", eris.Wrapf(err, "lead %s", leadID))
	}
	return checkTag(tag, "lead", leadID)
}

func (s *PostgresStore) SetLeadCoordinates(ctx context.Context, leadID string, c model.Coordinates) error {
	loc, err := locationEWKB(&c)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET lat = $1, lng = $2, location = ST_GeomFromEWKB($3), updated_at = $4 WHERE id = $5`,
		c.Lat, c.Lng, loc, time.Now().UTC(), leadID,
	)
	if err != nil {
		return model.NewPersistence("postgres: set lead coordinates", eris.Wrapf(err, "lead %s", leadID))
	}
	return checkTag(tag, "lead", leadID)
}

func (s *PostgresStore) DeleteLead(ctx context.Context, leadID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, leadID)
	if err != nil {
		return model.NewPersistence("postgres: delete lead", eris.Wrapf(err, "lead %s", leadID))
	}
	return checkTag(tag, "lead", leadID)
}

func (s *PostgresStore) AddComment(ctx context.Context, leadID, text string) (*model.Comment, error) {
	const op = "postgres: add comment"
	c, err := newComment(op, leadID, text)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, model.NewPersistence(op, eris.Wrap(err, "begin tx"))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Locking the lead row serializes concurrent appends to the same lead.
	var last int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE((SELECT MAX(position) FROM comments WHERE lead_id = l.id), 0)
		 FROM leads l WHERE l.id = $1 FOR UPDATE`, leadID,
	).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(op, "lead", leadID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: next comment position")
	}
	c.Position = last + 1

	if _, err := tx.Exec(ctx,
		`INSERT INTO comments (id, lead_id, position, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.LeadID, c.Position, c.Text, c.CreatedAt,
	); err != nil {
		return nil, model.NewPersistence(op, eris.Wrap(err, "insert comment"))
	}
	if _, err := tx.Exec(ctx, `UPDATE leads SET updated_at = $1 WHERE id = $2`, c.CreatedAt, leadID); err != nil {
		return nil, model.NewPersistence(op, eris.Wrap(err, "touch lead"))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, model.NewPersistence(op, eris.Wrap(err, "commit"))
	}
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, leadID string) ([]model.Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, position, text, created_at FROM comments WHERE lead_id = $1 ORDER BY position`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list comments")
	}
	defer rows.Close()

	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.LeadID, &c.Position, &c.Text, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan comment")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list comments iterate")
}

func (s *PostgresStore) UpsertSellers(ctx context.Context, sellers []model.Seller) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(sellers))
	for _, sl := range sellers {
		territory, err := json.Marshal(sl.Territory)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal territory of %s", sl.ID)
		}
		rows = append(rows, []any{sl.ID, sl.Name, sl.Email, sl.Active, territory, now, now})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "sellers",
		Columns:      []string{"id", "name", "email", "active", "territory", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"name", "email", "active", "territory", "updated_at"},
	}, rows)
	if err != nil {
		return model.NewPersistence("postgres: upsert sellers", err)
	}
	return nil
}

func (s *PostgresStore) ListSellers(ctx context.Context) ([]model.Seller, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, active, territory FROM sellers ORDER BY name, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sellers")
	}
	defer rows.Close()

	var out []model.Seller
	for rows.Next() {
		sl, err := scanPgSeller(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sl)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sellers iterate")
}

func (s *PostgresStore) GetSeller(ctx context.Context, id string) (*model.Seller, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, email, active, territory FROM sellers WHERE id = $1`, id,
	)
	sl, err := scanPgSeller(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("postgres: get seller", "seller", id)
	}
	return sl, err
}

func (s *PostgresStore) ClientCodesFrom(ctx context.Context, from int) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT client_code FROM leads WHERE client_code >= $1 ORDER BY client_code`, from,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: client codes")
	}
	defer rows.Close()

	var codes []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "postgres: scan client code")
		}
		codes = append(codes, c)
	}
	return codes, eris.Wrap(rows.Err(), "postgres: client codes iterate")
}

func (s *PostgresStore) GetGeocode(ctx context.Context, key string) (*model.Coordinates, bool, error) {
	var lat, lng *float64
	var matched bool
	err := s.pool.QueryRow(ctx,
		`SELECT lat, lng, matched FROM geocode_cache WHERE key = $1`, key,
	).Scan(&lat, &lng, &matched)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get geocode")
	}
	if !matched || lat == nil || lng == nil {
		return nil, true, nil
	}
	return &model.Coordinates{Lat: *lat, Lng: *lng}, true, nil
}

func (s *PostgresStore) PutGeocode(ctx context.Context, key string, c *model.Coordinates) error {
	lat, lng := coordArgs(c)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (key, lat, lng, matched, cached_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET lat = EXCLUDED.lat, lng = EXCLUDED.lng,
		   matched = EXCLUDED.matched, cached_at = EXCLUDED.cached_at`,
		key, lat, lng, c != nil, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: put geocode")
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return notFound("store: update "+entity, entity, id)
	}
	return nil
}

// uniqueConstraint returns the constraint name of a unique violation, or "".
func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var status, priority string
	var lat, lng *float64

	err := row.Scan(&l.ID, &l.ClientCode, &l.Name, &l.Category,
		&l.Address.Street, &l.Address.Neighborhood, &l.Address.City, &l.Address.State, &l.Address.PostalCode,
		&l.Phone, &l.Website, &l.Rating, &l.Reviews, &lat, &lng,
		&status, &priority, &l.SellerID, &l.Source, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	l.Priority = model.Priority(priority)
	if lat != nil && lng != nil {
		l.Coordinates = &model.Coordinates{Lat: *lat, Lng: *lng}
	}
	return &l, nil
}

func scanPgSeller(row pgx.Row) (*model.Seller, error) {
	var sl model.Seller
	var territory []byte
	if err := row.Scan(&sl.ID, &sl.Name, &sl.Email, &sl.Active, &territory); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan seller")
	}
	if err := json.Unmarshal(territory, &sl.Territory); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal territory of %s", sl.ID)
	}
	return &sl, nil
}
