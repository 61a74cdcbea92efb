package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"webauthz/pkg/webauthz"
)

// Dialect is a supported SQL driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// schemaFor returns the statements creating the tables for d. Access tokens
// carry an insertion sequence so the newest record at a path wins even when
// two share a created_at.
func schemaFor(d Dialect) []string {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == DialectPostgres {
		seq = "seq BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS webauthz_configurations (
			discovery_uri TEXT PRIMARY KEY,
			register_uri TEXT NOT NULL,
			request_uri TEXT NOT NULL,
			exchange_uri TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS webauthz_registrations (
			register_uri TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			client_token TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS webauthz_access_requests (
			client_state TEXT PRIMARY KEY,
			resource_uri TEXT NOT NULL,
			realm TEXT NOT NULL,
			scope TEXT NOT NULL,
			path TEXT NOT NULL,
			discovery_uri TEXT NOT NULL,
			user_id TEXT NOT NULL,
			context TEXT NOT NULL,
			access_request_uri TEXT NOT NULL,
			status TEXT NOT NULL,
			refresh_token TEXT,
			refresh_token_not_after BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS webauthz_access_tokens (
			` + seq + `,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			origin TEXT NOT NULL,
			path TEXT NOT NULL,
			access_token TEXT NOT NULL,
			access_token_not_after BIGINT,
			refresh_token_exists BOOLEAN NOT NULL,
			refresh_token_not_after BIGINT,
			client_id TEXT NOT NULL,
			client_state TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS webauthz_access_tokens_lookup
			ON webauthz_access_tokens (user_id, origin, path)`,
	}
}

const accessTokenColumns = `id, user_id, origin, path, access_token, access_token_not_after,
	refresh_token_exists, refresh_token_not_after, client_id, client_state, created_at`

// SQLStore implements webauthz.Store on PostgreSQL or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLStore opens a database with the given dialect and DSN and creates
// the schema if needed.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	s, err := NewSQLStore(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and creates the schema if needed.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	for _, stmt := range schemaFor(dialect) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return s, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// StoreConfiguration implements webauthz.Store.
func (s *SQLStore) StoreConfiguration(ctx context.Context, discoveryURI string, cfg *webauthz.Configuration) error {
	if cfg == nil {
		return ErrNilRecord
	}
	if discoveryURI == "" {
		return ErrEmptyKey
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO webauthz_configurations (discovery_uri, register_uri, request_uri, exchange_uri)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (discovery_uri) DO UPDATE SET
			register_uri = EXCLUDED.register_uri,
			request_uri = EXCLUDED.request_uri,
			exchange_uri = EXCLUDED.exchange_uri`),
		discoveryURI, cfg.RegisterURI, cfg.RequestURI, cfg.ExchangeURI)
	if err != nil {
		return fmt.Errorf("failed to store configuration: %w", err)
	}
	return nil
}

// FetchConfiguration implements webauthz.Store.
func (s *SQLStore) FetchConfiguration(ctx context.Context, discoveryURI string) (*webauthz.Configuration, error) {
	var cfg webauthz.Configuration
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT register_uri, request_uri, exchange_uri
		FROM webauthz_configurations WHERE discovery_uri = ?`), discoveryURI).
		Scan(&cfg.RegisterURI, &cfg.RequestURI, &cfg.ExchangeURI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch configuration: %w", err)
	}
	return &cfg, nil
}

// StoreRegistration implements webauthz.Store.
func (s *SQLStore) StoreRegistration(ctx context.Context, registerURI string, reg *webauthz.Registration) error {
	if reg == nil {
		return ErrNilRecord
	}
	if registerURI == "" {
		return ErrEmptyKey
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO webauthz_registrations (register_uri, client_id, client_token)
		VALUES (?, ?, ?)
		ON CONFLICT (register_uri) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			client_token = EXCLUDED.client_token`),
		registerURI, reg.ClientID, reg.ClientToken)
	if err != nil {
		return fmt.Errorf("failed to store registration: %w", err)
	}
	return nil
}

// FetchRegistration implements webauthz.Store.
func (s *SQLStore) FetchRegistration(ctx context.Context, registerURI string) (*webauthz.Registration, error) {
	var reg webauthz.Registration
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT client_id, client_token
		FROM webauthz_registrations WHERE register_uri = ?`), registerURI).
		Scan(&reg.ClientID, &reg.ClientToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registration: %w", err)
	}
	return &reg, nil
}

// CreateAccessRequest implements webauthz.Store.
func (s *SQLStore) CreateAccessRequest(ctx context.Context, clientState string, req *webauthz.AccessRequest) error {
	if req == nil {
		return ErrNilRecord
	}
	if clientState == "" {
		return ErrEmptyKey
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO webauthz_access_requests (
			client_state, resource_uri, realm, scope, path, discovery_uri, user_id,
			context, access_request_uri, status, refresh_token, refresh_token_not_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_state) DO NOTHING`),
		clientState, req.ResourceURI, req.Realm, req.Scope, req.Path, req.DiscoveryURI, req.UserID,
		req.Context, req.AccessRequestURI, string(req.Status),
		nullableString(req.RefreshToken), nullableMillis(req.RefreshTokenNotAfter))
	if err != nil {
		return fmt.Errorf("failed to create access request: %w", err)
	}
	return expectOneRow(res, webauthz.ErrAlreadyExists)
}

// FetchAccessRequest implements webauthz.Store.
func (s *SQLStore) FetchAccessRequest(ctx context.Context, clientState string) (*webauthz.AccessRequest, error) {
	var (
		req             webauthz.AccessRequest
		status          string
		refreshToken    sql.NullString
		refreshNotAfter sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT resource_uri, realm, scope, path, discovery_uri, user_id, context,
			access_request_uri, status, refresh_token, refresh_token_not_after
		FROM webauthz_access_requests WHERE client_state = ?`), clientState).
		Scan(&req.ResourceURI, &req.Realm, &req.Scope, &req.Path, &req.DiscoveryURI, &req.UserID, &req.Context,
			&req.AccessRequestURI, &status, &refreshToken, &refreshNotAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch access request: %w", err)
	}

	req.Status = webauthz.Status(status)
	req.RefreshToken = refreshToken.String
	req.RefreshTokenNotAfter = timeFromMillis(refreshNotAfter)
	return &req, nil
}

// EditAccessRequest implements webauthz.Store.
func (s *SQLStore) EditAccessRequest(ctx context.Context, clientState string, req *webauthz.AccessRequest) error {
	if req == nil {
		return ErrNilRecord
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE webauthz_access_requests SET
			resource_uri = ?, realm = ?, scope = ?, path = ?, discovery_uri = ?, user_id = ?,
			context = ?, access_request_uri = ?, status = ?, refresh_token = ?, refresh_token_not_after = ?
		WHERE client_state = ?`),
		req.ResourceURI, req.Realm, req.Scope, req.Path, req.DiscoveryURI, req.UserID,
		req.Context, req.AccessRequestURI, string(req.Status),
		nullableString(req.RefreshToken), nullableMillis(req.RefreshTokenNotAfter),
		clientState)
	if err != nil {
		return fmt.Errorf("failed to edit access request: %w", err)
	}
	return expectOneRow(res, webauthz.ErrNoSuchRecord)
}

// CreateAccessToken implements webauthz.Store.
func (s *SQLStore) CreateAccessToken(ctx context.Context, id string, tok *webauthz.AccessToken) error {
	if tok == nil {
		return ErrNilRecord
	}
	if id == "" {
		return ErrEmptyKey
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO webauthz_access_tokens (`+accessTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		id, tok.UserID, tok.Origin, tok.Path, tok.AccessToken, nullableMillis(tok.AccessTokenNotAfter),
		tok.RefreshTokenExists, nullableMillis(tok.RefreshTokenNotAfter), tok.ClientID, tok.ClientState,
		tok.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return expectOneRow(res, webauthz.ErrAlreadyExists)
}

// FetchAccessToken implements webauthz.Store.
func (s *SQLStore) FetchAccessToken(ctx context.Context, q webauthz.TokenQuery) (*webauthz.AccessToken, error) {
	if len(q.Paths) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(q.Paths)+2)
	args = append(args, q.UserID, q.Origin)
	for _, p := range q.Paths {
		args = append(args, p)
	}
	query := s.rebind(`SELECT ` + accessTokenColumns + `
		FROM webauthz_access_tokens
		WHERE user_id = ? AND origin = ? AND path IN (` + placeholders(len(q.Paths)) + `)
		ORDER BY seq DESC`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch access token: %w", err)
	}
	defer rows.Close()

	// Rows arrive in reverse insertion order; keep the newest per path.
	newest := make(map[string]*webauthz.AccessToken)
	for rows.Next() {
		tok, err := scanAccessToken(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := newest[tok.Path]; !seen {
			newest[tok.Path] = tok
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read access tokens: %w", err)
	}

	for _, p := range q.Paths {
		if tok, ok := newest[p]; ok {
			return tok, nil
		}
	}
	return nil, nil
}

func scanAccessToken(rows *sql.Rows) (*webauthz.AccessToken, error) {
	var (
		tok             webauthz.AccessToken
		accessNotAfter  sql.NullInt64
		refreshNotAfter sql.NullInt64
		createdAt       int64
	)
	err := rows.Scan(&tok.ID, &tok.UserID, &tok.Origin, &tok.Path, &tok.AccessToken, &accessNotAfter,
		&tok.RefreshTokenExists, &refreshNotAfter, &tok.ClientID, &tok.ClientState, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan access token: %w", err)
	}
	tok.AccessTokenNotAfter = timeFromMillis(accessNotAfter)
	tok.RefreshTokenNotAfter = timeFromMillis(refreshNotAfter)
	tok.CreatedAt = time.Unix(0, createdAt).UTC()
	return &tok, nil
}

// rebind rewrites '?' placeholders to the dialect's form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func expectOneRow(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timeFromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
