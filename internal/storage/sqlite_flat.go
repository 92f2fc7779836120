package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	// Registers the "sqlite" database/sql driver. The GORM backend uses the
	// same fork, so this package must not also link modernc.org/sqlite
	// directly or the duplicate registration panics at init.
	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStorage implements Storage using a plain database/sql SQLite
// connection (pure Go, no CGO). It is the single-file embedded alternative
// to the GORM backends.
type SQLiteStorage struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*SQLiteStorage, error) {
	if dsn == "" {
		dsn = "tariffmatrix.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

func (s *SQLiteStorage) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate runs basic schema migrations for all tables.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tariffs (
			id TEXT PRIMARY KEY,
			utility TEXT,
			name TEXT,
			sector TEXT,
			source TEXT,
			payload BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS resolution_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tariff_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			resolved_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_resolution_snapshots_tariff ON resolution_snapshots(tariff_id, id);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			token_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT,
			last_used_at TEXT,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS casbin_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ptype TEXT,
			v0 TEXT, v1 TEXT, v2 TEXT, v3 TEXT, v4 TEXT, v5 TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS email_config (
			id TEXT PRIMARY KEY,
			provider TEXT,
			host TEXT,
			port INTEGER,
			username TEXT,
			password TEXT,
			from_address TEXT,
			from_name TEXT,
			api_key TEXT,
			encryption TEXT,
			enabled BOOLEAN,
			created_at TEXT,
			updated_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TEXT,
			last_duration_ms INTEGER,
			last_success INTEGER,
			last_error TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Tariff documents

func (s *SQLiteStorage) ListTariffs(ctx context.Context) ([]TariffDoc, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, utility, name, sector, source, payload, updated_at FROM tariffs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TariffDoc
	for rows.Next() {
		var doc TariffDoc
		var updated string
		if err := rows.Scan(&doc.ID, &doc.Utility, &doc.Name, &doc.Sector, &doc.Source, &doc.Payload, &updated); err != nil {
			return nil, err
		}
		doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) GetTariff(ctx context.Context, id string) (*TariffDoc, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, utility, name, sector, source, payload, updated_at FROM tariffs WHERE id = ?`, id)
	var doc TariffDoc
	var updated string
	if err := row.Scan(&doc.ID, &doc.Utility, &doc.Name, &doc.Sector, &doc.Source, &doc.Payload, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &doc, nil
}

func (s *SQLiteStorage) UpsertTariff(ctx context.Context, doc TariffDoc) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tariffs (id, utility, name, sector, source, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			utility = excluded.utility,
			name = excluded.name,
			sector = excluded.sector,
			source = excluded.source,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Utility, doc.Name, doc.Sector, doc.Source, doc.Payload, doc.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStorage) DeleteTariff(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM resolution_snapshots WHERE tariff_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM tariffs WHERE id = ?`, id)
	return err
}

// Resolution snapshots

func (s *SQLiteStorage) GetResolutionSnapshot(ctx context.Context, tariffID string) (*ResolutionSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload, resolved_at
		FROM resolution_snapshots
		WHERE tariff_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, tariffID)

	var payload []byte
	var resolved string
	if err := row.Scan(&payload, &resolved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, resolved)
	if err != nil {
		// Fall back to now if parsing fails.
		t = time.Now()
	}
	return &ResolutionSnapshot{
		TariffID:   tariffID,
		Payload:    payload,
		ResolvedAt: t,
	}, nil
}

func (s *SQLiteStorage) SaveResolutionSnapshot(ctx context.Context, snap ResolutionSnapshot) error {
	if snap.ResolvedAt.IsZero() {
		snap.ResolvedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_snapshots (tariff_id, payload, resolved_at)
		VALUES (?, ?, ?)
	`, snap.TariffID, snap.Payload, snap.ResolvedAt.Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStorage) DeleteResolutionSnapshots(ctx context.Context, tariffID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resolution_snapshots WHERE tariff_id = ?`, tariffID)
	return err
}

// Settings

func (s *SQLiteStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Format(time.RFC3339))
	return err
}

// Users

func (s *SQLiteStorage) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.Role,
		user.CreatedAt.Format(time.RFC3339), user.UpdatedAt.Format(time.RFC3339))
	return err
}

func scanSQLiteUser(row *sql.Row) (*User, error) {
	var u User
	var email sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.Role, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Email = email.String
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &u, nil
}

func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*User, error) {
	return scanSQLiteUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, created_at, updated_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return scanSQLiteUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, created_at, updated_at FROM users WHERE username = ?`, username))
}

func (s *SQLiteStorage) UpdateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, password_hash = ?, role = ?, updated_at = ? WHERE id = ?
	`, user.Username, user.Email, user.PasswordHash, user.Role, time.Now().Format(time.RFC3339), user.ID)
	return err
}

func (s *SQLiteStorage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, email, password_hash, role, created_at, updated_at FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var email sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.Role, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Tokens

func (s *SQLiteStorage) CreateToken(ctx context.Context, token Token) error {
	var expiresAt, lastUsedAt *string
	if token.ExpiresAt != nil {
		t := token.ExpiresAt.Format(time.RFC3339)
		expiresAt = &t
	}
	if token.LastUsedAt != nil {
		t := token.LastUsedAt.Format(time.RFC3339)
		lastUsedAt = &t
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (id, user_id, name, token_hash, role, created_at, expires_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, token.ID, token.UserID, token.Name, token.TokenHash, token.Role,
		token.CreatedAt.Format(time.RFC3339), expiresAt, lastUsedAt)
	return err
}

func (s *SQLiteStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE token_hash = ?`, hash)
	var t Token
	var createdAt string
	var expiresAt, lastUsedAt *string
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &createdAt, &expiresAt, &lastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if expiresAt != nil {
		ts, _ := time.Parse(time.RFC3339, *expiresAt)
		t.ExpiresAt = &ts
	}
	if lastUsedAt != nil {
		ts, _ := time.Parse(time.RFC3339, *lastUsedAt)
		t.LastUsedAt = &ts
	}
	return &t, nil
}

func (s *SQLiteStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		var createdAt string
		var expiresAt, lastUsedAt *string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &createdAt, &expiresAt, &lastUsedAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if expiresAt != nil {
			ts, _ := time.Parse(time.RFC3339, *expiresAt)
			t.ExpiresAt = &ts
		}
		if lastUsedAt != nil {
			ts, _ := time.Parse(time.RFC3339, *lastUsedAt)
			t.LastUsedAt = &ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) DeleteToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
	return err
}

func (s *SQLiteStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tokens SET last_used_at = ? WHERE id = ?`, time.Now().Format(time.RFC3339), id)
	return err
}

// Casbin rules

func (s *SQLiteStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ptype, v0, v1, v2, v3, v4, v5 FROM casbin_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CasbinRule
	for rows.Next() {
		var r CasbinRule
		var v0, v1, v2, v3, v4, v5 sql.NullString
		if err := rows.Scan(&r.PType, &v0, &v1, &v2, &v3, &v4, &v5); err != nil {
			return nil, err
		}
		r.V0 = v0.String
		r.V1 = v1.String
		r.V2 = v2.String
		r.V3 = v3.String
		r.V4 = v4.String
		r.V5 = v5.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO casbin_rules (ptype, v0, v1, v2, v3, v4, v5) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5)
	return err
}

func (s *SQLiteStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	query := `DELETE FROM casbin_rules WHERE ptype = ?`
	args := []interface{}{rule.PType}

	if rule.V0 != "" {
		query += " AND v0 = ?"
		args = append(args, rule.V0)
	}
	if rule.V1 != "" {
		query += " AND v1 = ?"
		args = append(args, rule.V1)
	}
	if rule.V2 != "" {
		query += " AND v2 = ?"
		args = append(args, rule.V2)
	}

	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// Email config

func (s *SQLiteStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, host, port, username, password, from_address, from_name, api_key, encryption, enabled, created_at, updated_at
		FROM email_config
		LIMIT 1
	`)
	var c EmailConfig
	var encryption sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(
		&c.ID, &c.Provider, &c.Host, &c.Port, &c.Username, &c.Password,
		&c.FromAddress, &c.FromName, &c.APIKey, &encryption, &c.Enabled, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if encryption.Valid {
		c.Encryption = encryption.String
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (s *SQLiteStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	existing, err := s.GetEmailConfig(ctx)
	if err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	if existing == nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO email_config (id, provider, host, port, username, password, from_address, from_name, api_key, encryption, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, config.ID, config.Provider, config.Host, config.Port, config.Username, config.Password,
			config.FromAddress, config.FromName, config.APIKey, config.Encryption, config.Enabled, now, now)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE email_config
			SET provider=?, host=?, port=?, username=?, password=?, from_address=?, from_name=?, api_key=?, encryption=?, enabled=?, updated_at=?
			WHERE id=?
		`, config.Provider, config.Host, config.Port, config.Username, config.Password,
			config.FromAddress, config.FromName, config.APIKey, config.Encryption, config.Enabled, now, existing.ID)
	}
	return err
}
