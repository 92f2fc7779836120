package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStorage is a pgxpool-backed Storage. It is the backend the
// batch worker uses: Postgres advisory locks make multi-replica deployments
// safe, and pool stats feed the DB gauges.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/tariffmatrix?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{pool: pool}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Stat exposes pool statistics for metrics reporting.
func (s *PostgresPoolStorage) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}

// Tariff documents

func (s *PostgresPoolStorage) ListTariffs(ctx context.Context) ([]TariffDoc, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, utility, name, sector, source, payload, updated_at FROM tariffs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TariffDoc
	for rows.Next() {
		var doc TariffDoc
		if err := rows.Scan(&doc.ID, &doc.Utility, &doc.Name, &doc.Sector, &doc.Source, &doc.Payload, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) GetTariff(ctx context.Context, id string) (*TariffDoc, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, utility, name, sector, source, payload, updated_at FROM tariffs WHERE id=$1`, id)
	var doc TariffDoc
	if err := row.Scan(&doc.ID, &doc.Utility, &doc.Name, &doc.Sector, &doc.Source, &doc.Payload, &doc.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (s *PostgresPoolStorage) UpsertTariff(ctx context.Context, doc TariffDoc) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tariffs (id, utility, name, sector, source, payload, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			utility=EXCLUDED.utility,
			name=EXCLUDED.name,
			sector=EXCLUDED.sector,
			source=EXCLUDED.source,
			payload=EXCLUDED.payload,
			updated_at=EXCLUDED.updated_at
	`, doc.ID, doc.Utility, doc.Name, doc.Sector, doc.Source, doc.Payload, doc.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) DeleteTariff(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM resolution_snapshots WHERE tariff_id=$1`, id); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM tariffs WHERE id=$1`, id)
	return err
}

// Resolution snapshots

func (s *PostgresPoolStorage) GetResolutionSnapshot(ctx context.Context, tariffID string) (*ResolutionSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT payload, resolved_at
		FROM resolution_snapshots
		WHERE tariff_id=$1
		ORDER BY id DESC
		LIMIT 1
	`, tariffID)

	var payload []byte
	var resolved time.Time
	if err := row.Scan(&payload, &resolved); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &ResolutionSnapshot{
		TariffID:   tariffID,
		Payload:    payload,
		ResolvedAt: resolved,
	}, nil
}

func (s *PostgresPoolStorage) SaveResolutionSnapshot(ctx context.Context, snap ResolutionSnapshot) error {
	if snap.ResolvedAt.IsZero() {
		snap.ResolvedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO resolution_snapshots (tariff_id, payload, resolved_at)
		VALUES ($1,$2,$3)
	`, snap.TariffID, snap.Payload, snap.ResolvedAt)
	return err
}

func (s *PostgresPoolStorage) DeleteResolutionSnapshots(ctx context.Context, tariffID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM resolution_snapshots WHERE tariff_id=$1`, tariffID)
	return err
}

// Settings

func (s *PostgresPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *PostgresPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at
	`, key, value, time.Now())
	return err
}

// Users

func (s *PostgresPoolStorage) CreateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresPoolStorage) GetUser(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, created_at, updated_at FROM users WHERE id=$1`, id))
}

func (s *PostgresPoolStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, created_at, updated_at FROM users WHERE username=$1`, username))
}

func (s *PostgresPoolStorage) UpdateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET username=$1, email=$2, password_hash=$3, role=$4, updated_at=$5 WHERE id=$6
	`, user.Username, user.Email, user.PasswordHash, user.Role, time.Now(), user.ID)
	return err
}

func (s *PostgresPoolStorage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, email, password_hash, role, created_at, updated_at FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Tokens

func (s *PostgresPoolStorage) CreateToken(ctx context.Context, token Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (id, user_id, name, token_hash, role, created_at, expires_at, last_used_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, token.ID, token.UserID, token.Name, token.TokenHash, token.Role, token.CreatedAt, token.ExpiresAt, token.LastUsedAt)
	return err
}

func (s *PostgresPoolStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE token_hash=$1`, hash)
	var t Token
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresPoolStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at FROM tokens WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) DeleteToken(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE tokens SET last_used_at=$1 WHERE id=$2`, time.Now(), id)
	return err
}

// Casbin rules

func (s *PostgresPoolStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT ptype, v0, v1, v2, v3, v4, v5 FROM casbin_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CasbinRule
	for rows.Next() {
		var r CasbinRule
		if err := rows.Scan(&r.PType, &r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO casbin_rules (ptype, v0, v1, v2, v3, v4, v5) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5)
	return err
}

func (s *PostgresPoolStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM casbin_rules WHERE ptype=$1 AND v0=$2 AND v1=$3 AND v2=$4`,
		rule.PType, rule.V0, rule.V1, rule.V2)
	return err
}

// Email config

func (s *PostgresPoolStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider, host, port, username, password, from_address, from_name, api_key, encryption, enabled, created_at, updated_at
		FROM email_config LIMIT 1
	`)
	var c EmailConfig
	err := row.Scan(&c.ID, &c.Provider, &c.Host, &c.Port, &c.Username, &c.Password,
		&c.FromAddress, &c.FromName, &c.APIKey, &c.Encryption, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresPoolStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default"
	}
	now := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_config (id, provider, host, port, username, password, from_address, from_name, api_key, encryption, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
		ON CONFLICT (id) DO UPDATE SET
			provider=EXCLUDED.provider,
			host=EXCLUDED.host,
			port=EXCLUDED.port,
			username=EXCLUDED.username,
			password=EXCLUDED.password,
			from_address=EXCLUDED.from_address,
			from_name=EXCLUDED.from_name,
			api_key=EXCLUDED.api_key,
			encryption=EXCLUDED.encryption,
			enabled=EXCLUDED.enabled,
			updated_at=EXCLUDED.updated_at
	`, config.ID, config.Provider, config.Host, config.Port, config.Username, config.Password,
		config.FromAddress, config.FromName, config.APIKey, config.Encryption, config.Enabled, now)
	return err
}

// Advisory locks & scheduled jobs

func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&ok)
	return ok, err
}

func (s *PostgresPoolStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, name, started, dur.Milliseconds(), status, errMsg)
	return err
}
