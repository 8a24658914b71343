package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Dialect selects the SQL flavor of a SQLStore
type Dialect int

const (
	// Postgres uses $n placeholders and JSONB data
	Postgres Dialect = iota
	// SQLite uses ? placeholders and TEXT data
	SQLite
)

// DialectFor maps a database/sql driver name onto its dialect
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unsupported session driver %q", driver)
	}
}

// SQLConfig holds database session store configuration
type SQLConfig struct {
	DB      *sql.DB
	Dialect Dialect
	Table   string

	// CleanupInterval is how often expired rows are deleted (0 = never)
	CleanupInterval time.Duration

	Logger *zap.Logger
}

// DefaultSQLConfig returns default database configuration
func DefaultSQLConfig(db *sql.DB, dialect Dialect) SQLConfig {
	return SQLConfig{
		DB:              db,
		Dialect:         dialect,
		Table:           "sessions",
		CleanupInterval: 5 * time.Minute,
	}
}

// SQLStore is a database-backed session store. The database handle is owned
// by the caller.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	table   string
	logger  *zap.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSQLStore creates the sessions table if needed and starts the cleanup loop
func NewSQLStore(ctx context.Context, config SQLConfig) (*SQLStore, error) {
	if config.Table == "" {
		config.Table = "sessions"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SQLStore{
		db:      config.DB,
		dialect: config.Dialect,
		table:   pq.QuoteIdentifier(config.Table),
		logger:  logger,
		stop:    make(chan struct{}),
	}
	if err := s.createTable(ctx); err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	if config.CleanupInterval > 0 {
		s.wg.Add(1)
		go s.cleanup(config.CleanupInterval)
	}
	return s, nil
}

func (s *SQLStore) createTable(ctx context.Context) error {
	dataType := "JSONB"
	if s.dialect == SQLite {
		dataType = "TEXT"
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(255) PRIMARY KEY,
		data %s NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)`, s.table, dataType)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Get retrieves a session from the database
func (s *SQLStore) Get(ctx context.Context, id string) (*Session, error) {
	query := s.rebind(fmt.Sprintf(`SELECT data, created_at, expires_at FROM %s WHERE id = $1`, s.table))

	var (
		data                 []byte
		createdAt, expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	if time.Now().After(expiresAt) {
		if err := s.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, ErrSessionExpired
	}

	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return Restore(id, values, createdAt, expiresAt), nil
}

// Set upserts a session
func (s *SQLStore) Set(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess.Values())
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query := s.rebind(fmt.Sprintf(`INSERT INTO %s (id, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`, s.table))

	expiresAt := time.Now().Add(ttl).UTC()
	if _, err := s.db.ExecContext(ctx, query, sess.ID, string(data), sess.CreatedAt.UTC(), expiresAt); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Delete removes a session from the database
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table))
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close stops the cleanup loop
func (s *SQLStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

func (s *SQLStore) cleanup(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	query := s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, s.table))
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			if _, err := s.db.Exec(query, now.UTC()); err != nil {
				s.logger.Warn("session cleanup failed", zap.Error(err))
			}
		}
	}
}

// rebind rewrites $n placeholders for dialects that use ?
func (s *SQLStore) rebind(query string) string {
	if s.dialect != SQLite {
		return query
	}
	var sb strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			sb.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if _, err := strconv.Atoi(query[i+1 : j]); err != nil {
			sb.WriteByte(query[i])
			continue
		}
		sb.WriteByte('?')
		i = j - 1
	}
	return sb.String()
}
