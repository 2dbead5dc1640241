// Package localstate implements the LocalState capability: session-scoped
// string slots plus sticky flags that survive restarts. The SQLite-backed
// Store persists both kinds in one table and purges session rows on Open,
// mirroring browser session/local storage; Memory is the throwaway variant.
package localstate

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/vedantsinghthakur/aspcrm-auth"
)

type kvRow struct {
	bun.BaseModel `bun:"table:local_state,alias:ls"`

	Key     string `bun:"key,pk,notnull"`
	Value   string `bun:"value,notnull"`
	Session bool   `bun:"session,notnull"`
}

// Store is the durable LocalState implementation. Writes are best-effort:
// storage failures are logged, never surfaced, per the capability contract.
type Store struct {
	db     *bun.DB
	logger auth.Logger
}

type Option func(*Store)

// WithStateLogger overrides the default logger.
func WithStateLogger(logger auth.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens (or creates) the state database at dsn, initializes the schema
// and drops leftover session-scoped rows: session slots do not survive
// restarts, sticky flags do.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open local state store")
	}

	store := &Store{
		db:     bun.NewDB(sqldb, sqlitedialect.New()),
		logger: auth.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if _, err := store.db.NewCreateTable().
		Model((*kvRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to initialize local state schema")
	}

	if _, err := store.db.NewDelete().
		Model((*kvRow)(nil)).
		Where("?TableAlias.session = ?", true).
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear session slots")
	}

	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetItem(key string) string {
	row := &kvRow{}

	err := s.db.NewSelect().
		Model(row).
		Where("?TableAlias.key = ?", key).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("local state read failed for %s: %s", key, err)
		}
		return ""
	}

	return row.Value
}

func (s *Store) SetItem(key, value string) {
	s.put(key, value, true)
}

func (s *Store) RemoveItem(key string) {
	if _, err := s.db.NewDelete().
		Model((*kvRow)(nil)).
		Where("?TableAlias.key = ?", key).
		Exec(context.Background()); err != nil {
		s.logger.Warn("local state delete failed for %s: %s", key, err)
	}
}

func (s *Store) Flag(key string) bool {
	return s.GetItem(key) == "true"
}

func (s *Store) SetFlag(key string) {
	s.put(key, "true", false)
}

func (s *Store) put(key, value string, session bool) {
	row := &kvRow{Key: key, Value: value, Session: session}

	if _, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("session = EXCLUDED.session").
		Exec(context.Background()); err != nil {
		s.logger.Warn("local state write failed for %s: %s", key, err)
	}
}

var _ auth.LocalState = (*Store)(nil)

// MemoryState is the in-memory LocalState used by tests and short-lived
// tooling. "Sticky" flags only stick for the process lifetime.
type MemoryState struct {
	mu    sync.Mutex
	items map[string]string
}

// Memory returns an empty in-memory state.
func Memory() *MemoryState {
	return &MemoryState{
		items: map[string]string{},
	}
}

func (m *MemoryState) GetItem(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[key]
}

func (m *MemoryState) SetItem(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
}

func (m *MemoryState) RemoveItem(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

func (m *MemoryState) Flag(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[key] == "true"
}

func (m *MemoryState) SetFlag(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = "true"
}

var _ auth.LocalState = (*MemoryState)(nil)
