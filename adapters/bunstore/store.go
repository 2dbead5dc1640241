// Package bunstore implements the ProfileStore capability on a Bun-managed
// SQLite database: one documents table keyed by (collection, doc_id) with the
// document body stored as JSON. Useful for development and as the system of
// record in single-node deployments.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/vedantsinghthakur/aspcrm-auth"
	"github.com/vedantsinghthakur/aspcrm-auth/policy"
)

// ErrWriteDenied is returned when the declarative policy rejects a write.
var ErrWriteDenied = goerrors.New("write denied by access policy", goerrors.CategoryAuthz).
	WithTextCode("POLICY_WRITE_DENIED").
	WithCode(goerrors.CodeForbidden)

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:doc"`

	Collection string         `bun:"collection,pk,notnull"`
	DocID      string         `bun:"doc_id,pk,notnull"`
	Data       map[string]any `bun:"data,type:json"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull"`
}

// Store implements auth.ProfileStore.
type Store struct {
	db     *bun.DB
	rules  *policy.Rules
	actor  func() *policy.Actor
	logger auth.Logger
	now    func() time.Time
}

type Option func(*Store)

// WithPolicy enforces the declarative rule table on writes. actor resolves
// the acting principal at call time; a nil actor is treated as
// unauthenticated.
func WithPolicy(rules policy.Rules, actor func() *policy.Actor) Option {
	return func(s *Store) {
		s.rules = &rules
		s.actor = actor
	}
}

// WithStoreLogger overrides the default logger.
func WithStoreLogger(logger auth.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// New wraps an existing Bun handle. Call Init before first use.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: auth.DefaultLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Open opens (or creates) a SQLite-backed store at dsn and initializes the
// schema. Use ":memory:" for throwaway stores.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open document store")
	}

	store := New(bun.NewDB(sqldb, sqlitedialect.New()), opts...)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// Init creates the documents table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*documentRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to initialize document store schema")
	}
	return nil
}

// DB exposes the underlying Bun handle.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type serverTime struct{}

// ServerTimestamp returns the opaque marker this store resolves to
// wall-clock time at write.
func (s *Store) ServerTimestamp() any {
	return serverTime{}
}

// Get returns the document, or auth.ErrDocumentMissing when the collection is
// reachable but holds nothing for the id.
func (s *Store) Get(ctx context.Context, collection, id string) (auth.Document, error) {
	row := &documentRow{}

	err := s.db.NewSelect().
		Model(row).
		Where("?TableAlias.collection = ?", collection).
		Where("?TableAlias.doc_id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrDocumentMissing.Clone().WithMetadata(map[string]any{
				"collection": collection,
				"id":         id,
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "document read failed")
	}

	return auth.Document(row.Data), nil
}

// Set writes the document. With WithMerge the given fields are folded into
// the existing document; otherwise the document is replaced. Server-time
// markers in the data are resolved before persisting.
func (s *Store) Set(ctx context.Context, collection, id string, data auth.Document, opts ...auth.SetOption) error {
	if s.rules != nil {
		var actor *policy.Actor
		if s.actor != nil {
			actor = s.actor()
		}
		if !s.rules.AllowsWrite(actor, collection, id) {
			return ErrWriteDenied.Clone().WithMetadata(map[string]any{
				"collection": collection,
				"id":         id,
			})
		}
	}

	options := auth.ApplySetOptions(opts)

	payload := s.resolveMarkers(data)
	if options.Merge {
		existing, err := s.Get(ctx, collection, id)
		if err != nil && !auth.IsDocumentMissing(err) {
			return err
		}
		payload = mergeDocuments(existing, payload)
	}

	row := &documentRow{
		Collection: collection,
		DocID:      id,
		Data:       payload,
		UpdatedAt:  s.now(),
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (collection, doc_id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "document write failed")
	}

	return nil
}

// resolveMarkers copies data, replacing server-time markers with the current
// wall-clock. Only top-level fields carry markers in practice.
func (s *Store) resolveMarkers(data auth.Document) map[string]any {
	out := make(map[string]any, len(data))
	now := s.now()
	for k, v := range data {
		if _, ok := v.(serverTime); ok {
			out[k] = now.UTC().Format(time.RFC3339Nano)
			continue
		}
		out[k] = v
	}
	return out
}

func mergeDocuments(existing, partial map[string]any) map[string]any {
	if existing == nil {
		return partial
	}
	out := make(map[string]any, len(existing)+len(partial))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

var _ auth.ProfileStore = (*Store)(nil)
