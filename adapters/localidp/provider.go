// Package localidp implements the IdentityProvider capability on a local
// SQLite database: bcrypt-hashed credentials, HS256 session tokens, and the
// same stable error codes the hosted provider emits, so the boundary mapping
// is exercised end-to-end in development and tests.
package localidp

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	"github.com/vedantsinghthakur/aspcrm-auth"
)

type account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID           uuid.UUID  `bun:"id,pk,nullzero,type:uuid"`
	Email        string     `bun:"email,notnull,unique"`
	DisplayName  string     `bun:"display_name"`
	PasswordHash string     `bun:"password_hash,notnull"`
	Disabled     bool       `bun:"disabled"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt    *time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

func newAccountsRepository(db *bun.DB) repository.Repository[*account] {
	return repository.NewRepository[*account](db, repository.ModelHandlers[*account]{
		NewRecord: func() *account { return &account{} },
		GetID: func(record *account) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *account, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
}

// Provider implements auth.IdentityProvider. One Provider instance tracks one
// client session, mirroring the hosted SDK's current-user semantics.
type Provider struct {
	db     *bun.DB
	repo   repository.Repository[*account]
	tokens *tokenService
	logger auth.Logger
	cost   int
	now    func() time.Time

	// createBudget, when positive, fails further CreateAccount calls with the
	// provider's rate-limit code once exhausted. Lets dev setups rehearse the
	// seeder's back-off without a hosted project.
	createBudget int
	created      int

	mu      sync.Mutex
	current *auth.Principal
}

type Option func(*Provider)

// WithSigningKey sets the HS256 key for session tokens.
func WithSigningKey(key []byte) Option {
	return func(p *Provider) {
		if len(key) > 0 {
			p.tokens.signingKey = key
		}
	}
}

// WithTokenTTL overrides the session token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.tokens.ttl = ttl
		}
	}
}

// WithBcryptCost overrides the hash cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			p.cost = cost
		}
	}
}

// WithProviderLogger overrides the default logger.
func WithProviderLogger(logger auth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProviderClock injects a custom clock (useful for tests).
func WithProviderClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithCreateBudget caps successful account creations per process; once spent,
// CreateAccount reports the provider rate-limit code.
func WithCreateBudget(n int) Option {
	return func(p *Provider) {
		p.createBudget = n
	}
}

// New wraps an existing Bun handle. Call Init before first use.
func New(db *bun.DB, opts ...Option) *Provider {
	p := &Provider{
		db:     db,
		repo:   newAccountsRepository(db),
		logger: auth.DefaultLogger(),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		tokens: &tokenService{
			signingKey: []byte("local-development-key"),
			issuer:     "aspcrm-local",
			ttl:        24 * time.Hour,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Open opens (or creates) a SQLite-backed provider at dsn and initializes the
// schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Provider, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open identity store")
	}

	provider := New(bun.NewDB(sqldb, sqlitedialect.New()), opts...)
	if err := provider.Init(ctx); err != nil {
		return nil, err
	}

	return provider, nil
}

// Init creates the accounts table if it does not exist.
func (p *Provider) Init(ctx context.Context) error {
	_, err := p.db.NewCreateTable().
		Model((*account)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to initialize identity store schema")
	}
	return nil
}

// Close releases the underlying database handle.
func (p *Provider) Close() error {
	return p.db.Close()
}

// CreateAccount registers a new principal. Duplicate emails report the
// provider's already-in-use code so callers can treat them as steady state.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*auth.Principal, error) {
	if email == "" || password == "" {
		return nil, &auth.ProviderError{Code: auth.ProviderCodeInvalidCredential, Detail: "email and password are required"}
	}

	if p.createBudget > 0 && p.created >= p.createBudget {
		return nil, &auth.ProviderError{Code: auth.ProviderCodeTooManyRequests, Detail: "create budget exhausted"}
	}

	if _, err := p.repo.GetByIdentifierTx(ctx, p.db, email); err == nil {
		return nil, &auth.ProviderError{Code: auth.ProviderCodeEmailAlreadyInUse, Detail: email}
	} else if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	record := &account{
		Email:        email,
		PasswordHash: string(hash),
	}

	// Deterministic ids keep reseeded environments stable across resets.
	if id, err := hashid.NewUUID(email); err == nil {
		record.ID = id
	}

	if record, err = p.repo.CreateTx(ctx, p.db, record); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
	}

	p.created++

	principal, err := p.principalFor(record)
	if err != nil {
		return nil, err
	}

	// Creating an account establishes a session, matching the hosted SDK.
	p.setCurrent(principal)
	return principal, nil
}

// Authenticate verifies the credential pair and establishes the session.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*auth.Principal, error) {
	record, err := p.repo.GetByIdentifierTx(ctx, p.db, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, &auth.ProviderError{Code: auth.ProviderCodeUserNotFound, Detail: email}
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}

	if record.Disabled {
		return nil, &auth.ProviderError{Code: auth.ProviderCodeUserDisabled, Detail: email}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, &auth.ProviderError{Code: auth.ProviderCodeWrongPassword, Detail: email}
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "password comparison failed")
	}

	principal, err := p.principalFor(record)
	if err != nil {
		return nil, err
	}

	p.setCurrent(principal)
	return principal, nil
}

// SetDisplayName writes the display name once, at account creation time.
func (p *Provider) SetDisplayName(ctx context.Context, principal *auth.Principal, name string) error {
	id, err := uuid.Parse(principal.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "principal id is not a valid uuid")
	}

	record := &account{ID: id, DisplayName: name}
	if _, err := p.repo.UpdateTx(ctx, p.db, record, repository.UpdateByID(principal.ID)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to update display name")
	}

	principal.DisplayName = name

	p.mu.Lock()
	if p.current != nil && p.current.ID == principal.ID {
		p.current.DisplayName = name
	}
	p.mu.Unlock()

	return nil
}

// RefreshToken re-signs the principal's session token so store reads that
// follow see current claims.
func (p *Provider) RefreshToken(ctx context.Context, principal *auth.Principal) error {
	token, err := p.tokens.sign(principal.ID, principal.Email, p.now())
	if err != nil {
		return err
	}

	principal.Token = token

	p.mu.Lock()
	if p.current != nil && p.current.ID == principal.ID {
		p.current.Token = token
	}
	p.mu.Unlock()

	return nil
}

// SignOut drops the current session.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	return nil
}

// CurrentPrincipal returns the authenticated principal, or (nil, nil) when
// nobody is signed in.
func (p *Provider) CurrentPrincipal(ctx context.Context) (*auth.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, nil
	}

	// The session token still has to be valid; an expired token means the
	// session lapsed.
	if _, err := p.tokens.validate(p.current.Token, p.now); err != nil {
		p.logger.Debug("current session token invalid: %s", err)
		p.current = nil
		return nil, nil
	}

	copied := *p.current
	return &copied, nil
}

// SetDisabled blocks or unblocks an account. Disabled accounts fail
// authentication with the provider's user-disabled code.
func (p *Provider) SetDisabled(ctx context.Context, email string, disabled bool) error {
	record, err := p.repo.GetByIdentifierTx(ctx, p.db, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return &auth.ProviderError{Code: auth.ProviderCodeUserNotFound, Detail: email}
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}

	record.Disabled = disabled

	// Explicit column update: a zero-value Disabled would otherwise be
	// omitted from the repository's UPDATE, making re-enable a no-op.
	if _, err := p.db.NewUpdate().
		Model(record).
		Column("disabled").
		WherePK().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to update account status")
	}

	return nil
}

func (p *Provider) principalFor(record *account) (*auth.Principal, error) {
	token, err := p.tokens.sign(record.ID.String(), record.Email, p.now())
	if err != nil {
		return nil, err
	}

	return &auth.Principal{
		ID:          record.ID.String(),
		Email:       record.Email,
		DisplayName: record.DisplayName,
		Token:       token,
	}, nil
}

func (p *Provider) setCurrent(principal *auth.Principal) {
	copied := *principal

	p.mu.Lock()
	p.current = &copied
	p.mu.Unlock()
}

var _ auth.IdentityProvider = (*Provider)(nil)
