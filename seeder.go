package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// seedThrottle is the fixed delay between account creations. A deliberate
// throttle to stay under provider rate limits, not a retry.
const seedThrottle = 1500 * time.Millisecond

// SeedRateLimitFlag is the sticky flag remembering that a previous run hit a
// provider rate limit. It survives restarts; while set, Seed is a no-op.
const SeedRateLimitFlag = "seed:rate-limited"

// SeedAccount is one entry of the fixed bootstrap list.
type SeedAccount struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

func (a SeedAccount) Validate() error {
	err := validation.ValidateStruct(&a,
		validation.Field(&a.Email, validation.Required, is.Email),
		validation.Field(&a.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&a.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&a.Role, validation.Required, validation.In(toAny(AllRoles())...)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid seed account").
			WithMetadata(map[string]any{"email": a.Email})
	}
	return nil
}

// DefaultSeedAccounts is the demo account list provisioned on first run.
func DefaultSeedAccounts() []SeedAccount {
	return []SeedAccount{
		{Email: "admin@aspcranes.com", Password: "admin123", Name: "Admin User", Role: RoleAdmin},
		{Email: "john@aspcranes.com", Password: "sales123", Name: "John Sales", Role: RoleSalesAgent},
		{Email: "sara@aspcranes.com", Password: "manager123", Name: "Sara Manager", Role: RoleOperationsManager},
		{Email: "mike@aspcranes.com", Password: "operator123", Name: "Mike Operator", Role: RoleOperator},
	}
}

// Seeder provisions a fixed account list, once. Strictly sequential by
// design: external rate limits make concurrent creation counterproductive.
type Seeder struct {
	provider IdentityProvider
	store    ProfileStore
	state    LocalState
	logger   Logger
	sleep    func(time.Duration)
}

type SeederOption func(*Seeder)

// WithSeederLogger overrides the default logger.
func WithSeederLogger(logger Logger) SeederOption {
	return func(s *Seeder) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSeederSleep overrides the throttle sleeper (useful for tests).
func WithSeederSleep(sleep func(time.Duration)) SeederOption {
	return func(s *Seeder) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// NewSeeder returns a Seeder over the given capabilities. The sticky
// rate-limit flag lives in state and survives restarts.
func NewSeeder(provider IdentityProvider, store ProfileStore, state LocalState, opts ...SeederOption) *Seeder {
	s := &Seeder{
		provider: provider,
		store:    store,
		state:    state,
		logger:   defLogger{},
		sleep:    time.Sleep,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Seed creates every account in list order. Idempotent: "already exists" is
// the expected steady state after the first run and is treated as
// success-no-op. A provider rate limit sets the sticky flag and halts the
// remaining entries without failing; any other error aborts the batch.
// Partial success is never an error.
func (s *Seeder) Seed(ctx context.Context, accounts []SeedAccount) error {
	if s.state.Flag(SeedRateLimitFlag) {
		s.logger.Info("seed skipped: rate limit flag set by a previous run")
		return nil
	}

	for i, account := range accounts {
		if err := account.Validate(); err != nil {
			return err
		}

		err := s.seedOne(ctx, account)
		if err == nil {
			s.logger.Info("seeded account %s with role %s", account.Email, account.Role)
			// throttle before the next entry; nothing to pace after the last
			if i < len(accounts)-1 {
				s.sleep(seedThrottle)
			}
			continue
		}

		if IsProviderCode(err, ProviderCodeEmailAlreadyInUse) {
			s.logger.Debug("seed account %s already exists", account.Email)
			continue
		}

		if IsProviderCode(err, ProviderCodeTooManyRequests) {
			s.state.SetFlag(SeedRateLimitFlag)
			s.logger.Warn("seed halted by provider rate limit at %s", account.Email)
			return nil
		}

		return goerrors.Wrap(err, goerrors.CategoryOperation, "seed account creation failed").
			WithMetadata(map[string]any{"email": account.Email})
	}

	return nil
}

func (s *Seeder) seedOne(ctx context.Context, account SeedAccount) error {
	principal, err := s.provider.CreateAccount(ctx, account.Email, account.Password)
	if err != nil {
		return err
	}

	if err := s.provider.SetDisplayName(ctx, principal, account.Name); err != nil {
		return err
	}

	profile := &UserProfile{
		ID:    principal.ID,
		Name:  account.Name,
		Email: account.Email,
		Role:  account.Role,
	}

	doc := profile.Document()
	doc["createdAt"] = s.store.ServerTimestamp()

	return s.store.Set(ctx, UsersCollection, principal.ID, doc)
}
