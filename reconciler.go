package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// Reconciler orchestrates provider authentication against store state. One
// instance serves one client session; its only shared mutable state lives in
// the injected SessionState.
type Reconciler struct {
	provider IdentityProvider
	store    ProfileStore
	session  *SessionState
	logger   Logger
	detach   func(task func())
	now      func() time.Time
}

type ReconcilerOption func(*Reconciler)

// WithLogger overrides the default logger.
func WithLogger(logger Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithDetach overrides how best-effort background writes are scheduled. The
// default runs the task on its own goroutine; tests typically run it inline.
func WithDetach(detach func(task func())) ReconcilerOption {
	return func(r *Reconciler) {
		if detach != nil {
			r.detach = detach
		}
	}
}

// NewReconciler returns a Reconciler over the given capabilities.
func NewReconciler(provider IdentityProvider, store ProfileStore, session *SessionState, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		provider: provider,
		store:    store,
		session:  session,
		logger:   defLogger{},
		now:      time.Now,
		detach: func(task func()) {
			go task()
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// SignIn authenticates a credential, then reconciles the authoritative
// profile between the identity provider and the document store:
//
//   - stored document found: returned verbatim.
//   - store reachable, document absent: a profile is synthesized from the
//     principal and persisted; a failed persist surfaces, since a store that
//     reads but rejects writes is a configuration problem worth seeing.
//   - store unreachable: sign-in still succeeds with the synthesized profile;
//     persistence becomes a detached best-effort write and the profile is
//     cached client-side for degraded restarts.
//
// The explicit-auth-action marker is written before the provider call;
// callers must not assume the store is updated by the time SignIn returns.
func (r *Reconciler) SignIn(ctx context.Context, email, password string) (*UserProfile, error) {
	r.session.MarkExplicitAuthAction()

	principal, err := r.provider.Authenticate(ctx, email, password)
	if err != nil {
		r.logger.Error("sign-in authentication failed for %s: %s", email, err)
		return nil, MapProviderError(err)
	}

	// A just-created principal can be authorized against a stale token; the
	// refresh guarantees the store read below sees current claims. A failed
	// refresh is not fatal: a genuinely bad token will fail the store read,
	// which the degraded path already absorbs.
	if err := r.provider.RefreshToken(ctx, principal); err != nil {
		r.logger.Warn("token refresh failed for %s, continuing: %s", principal.ID, err)
	}

	doc, err := r.store.Get(ctx, UsersCollection, principal.ID)
	switch {
	case err == nil:
		profile, derr := ProfileFromDocument(doc)
		if derr != nil {
			return nil, goerrors.Wrap(derr, goerrors.CategoryConflict, "stored profile is unreadable").
				WithTextCode(TextCodeStoreInconsistent)
		}
		r.session.MarkAuthenticated()
		return profile, nil

	case IsDocumentMissing(err):
		profile := r.synthesizeProfile(principal)
		if werr := r.persistProfile(ctx, profile); werr != nil {
			r.logger.Error("profile backfill write failed for %s: %s", principal.ID, werr)
			return nil, goerrors.Wrap(werr, goerrors.CategoryOperation, "store accepted the read but rejected the profile write")
		}
		r.session.MarkAuthenticated()
		return profile, nil

	default:
		r.logger.Warn("profile lookup unavailable for %s, continuing degraded: %s", principal.ID, err)
		profile := r.synthesizeProfile(principal)
		r.detach(func() {
			if werr := r.persistProfile(context.Background(), profile); werr != nil {
				r.logger.Warn("best-effort profile write failed for %s: %s", profile.ID, werr)
			}
		})
		r.session.MarkAuthenticated()
		r.session.CacheProfile(profile)
		return profile, nil
	}
}

// SignUpInput is the payload for account creation.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Validate checks the payload before any provider call.
func (in SignUpInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(&in.Name, validation.Length(0, 200)),
		validation.Field(&in.Role, validation.In(toAny(AllRoles())...)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sign-up payload")
	}
	return nil
}

// SignUp creates the provider account and its profile document synchronously.
// The display name is set once at creation and never mutated afterwards.
func (r *Reconciler) SignUp(ctx context.Context, in SignUpInput) (*UserProfile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r.session.MarkExplicitAuthAction()

	principal, err := r.provider.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		r.logger.Error("sign-up account creation failed for %s: %s", in.Email, err)
		return nil, MapProviderError(err)
	}

	if in.Name != "" {
		if err := r.provider.SetDisplayName(ctx, principal, in.Name); err != nil {
			// The profile document below is the authoritative name source.
			r.logger.Warn("failed to set display name for %s: %s", principal.ID, err)
		}
		principal.DisplayName = in.Name
	}

	role := in.Role
	if role == "" {
		role = InferRole(in.Email)
	}

	profile := &UserProfile{
		ID:        principal.ID,
		Name:      displayNameFallback(principal),
		Email:     in.Email,
		Role:      role,
		CreatedAt: r.now(),
	}

	if err := r.persistProfile(ctx, profile); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist profile for new account")
	}

	r.session.MarkAuthenticated()
	return profile, nil
}

// SignOut marks the transition explicit, signs out of the provider and
// clears all session-scoped state.
func (r *Reconciler) SignOut(ctx context.Context) error {
	r.session.MarkExplicitAuthAction()

	if err := r.provider.SignOut(ctx); err != nil {
		r.logger.Error("provider sign-out failed: %s", err)
		return MapProviderError(err)
	}

	r.session.Clear()
	return nil
}

// CurrentUser resolves the profile for the currently authenticated
// principal, or (nil, nil) when nobody is signed in. It is the read-only
// variant of the reconciliation fallback: a missing or unreadable document
// yields a synthesized profile, but nothing is ever written and session
// markers are untouched.
func (r *Reconciler) CurrentUser(ctx context.Context) (*UserProfile, error) {
	principal, err := r.provider.CurrentPrincipal(ctx)
	if err != nil {
		return nil, MapProviderError(err)
	}
	if principal == nil {
		return nil, nil
	}

	doc, err := r.store.Get(ctx, UsersCollection, principal.ID)
	if err == nil {
		profile, derr := ProfileFromDocument(doc)
		if derr == nil {
			return profile, nil
		}
		r.logger.Warn("stored profile for %s unreadable, synthesizing: %s", principal.ID, derr)
	} else if !IsDocumentMissing(err) {
		r.logger.Warn("profile lookup unavailable for current user %s: %s", principal.ID, err)
	}

	return r.synthesizeProfile(principal), nil
}

// UpdateProfile merges partial fields into the stored document; fields not
// present in the partial are left untouched. A read-back that finds nothing
// after the merge write is store inconsistency and always surfaces.
func (r *Reconciler) UpdateProfile(ctx context.Context, id string, partial Document) (*UserProfile, error) {
	if id == "" {
		return nil, goerrors.New("profile id is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	if len(partial) == 0 {
		return nil, goerrors.New("no fields to update", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := r.store.Set(ctx, UsersCollection, id, partial, WithMerge()); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "profile update write failed")
	}

	doc, err := r.store.Get(ctx, UsersCollection, id)
	if err != nil {
		if IsDocumentMissing(err) {
			return nil, ErrProfileNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "profile read-back failed")
	}

	return ProfileFromDocument(doc)
}

func (r *Reconciler) synthesizeProfile(principal *Principal) *UserProfile {
	return &UserProfile{
		ID:        principal.ID,
		Name:      displayNameFallback(principal),
		Email:     principal.Email,
		Role:      InferRole(principal.Email),
		CreatedAt: r.now(),
	}
}

func (r *Reconciler) persistProfile(ctx context.Context, profile *UserProfile) error {
	doc := profile.Document()
	doc["createdAt"] = r.store.ServerTimestamp()
	return r.store.Set(ctx, UsersCollection, profile.ID, doc)
}

// displayNameFallback resolves the synthesized profile name:
// displayName, then email local-part, then "User".
func displayNameFallback(principal *Principal) string {
	if principal.DisplayName != "" {
		return principal.DisplayName
	}
	if local := emailLocalPart(principal.Email); local != "" {
		return local
	}
	return "User"
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return ""
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
