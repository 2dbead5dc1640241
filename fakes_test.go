package auth_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	auth "github.com/vedantsinghthakur/aspcrm-auth"
)

// fakeAccount is a provider-side credential record.
type fakeAccount struct {
	id          string
	password    string
	displayName string
	disabled    bool
}

// fakeProvider is a stateful IdentityProvider for reconciliation and seeding
// scenarios.
type fakeProvider struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
	current  *auth.Principal
	nextID   int

	createErrs map[string]error
	refreshErr error

	onAuthenticate func()

	createCalls  []string
	nameCalls    []string
	refreshCalls int
	signOutCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:   map[string]*fakeAccount{},
		createErrs: map[string]error{},
	}
}

func (f *fakeProvider) addAccount(email, password, displayName string) *fakeAccount {
	f.nextID++
	account := &fakeAccount{
		id:          fmt.Sprintf("uid-%03d", f.nextID),
		password:    password,
		displayName: displayName,
	}
	f.accounts[email] = account
	return account
}

func (f *fakeProvider) principalFor(email string, account *fakeAccount) *auth.Principal {
	return &auth.Principal{
		ID:          account.id,
		Email:       email,
		DisplayName: account.displayName,
		Token:       "token-" + account.id,
	}
}

func (f *fakeProvider) CreateAccount(ctx context.Context, email, password string) (*auth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls = append(f.createCalls, email)

	if err := f.createErrs[email]; err != nil {
		return nil, err
	}

	if _, exists := f.accounts[email]; exists {
		return nil, &auth.ProviderError{Code: auth.ProviderCodeEmailAlreadyInUse, Detail: email}
	}

	account := f.addAccount(email, password, "")
	principal := f.principalFor(email, account)
	f.current = principal
	return principal, nil
}

func (f *fakeProvider) Authenticate(ctx context.Context, email, password string) (*auth.Principal, error) {
	if f.onAuthenticate != nil {
		f.onAuthenticate()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[email]
	if !ok {
		return nil, &auth.ProviderError{Code: auth.ProviderCodeUserNotFound, Detail: email}
	}
	if account.disabled {
		return nil, &auth.ProviderError{Code: auth.ProviderCodeUserDisabled, Detail: email}
	}
	if account.password != password {
		return nil, &auth.ProviderError{Code: auth.ProviderCodeWrongPassword, Detail: email}
	}

	principal := f.principalFor(email, account)
	f.current = principal
	return principal, nil
}

func (f *fakeProvider) SetDisplayName(ctx context.Context, principal *auth.Principal, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nameCalls = append(f.nameCalls, name)
	if account, ok := f.accounts[principal.Email]; ok {
		account.displayName = name
	}
	principal.DisplayName = name
	return nil
}

func (f *fakeProvider) RefreshToken(ctx context.Context, principal *auth.Principal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshCalls++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	principal.Token = principal.Token + "-fresh"
	return nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.signOutCalls++
	f.current = nil
	return nil
}

func (f *fakeProvider) CurrentPrincipal(ctx context.Context) (*auth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return nil, nil
	}
	copied := *f.current
	return &copied, nil
}

var _ auth.IdentityProvider = (*fakeProvider)(nil)

type fakeServerTime struct{}

// fakeStore is a stateful ProfileStore with injectable read/write failures.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]auth.Document

	getErr     error
	setErr     error
	dropWrites bool

	getCalls int
	setCalls int

	now time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs: map[string]auth.Document{},
		now:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) key(collection, id string) string {
	return collection + "/" + id
}

func (s *fakeStore) ServerTimestamp() any {
	return fakeServerTime{}
}

func (s *fakeStore) Get(ctx context.Context, collection, id string) (auth.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}

	doc, ok := s.docs[s.key(collection, id)]
	if !ok {
		return nil, auth.ErrDocumentMissing
	}

	copied := auth.Document{}
	for k, v := range doc {
		copied[k] = v
	}
	return copied, nil
}

func (s *fakeStore) Set(ctx context.Context, collection, id string, data auth.Document, opts ...auth.SetOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setCalls++
	if s.setErr != nil {
		return s.setErr
	}
	if s.dropWrites {
		return nil
	}

	resolved := auth.Document{}
	for k, v := range data {
		if _, ok := v.(fakeServerTime); ok {
			resolved[k] = s.now
			continue
		}
		resolved[k] = v
	}

	key := s.key(collection, id)
	if auth.ApplySetOptions(opts).Merge {
		if existing, ok := s.docs[key]; ok {
			merged := auth.Document{}
			for k, v := range existing {
				merged[k] = v
			}
			for k, v := range resolved {
				merged[k] = v
			}
			resolved = merged
		}
	}

	s.docs[key] = resolved
	return nil
}

func (s *fakeStore) doc(collection, id string) (auth.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[s.key(collection, id)]
	return doc, ok
}

var _ auth.ProfileStore = (*fakeStore)(nil)

// inlineDetach runs background tasks synchronously so tests can observe
// best-effort writes deterministically.
func inlineDetach(task func()) {
	task()
}
