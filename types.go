package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Principal is the identity provider's authenticated account record. It is
// owned exclusively by the provider; this layer never mutates it except for
// the one-time display-name write at account creation.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	Token       string
}

// Document is the wire shape of a stored record.
type Document = map[string]any

// IdentityProvider is the capability contract for the hosted identity
// provider. CurrentPrincipal returns (nil, nil) when no principal is
// authenticated. Provider failures carry a stable string code retrievable
// with ProviderCode.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (*Principal, error)
	Authenticate(ctx context.Context, email, password string) (*Principal, error)
	SetDisplayName(ctx context.Context, principal *Principal, name string) error
	RefreshToken(ctx context.Context, principal *Principal) error
	SignOut(ctx context.Context) error
	CurrentPrincipal(ctx context.Context) (*Principal, error)
}

// ProfileStore is the capability contract for the hosted document store.
// Get returns ErrDocumentMissing (possibly wrapped) when the collection is
// reachable but holds no document for the id; any other error means the
// store itself is unavailable. ServerTimestamp returns an opaque marker the
// store resolves to write-time.
type ProfileStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, data Document, opts ...SetOption) error
	ServerTimestamp() any
}

// LocalState is client-local durable storage: session-scoped string slots
// plus sticky flags that survive restarts. Writes are last-writer-wins and
// best-effort; implementations log their own failures rather than surface
// them, mirroring browser storage semantics.
type LocalState interface {
	GetItem(key string) string
	SetItem(key, value string)
	RemoveItem(key string)
	Flag(key string) bool
	SetFlag(key string)
}

// SetOptions control ProfileStore writes.
type SetOptions struct {
	// Merge folds the given fields into the existing document instead of
	// replacing it; fields not present in the write are left untouched.
	Merge bool
}

type SetOption func(*SetOptions)

// WithMerge makes the write a field merge rather than a replace.
func WithMerge() SetOption {
	return func(o *SetOptions) {
		o.Merge = true
	}
}

// ApplySetOptions folds a list of options into a SetOptions value.
func ApplySetOptions(opts []SetOption) SetOptions {
	options := SetOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// DefaultLogger returns the stdout fallback logger used when none is
// injected. Adapters share it.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
