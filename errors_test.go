package auth_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/vedantsinghthakur/aspcrm-auth"
)

func TestMapProviderError(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected error
	}{
		{"invalid credential", auth.ProviderCodeInvalidCredential, auth.ErrInvalidCredentials},
		{"invalid email", auth.ProviderCodeInvalidEmail, auth.ErrInvalidCredentials},
		{"user not found", auth.ProviderCodeUserNotFound, auth.ErrPrincipalNotFound},
		{"wrong password", auth.ProviderCodeWrongPassword, auth.ErrWrongPassword},
		{"too many requests", auth.ProviderCodeTooManyRequests, auth.ErrRateLimited},
		{"user disabled", auth.ProviderCodeUserDisabled, auth.ErrAccountDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := auth.MapProviderError(&auth.ProviderError{Code: tt.code, Detail: "raw provider text"})
			assert.ErrorIs(t, mapped, tt.expected)
			// raw provider text never reaches the user-facing message
			assert.NotContains(t, mapped.Error(), "raw provider text")
		})
	}

	t.Run("unmapped code collapses to unknown", func(t *testing.T) {
		mapped := auth.MapProviderError(&auth.ProviderError{Code: "auth/quota-exceeded", Detail: "internal detail"})

		var richErr *goerrors.Error
		require.True(t, goerrors.As(mapped, &richErr))
		assert.Equal(t, auth.TextCodeUnknownProvider, richErr.TextCode)
		assert.Equal(t, "auth/quota-exceeded", richErr.Metadata["provider_code"])
		assert.NotContains(t, richErr.Message, "internal detail")
	})

	t.Run("each mapping gets its own metadata", func(t *testing.T) {
		first := auth.MapProviderError(&auth.ProviderError{Code: "auth/quota-exceeded", Detail: "caller A detail"})
		second := auth.MapProviderError(&auth.ProviderError{Code: "auth/network-request-failed", Detail: "caller B detail"})

		var firstErr, secondErr *goerrors.Error
		require.True(t, goerrors.As(first, &firstErr))
		require.True(t, goerrors.As(second, &secondErr))

		assert.Equal(t, "auth/quota-exceeded", firstErr.Metadata["provider_code"])
		assert.Equal(t, "auth/network-request-failed", secondErr.Metadata["provider_code"])

		// the shared sentinel itself must stay pristine
		assert.Nil(t, auth.ErrUnknownProvider.Metadata)
	})

	t.Run("uncoded errors collapse to unknown", func(t *testing.T) {
		mapped := auth.MapProviderError(errors.New("tcp dial failed"))

		var richErr *goerrors.Error
		require.True(t, goerrors.As(mapped, &richErr))
		assert.Equal(t, auth.TextCodeUnknownProvider, richErr.TextCode)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, auth.MapProviderError(nil))
	})
}

func TestProviderCode(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		code, ok := auth.ProviderCode(&auth.ProviderError{Code: auth.ProviderCodeUserDisabled})
		assert.True(t, ok)
		assert.Equal(t, auth.ProviderCodeUserDisabled, code)
	})

	t.Run("wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("seeding: %w", &auth.ProviderError{Code: auth.ProviderCodeTooManyRequests})
		assert.True(t, auth.IsProviderCode(wrapped, auth.ProviderCodeTooManyRequests))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		_, ok := auth.ProviderCode(errors.New("nope"))
		assert.False(t, ok)
		assert.False(t, auth.IsProviderCode(nil, auth.ProviderCodeUserDisabled))
	})
}

func TestIsDocumentMissing(t *testing.T) {
	assert.True(t, auth.IsDocumentMissing(auth.ErrDocumentMissing))
	assert.True(t, auth.IsDocumentMissing(auth.ErrDocumentMissing.Clone().WithMetadata(map[string]any{"id": "x"})))
	assert.False(t, auth.IsDocumentMissing(errors.New("connection reset")))
	assert.False(t, auth.IsDocumentMissing(nil))
}

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrInvalidCredentials", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, auth.ErrInvalidCredentials.Category)
		assert.Equal(t, auth.TextCodeInvalidCreds, auth.ErrInvalidCredentials.TextCode)
	})

	t.Run("ErrRateLimited", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryRateLimit, auth.ErrRateLimited.Category)
		assert.Equal(t, auth.TextCodeRateLimited, auth.ErrRateLimited.TextCode)
	})

	t.Run("ErrAccountDisabled", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, auth.ErrAccountDisabled.Category)
		assert.Equal(t, auth.TextCodeAccountDisabled, auth.ErrAccountDisabled.TextCode)
	})

	t.Run("ErrStoreInconsistent", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryConflict, auth.ErrStoreInconsistent.Category)
		assert.Equal(t, auth.TextCodeStoreInconsistent, auth.ErrStoreInconsistent.TextCode)
	})

	t.Run("ErrDocumentMissing", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryNotFound, auth.ErrDocumentMissing.Category)
		assert.True(t, goerrors.IsNotFound(auth.ErrDocumentMissing))
	})
}
