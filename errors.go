package auth

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes exposed on structured errors so callers can branch without
// string matching.
const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodePrincipalNotFound = "PRINCIPAL_NOT_FOUND"
	TextCodeWrongPassword     = "WRONG_PASSWORD"
	TextCodeRateLimited       = "RATE_LIMITED"
	TextCodeAccountDisabled   = "ACCOUNT_DISABLED"
	TextCodeUnknownProvider   = "UNKNOWN_PROVIDER_ERROR"
	TextCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	TextCodeStoreInconsistent = "STORE_INCONSISTENT"
	TextCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	TextCodeProfileDecode     = "PROFILE_DECODE_ERROR"
	TextCodeDocumentMissing   = "DOCUMENT_MISSING"
)

// ErrInvalidCredentials is returned for malformed or rejected credentials.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrPrincipalNotFound is returned when no account exists for the email.
var ErrPrincipalNotFound = goerrors.New("no account found for this email", goerrors.CategoryNotFound).
	WithTextCode(TextCodePrincipalNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrWrongPassword is returned when the password does not match.
var ErrWrongPassword = goerrors.New("incorrect password", goerrors.CategoryAuth).
	WithTextCode(TextCodeWrongPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrRateLimited is returned when the provider throttles requests. Transient;
// the caller should wait before retrying.
var ErrRateLimited = goerrors.New("too many attempts, try again later", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited)

// ErrAccountDisabled is returned for blocked accounts. Terminal.
var ErrAccountDisabled = goerrors.New("this account has been disabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrUnknownProvider covers unmapped provider codes. The raw code and detail
// live in the error metadata for logs; the message stays generic.
var ErrUnknownProvider = goerrors.New("authentication failed, please try again", goerrors.CategoryInternal).
	WithTextCode(TextCodeUnknownProvider)

// ErrStoreUnavailable signals the document store could not be reached.
// Sign-in recovers from it via the degraded path and never surfaces it.
var ErrStoreUnavailable = goerrors.New("profile store is unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeStoreUnavailable)

// ErrStoreInconsistent signals a write succeeded but a subsequent read found
// nothing. Fatal, always surfaced.
var ErrStoreInconsistent = goerrors.New("profile store returned inconsistent state", goerrors.CategoryConflict).
	WithTextCode(TextCodeStoreInconsistent).
	WithCode(goerrors.CodeConflict)

// ErrProfileNotFound is returned by profile updates that cannot read back the
// merged document.
var ErrProfileNotFound = goerrors.New("user profile not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProfileNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrDocumentMissing is the ProfileStore sentinel distinguishing "reachable
// but no document" from a transport failure. Stores return it, possibly
// wrapped, from Get.
var ErrDocumentMissing = goerrors.New("document not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeDocumentMissing).
	WithCode(goerrors.CodeNotFound)

// Stable string codes carried by identity provider errors.
const (
	ProviderCodeInvalidCredential   = "auth/invalid-credential"
	ProviderCodeInvalidEmail        = "auth/invalid-email"
	ProviderCodeUserNotFound        = "auth/user-not-found"
	ProviderCodeWrongPassword       = "auth/wrong-password"
	ProviderCodeTooManyRequests     = "auth/too-many-requests"
	ProviderCodeUserDisabled        = "auth/user-disabled"
	ProviderCodeEmailAlreadyInUse   = "auth/email-already-in-use"
	ProviderCodeOperationNotAllowed = "auth/operation-not-allowed"
)

// ProviderError is the wire shape of identity provider failures. Code is the
// provider's stable string code; Detail is raw provider text that must never
// reach a user-facing message.
type ProviderError struct {
	Code   string
	Detail string
}

func (e *ProviderError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("provider error %s", e.Code)
	}
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Detail)
}

// ProviderCode extracts the stable provider code from err, if any.
func ProviderCode(err error) (string, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code, true
	}
	return "", false
}

// IsProviderCode reports whether err carries the given provider code.
func IsProviderCode(err error, code string) bool {
	got, ok := ProviderCode(err)
	return ok && got == code
}

// providerOutcomes is the closed mapping from provider code to user-facing
// error. Anything not listed is the unknown outcome.
var providerOutcomes = map[string]*goerrors.Error{
	ProviderCodeInvalidCredential: ErrInvalidCredentials,
	ProviderCodeInvalidEmail:      ErrInvalidCredentials,
	ProviderCodeUserNotFound:      ErrPrincipalNotFound,
	ProviderCodeWrongPassword:     ErrWrongPassword,
	ProviderCodeTooManyRequests:   ErrRateLimited,
	ProviderCodeUserDisabled:      ErrAccountDisabled,
}

// MapProviderError converts an identity provider failure into exactly one of
// the fixed user-facing outcomes. The function is total: unmapped or
// uncoded errors collapse to ErrUnknownProvider with the original detail
// preserved in metadata only.
func MapProviderError(err error) error {
	if err == nil {
		return nil
	}

	code, ok := ProviderCode(err)
	if !ok {
		return ErrUnknownProvider.Clone().WithMetadata(map[string]any{
			"detail": err.Error(),
		})
	}

	if outcome, known := providerOutcomes[code]; known {
		return outcome
	}

	return ErrUnknownProvider.Clone().WithMetadata(map[string]any{
		"provider_code": code,
		"detail":        err.Error(),
	})
}

// IsDocumentMissing reports whether a store read found the collection
// reachable but the document absent.
func IsDocumentMissing(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDocumentMissing) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeDocumentMissing
	}
	return false
}
