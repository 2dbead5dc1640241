package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Role is a user's role in the CRM
type Role = string

const (
	// RoleAdmin has full access to every collection
	RoleAdmin Role = "admin"
	// RoleSalesAgent works leads and deals
	RoleSalesAgent Role = "sales_agent"
	// RoleOperationsManager runs quotations, jobs and equipment
	RoleOperationsManager Role = "operations_manager"
	// RoleOperator is the default field role
	RoleOperator Role = "operator"
)

// UsersCollection is the profile document collection, keyed by principal id.
const UsersCollection = "users"

// UserProfile is this system's business record for a user. ID equals the
// Principal id (1:1 by convention, not enforced by a schema). Role is mutable
// only via an explicit profile update.
type UserProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Document renders the profile in its persisted shape. createdAt is not
// included; writers stamp it with the store's server-time marker on create.
func (p *UserProfile) Document() Document {
	return Document{
		"id":    p.ID,
		"name":  p.Name,
		"email": p.Email,
		"role":  p.Role,
	}
}

// ProfileFromDocument decodes a stored users/{id} document. Stored fields are
// returned verbatim; createdAt tolerates both native and RFC 3339 encodings
// since the server-time marker round-trips differently across stores.
func ProfileFromDocument(doc Document) (*UserProfile, error) {
	if doc == nil {
		return nil, goerrors.New("cannot decode nil profile document", goerrors.CategoryBadInput).
			WithTextCode(TextCodeProfileDecode)
	}

	profile := &UserProfile{
		ID:    docString(doc, "id"),
		Name:  docString(doc, "name"),
		Email: docString(doc, "email"),
		Role:  docString(doc, "role"),
	}

	if profile.ID == "" {
		return nil, goerrors.New("profile document has no id", goerrors.CategoryBadInput).
			WithTextCode(TextCodeProfileDecode).
			WithMetadata(map[string]any{"document": doc})
	}

	switch v := doc["createdAt"].(type) {
	case time.Time:
		profile.CreatedAt = v
	case *time.Time:
		if v != nil {
			profile.CreatedAt = *v
		}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			profile.CreatedAt = ts
		}
	}

	return profile, nil
}

func docString(doc Document, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}
