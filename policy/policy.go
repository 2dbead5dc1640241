// Package policy holds the declarative access rules for the document store.
// The rules are pure data plus two predicates; they are evaluated by the
// store adapter, never by the reconciliation layer, mirroring rules that a
// hosted store enforces server-side.
package policy

// Actor is the principal a rule is evaluated against. A nil Actor means
// unauthenticated.
type Actor struct {
	ID   string
	Role string
}

// Rules is the declarative rule table: read allowed for any authenticated
// actor; writes to owner collections allowed for the owning actor; writes to
// business collections gated by role membership; default-deny for unlisted
// collections except the admin role.
type Rules struct {
	AdminRole string

	// OwnerCollections are keyed by the actor's own id: the owning actor may
	// write their document regardless of role.
	OwnerCollections map[string]bool

	// Write maps a collection to the roles allowed to write to it.
	Write map[string][]string
}

// Default is the CRM rule table.
func Default() Rules {
	return Rules{
		AdminRole: "admin",
		OwnerCollections: map[string]bool{
			"users": true,
		},
		Write: map[string][]string{
			"leads":      {"admin", "sales_agent"},
			"deals":      {"admin", "sales_agent"},
			"quotations": {"admin", "sales_agent", "operations_manager"},
			"jobs":       {"admin", "operations_manager", "operator"},
			"equipment":  {"admin", "operations_manager"},
			"customers":  {"admin", "sales_agent", "operations_manager"},
			"config":     {"admin"},
		},
	}
}

// AllowsRead reports whether the actor may read any collection. Reads only
// require an authenticated principal.
func (r Rules) AllowsRead(actor *Actor) bool {
	return actor != nil
}

// AllowsWrite reports whether the actor may write the given document.
func (r Rules) AllowsWrite(actor *Actor, collection, docID string) bool {
	if actor == nil {
		return false
	}

	if actor.Role == r.AdminRole {
		return true
	}

	if r.OwnerCollections[collection] && actor.ID != "" && actor.ID == docID {
		return true
	}

	for _, role := range r.Write[collection] {
		if role == actor.Role {
			return true
		}
	}

	return false
}
