// Package auth is the authentication and user-provisioning layer for the ASP
// CRM. Credential verification, token issuance and document storage are
// delegated to hosted providers consumed through capability interfaces; the
// logic that lives here is the sign-in reconciliation protocol that produces a
// single consistent UserProfile from possibly-divergent provider and store
// state.
//
// Reconciliation:
//   - SignIn authenticates against the IdentityProvider, forces a token
//     refresh, then reads the profile document. A missing document is
//     backfilled synchronously; an unreachable store degrades the sign-in to a
//     synthesized profile with a best-effort background write. Authentication
//     success is never coupled to store health.
//   - CurrentUser performs the same fallback read-only: it never writes and
//     never touches session markers.
//
// Provisioning:
//   - The Seeder creates a fixed set of demo accounts. It is idempotent
//     ("already exists" is a no-op), throttled between creations, and
//     remembers provider rate limits across restarts via a sticky flag so
//     repeated runs short-circuit instead of hammering the provider.
//
// Provider failures carry stable string codes that are mapped at the boundary
// to a closed error taxonomy; raw provider detail is kept in error metadata
// for logs and never shown to users.
package auth
