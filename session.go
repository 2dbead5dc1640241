package auth

import "encoding/json"

// Client-local storage slots. The marker slots are session-scoped; an
// external session-restore listener reads them to tell an explicit user
// action apart from an incidental reload.
const (
	slotExplicitAuthAction = "explicit-auth-action"
	slotAuthenticated      = "user-authenticated-this-session"
	slotCachedProfile      = "resolved-profile-cache"

	slotMarkerOn = "true"
)

// SessionState is the explicit session-context object threaded through the
// reconciler, replacing ambient client-local globals. All writes are
// last-writer-wins with no concurrent writers in practice.
type SessionState struct {
	state  LocalState
	logger Logger
}

// NewSessionState wraps client-local storage in the marker API.
func NewSessionState(state LocalState) *SessionState {
	return &SessionState{
		state:  state,
		logger: defLogger{},
	}
}

func (s *SessionState) WithLogger(logger Logger) *SessionState {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// MarkExplicitAuthAction records that the upcoming auth transition is an
// intentional user action. Callers must set it before the provider call so
// the write happens-before any observable auth state change.
func (s *SessionState) MarkExplicitAuthAction() {
	s.state.SetItem(slotExplicitAuthAction, slotMarkerOn)
}

// ExplicitAuthAction reports whether the current auth transition was
// initiated explicitly.
func (s *SessionState) ExplicitAuthAction() bool {
	return s.state.GetItem(slotExplicitAuthAction) == slotMarkerOn
}

// MarkAuthenticated records that a session was established during this
// client session.
func (s *SessionState) MarkAuthenticated() {
	s.state.SetItem(slotAuthenticated, slotMarkerOn)
}

// IsAuthenticated reports whether a session was established during this
// client session.
func (s *SessionState) IsAuthenticated() bool {
	return s.state.GetItem(slotAuthenticated) == slotMarkerOn
}

// Clear drops all session-scoped slots, including the cached profile. Called
// on sign-out.
func (s *SessionState) Clear() {
	s.state.RemoveItem(slotExplicitAuthAction)
	s.state.RemoveItem(slotAuthenticated)
	s.state.RemoveItem(slotCachedProfile)
}

// CacheProfile persists the resolved profile to the client-side cache so a
// degraded restart can recover identity without re-querying the store.
// Best-effort: encode failures are logged, never surfaced.
func (s *SessionState) CacheProfile(profile *UserProfile) {
	if profile == nil {
		return
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		s.logger.Warn("failed to encode profile %s for local cache: %s", profile.ID, err)
		return
	}

	s.state.SetItem(slotCachedProfile, string(raw))
}

// CachedProfile returns the locally cached resolved profile, if any.
func (s *SessionState) CachedProfile() (*UserProfile, bool) {
	raw := s.state.GetItem(slotCachedProfile)
	if raw == "" {
		return nil, false
	}

	profile := &UserProfile{}
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		s.logger.Warn("failed to decode cached profile: %s", err)
		return nil, false
	}

	return profile, true
}
