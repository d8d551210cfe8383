package auth

import "time"

// State is the position of a session in its lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	// StateRefreshing is the silent refresh issued at startup.
	StateRefreshing
	StateAuthenticated
	// StateRefreshingInFlightRequest is a token renewal triggered by a 401 on a normal call.
	StateRefreshingInFlightRequest
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateRefreshing:
		return "refreshing"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshingInFlightRequest:
		return "refreshing_in_flight_request"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of the session handed to consumers.
type Snapshot struct {
	User            *User     `json:"user,omitempty"`
	IsAuthenticated bool      `json:"is_authenticated"`
	Loading         bool      `json:"loading"`
	State           State     `json:"state"`
	TokenExpiresAt  time.Time `json:"token_expires_at"` // zero when unknown or no token
}

// IsTokenExpired reports whether the access token's exp claim has passed.
// Tokens without a readable exp claim are never considered expired here;
// the server's 401 is authoritative.
func (s Snapshot) IsTokenExpired(now time.Time) bool {
	if s.TokenExpiresAt.IsZero() {
		return false
	}
	return now.After(s.TokenExpiresAt)
}
