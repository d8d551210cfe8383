package ports

import "context"

// TokenStorePort keeps the access token for the current browsing session only.
// Implementations must not outlive that session (memory, or a store entry with a TTL).
type TokenStorePort interface {
	// Load returns "" when no token is stored.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// NotifierPort defines capability to show a transient user-facing message.
type NotifierPort interface {
	Success(title, description string)
	Error(title, description string)
}

// SessionGuardPort defines capability to refuse actions that need a signed-in user.
type SessionGuardPort interface {
	RequireAuth(action string) error
}
