package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"filmflare/internal/adapters/api"
	"filmflare/internal/domain/auth"
	"filmflare/internal/ports"
)

// Auth API paths
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathRefresh  = "/auth/refresh"
	PathLogout   = "/auth/logout"
	PathMe       = "/users/me"
)

// Manager owns the authentication session: access token, user profile and
// loading state. It installs its middleware on the shared api.Client, so every
// consumer of that client is authorized and repaired transparently.
type Manager struct {
	client   *api.Client
	store    ports.TokenStorePort
	notifier ports.NotifierPort

	refreshGroup singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	user      *auth.User
	state     auth.State
	loading   int
	// gen advances on every token change; work started under an older gen
	// must not write the session.
	gen uint64
	// profileFor is the token whose profile was last fetched or claimed.
	profileFor string

	obsMu     sync.Mutex
	observers map[int]func(auth.Snapshot)
	nextObs   int
}

// NewManager creates the session for client and installs the 401
// refresh-and-retry middleware. The bearer middleware is installed only
// while a token is held.
func NewManager(client *api.Client, store ports.TokenStorePort, notifier ports.NotifierPort) *Manager {
	m := &Manager{
		client:    client,
		store:     store,
		notifier:  notifier,
		state:     auth.StateUnauthenticated,
		observers: make(map[int]func(auth.Snapshot)),
	}
	client.Use(refreshMiddlewareName, m.refreshOnUnauthorized)
	return m
}

// Client returns the shared API client.
func (m *Manager) Client() *api.Client {
	return m.client
}

// Start restores the session. A token kept for this browsing session is
// adopted as-is; otherwise a silent refresh is attempted with the ambient
// cookie. Failures are never surfaced: the session simply stays
// unauthenticated.
func (m *Manager) Start(ctx context.Context) {
	token, err := m.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read session token store")
	}
	if token != "" {
		log.Debug().Msg("restored session token")
		m.setToken(ctx, token)
		m.resolveProfile(ctx)
		return
	}

	gen := m.generation()
	m.beginLoading(auth.StateRefreshing)
	token, err = m.refresh(ctx)
	m.endLoading()
	if err != nil {
		log.Debug().Err(err).Msg("silent refresh found no session")
		m.clearSessionIf(ctx, gen)
		return
	}
	if !m.setTokenIf(ctx, token, gen) {
		log.Debug().Msg("session changed during silent refresh; dropping its token")
		return
	}
	m.resolveProfile(ctx)
}

// Snapshot returns a read-only copy of the session.
func (m *Manager) Snapshot() auth.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// TokenExpiry returns the exp claim of the current token, zero when there
// is no token or it carries no readable claim.
func (m *Manager) TokenExpiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function unsubscribes.
func (m *Manager) Subscribe(fn func(auth.Snapshot)) func() {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// Login exchanges credentials for a token and resolves the profile.
func (m *Manager) Login(ctx context.Context, creds auth.LoginRequest) (*auth.AuthResponse, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return m.signIn(ctx, signInCall{
		op:           "login",
		path:         PathLogin,
		body:         creds,
		successTitle: "Welcome Back",
		successDesc:  "You have been signed in successfully.",
		failTitle:    "Login failed",
		fallback:     "Login failed.",
	})
}

// Register creates the account, then behaves like Login.
func (m *Manager) Register(ctx context.Context, form auth.RegisterForm) (*auth.AuthResponse, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	return m.signIn(ctx, signInCall{
		op:           "register",
		path:         PathRegister,
		body:         form.Request(),
		successTitle: "Account Created",
		successDesc:  "You have been registered successfully.",
		failTitle:    "Registration failed",
		fallback:     "Registration failed.",
	})
}

// Logout tells the server to drop the session, then clears local state no
// matter what the server said.
func (m *Manager) Logout(ctx context.Context) error {
	m.beginLoading(keepState)
	defer m.endLoading()

	err := m.client.DoJSON(ctx, http.MethodPost, PathLogout, struct{}{}, nil)
	m.clearSession(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("server logout failed")
		return &auth.AuthError{Op: "logout", Message: api.Message(err, "Logout failed."), Err: err}
	}
	m.notifier.Success("Logged out", "You have been logged out successfully.")
	return nil
}

// RequireAuth guards actions that need a signed-in user.
func (m *Manager) RequireAuth(action string) error {
	if m.Snapshot().IsAuthenticated {
		return nil
	}
	m.notifier.Error("Please login first", "Log in to "+action+".")
	return auth.ErrNotAuthenticated
}

type signInCall struct {
	op           string
	path         string
	body         interface{}
	successTitle string
	successDesc  string
	failTitle    string
	fallback     string
}

func (m *Manager) signIn(ctx context.Context, call signInCall) (*auth.AuthResponse, error) {
	m.beginLoading(keepState)
	defer m.endLoading()

	var resp auth.AuthResponse
	err := m.client.DoJSON(ctx, http.MethodPost, call.path, call.body, &resp)
	if err == nil && resp.AccessToken == "" {
		err = auth.ErrEmptyToken
	}
	if err != nil {
		msg := api.Message(err, call.fallback)
		m.notifier.Error(call.failTitle, msg)
		return nil, &auth.AuthError{Op: call.op, Message: msg, Err: err}
	}

	m.setToken(ctx, resp.AccessToken)
	m.resolveProfile(ctx)
	m.notifier.Success(call.successTitle, call.successDesc)
	return &resp, nil
}

// resolveProfile turns the current token into a user. A token that cannot
// be resolved is dropped.
func (m *Manager) resolveProfile(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	m.profileFor = token
	m.mu.Unlock()
	if token == "" {
		return
	}
	m.beginLoading(keepState)
	defer m.endLoading()

	var user auth.User
	ctx = context.WithValue(ctx, profileCallKey{}, true)
	if err := m.client.DoJSON(ctx, http.MethodGet, PathMe, nil, &user); err != nil {
		log.Debug().Err(err).Msg("profile resolution failed; clearing session")
		m.clearSession(ctx)
		return
	}

	m.update(func() {
		if m.token == "" {
			return
		}
		m.user = &user
		m.profileFor = m.token
		m.state = auth.StateAuthenticated
	})
}

// profileCallKey marks the context of a profile resolution, whose own 401
// repair must not start another one.
type profileCallKey struct{}

// claimProfile reports whether the current token still needs its profile
// fetched, and claims it so concurrent callers fetch it once.
func (m *Manager) claimProfile() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || m.profileFor == m.token {
		return false
	}
	m.profileFor = m.token
	return true
}

// refresh calls the refresh endpoint with the ambient cookie only.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	resp, err := m.client.Do(ctx, api.NewRequest(http.MethodPost, PathRefresh).Ambient())
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusNoContent {
		return "", auth.ErrNoSession
	}
	if err := api.StatusError("refresh", resp); err != nil {
		return "", err
	}
	var out auth.AuthResponse
	if err := resp.Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", auth.ErrEmptyToken
	}
	return out.AccessToken, nil
}

// setToken installs token, the bearer middleware and the session store
// entry in one update.
func (m *Manager) setToken(ctx context.Context, token string) {
	m.update(func() { m.setTokenLocked(ctx, token) })
}

// setTokenIf is setToken for work started at gen. It reports false, and
// leaves the session alone, when the token changed in the meantime.
func (m *Manager) setTokenIf(ctx context.Context, token string, gen uint64) bool {
	applied := false
	m.update(func() {
		if m.gen != gen {
			return
		}
		m.setTokenLocked(ctx, token)
		applied = true
	})
	return applied
}

func (m *Manager) setTokenLocked(ctx context.Context, token string) {
	m.gen++
	m.token = token
	m.expiresAt = tokenExpiry(token)
	m.state = auth.StateAuthenticated
	m.client.Use(authMiddlewareName, bearer(token))
	if err := m.store.Save(ctx, token); err != nil {
		log.Warn().Err(err).Msg("failed to save session token")
	}
}

// clearSession drops token and user together and tears down the bearer
// middleware before any later request can pick it up.
func (m *Manager) clearSession(ctx context.Context) {
	m.update(func() { m.clearLocked(ctx) })
}

// clearSessionIf is clearSession for work started at gen.
func (m *Manager) clearSessionIf(ctx context.Context, gen uint64) bool {
	applied := false
	m.update(func() {
		if m.gen != gen {
			return
		}
		m.clearLocked(ctx)
		applied = true
	})
	return applied
}

func (m *Manager) clearLocked(ctx context.Context) {
	m.gen++
	m.token = ""
	m.profileFor = ""
	m.expiresAt = time.Time{}
	m.user = nil
	m.state = auth.StateUnauthenticated
	m.client.Remove(authMiddlewareName)
	if err := m.store.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to clear session token")
	}
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// keepState leaves the lifecycle state alone in beginLoading.
const keepState auth.State = -1

// beginLoading marks a session operation in flight.
func (m *Manager) beginLoading(state auth.State) {
	m.update(func() {
		m.loading++
		if state != keepState {
			m.state = state
		}
	})
}

func (m *Manager) endLoading() {
	m.update(func() {
		if m.loading > 0 {
			m.loading--
		}
	})
}

func (m *Manager) setState(state auth.State) {
	m.update(func() { m.state = state })
}

func (m *Manager) currentToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// update applies fn under the lock, then notifies observers outside it.
func (m *Manager) update(fn func()) {
	m.mu.Lock()
	fn()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.obsMu.Lock()
	observers := make([]func(auth.Snapshot), 0, len(m.observers))
	for _, o := range m.observers {
		observers = append(observers, o)
	}
	m.obsMu.Unlock()

	for _, o := range observers {
		o(snap)
	}
}

func (m *Manager) snapshotLocked() auth.Snapshot {
	snap := auth.Snapshot{
		IsAuthenticated: m.user != nil,
		Loading:         m.loading > 0,
		State:           m.state,
		TokenExpiresAt:  m.expiresAt,
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}
