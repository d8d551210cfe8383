package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"filmflare/internal/adapters/api"
	"filmflare/internal/domain/auth"
)

const (
	authMiddlewareName    = "auth"
	refreshMiddlewareName = "refresh"
)

// Credential exchanges answer 401 for bad credentials, not for an expired
// token, and the refresh call must never refresh itself.
var refreshExempt = map[string]bool{
	PathRefresh:  true,
	PathLogin:    true,
	PathRegister: true,
}

// bearer attaches token to every request that is neither a retry nor
// ambient-only.
func bearer(token string) api.Middleware {
	return func(next api.Doer) api.Doer {
		return api.DoerFunc(func(ctx context.Context, req api.Request) (*api.Response, error) {
			if !req.Retried && !req.SkipAuth {
				req = req.WithBearer(token)
			}
			return next.Do(ctx, req)
		})
	}
}

// errSessionChanged means the session was cleared or replaced while a
// refresh was in flight, so its token was dropped.
var errSessionChanged = errors.New("session changed during refresh")

// refreshOnUnauthorized repairs a 401 with exactly one refresh and one
// resend. If the refresh fails the original 401 is handed back.
func (m *Manager) refreshOnUnauthorized(next api.Doer) api.Doer {
	return api.DoerFunc(func(ctx context.Context, req api.Request) (*api.Response, error) {
		resp, err := next.Do(ctx, req)
		if err != nil || resp.StatusCode != http.StatusUnauthorized || req.Retried || refreshExempt[req.Path] {
			return resp, err
		}

		token, refreshErr := m.reactiveRefresh(ctx)
		if refreshErr != nil {
			log.Debug().Err(refreshErr).Str("path", req.Path).Msg("refresh after 401 failed; not retrying")
			return resp, nil
		}

		retryResp, retryErr := next.Do(ctx, req.AsRetry(token))
		// A new token gets its profile resolved, unless this request is the
		// profile call or the new token was rejected as well.
		accepted := retryErr == nil && retryResp.StatusCode != http.StatusUnauthorized
		if accepted && ctx.Value(profileCallKey{}) == nil && m.claimProfile() {
			m.resolveProfile(context.WithoutCancel(ctx))
		}
		return retryResp, retryErr
	})
}

// reactiveRefresh coalesces concurrent 401s onto one refresh call. The new
// token is installed before any caller resends; a failed refresh signs the
// session out. The shared call does not inherit the first caller's
// cancellation, and each caller stops waiting on its own context. Neither
// outcome is applied when the session changed while the call was out.
func (m *Manager) reactiveRefresh(ctx context.Context) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := m.refreshGroup.DoChan(PathRefresh, func() (interface{}, error) {
		gen := m.generation()
		m.setState(auth.StateRefreshingInFlightRequest)
		token, err := m.refresh(flightCtx)
		if err != nil {
			if m.clearSessionIf(flightCtx, gen) {
				log.Debug().Err(err).Msg("refresh failed; signed out")
			}
			return "", err
		}
		if !m.setTokenIf(flightCtx, token, gen) {
			return "", errSessionChanged
		}
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server stays the authority on validity.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
