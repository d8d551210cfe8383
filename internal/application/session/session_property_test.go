package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"filmflare/internal/adapters/api"
	"filmflare/internal/domain/auth"
)

// Any interleaving of logins and logouts that ends with a logout leaves no
// user, no token and no bearer middleware behind.
func TestProperty_LogoutAlwaysSignsOut(t *testing.T) {
	srv := newServer(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("login/logout sequences end signed out",
		prop.ForAll(
			func(ops []bool) bool {
				h := newHarness(t, srv, nil, nil)
				ctx := context.Background()
				for _, login := range ops {
					if login {
						if _, err := h.manager.Login(ctx, auth.LoginRequest{Email: testEmail, Password: testPassword}); err != nil {
							return false
						}
						if !h.manager.Snapshot().IsAuthenticated {
							return false
						}
					} else {
						_ = h.manager.Logout(ctx)
					}
				}
				_ = h.manager.Logout(ctx)

				snap := h.manager.Snapshot()
				stored, _ := h.store.Load(ctx)
				return !snap.IsAuthenticated &&
					snap.User == nil &&
					!snap.Loading &&
					h.manager.currentToken() == "" &&
					stored == "" &&
					!h.manager.Client().Installed(authMiddlewareName)
			},
			gen.SliceOfN(6, gen.Bool()),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Whatever the downstream answers, a request reaches it at most twice, and
// the second attempt is the retried copy carrying the refreshed token.
func TestProperty_RetryBound(t *testing.T) {
	srv := newServer(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("a 401 is retried at most once",
		prop.ForAll(
			func(unauthorized []bool, alreadyRetried bool, path string) bool {
				h := newHarness(t, srv, nil, nil)
				h.login(t)

				var calls []api.Request
				next := api.DoerFunc(func(ctx context.Context, req api.Request) (*api.Response, error) {
					status := http.StatusOK
					if i := len(calls); i < len(unauthorized) && unauthorized[i] {
						status = http.StatusUnauthorized
					}
					calls = append(calls, req)
					return &api.Response{StatusCode: status}, nil
				})

				req := api.NewRequest(http.MethodGet, path)
				if alreadyRetried {
					req = req.AsRetry("earlier")
				}
				resp, err := h.manager.refreshOnUnauthorized(next).Do(context.Background(), req)
				if err != nil || len(calls) == 0 || len(calls) > 2 {
					return false
				}

				eligible := unauthorized[0] && !alreadyRetried && !refreshExempt[path]
				if !eligible {
					return len(calls) == 1
				}
				retry := calls[1]
				wantStatus := http.StatusOK
				if unauthorized[1] {
					wantStatus = http.StatusUnauthorized
				}
				return len(calls) == 2 &&
					retry.Retried &&
					retry.Bearer() == h.manager.currentToken() &&
					resp.StatusCode == wantStatus
			},
			gen.SliceOfN(3, gen.Bool()),
			gen.Bool(),
			gen.OneConstOf("/users/me", "/movies/1", "/movies/1/rate", PathRefresh, PathLogin),
		))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
