package api

import (
	"net/http"
	"net/url"
	"testing"
)

func TestRequest_AsRetryDoesNotMutateOriginal(t *testing.T) {
	original := NewRequest(http.MethodGet, "/users/me").WithBearer("old")
	retry := original.AsRetry("xyz789")

	if original.Retried {
		t.Error("original must not be marked as retried")
	}
	if got := original.Bearer(); got != "old" {
		t.Errorf("original bearer changed to %q", got)
	}
	if !retry.Retried {
		t.Error("retry must be marked as retried")
	}
	if got := retry.Header.Get("Authorization"); got != "Bearer xyz789" {
		t.Errorf("unexpected retry header %q", got)
	}
}

func TestRequest_WithQueryCopies(t *testing.T) {
	q := url.Values{"q": {"Action"}}
	req := NewRequest("", "movies/top_rated").WithQuery(q)
	q.Set("q", "Drama")

	if req.Query.Get("q") != "Action" {
		t.Errorf("query shares state with caller: %v", req.Query)
	}
	if req.Method != http.MethodGet || req.Path != "/movies/top_rated" {
		t.Errorf("unexpected defaults: %s", req)
	}
}

func TestRequest_Ambient(t *testing.T) {
	req := NewRequest(http.MethodPost, "/auth/refresh")
	if req.SkipAuth {
		t.Error("requests carry auth by default")
	}
	if !req.Ambient().SkipAuth {
		t.Error("expected Ambient to set SkipAuth")
	}
}

func TestRequest_BearerWithoutHeader(t *testing.T) {
	if got := NewRequest(http.MethodGet, "/").Bearer(); got != "" {
		t.Errorf("expected empty bearer, got %q", got)
	}
}
