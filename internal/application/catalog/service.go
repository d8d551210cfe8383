package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"filmflare/internal/adapters/api"
	"filmflare/internal/domain/catalog"
	"filmflare/internal/ports"
)

// Service wraps the movie endpoints. It shares the session's api.Client, so
// authorization and token repair happen underneath it.
type Service struct {
	client   *api.Client
	guard    ports.SessionGuardPort
	notifier ports.NotifierPort
}

// NewService creates a new catalog service
func NewService(client *api.Client, guard ports.SessionGuardPort, notifier ports.NotifierPort) *Service {
	return &Service{client: client, guard: guard, notifier: notifier}
}

// Genres lists every genre name.
func (s *Service) Genres(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.client.DoJSON(ctx, http.MethodGet, "/movies/genres", nil, &out); err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return out, nil
}

// Trending lists the trending carousel.
func (s *Service) Trending(ctx context.Context) ([]catalog.TrendingMovie, error) {
	var out []catalog.TrendingMovie
	if err := s.client.DoJSON(ctx, http.MethodGet, "/movies/trending", nil, &out); err != nil {
		return nil, fmt.Errorf("list trending movies: %w", err)
	}
	return out, nil
}

// TopRated returns one page of top rated movies, optionally restricted to genres.
func (s *Service) TopRated(ctx context.Context, genres []string, limit, offset int) ([]catalog.Movie, error) {
	if limit <= 0 || offset < 0 {
		return nil, catalog.ErrInvalidPage
	}
	q := pageQuery(limit, offset)
	if joined := catalog.GenreQuery(genres); joined != "" {
		q.Set("q", joined)
	}
	return s.list(ctx, "/movies/top_rated", q)
}

// Search returns one page of movies matching a title or person.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]catalog.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, catalog.ErrEmptyQuery
	}
	if limit <= 0 || offset < 0 {
		return nil, catalog.ErrInvalidPage
	}
	q := pageQuery(limit, offset)
	q.Set("q", query)
	return s.list(ctx, "/movies/search", q)
}

// Movie returns the full record, including the caller's own rating.
func (s *Service) Movie(ctx context.Context, id int) (*catalog.MovieDetail, error) {
	if id <= 0 {
		return nil, catalog.ErrInvalidMovieID
	}
	if err := s.guard.RequireAuth("view movie details"); err != nil {
		return nil, err
	}
	return s.detail(ctx, id)
}

// Similar lists movies related to id.
func (s *Service) Similar(ctx context.Context, id int) ([]catalog.Movie, error) {
	if id <= 0 {
		return nil, catalog.ErrInvalidMovieID
	}
	if err := s.guard.RequireAuth("browse similar movies"); err != nil {
		return nil, err
	}
	return s.list(ctx, fmt.Sprintf("/movies/%d/similar", id), nil)
}

// Rate submits the caller's rating and returns the refreshed detail.
func (s *Service) Rate(ctx context.Context, id, rating int) (*catalog.MovieDetail, error) {
	if id <= 0 {
		return nil, catalog.ErrInvalidMovieID
	}
	req := catalog.RatingRequest{Rating: rating}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.guard.RequireAuth("rate movies"); err != nil {
		return nil, err
	}

	if err := s.client.DoJSON(ctx, http.MethodPost, fmt.Sprintf("/movies/%d/rate", id), req, nil); err != nil {
		s.notifier.Error("Rating failed", api.Message(err, "Rating failed."))
		return nil, fmt.Errorf("rate movie %d: %w", id, err)
	}
	log.Debug().Int("movie_id", id).Int("rating", rating).Msg("rating submitted")

	return s.detail(ctx, id)
}

func (s *Service) detail(ctx context.Context, id int) (*catalog.MovieDetail, error) {
	var out catalog.MovieDetail
	if err := s.client.DoJSON(ctx, http.MethodGet, fmt.Sprintf("/movies/%d", id), nil, &out); err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}
	return &out, nil
}

func (s *Service) list(ctx context.Context, path string, q url.Values) ([]catalog.Movie, error) {
	req := api.NewRequest(http.MethodGet, path)
	if len(q) > 0 {
		req = req.WithQuery(q)
	}
	var out []catalog.Movie
	if err := s.client.Call(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return out, nil
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}
