package catalog

import (
	"sort"
	"strings"
)

// Movie is the card-level view returned by list endpoints.
type Movie struct {
	ID            int     `json:"id"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	PosterPath    string  `json:"poster_path"`
	AvgRating     float64 `json:"avg_rating"`
}

// TrendingMovie adds the genre list and release year shown on the trending carousel.
type TrendingMovie struct {
	Movie
	Genres []string `json:"genres"`
	Year   int      `json:"year"`
}

// MovieDetail is the full record. UserRating is nil until the caller rates the movie.
type MovieDetail struct {
	Movie
	Genres     []string `json:"genres"`
	Actors     []string `json:"actors"`
	Directors  []string `json:"directors"`
	Year       int      `json:"year"`
	UserRating *int     `json:"user_rating"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// RatingRequest is posted to /movies/{id}/rate.
type RatingRequest struct {
	Rating int `json:"rating"`
}

// Validate checks the rating is within MinRating..MaxRating.
func (r RatingRequest) Validate() error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

// GenreQuery joins selected genres into the comma-separated q parameter of /movies/top_rated.
func GenreQuery(genres []string) string {
	cleaned := make([]string, 0, len(genres))
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			cleaned = append(cleaned, g)
		}
	}
	return strings.Join(cleaned, ",")
}

// SortGenres orders genres for a filter bar: selected first, then alphabetical.
func SortGenres(genres []string, selected []string) []string {
	isSelected := make(map[string]bool, len(selected))
	for _, s := range selected {
		isSelected[s] = true
	}
	out := append([]string(nil), genres...)
	sort.SliceStable(out, func(i, j int) bool {
		if isSelected[out[i]] != isSelected[out[j]] {
			return isSelected[out[i]]
		}
		return out[i] < out[j]
	})
	return out
}
