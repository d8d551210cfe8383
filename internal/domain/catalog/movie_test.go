package catalog

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestRatingRequest_Validate(t *testing.T) {
	tests := []struct {
		rating  int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{3, false},
		{5, false},
		{6, true},
		{-2, true},
	}

	for _, tt := range tests {
		err := RatingRequest{Rating: tt.rating}.Validate()
		if tt.wantErr && !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: expected ErrInvalidRating, got %v", tt.rating, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("rating %d: unexpected error %v", tt.rating, err)
		}
	}
}

func TestGenreQuery(t *testing.T) {
	if got := GenreQuery([]string{"Action", " Drama ", ""}); got != "Action,Drama" {
		t.Errorf("GenreQuery = %q", got)
	}
	if got := GenreQuery(nil); got != "" {
		t.Errorf("GenreQuery(nil) = %q", got)
	}
}

func TestSortGenres(t *testing.T) {
	genres := []string{"Drama", "Action", "Comedy", "Thriller"}
	got := SortGenres(genres, []string{"Thriller", "Comedy"})
	want := []string{"Comedy", "Thriller", "Action", "Drama"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortGenres = %v, want %v", got, want)
	}
	if genres[0] != "Drama" {
		t.Error("SortGenres must not reorder its input")
	}
}

func TestMovieDetail_DecodesEmbeddedFields(t *testing.T) {
	raw := `{"id":7,"original_title":"Heat","overview":"x","poster_path":"/p.jpg","avg_rating":4.5,
		"genres":["Crime"],"actors":["Al Pacino"],"directors":["Michael Mann"],"year":1995,"user_rating":null}`

	var d MovieDetail
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.ID != 7 || d.OriginalTitle != "Heat" || d.AvgRating != 4.5 {
		t.Errorf("Unexpected embedded movie: %+v", d.Movie)
	}
	if d.UserRating != nil {
		t.Errorf("Expected nil user rating, got %d", *d.UserRating)
	}
	if d.Year != 1995 || len(d.Directors) != 1 {
		t.Errorf("Unexpected detail: %+v", d)
	}
}
