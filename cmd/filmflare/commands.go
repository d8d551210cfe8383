package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"

	"filmflare/internal/application/catalog"
	"filmflare/internal/domain/auth"
	domain "filmflare/internal/domain/catalog"
)

type command func(ctx context.Context, a *app, args []string) int

var commands = map[string]command{
	"login":     loginCmd,
	"register":  registerCmd,
	"logout":    logoutCmd,
	"whoami":    whoamiCmd,
	"genres":    genresCmd,
	"trending":  trendingCmd,
	"top-rated": topRatedCmd,
	"search":    searchCmd,
	"movie":     movieCmd,
	"similar":   similarCmd,
	"rate":      rateCmd,
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// fail prints err and returns the exit code for it.
func (a *app) fail(err error) int {
	var vErr *auth.ValidationError
	if errors.As(err, &vErr) {
		names := make([]string, 0, len(vErr.Fields))
		for name := range vErr.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(a.errOut, "%s: %s\n", name, vErr.Fields[name])
		}
		return 1
	}
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		fmt.Fprintln(a.errOut, authErr.Message)
		return 1
	}
	fmt.Fprintln(a.errOut, err)
	return 1
}

func loginCmd(ctx context.Context, a *app, args []string) int {
	fs := a.flags("login")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := a.session.Login(ctx, auth.LoginRequest{Email: *email, Password: *password}); err != nil {
		return a.fail(err)
	}
	return printSignedIn(a)
}

func registerCmd(ctx context.Context, a *app, args []string) int {
	fs := a.flags("register")
	var form auth.RegisterForm
	fs.StringVar(&form.Name, "name", "", "Full name")
	fs.StringVar(&form.Email, "email", "", "Account email")
	fs.StringVar(&form.Password, "password", "", "Password")
	fs.StringVar(&form.ConfirmPassword, "confirm", "", "Password confirmation")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := a.session.Register(ctx, form); err != nil {
		return a.fail(err)
	}
	return printSignedIn(a)
}

func printSignedIn(a *app) int {
	snap := a.session.Snapshot()
	if !snap.IsAuthenticated {
		fmt.Fprintln(a.errOut, "signed in, but the profile could not be loaded")
		return 1
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", snap.User.Name)
	return 0
}

func logoutCmd(ctx context.Context, a *app, args []string) int {
	err := a.session.Logout(ctx)
	if a.jar != nil {
		if clearErr := a.jar.Clear(); clearErr != nil {
			log.Warn().Err(clearErr).Msg("failed to clear cookie file")
		}
	}
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, "Signed out")
	return 0
}

func whoamiCmd(ctx context.Context, a *app, args []string) int {
	snap := a.session.Snapshot()
	if !snap.IsAuthenticated {
		fmt.Fprintln(a.out, "Not signed in")
		return 1
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name\t%s\n", snap.User.Name)
	if snap.User.ProfilePic != nil {
		fmt.Fprintf(w, "Picture\t%s\n", *snap.User.ProfilePic)
	}
	if !snap.TokenExpiresAt.IsZero() {
		fmt.Fprintf(w, "Token expires\t%s\n", snap.TokenExpiresAt.Local().Format(time.RFC3339))
	}
	w.Flush()
	return 0
}

func genresCmd(ctx context.Context, a *app, args []string) int {
	fs := a.flags("genres")
	selectedFlag := fs.String("selected", "", "Comma-separated genres to list first")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	genres, err := a.catalog.Genres(ctx)
	if err != nil {
		return a.fail(err)
	}

	selected := make(map[string]bool)
	var names []string
	for _, g := range strings.Split(*selectedFlag, ",") {
		if g = strings.TrimSpace(g); g != "" {
			selected[g] = true
			names = append(names, g)
		}
	}
	for _, g := range domain.SortGenres(genres, names) {
		mark := " "
		if selected[g] {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %s\n", mark, g)
	}
	return 0
}

func trendingCmd(ctx context.Context, a *app, args []string) int {
	movies, err := a.catalog.Trending(ctx)
	if err != nil {
		return a.fail(err)
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tYEAR\tRATING\tGENRES")
	for _, m := range movies {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.1f\t%s\n", m.ID, m.OriginalTitle, m.Year, m.AvgRating, strings.Join(m.Genres, ", "))
	}
	w.Flush()
	return 0
}

func topRatedCmd(ctx context.Context, a *app, args []string) int {
	fs := a.flags("top-rated")
	genre := fs.String("genre", "", "Comma-separated genres to filter by")
	pages := fs.Int("pages", 1, "Number of pages to load")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var genres []string
	if *genre != "" {
		genres = strings.Split(*genre, ",")
	}
	return a.printPages(ctx, a.catalog.TopRatedPager(genres), *pages)
}

func searchCmd(ctx context.Context, a *app, args []string) int {
	fs := a.flags("search")
	q := fs.String("q", "", "Title or person to search for")
	pages := fs.Int("pages", 1, "Number of pages to load")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*q) == "" {
		return a.fail(domain.ErrEmptyQuery)
	}
	return a.printPages(ctx, a.catalog.SearchPager(*q), *pages)
}

func (a *app) printPages(ctx context.Context, p *catalog.Pager, pages int) int {
	for i := 0; i < pages && p.HasMore(); i++ {
		if _, err := p.Next(ctx); err != nil {
			return a.fail(err)
		}
	}
	printMovies(a, p.Items())
	return 0
}

func printMovies(a *app, movies []domain.Movie) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRATING")
	for _, m := range movies {
		fmt.Fprintf(w, "%d\t%s\t%.1f\n", m.ID, m.OriginalTitle, m.AvgRating)
	}
	w.Flush()
}

func printDetail(a *app, m *domain.MovieDetail) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Title\t%s (%d)\n", m.OriginalTitle, m.Year)
	fmt.Fprintf(w, "Genres\t%s\n", strings.Join(m.Genres, ", "))
	fmt.Fprintf(w, "Directors\t%s\n", strings.Join(m.Directors, ", "))
	fmt.Fprintf(w, "Cast\t%s\n", strings.Join(m.Actors, ", "))
	fmt.Fprintf(w, "Rating\t%.1f\n", m.AvgRating)
	if m.UserRating != nil {
		fmt.Fprintf(w, "Your rating\t%d\n", *m.UserRating)
	}
	fmt.Fprintf(w, "Overview\t%s\n", m.Overview)
	w.Flush()
}

func movieIDFlag(a *app, name string, args []string, extra func(fs *flag.FlagSet)) (int, bool) {
	fs := a.flags(name)
	id := fs.Int("id", 0, "Movie id")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return 0, false
	}
	return *id, true
}

func movieCmd(ctx context.Context, a *app, args []string) int {
	id, ok := movieIDFlag(a, "movie", args, nil)
	if !ok {
		return 2
	}
	m, err := a.catalog.Movie(ctx, id)
	if err != nil {
		return a.fail(err)
	}
	printDetail(a, m)
	return 0
}

func similarCmd(ctx context.Context, a *app, args []string) int {
	id, ok := movieIDFlag(a, "similar", args, nil)
	if !ok {
		return 2
	}
	movies, err := a.catalog.Similar(ctx, id)
	if err != nil {
		return a.fail(err)
	}
	printMovies(a, movies)
	return 0
}

func rateCmd(ctx context.Context, a *app, args []string) int {
	var rating int
	id, ok := movieIDFlag(a, "rate", args, func(fs *flag.FlagSet) {
		fs.IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	})
	if !ok {
		return 2
	}
	m, err := a.catalog.Rate(ctx, id, rating)
	if err != nil {
		return a.fail(err)
	}
	printDetail(a, m)
	return 0
}
