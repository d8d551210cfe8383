// Package apitest runs an in-process movie API with cookie refresh sessions,
// for exercising clients end to end.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RefreshCookie is the name of the ambient refresh credential.
const RefreshCookie = "refresh_token"

const (
	userContextKey = "email"
	accessTokenTTL = 15 * time.Minute
)

// Recorded is one request as the server saw it.
type Recorded struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	HasCookie     bool
}

type account struct {
	name       string
	email      string
	hash       []byte
	profilePic *string
}

type movie struct {
	ID        int      `json:"id"`
	Title     string   `json:"original_title"`
	Overview  string   `json:"overview"`
	Poster    string   `json:"poster_path"`
	AvgRating float64  `json:"avg_rating"`
	Genres    []string `json:"genres"`
	Year      int      `json:"year"`
	Actors    []string `json:"actors"`
	Directors []string `json:"directors"`
}

// Server is the fake backend. Knob methods are safe to call while requests
// are in flight.
type Server struct {
	*httptest.Server

	secret []byte

	mu       sync.Mutex
	users    map[string]*account    // email -> account
	tokens   map[string]string      // access token -> email
	sessions map[string]string      // refresh id -> email
	ratings  map[string]map[int]int // email -> movie id -> rating
	movies   []movie
	issued   []string        // queued access tokens to hand out next
	rejected map[string]bool // tokens answered with 401
	requests []Recorded

	refreshStatus int
	refreshBroken bool
	refreshDelay  time.Duration
	profileStatus int
	rateStatus    int
	forced        map[string]int // path -> remaining forced 401s
}

// New starts a server with the movie fixtures loaded and no users.
func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		secret:   []byte(uuid.NewString()),
		users:    make(map[string]*account),
		tokens:   make(map[string]string),
		sessions: make(map[string]string),
		ratings:  make(map[string]map[int]int),
		rejected: make(map[string]bool),
		forced:   make(map[string]int),
		movies:   fixtures(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(s.record)
	s.routes(r)

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) routes(r *gin.Engine) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", s.login)
		authGroup.POST("/register", s.register)
		authGroup.POST("/refresh", s.refresh)
		authGroup.POST("/logout", s.requireAuth, s.logout)
	}
	r.GET("/users/me", s.requireAuth, s.me)

	movies := r.Group("/movies")
	{
		movies.GET("/genres", s.genres)
		movies.GET("/trending", s.trending)
		movies.GET("/top_rated", s.topRated)
		movies.GET("/search", s.search)
		movies.GET("/:id", s.optionalAuth, s.movie)
		movies.GET("/:id/similar", s.similar)
		movies.POST("/:id/rate", s.requireAuth, s.rate)
	}
}

// AddUser creates an account.
func (s *Server) AddUser(name, email, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("apitest: hash password: %v", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = &account{name: name, email: email, hash: hash}
}

// IssueTokens queues literal access tokens; each login, register or refresh
// hands out the next one instead of a signed JWT.
func (s *Server) IssueTokens(tokens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = append(s.issued, tokens...)
}

// ExpireToken makes every later request bearing token fail with 401.
func (s *Server) ExpireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[token] = true
}

// FailRefresh answers /auth/refresh with status; 0 restores normal behavior.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// BreakRefresh drops the connection on /auth/refresh, a transport failure
// for the caller.
func (s *Server) BreakRefresh(broken bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshBroken = broken
}

// ForceUnauthorized answers the next n authenticated requests to path with
// 401, whatever token they carry.
func (s *Server) ForceUnauthorized(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[path] = n
}

// SlowRefresh delays every refresh response by d. The token is issued
// before the delay.
func (s *Server) SlowRefresh(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// FailProfile answers /users/me with status after authentication; 0
// restores normal behavior.
func (s *Server) FailProfile(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileStatus = status
}

// FailRate answers rating submissions with status; 0 restores normal behavior.
func (s *Server) FailRate(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateStatus = status
}

// Requests returns everything received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recorded, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests hit path.
func (s *Server) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Sessions returns the number of live refresh sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Rating returns what email rated movie id, 0 when unrated.
func (s *Server) Rating(email string, id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratings[email][id]
}

func (s *Server) record(c *gin.Context) {
	_, cookieErr := c.Request.Cookie(RefreshCookie)
	rec := Recorded{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Query:         c.Request.URL.RawQuery,
		Authorization: c.GetHeader("Authorization"),
		RequestID:     c.GetHeader("X-Request-ID"),
		HasCookie:     cookieErr == nil,
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()
	c.Next()
}

// issueLocked hands out the next queued token or a fresh signed one.
func (s *Server) issueLocked(email string) (string, error) {
	var token string
	if len(s.issued) > 0 {
		token = s.issued[0]
		s.issued = s.issued[1:]
	} else {
		claims := jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
		if err != nil {
			return "", err
		}
		token = signed
	}
	s.tokens[token] = email
	return token, nil
}

// startSession issues the access token and sets the refresh cookie.
func (s *Server) startSession(c *gin.Context, email string) {
	s.mu.Lock()
	token, err := s.issueLocked(email)
	refreshID := uuid.NewString()
	s.sessions[refreshID] = email
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookie,
		Value:    refreshID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": token})
}

// authenticate resolves the bearer token to an email.
func (s *Server) authenticate(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	token := parts[1]

	s.mu.Lock()
	email, ok := s.tokens[token]
	rejected := s.rejected[token]
	s.mu.Unlock()
	if !ok || rejected {
		return "", false
	}

	if strings.Count(token, ".") == 2 {
		_, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(email))
		if err != nil {
			return "", false
		}
	}
	return email, true
}

func (s *Server) requireAuth(c *gin.Context) {
	s.mu.Lock()
	forced := s.forced[c.Request.URL.Path] > 0
	if forced {
		s.forced[c.Request.URL.Path]--
	}
	s.mu.Unlock()
	if forced {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token expired"})
		return
	}

	email, ok := s.authenticate(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}
	c.Set(userContextKey, email)
	c.Next()
}

func (s *Server) optionalAuth(c *gin.Context) {
	if c.GetHeader("Authorization") == "" {
		c.Next()
		return
	}
	s.requireAuth(c)
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}

	s.mu.Lock()
	acc, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect email or password"})
		return
	}
	s.startSession(c, acc.email)
}

func (s *Server) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}

	s.mu.Lock()
	_, exists := s.users[req.Email]
	s.mu.Unlock()
	if exists {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already registered"})
		return
	}
	s.AddUser(req.Name, req.Email, req.Password)
	s.startSession(c, req.Email)
}

func (s *Server) refresh(c *gin.Context) {
	s.mu.Lock()
	status, broken, delay := s.refreshStatus, s.refreshBroken, s.refreshDelay
	s.mu.Unlock()

	// The outcome is settled on arrival; only the answer is delayed.
	wait := func() {
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	if broken {
		wait()
		if hj, ok := c.Writer.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				c.Abort()
				return
			}
		}
	}
	if status != 0 {
		wait()
		c.JSON(status, gin.H{"detail": "Refresh rejected"})
		return
	}

	cookie, err := c.Cookie(RefreshCookie)
	if err != nil {
		wait()
		c.Status(http.StatusNoContent)
		return
	}
	s.mu.Lock()
	email, ok := s.sessions[cookie]
	var token string
	if ok {
		token, err = s.issueLocked(email)
	}
	s.mu.Unlock()
	wait()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": token})
}

func (s *Server) logout(c *gin.Context) {
	if cookie, err := c.Cookie(RefreshCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie)
		s.mu.Unlock()
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: RefreshCookie, Value: "", Path: "/", MaxAge: -1})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) me(c *gin.Context) {
	email := c.GetString(userContextKey)
	s.mu.Lock()
	status := s.profileStatus
	acc := s.users[email]
	s.mu.Unlock()

	if status != 0 {
		c.JSON(status, gin.H{"detail": "Profile unavailable"})
		return
	}
	if acc == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
		return
	}
	body := gin.H{"name": acc.name}
	if acc.profilePic != nil {
		body["profilePic"] = *acc.profilePic
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) genres(c *gin.Context) {
	seen := make(map[string]bool)
	var out []string
	for _, m := range s.movies {
		for _, g := range m.Genres {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	sort.Strings(out)
	c.JSON(http.StatusOK, out)
}

func (s *Server) trending(c *gin.Context) {
	out := make([]gin.H, 0, 5)
	for _, m := range s.movies[:5] {
		out = append(out, gin.H{
			"id": m.ID, "original_title": m.Title, "overview": m.Overview,
			"poster_path": m.Poster, "avg_rating": m.AvgRating,
			"genres": m.Genres, "year": m.Year,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) topRated(c *gin.Context) {
	var wanted []string
	if q := c.Query("q"); q != "" {
		wanted = strings.Split(q, ",")
	}
	var out []movie
	for _, m := range s.movies {
		if len(wanted) == 0 || sharesGenre(m.Genres, wanted) {
			out = append(out, m)
		}
	}
	c.JSON(http.StatusOK, summaries(paginate(c, out)))
}

func (s *Server) search(c *gin.Context) {
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if q == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "Query must not be empty"}}})
		return
	}
	var out []movie
	for _, m := range s.movies {
		if strings.Contains(strings.ToLower(m.Title), q) || containsFold(m.Actors, q) || containsFold(m.Directors, q) {
			out = append(out, m)
		}
	}
	c.JSON(http.StatusOK, summaries(paginate(c, out)))
}

func (s *Server) movie(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	body := gin.H{
		"id": m.ID, "original_title": m.Title, "overview": m.Overview,
		"poster_path": m.Poster, "avg_rating": m.AvgRating,
		"genres": m.Genres, "year": m.Year, "actors": m.Actors, "directors": m.Directors,
	}
	if email := c.GetString(userContextKey); email != "" {
		s.mu.Lock()
		if r, rated := s.ratings[email][m.ID]; rated {
			body["user_rating"] = r
		}
		s.mu.Unlock()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) similar(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	var out []movie
	for _, other := range s.movies {
		if other.ID != m.ID && sharesGenre(other.Genres, m.Genres) {
			out = append(out, other)
		}
		if len(out) == 6 {
			break
		}
	}
	c.JSON(http.StatusOK, summaries(out))
}

func (s *Server) rate(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	var req struct {
		Rating int `json:"rating" binding:"required,min=1,max=5"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "Rating must be between 1 and 5"}}})
		return
	}

	email := c.GetString(userContextKey)
	s.mu.Lock()
	status := s.rateStatus
	if status == 0 {
		if s.ratings[email] == nil {
			s.ratings[email] = make(map[int]int)
		}
		s.ratings[email][m.ID] = req.Rating
	}
	s.mu.Unlock()

	if status != 0 {
		c.JSON(status, gin.H{"message": "Rating service unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) lookup(c *gin.Context) (movie, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err == nil {
		for _, m := range s.movies {
			if m.ID == id {
				return m, true
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Movie not found"})
	return movie{}, false
}

func paginate(c *gin.Context, in []movie) []movie {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	if offset >= len(in) {
		return nil
	}
	end := offset + limit
	if end > len(in) {
		end = len(in)
	}
	return in[offset:end]
}

func summaries(in []movie) []gin.H {
	out := make([]gin.H, 0, len(in))
	for _, m := range in {
		out = append(out, gin.H{
			"id": m.ID, "original_title": m.Title, "overview": m.Overview,
			"poster_path": m.Poster, "avg_rating": m.AvgRating,
		})
	}
	return out
}

func sharesGenre(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}

func containsFold(list []string, q string) bool {
	for _, v := range list {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// FixtureCount is the number of movies the server knows.
const FixtureCount = 30

var fixtureGenres = []string{"Action", "Comedy", "Drama"}

func fixtures() []movie {
	out := make([]movie, 0, FixtureCount)
	for i := 1; i <= FixtureCount; i++ {
		out = append(out, movie{
			ID:        i,
			Title:     fmt.Sprintf("Movie %02d", i),
			Overview:  fmt.Sprintf("Overview of movie %d.", i),
			Poster:    fmt.Sprintf("/posters/%d.jpg", i),
			AvgRating: 5 - float64(i-1)*0.1,
			Genres:    []string{fixtureGenres[(i-1)%len(fixtureGenres)]},
			Year:      1990 + i,
			Actors:    []string{fmt.Sprintf("Actor %d", i)},
			Directors: []string{fmt.Sprintf("Director %d", (i-1)%4+1)},
		})
	}
	return out
}
