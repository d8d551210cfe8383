package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"filmflare/internal/adapters/api"
	"filmflare/internal/adapters/cookies"
	"filmflare/internal/adapters/notify"
	"filmflare/internal/adapters/tokenstore"
	"filmflare/internal/application/catalog"
	"filmflare/internal/application/session"
	"filmflare/internal/config"
	"filmflare/internal/ports"
)

const usage = `usage: filmflare [global flags] <command> [flags]

commands:
  login      -email -password
  register   -name -email -password -confirm
  logout
  whoami
  genres     [-selected a,b]
  trending
  top-rated  [-genre a,b] [-pages n]
  search     -q [-pages n]
  movie      -id
  similar    -id
  rate       -id -rating
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// app is everything a command needs, built once per run.
type app struct {
	session *session.Manager
	catalog *catalog.Service
	jar     *cookies.FileJar
	out     io.Writer
	errOut  io.Writer
	closers []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Debug().Err(err).Msg("close failed")
		}
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("filmflare", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }

	configPath := global.String("config", os.Getenv("FILMFLARE_CONFIG"), "Path to a YAML config file")
	apiURL := global.String("api", "", "API base URL (overrides API_BASE_URL)")
	timeout := global.Int("timeout", 0, "Per-call timeout in seconds (overrides API_TIMEOUT)")
	logLevel := global.String("log-level", "", "Log level: debug|info|warn|error")
	logFormat := global.String("log-format", "", "Log format: console|json")
	tokenStore := global.String("token-store", "", "Token store: memory|redis")
	redisAddr := global.String("redis-addr", "", "Redis address for the redis token store")
	sessionKey := global.String("session-key", "", "Browsing-session id for the token store")
	cookieFile := global.String("cookie-file", "", "File that keeps the refresh cookie between runs")

	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	override(&cfg.API.BaseURL, *apiURL)
	override(&cfg.Log.Level, *logLevel)
	override(&cfg.Log.Format, *logFormat)
	override(&cfg.Session.TokenStore, strings.ToLower(*tokenStore))
	override(&cfg.Redis.Addr, *redisAddr)
	override(&cfg.Session.Key, *sessionKey)
	override(&cfg.Session.CookieFile, *cookieFile)
	if *timeout > 0 {
		cfg.API.TimeoutSeconds = *timeout
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}

	setupLogging(cfg.Log, stderr)

	a, err := newApp(cfg, stdout, stderr)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize")
		return 1
	}
	defer a.close()

	cmd, ok := commands[global.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", global.Arg(0), usage)
		return 2
	}

	a.session.Start(ctx)
	return cmd(ctx, a, global.Args()[1:])
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setupLogging(cfg config.LogConfig, w io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	a := &app{out: stdout, errOut: stderr}

	var jar http.CookieJar
	if cfg.Session.CookieFile != "" {
		fileJar, err := cookies.NewFileJar(cfg.Session.CookieFile, cfg.API.BaseURL)
		if err != nil {
			return nil, err
		}
		a.jar, jar = fileJar, fileJar
	}
	client, err := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout(), jar)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := newTokenStore(cfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	notifier := notify.NewLogNotifier(stderr)
	a.session = session.NewManager(client, store, notifier)
	a.catalog = catalog.NewService(client, a.session, notifier)

	log.Debug().
		Str("api", client.BaseURL()).
		Str("token_store", cfg.Session.TokenStore).
		Bool("cookie_file", a.jar != nil).
		Msg("filmflare initialized")
	return a, nil
}

func newTokenStore(cfg *config.Config) (ports.TokenStorePort, func() error, error) {
	if cfg.Session.TokenStore != config.TokenStoreRedis {
		return tokenstore.NewMemoryStore(), nil, nil
	}
	rc := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store, err := tokenstore.NewRedisStore(rc, cfg.Session.Key, cfg.Session.TTL())
	if err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	return store, rc.Close, nil
}
