package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/protomem/district-tasks/internal/database"
	"github.com/protomem/district-tasks/internal/env"
	"github.com/protomem/district-tasks/internal/linkstore"
	"github.com/protomem/district-tasks/internal/media"
	"github.com/protomem/district-tasks/internal/service/directory"
	"github.com/protomem/district-tasks/internal/service/ledger"
	"github.com/protomem/district-tasks/internal/service/linking"
	"github.com/protomem/district-tasks/internal/service/tasks"
	"github.com/protomem/district-tasks/internal/session"
	"github.com/protomem/district-tasks/internal/version"
	"github.com/redis/go-redis/v9"
)

var (
	_cfgFile     = flag.String("cfg", "", "path to config file")
	_showVersion = flag.Bool("version", false, "display version and exit")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

type config struct {
	httpHost string
	httpPort int
	logLevel string
	db       struct {
		dsn         string
		automigrate bool
	}
	redis struct {
		addr      string
		password  string
		db        int
		keyPrefix string
	}
	session struct {
		secret string
		ttl    time.Duration
		secure bool
	}
	bot struct {
		apiToken string
	}
	media struct {
		root string
		url  string
	}
}

type application struct {
	config config
	db     *database.DB
	redis  *redis.Client
	logger *slog.Logger

	sessions *session.Manager
	media    *media.Storage

	directory *directory.Service
	tasks     *tasks.Service
	linking   *linking.Service
	ledger    *ledger.Service

	wg sync.WaitGroup
}

func run(logger *slog.Logger) error {
	if *_showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	var cfg config

	if *_cfgFile != "" {
		err := env.Load(*_cfgFile)
		if err != nil {
			return err
		}
	}

	cfg.httpHost = env.GetString("HTTP_HOST", "localhost")
	cfg.httpPort = env.GetInt("HTTP_PORT", 8080)
	cfg.logLevel = env.GetString("LOG_LEVEL", "debug")
	cfg.db.dsn = env.GetString("DB_DSN", "postgres:postgres@localhost:5432/postgres")
	cfg.db.automigrate = env.GetBool("DB_AUTOMIGRATE", true)
	cfg.redis.addr = env.GetString("REDIS_ADDR", "localhost:6379")
	cfg.redis.password = env.GetString("REDIS_PASSWORD", "")
	cfg.redis.db = env.GetInt("REDIS_DB", 0)
	cfg.redis.keyPrefix = env.GetString("REDIS_KEY_PREFIX", "mg_task")
	cfg.session.secret = env.GetString("SESSION_SECRET", "change-me")
	cfg.session.ttl = env.GetDuration("SESSION_TTL", 14*24*time.Hour)
	cfg.session.secure = env.GetBool("SESSION_SECURE", false)
	cfg.bot.apiToken = env.GetString("BOT_API_TOKEN", "")
	cfg.media.root = env.GetString("MEDIA_ROOT", "./media")
	cfg.media.url = env.GetString("MEDIA_URL", "/media/")

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.logLevel)}))

	if cfg.bot.apiToken == "" {
		logger.Warn("BOT_API_TOKEN is empty, bot requests will be rejected")
	}

	db, err := database.New(logger, cfg.db.dsn, cfg.db.automigrate)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redis.addr,
		Password: cfg.redis.password,
		DB:       cfg.redis.db,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}

	app := newApplication(cfg, logger, db, rdb)

	return app.serveHTTP()
}

func newApplication(cfg config, logger *slog.Logger, db *database.DB, rdb *redis.Client) *application {
	var (
		users          = database.NewUserDAO(logger, db)
		districts      = database.NewDistrictDAO(logger, db)
		positions      = database.NewPositionDAO(logger, db)
		taskDAO        = database.NewTaskDAO(logger, db)
		importances    = database.NewImportanceDAO(logger, db)
		events         = database.NewEventDAO(logger, db)
		participations = database.NewParticipationDAO(logger, db)
	)

	return &application{
		config: cfg,
		db:     db,
		redis:  rdb,
		logger: logger,

		sessions: session.NewManager(logger, rdb, session.Options{
			Prefix: cfg.redis.keyPrefix,
			Secret: cfg.session.secret,
			TTL:    cfg.session.ttl,
			Secure: cfg.session.secure,
		}),
		media: media.NewStorage(cfg.media.root, cfg.media.url),

		directory: directory.NewService(logger, users, districts, positions),
		tasks:     tasks.NewService(logger, taskDAO, users),
		linking:   linking.NewService(logger, linkstore.New(rdb, cfg.redis.keyPrefix), users),
		ledger:    ledger.NewService(logger, importances, events, participations),
	}
}

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelDebug
	}
	return level
}
