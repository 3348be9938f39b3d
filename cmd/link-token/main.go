// Command link-token issues a one-time telegram link token, the way the bot
// does before sending a member their login link.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"runtime/debug"
	"time"

	"github.com/protomem/district-tasks/internal/env"
	"github.com/protomem/district-tasks/internal/linkstore"
	"github.com/redis/go-redis/v9"
)

var (
	_cfgFile    = flag.String("cfg", "", "path to config file")
	_telegramID = flag.Int64("telegram-id", 0, "telegram user id to issue the token for")
	_ttl        = flag.Duration("ttl", 0, "token lifetime (defaults to LINK_TOKEN_TTL)")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

type config struct {
	redis struct {
		addr      string
		password  string
		db        int
		keyPrefix string
	}
	linkTokenTTL time.Duration
	siteURL      string
}

func run(logger *slog.Logger) error {
	var cfg config

	if *_cfgFile != "" {
		err := env.Load(*_cfgFile)
		if err != nil {
			return err
		}
	}

	cfg.redis.addr = env.GetString("REDIS_ADDR", "localhost:6379")
	cfg.redis.password = env.GetString("REDIS_PASSWORD", "")
	cfg.redis.db = env.GetInt("REDIS_DB", 0)
	cfg.redis.keyPrefix = env.GetString("REDIS_KEY_PREFIX", "mg_task")
	cfg.linkTokenTTL = env.GetDuration("LINK_TOKEN_TTL", 5*time.Minute)
	cfg.siteURL = env.GetString("SITE_URL", "http://localhost:8080")

	if *_telegramID == 0 {
		return errors.New("-telegram-id is required")
	}

	ttl := cfg.linkTokenTTL
	if *_ttl > 0 {
		ttl = *_ttl
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redis.addr,
		Password: cfg.redis.password,
		DB:       cfg.redis.db,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, entry, err := linkstore.New(rdb, cfg.redis.keyPrefix).Issue(ctx, *_telegramID, ttl)
	if err != nil {
		return err
	}

	link, err := url.JoinPath(cfg.siteURL, "telegram-login")
	if err != nil {
		return err
	}
	link += "?" + url.Values{"token": {token}}.Encode()

	logger.Info("link token issued", "telegramId", entry.TelegramID, "expiresAt", entry.ExpiresAt)

	fmt.Println(link)
	return nil
}
