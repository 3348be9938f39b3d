// Package linkstore keeps one-time bot link tokens in Redis.
//
// An entry moves from pending to consumed exactly once. Consumed entries stay
// until their TTL runs out so a replayed token is rejected rather than unknown.
package linkstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidToken = errors.New("link token is invalid or expired")

type State string

const (
	StatePending  State = "pending"
	StateConsumed State = "consumed"
)

type Entry struct {
	TelegramID int64     `json:"telegram_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	State      State     `json:"state"`
}

func (e Entry) usable(now time.Time) bool {
	return e.State == StatePending && now.Before(e.ExpiresAt)
}

type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) key(token string) string {
	return s.prefix + ":telegram_login:" + token
}

// Issue stores a fresh pending entry for the telegram id and returns its token.
func (s *Store) Issue(ctx context.Context, telegramID int64, ttl time.Duration) (string, Entry, error) {
	if ttl <= 0 {
		return "", Entry{}, fmt.Errorf("linkstore: ttl must be positive, got %s", ttl)
	}

	now := s.now().UTC()
	entry := Entry{
		TelegramID: telegramID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		State:      StatePending,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", Entry{}, err
	}

	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.key(token), data, ttl).Result()
	if err != nil {
		return "", Entry{}, fmt.Errorf("linkstore: issue: %w", err)
	}
	if !ok {
		return "", Entry{}, fmt.Errorf("linkstore: token collision")
	}

	return token, entry, nil
}

// Lookup returns the pending entry behind token. Missing, expired and
// consumed entries all yield ErrInvalidToken.
func (s *Store) Lookup(ctx context.Context, token string) (Entry, error) {
	if token == "" {
		return Entry{}, ErrInvalidToken
	}

	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrInvalidToken
		}
		return Entry{}, fmt.Errorf("linkstore: lookup: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("linkstore: decode entry: %w", err)
	}

	if !entry.usable(s.now()) {
		return Entry{}, ErrInvalidToken
	}

	return entry, nil
}

// Consume marks the entry consumed. Only one of several concurrent callers
// succeeds; the rest get ErrInvalidToken.
func (s *Store) Consume(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	key := s.key(token)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrInvalidToken
			}
			return err
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("linkstore: decode entry: %w", err)
		}
		if !entry.usable(s.now()) {
			return ErrInvalidToken
		}

		entry.State = StateConsumed
		data, err = json.Marshal(entry)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return ErrInvalidToken
	case errors.Is(err, ErrInvalidToken):
		return ErrInvalidToken
	case err != nil:
		return fmt.Errorf("linkstore: consume: %w", err)
	}

	return nil
}
