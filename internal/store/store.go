// Package store keeps the registry of known addresses in Redis. The
// refresh pass feeds on it and batch imports write into it.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const emailKeyPrefix = "everify:email:"

// Store is the primary address registry.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New creates a Store on an existing Redis client.
func New(rdb *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{rdb: rdb, logger: logger}
}

// Add registers an address if it is not already known. Adding an
// existing address is a no-op that preserves its processed flag.
func (s *Store) Add(ctx context.Context, email string) error {
	key := emailKey(email)
	if err := s.rdb.HSetNX(ctx, key, "processed", "0").Err(); err != nil {
		return fmt.Errorf("registering %s: %w", email, err)
	}
	return nil
}

// Exists reports whether the address is registered.
func (s *Store) Exists(ctx context.Context, email string) (bool, error) {
	n, err := s.rdb.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", email, err)
	}
	return n > 0, nil
}

// All returns every registered address.
func (s *Store) All(ctx context.Context) ([]string, error) {
	return s.scan(ctx, func(context.Context, string) (bool, error) {
		return true, nil
	})
}

// Unprocessed returns the addresses that have not been verified yet.
func (s *Store) Unprocessed(ctx context.Context) ([]string, error) {
	return s.scan(ctx, func(ctx context.Context, key string) (bool, error) {
		processed, err := s.rdb.HGet(ctx, key, "processed").Result()
		if err == redis.Nil {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return processed != "1", nil
	})
}

// MarkProcessed flags an address as verified and records when.
func (s *Store) MarkProcessed(ctx context.Context, email string) error {
	key := emailKey(email)
	err := s.rdb.HSet(ctx, key,
		"processed", "1",
		"validated_at", time.Now().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("marking %s processed: %w", email, err)
	}
	return nil
}

func (s *Store) scan(ctx context.Context, keep func(context.Context, string) (bool, error)) ([]string, error) {
	var emails []string
	iter := s.rdb.Scan(ctx, 0, emailKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ok, err := keep(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("scanning address registry: %w", err)
		}
		if ok {
			emails = append(emails, strings.TrimPrefix(key, emailKeyPrefix))
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning address registry: %w", err)
	}
	return emails, nil
}

func emailKey(email string) string {
	return emailKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}
