/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix     = "plgen:runlock:"
	retryInterval = 200 * time.Millisecond
)

// ErrLockHeld indicates another generation run holds the station lock
// and it could not be acquired before the context expired.
var ErrLockHeld = errors.New("station run lock held by another run")

// Lock serializes generation runs per station through Redis. Two
// concurrent runs for the same station would both read the playback log
// before either commits; the lock makes eligibility reads and commits
// atomic relative to other runs on that station.
type Lock struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New creates a run lock manager. ttl bounds how long a crashed run can
// keep a station locked.
func New(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Lock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Lock{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "run_lock").Logger(),
	}
}

// Acquire takes the station lock, retrying until the context is done.
// The returned release function must be called with a live context; it
// only deletes the key if this run still owns it.
func (l *Lock) Acquire(ctx context.Context, stationID string) (func(context.Context) error, error) {
	key := keyPrefix + stationID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if ok {
			l.logger.Debug().Str("station_id", stationID).Msg("run lock acquired")
			return func(releaseCtx context.Context) error {
				return l.release(releaseCtx, key, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockHeld
		case <-time.After(retryInterval):
		}
	}
}

// release deletes the lock only when this run still owns it, so an
// expired lock re-acquired by another run is never stolen back.
func (l *Lock) release(ctx context.Context, key, token string) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	if err := l.client.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
