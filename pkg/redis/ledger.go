package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultFiredTTL keeps a day's claim long enough to cover clock skew and restarts
const DefaultFiredTTL = 72 * time.Hour

// FiredLedger records which calendar dates a job has fired on.
// ⭐ SSOT: 스케줄 중복 실행 방지 키는 여기서만
//
// Keys:
//
//	<prefix>:fired:<job>:<date>  claim marker, set with SETNX
//	<prefix>:fired:<job>         last fired date
type FiredLedger struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewFiredLedger creates a ledger under prefix
func NewFiredLedger(client *Client, prefix string) *FiredLedger {
	return &FiredLedger{
		client: client,
		prefix: prefix,
		ttl:    DefaultFiredTTL,
	}
}

func (l *FiredLedger) claimKey(job, date string) string {
	return fmt.Sprintf("%s:fired:%s:%s", l.prefix, job, date)
}

func (l *FiredLedger) lastKey(job string) string {
	return fmt.Sprintf("%s:fired:%s", l.prefix, job)
}

// Fired reports whether job has been claimed for date
func (l *FiredLedger) Fired(ctx context.Context, job, date string) (bool, error) {
	if !l.client.Enabled() {
		return false, nil
	}
	n, err := l.client.Redis().Exists(ctx, l.claimKey(job, date)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Claim atomically marks job as fired for date. It returns false when another
// process already claimed the same date.
func (l *FiredLedger) Claim(ctx context.Context, job, date string) (bool, error) {
	if !l.client.Enabled() {
		return true, nil
	}

	rdb := l.client.Redis()
	ok, err := rdb.SetNX(ctx, l.claimKey(job, date), time.Now().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := rdb.Set(ctx, l.lastKey(job), date, 0).Err(); err != nil {
		return true, fmt.Errorf("redis set last fired: %w", err)
	}
	return true, nil
}

// LastFired returns the last date job was claimed for, "" if never
func (l *FiredLedger) LastFired(ctx context.Context, job string) (string, error) {
	if !l.client.Enabled() {
		return "", nil
	}
	date, err := l.client.Redis().Get(ctx, l.lastKey(job)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return date, nil
}
