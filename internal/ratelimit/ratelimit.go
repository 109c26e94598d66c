package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Actions guarded by the limiter.
const (
	ActionOrderCreate = "order-create"
	ActionLogin       = "login"
)

// Policy configures one guarded action. FailOpen controls behavior when the
// backing store is unreachable: security-sensitive actions keep the default
// false (deny), order creation may trade abuse risk for availability.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
	FailOpen    bool
}

// Result is the outcome of a Check. RetryAfter is positive only when denied.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter tracks attempt counts per (client, action) in Redis so the state
// survives restarts and is shared across instances.
type Limiter struct {
	rdb      *redis.Client
	policies map[string]Policy
}

func New(rdb *redis.Client, policies map[string]Policy) *Limiter {
	return &Limiter{rdb: rdb, policies: policies}
}

func countKey(clientID, action string) string {
	return fmt.Sprintf("ratelimit:count:%s:%s", action, clientID)
}

func lockKey(clientID, action string) string {
	return fmt.Sprintf("ratelimit:lock:%s:%s", action, clientID)
}

// Check records one attempt for (clientID, action) and reports whether it is
// allowed. During a lockout the counter is not incremented further; the
// remaining lockout TTL is returned as RetryAfter.
func (l *Limiter) Check(ctx context.Context, clientID, action string) (Result, error) {
	policy, ok := l.policies[action]
	if !ok {
		return Result{Allowed: true}, nil
	}

	ttl, err := l.rdb.PTTL(ctx, lockKey(clientID, action)).Result()
	if err != nil {
		return l.failResult(policy), err
	}
	if ttl > 0 {
		return Result{Allowed: false, RetryAfter: ttl}, nil
	}

	count, err := l.rdb.Incr(ctx, countKey(clientID, action)).Result()
	if err != nil {
		return l.failResult(policy), err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, countKey(clientID, action), policy.Window).Err(); err != nil {
			return l.failResult(policy), err
		}
	}

	if count > int64(policy.MaxAttempts) {
		if err := l.rdb.Set(ctx, lockKey(clientID, action), "1", policy.Lockout).Err(); err != nil {
			return l.failResult(policy), err
		}
		return Result{Allowed: false, RetryAfter: policy.Lockout}, nil
	}

	return Result{Allowed: true}, nil
}

// Reset clears the counter and lockout for (clientID, action), e.g. after a
// successful login.
func (l *Limiter) Reset(ctx context.Context, clientID, action string) error {
	return l.rdb.Del(ctx, countKey(clientID, action), lockKey(clientID, action)).Err()
}

func (l *Limiter) failResult(policy Policy) Result {
	if policy.FailOpen {
		return Result{Allowed: true}
	}
	return Result{Allowed: false, RetryAfter: policy.Lockout}
}
