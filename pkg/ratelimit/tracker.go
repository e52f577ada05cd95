package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marvel_quota_remaining",
		Help: "Calls remaining in the current daily catalog quota",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marvel_quota_blocks_total",
		Help: "Total number of requests blocked because the quota is exhausted",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marvel_quota_throttles_total",
		Help: "Total number of requests throttled because the quota is low",
	})
)

// DefaultThrottleDelay is the pause applied to requests in the warning band.
const DefaultThrottleDelay = 1 * time.Second

// Tracker counts catalog calls against the daily quota and gates requests.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	dailyLimit    int
	throttleDelay time.Duration
	now           func() time.Time
}

// NewTracker creates a new quota tracker. A non-positive dailyLimit falls
// back to DefaultDailyLimit.
func NewTracker(redisClient *redis.Client, dailyLimit int, logger zerolog.Logger) *Tracker {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		dailyLimit:    dailyLimit,
		throttleDelay: DefaultThrottleDelay,
		now:           time.Now,
	}
}

// SetThrottleDelay changes the pause applied in the warning band.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// DailyLimit returns the configured calls per day.
func (t *Tracker) DailyLimit() int {
	return t.dailyLimit
}

// GetState reads today's quota usage from Redis.
// A day without any recorded call reports zero usage.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	now := t.now()

	used, err := t.redis.Get(ctx, callsKey(now)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get calls used: %w", err)
	}

	exhausted, err := t.redis.Exists(ctx, exhaustedKey(now)).Result()
	if err != nil {
		return nil, fmt.Errorf("get exhausted flag: %w", err)
	}

	state := &QuotaState{
		CallsUsed:  used,
		DailyLimit: t.dailyLimit,
		Exhausted:  exhausted > 0,
		ResetAt:    nextReset(now),
		LastUpdate: now,
	}
	state.UpdateHealth()

	return state, nil
}

// Reserve counts one call against today's quota if the quota allows it.
// Returns false without counting when the quota is critical. In the warning
// band the call is counted and the caller is held for the throttle delay.
func (t *Tracker) Reserve(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("calls_used", state.CallsUsed).
			Int("daily_limit", state.DailyLimit).
			Bool("exhausted", state.Exhausted).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Catalog quota critical - blocking request")

		quotaBlocksTotal.Inc()
		quotaRemaining.Set(float64(state.Remaining()))
		return false, nil
	}

	key := callsKey(t.now())
	var incr *redis.IntCmd
	_, err = t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, state.ResetAt)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("count call in redis: %w", err)
	}

	state.CallsUsed = int(incr.Val())
	state.UpdateHealth()
	quotaRemaining.Set(float64(state.Remaining()))

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining()).
			Dur("delay", t.throttleDelay).
			Msg("Catalog quota low - throttling request")

		quotaThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return true, nil
}

// MarkExhausted records that the catalog rejected a call for exceeding the
// quota. Requests stay blocked until the next UTC midnight.
func (t *Tracker) MarkExhausted(ctx context.Context) error {
	now := t.now()
	reset := nextReset(now)

	if err := t.redis.Set(ctx, exhaustedKey(now), 1, reset.Sub(now)).Err(); err != nil {
		return fmt.Errorf("store exhausted flag: %w", err)
	}

	quotaRemaining.Set(0)
	t.logger.Error().
		Time("reset_at", reset).
		Msg("Catalog quota exhausted - requests blocked until reset")

	return nil
}
