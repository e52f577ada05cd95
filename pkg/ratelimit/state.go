// Package ratelimit tracks the catalog's daily call quota and gates requests.
// The counter lives in Redis so every client process sharing the same API key
// sees the same budget.
package ratelimit

import (
	"fmt"
	"time"
)

// Redis key prefixes for quota state. The UTC day is appended.
const (
	RedisKeyCallsPrefix     = "marvel:quota:calls:"
	RedisKeyExhaustedPrefix = "marvel:quota:exhausted:"
)

// DefaultDailyLimit is the catalog's documented calls per day per key.
const DefaultDailyLimit = 3000

// Thresholds on remaining calls.
const (
	// QuotaThresholdCritical blocks requests when fewer calls remain.
	QuotaThresholdCritical = 5

	// QuotaThresholdWarning throttles requests when fewer calls remain.
	QuotaThresholdWarning = 50

	// QuotaThresholdHealthy marks the quota healthy at or above this value.
	QuotaThresholdHealthy = 500
)

// QuotaState is the current daily quota usage.
type QuotaState struct {
	// CallsUsed is the number of calls counted today.
	CallsUsed int `json:"calls_used"`

	// DailyLimit is the number of calls allowed per UTC day.
	DailyLimit int `json:"daily_limit"`

	// Exhausted is set once the catalog answered 429 today, regardless of
	// the local count.
	Exhausted bool `json:"exhausted"`

	// ResetAt is the next UTC midnight.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was read.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining() >= QuotaThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// Remaining returns the calls left today, never negative.
func (s *QuotaState) Remaining() int {
	if s.Exhausted {
		return 0
	}
	remaining := s.DailyLimit - s.CallsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Remaining() < QuotaThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining() < QuotaThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the quota resets.
// Returns 0 if the reset time has already passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on Remaining.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining() >= QuotaThresholdHealthy
}

// dayKey formats the UTC day of t for use in Redis keys.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// nextReset returns the UTC midnight following t.
func nextReset(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

func callsKey(t time.Time) string {
	return fmt.Sprintf("%s%s", RedisKeyCallsPrefix, dayKey(t))
}

func exhaustedKey(t time.Time) string {
	return fmt.Sprintf("%s%s", RedisKeyExhaustedPrefix, dayKey(t))
}
