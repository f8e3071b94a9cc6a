package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TokenAttemptGuardKey returns the key that marks an exam token as having a
// live attempt. SETNX on this key is the single-attempt gate.
func (r *CacheKeyStruct) TokenAttemptGuardKey(tokenCode string) string {
	return fmt.Sprintf("token:%s:active_attempt", tokenCode)
}

// SubtestPoolKey returns the cache key for a subtest's full question pool.
func (r *CacheKeyStruct) SubtestPoolKey(subtestID string) string {
	return fmt.Sprintf("subtest:%s:pool", subtestID)
}

// BatteryKey returns the cache key for the ordered subtest battery.
func (r *CacheKeyStruct) BatteryKey() string {
	return "battery:sections"
}

// LeaderboardKey returns the sorted-set key holding finished attempts ranked
// by score then time remaining.
func (r *CacheKeyStruct) LeaderboardKey() string {
	return "leaderboard:global"
}

var CacheKey = NewCacheKeyStruct()
