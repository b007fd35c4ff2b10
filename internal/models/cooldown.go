package models

import "time"

// CooldownRemaining is the time left before a mission completed at completedAt
// may run again. It is derived from the clock on every call and never negative.
func CooldownRemaining(now, completedAt time.Time, cooldownSeconds int) time.Duration {
	remaining := time.Duration(cooldownSeconds)*time.Second - now.Sub(completedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CooldownSecondsRemaining is CooldownRemaining truncated to whole seconds
func CooldownSecondsRemaining(now, completedAt time.Time, cooldownSeconds int) int {
	return int(CooldownRemaining(now, completedAt, cooldownSeconds) / time.Second)
}

// MissionCooldown is the derived cooldown state of one mission
type MissionCooldown struct {
	MissionID        string     `json:"mission_id"`
	RemainingSeconds int        `json:"remaining_seconds"`
	CanRepeat        bool       `json:"can_repeat"`
	LastCompletedAt  *time.Time `json:"last_completed_at,omitempty"`
}
