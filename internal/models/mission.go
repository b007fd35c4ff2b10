package models

import "time"

// MissionType identifies the kind of care action a mission performs
type MissionType string

const (
	MissionFeed      MissionType = "feed"
	MissionHairstyle MissionType = "hairstyle"
	MissionSelfie    MissionType = "selfie"
)

// Mission is a catalog entry: a paid action with a cooldown
type Mission struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	CostNTG         int         `json:"cost_ntg"`
	Type            MissionType `json:"type"`
	CooldownSeconds int         `json:"cooldown_seconds"`
	CooldownMinutes int         `json:"cooldown_minutes"`
	IsActive        bool        `json:"is_active"`
}

// CooldownSecs is the cooldown in seconds. Older catalog entries only carry minutes.
func (m Mission) CooldownSecs() int {
	if m.CooldownSeconds > 0 {
		return m.CooldownSeconds
	}
	return m.CooldownMinutes * 60
}

// Cooldown returns the configured cooldown as a duration
func (m Mission) Cooldown() time.Duration {
	return time.Duration(m.CooldownSecs()) * time.Second
}

// Affordable reports whether balance covers the mission cost
func (m Mission) Affordable(balance int) bool {
	return balance >= m.CostNTG
}

// CompletedMission records one execution of a mission for a character
type CompletedMission struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id,omitempty"`
	CharacterID     string    `json:"character_id"`
	MissionID       string    `json:"mission_id"`
	Mission         *Mission  `json:"mission,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
	CanRepeat       bool      `json:"can_repeat"`
	TimeUntilRepeat int       `json:"time_until_repeat"`
}

// ExecuteMissionRequest is the payload of a mission execution
type ExecuteMissionRequest struct {
	CharacterID string `json:"character_id"`
}

// ExecuteMissionResponse is the backend's answer to a mission execution
type ExecuteMissionResponse struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	CompletedMission *CompletedMission `json:"completed_mission,omitempty"`
	NewBalance       int               `json:"new_balance"`
	CharacterParams  *Params           `json:"character_params,omitempty"`
}

// Balance is the user's NTG wallet
type Balance struct {
	BalanceNTG int `json:"balance_ntg"`
}
