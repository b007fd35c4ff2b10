package session

import (
	"time"

	"ai-companion-demo/companion/internal/models"
)

// State is everything the companion screen renders
type State struct {
	Loaded         bool                      `json:"loaded"`
	Demo           bool                      `json:"demo"`
	Character      models.Character          `json:"character"`
	Messages       []models.ChatMessage      `json:"messages"`
	HistoryPage    int                       `json:"history_page"`
	HasMoreHistory bool                      `json:"has_more_history"`
	SessionID      string                    `json:"session_id,omitempty"`
	Balance        int                       `json:"balance_ntg"`
	Missions       []models.Mission          `json:"missions"`
	Completed      []models.CompletedMission `json:"completed_missions"`
	Busy           bool                      `json:"busy"`
	AwaitingReply  bool                      `json:"awaiting_reply"`
	UserMessages   int                       `json:"user_messages"`
	LoadedAt       time.Time                 `json:"loaded_at"`
}

func (s State) clone() State {
	cp := s
	cp.Messages = append([]models.ChatMessage(nil), s.Messages...)
	cp.Missions = append([]models.Mission(nil), s.Missions...)
	cp.Completed = make([]models.CompletedMission, len(s.Completed))
	for i, c := range s.Completed {
		if c.Mission != nil {
			m := *c.Mission
			c.Mission = &m
		}
		cp.Completed[i] = c
	}
	return cp
}

// Reply is the outcome of SendMessage
type Reply struct {
	UserMessage models.ChatMessage `json:"user_message"`
	Message     models.ChatMessage `json:"message"`
	Params      models.Params      `json:"params"`
	Delta       models.ParamDelta  `json:"delta"`
	Emotion     string             `json:"emotion,omitempty"`
	Animation   string             `json:"animation,omitempty"`
	// Fallback is set when the reply was synthesized because the backend failed
	Fallback bool `json:"fallback"`
}

// MissionResult is the outcome of ExecuteMission
type MissionResult struct {
	Message   string                   `json:"message"`
	Balance   int                      `json:"balance_ntg"`
	Params    models.Params            `json:"params"`
	Completed *models.CompletedMission `json:"completed_mission,omitempty"`
}
