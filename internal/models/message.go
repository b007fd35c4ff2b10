package models

import "time"

// Role of a chat participant
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Emotion labels the backend attaches to assistant replies. The set is open.
const (
	EmotionHappy   = "happy"
	EmotionSad     = "sad"
	EmotionNeutral = "neutral"
	EmotionExcited = "excited"
	EmotionTired   = "tired"
)

// ChatMessage is one turn of a conversation
type ChatMessage struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Emotion     string    `json:"emotion,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Local marks a message synthesized on this side that the server never echoed back.
	Local bool `json:"local,omitempty"`
}

// HistoryPage is one page of chat history. Pages count from the start of the
// conversation: page 1 holds the oldest messages, the last page the newest.
type HistoryPage struct {
	Items      []ChatMessage `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// LastPage is the number of the page holding the newest messages
func (p HistoryPage) LastPage() int {
	if p.TotalPages > 0 {
		return p.TotalPages
	}
	if p.PageSize > 0 && p.Total > 0 {
		return (p.Total + p.PageSize - 1) / p.PageSize
	}
	return 1
}

// HasOlder reports whether pages with older messages exist before this one
func (p HistoryPage) HasOlder() bool {
	return p.Page > 1
}

// SendMessageRequest is the payload for a chat turn
type SendMessageRequest struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
}

// CharacterReaction describes how the character reacted to a message
type CharacterReaction struct {
	Emotion      string         `json:"emotion"`
	Animation    string         `json:"animation,omitempty"`
	ParamChanges map[string]int `json:"param_changes,omitempty"`
}

// SendMessageResponse is the backend's reply to a chat turn
type SendMessageResponse struct {
	Message           ChatMessage        `json:"message"`
	CharacterReaction *CharacterReaction `json:"character_reaction,omitempty"`
	SessionID         string             `json:"session_id,omitempty"`
}

// Delta returns the parameter change carried by the reply, zero when absent
func (r SendMessageResponse) Delta() ParamDelta {
	if r.CharacterReaction == nil {
		return ParamDelta{}
	}
	return DeltaFromMap(r.CharacterReaction.ParamChanges)
}
