package models

import (
	"errors"
	"strings"
	"time"
)

// Style is the visual style a character is generated in. It never changes after creation.
type Style string

const (
	StyleAnime     Style = "anime"
	StyleCyberpunk Style = "cyberpunk"
	StyleFantasy   Style = "fantasy"
)

// Styles lists every supported style in display order.
var Styles = []Style{StyleAnime, StyleCyberpunk, StyleFantasy}

var ErrInvalidStyle = errors.New("invalid style")

// ParseStyle converts user input into a Style
func ParseStyle(s string) (Style, error) {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	if !style.Valid() {
		return "", ErrInvalidStyle
	}
	return style, nil
}

// Valid reports whether s is one of the supported styles
func (s Style) Valid() bool {
	switch s {
	case StyleAnime, StyleCyberpunk, StyleFantasy:
		return true
	}
	return false
}

// Bounds for energy and mood. Bond has no upper bound.
const (
	MinParam = 0
	MaxParam = 100
)

// Params are the mutable stats of a character
type Params struct {
	Energy int `json:"energy"`
	Mood   int `json:"mood"`
	Bond   int `json:"bond"`
}

// ParamDelta is a relative change to Params
type ParamDelta struct {
	Energy int `json:"energy"`
	Mood   int `json:"mood"`
	Bond   int `json:"bond"`
}

// DefaultParams returns the stats of a freshly created character
func DefaultParams() Params {
	return Params{Energy: MaxParam, Mood: MaxParam, Bond: 0}
}

// ClampUnit bounds v into [MinParam, MaxParam]
func ClampUnit(v int) int {
	if v < MinParam {
		return MinParam
	}
	if v > MaxParam {
		return MaxParam
	}
	return v
}

// Clamp bounds energy and mood. Bond is left as the server reported it.
func (p Params) Clamp() Params {
	p.Energy = ClampUnit(p.Energy)
	p.Mood = ClampUnit(p.Mood)
	return p
}

// Apply returns p with d added. Energy and mood are clamped, bond accumulates.
func (p Params) Apply(d ParamDelta) Params {
	return Params{
		Energy: ClampUnit(p.Energy + d.Energy),
		Mood:   ClampUnit(p.Mood + d.Mood),
		Bond:   p.Bond + d.Bond,
	}
}

// IsZero reports whether the delta changes nothing
func (d ParamDelta) IsZero() bool {
	return d.Energy == 0 && d.Mood == 0 && d.Bond == 0
}

// DeltaFromMap builds a delta from a server "param_changes" object. Missing keys are zero.
func DeltaFromMap(m map[string]int) ParamDelta {
	return ParamDelta{
		Energy: m["energy"],
		Mood:   m["mood"],
		Bond:   m["bond"],
	}
}

// Status is a mood label derived from Params
type Status string

const (
	StatusHappy     Status = "happy"
	StatusNormal    Status = "normal"
	StatusBored     Status = "bored"
	StatusTired     Status = "tired"
	StatusSad       Status = "sad"
	StatusExhausted Status = "exhausted"
)

// DeriveStatus maps params to a status using the average of energy and mood
func DeriveStatus(p Params) Status {
	avg := (p.Energy + p.Mood) / 2
	switch {
	case avg >= 80:
		return StatusHappy
	case avg >= 60:
		return StatusNormal
	case avg >= 40:
		return StatusBored
	case avg >= 20:
		if p.Energy < p.Mood {
			return StatusTired
		}
		return StatusSad
	default:
		return StatusExhausted
	}
}

// NeedsAttention is true when energy or mood is running low
func (p Params) NeedsAttention() bool {
	return p.Energy < 30 || p.Mood < 30
}

// Character is a user's companion as returned by the backend
type Character struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Style     Style     `json:"style"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Params    Params    `json:"params"`
	Status    Status    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WithParams returns a copy of c carrying p and the status derived from it
func (c Character) WithParams(p Params) Character {
	c.Params = p.Clamp()
	c.Status = DeriveStatus(c.Params)
	return c
}

// CreateCharacterRequest is the payload of the creation call
type CreateCharacterRequest struct {
	Name      string `json:"name"`
	Style     Style  `json:"style"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// GenerateAvatarRequest asks the backend for a set of avatar candidates
type GenerateAvatarRequest struct {
	Style      Style  `json:"style"`
	Appearance string `json:"appearance,omitempty"`
	Seed       int64  `json:"seed,omitempty"`
}
