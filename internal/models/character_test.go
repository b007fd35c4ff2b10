package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStyle(t *testing.T) {
	style, err := ParseStyle("  Cyberpunk ")
	require.NoError(t, err)
	assert.Equal(t, StyleCyberpunk, style)

	_, err = ParseStyle("steampunk")
	assert.ErrorIs(t, err, ErrInvalidStyle)

	_, err = ParseStyle("")
	assert.ErrorIs(t, err, ErrInvalidStyle)
}

func TestParamsApplyClampsEnergyAndMood(t *testing.T) {
	deltas := []ParamDelta{
		{Energy: 500, Mood: 500, Bond: 3},
		{Energy: -500, Mood: -500, Bond: 1},
		{Energy: 1, Mood: -1},
		{Energy: -99, Mood: 99, Bond: 100},
		{},
	}
	starts := []Params{
		{Energy: 0, Mood: 0, Bond: 0},
		{Energy: 50, Mood: 50, Bond: 10},
		{Energy: 100, Mood: 100, Bond: 999},
	}

	for _, start := range starts {
		for _, d := range deltas {
			got := start.Apply(d)
			assert.GreaterOrEqual(t, got.Energy, MinParam)
			assert.LessOrEqual(t, got.Energy, MaxParam)
			assert.GreaterOrEqual(t, got.Mood, MinParam)
			assert.LessOrEqual(t, got.Mood, MaxParam)
			assert.Equal(t, start.Bond+d.Bond, got.Bond, "bond accumulates unclamped")
			assert.Equal(t, got, got.Clamp(), "clamping a clamped value is a no-op")
		}
	}
}

func TestDeltaFromMap(t *testing.T) {
	d := DeltaFromMap(map[string]int{"mood": 2, "bond": 1})
	assert.Equal(t, ParamDelta{Mood: 2, Bond: 1}, d)
	assert.True(t, DeltaFromMap(nil).IsZero())
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		params Params
		want   Status
	}{
		{Params{Energy: 100, Mood: 100}, StatusHappy},
		{Params{Energy: 80, Mood: 80}, StatusHappy},
		{Params{Energy: 60, Mood: 70}, StatusNormal},
		{Params{Energy: 40, Mood: 45}, StatusBored},
		{Params{Energy: 20, Mood: 40}, StatusTired},
		{Params{Energy: 40, Mood: 20}, StatusSad},
		{Params{Energy: 10, Mood: 10}, StatusExhausted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveStatus(tt.params), "params %+v", tt.params)
	}
}

func TestCharacterWithParams(t *testing.T) {
	c := Character{ID: "c1", Name: "Luna"}
	c = c.WithParams(Params{Energy: 120, Mood: -5, Bond: 7})
	assert.Equal(t, Params{Energy: 100, Mood: 0, Bond: 7}, c.Params)
	assert.Equal(t, StatusBored, c.Status)
	assert.True(t, c.Params.NeedsAttention())
}

func TestValidateCharacterName(t *testing.T) {
	name, err := ValidateCharacterName("  Neo  ")
	require.NoError(t, err)
	assert.Equal(t, "Neo", name)

	_, err = ValidateCharacterName(" N ")
	assert.True(t, IsValidationError(err))

	_, err = ValidateCharacterName("   ")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
	assert.Equal(t, "is required", ve.Message)

	_, err = ValidateCharacterName(strings.Repeat("a", 51))
	assert.True(t, IsValidationError(err))

	// length counts characters, not bytes
	name, err = ValidateCharacterName(strings.Repeat("я", 50))
	require.NoError(t, err)
	assert.Len(t, []rune(name), 50)
}

func TestValidateMessage(t *testing.T) {
	msg, err := ValidateMessage("\thello\n")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg)

	_, err = ValidateMessage("  ")
	assert.True(t, IsValidationError(err))

	_, err = ValidateMessage(strings.Repeat("x", MessageMaxLength+1))
	assert.True(t, IsValidationError(err))

	_, err = ValidateMessage(strings.Repeat("x", MessageMaxLength))
	assert.NoError(t, err)
}

func TestCooldownRemaining(t *testing.T) {
	completed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Hour, CooldownRemaining(completed, completed, 3600))
	assert.Equal(t, 30*time.Minute, CooldownRemaining(completed.Add(30*time.Minute), completed, 3600))
	assert.Equal(t, time.Duration(0), CooldownRemaining(completed.Add(time.Hour), completed, 3600))
	assert.Equal(t, time.Duration(0), CooldownRemaining(completed.Add(48*time.Hour), completed, 3600))
	assert.Equal(t, 1799, CooldownSecondsRemaining(completed.Add(30*time.Minute+500*time.Millisecond), completed, 3600))
}

func TestCooldownRemainingIsMonotonic(t *testing.T) {
	completed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	prev := CooldownRemaining(completed, completed, 90)
	for step := 0; step < 200; step++ {
		now := completed.Add(time.Duration(step) * 700 * time.Millisecond)
		cur := CooldownRemaining(now, completed, 90)
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, time.Duration(0))
		prev = cur
	}
	assert.Equal(t, time.Duration(0), prev)
}

func TestWizardDraftClone(t *testing.T) {
	idx := 2
	d := &WizardDraft{Step: StepNameCharacter, Style: StyleFantasy, AvatarCandidates: []string{"a", "b", "c"}, SelectedAvatarIndex: &idx, AvatarURL: "c"}
	cp := d.Clone()
	cp.AvatarCandidates[0] = "z"
	*cp.SelectedAvatarIndex = 0

	assert.Equal(t, "a", d.AvatarCandidates[0])
	assert.Equal(t, 2, *d.SelectedAvatarIndex)
	assert.True(t, d.HasAvatar())

	cp.ClearSelection()
	assert.False(t, cp.HasAvatar())
}

func TestHistoryPageOrder(t *testing.T) {
	assert.Equal(t, 3, HistoryPage{Page: 1, TotalPages: 3}.LastPage())
	assert.Equal(t, 2, HistoryPage{Page: 1, PageSize: 50, Total: 51}.LastPage())
	assert.Equal(t, 1, HistoryPage{Page: 1, PageSize: 50, Total: 50}.LastPage())
	assert.Equal(t, 1, HistoryPage{Page: 1, PageSize: 50}.LastPage())

	assert.False(t, HistoryPage{Page: 1, TotalPages: 3}.HasOlder())
	assert.True(t, HistoryPage{Page: 3, TotalPages: 3}.HasOlder())
}
