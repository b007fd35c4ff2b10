package models

import "time"

// WizardStep is a state of the creation wizard
type WizardStep string

const (
	StepSelectStyle   WizardStep = "select_style"
	StepSelectAvatar  WizardStep = "select_avatar"
	StepNameCharacter WizardStep = "name_character"
	StepSubmitting    WizardStep = "submitting"
	StepSuccess       WizardStep = "success"
	StepFailed        WizardStep = "failed"
)

// WizardDraft carries the choices made so far in the creation wizard.
// It lives only until the character is created or the draft expires.
type WizardDraft struct {
	Step                WizardStep `json:"step"`
	Style               Style      `json:"style,omitempty"`
	Appearance          string     `json:"appearance,omitempty"`
	AvatarCandidates    []string   `json:"avatar_candidates,omitempty"`
	SelectedAvatarIndex *int       `json:"selected_avatar_index,omitempty"`
	AvatarURL           string     `json:"avatar_url,omitempty"`
	Name                string     `json:"name,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// NewWizardDraft returns an empty draft at the first step
func NewWizardDraft() *WizardDraft {
	return &WizardDraft{Step: StepSelectStyle, UpdatedAt: time.Now()}
}

// HasStyle reports whether the first step's field is set
func (d *WizardDraft) HasStyle() bool {
	return d != nil && d.Style.Valid()
}

// HasAvatar reports whether the second step's field is set
func (d *WizardDraft) HasAvatar() bool {
	return d != nil && d.SelectedAvatarIndex != nil && d.AvatarURL != ""
}

// ClearSelection drops the avatar choice
func (d *WizardDraft) ClearSelection() {
	d.SelectedAvatarIndex = nil
	d.AvatarURL = ""
}

// Clone returns a deep copy
func (d *WizardDraft) Clone() *WizardDraft {
	if d == nil {
		return nil
	}
	cp := *d
	if d.AvatarCandidates != nil {
		cp.AvatarCandidates = append([]string(nil), d.AvatarCandidates...)
	}
	if d.SelectedAvatarIndex != nil {
		idx := *d.SelectedAvatarIndex
		cp.SelectedAvatarIndex = &idx
	}
	return &cp
}
