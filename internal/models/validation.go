package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Input limits enforced before anything is sent to the backend
const (
	NameMinLength       = 2
	NameMaxLength       = 50
	MessageMaxLength    = 2000
	AppearanceMaxLength = 500
)

// ValidationError is an inline field error. It never reaches the network.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type nameInput struct {
	Name string `validate:"required,min=2,max=50"`
}

type messageInput struct {
	Content string `validate:"required,max=2000"`
}

type appearanceInput struct {
	Appearance string `validate:"max=500"`
}

// ValidateCharacterName trims name and checks its length in characters
func ValidateCharacterName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := validate.Struct(nameInput{Name: trimmed}); err != nil {
		return "", fieldError("name", err, fmt.Sprintf("must be %d to %d characters", NameMinLength, NameMaxLength))
	}
	return trimmed, nil
}

// ValidateMessage trims a chat message and checks it is non-empty and not too long
func ValidateMessage(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if err := validate.Struct(messageInput{Content: trimmed}); err != nil {
		return "", fieldError("content", err, fmt.Sprintf("must be 1 to %d characters", MessageMaxLength))
	}
	return trimmed, nil
}

// ValidateAppearance trims the optional appearance prompt
func ValidateAppearance(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if err := validate.Struct(appearanceInput{Appearance: trimmed}); err != nil {
		return "", fieldError("appearance", err, fmt.Sprintf("must be at most %d characters", AppearanceMaxLength))
	}
	return trimmed, nil
}

func fieldError(field string, err error, msg string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return &ValidationError{Field: field, Message: msg}
}
