package models

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication    = errors.New("authentication failed")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrAuthInProgress    = errors.New("sign-in already in progress")
	ErrModelNotLoaded    = errors.New("model not loaded")
	ErrRecognitionActive = errors.New("speech recognition already active")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnavailable       = errors.New("capability unavailable")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
