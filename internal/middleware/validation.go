package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ValidateQuestion validates a question submitted to the QA endpoint.
func ValidateQuestion(q string) error {
	if strings.TrimSpace(q) == "" {
		return errors.New("question cannot be empty")
	}
	if len(q) > 2000 {
		return errors.New("question exceeds maximum length")
	}
	if !utf8.ValidString(q) {
		return errors.New("question must be valid UTF-8")
	}
	return nil
}

// ValidateEntryText validates the text of a conversation entry.
func ValidateEntryText(text string) error {
	if len(text) > 10000 {
		return errors.New("entry text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("entry text must be valid UTF-8")
	}
	return nil
}

// ValidateEmail performs a minimal well-formedness check.
func ValidateEmail(email string) error {
	if len(email) == 0 || len(email) > 254 {
		return errors.New("invalid email")
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return errors.New("invalid email")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	if len(password) > 128 {
		return errors.New("password exceeds maximum length")
	}
	return nil
}
