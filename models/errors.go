package models

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")
)

// FieldError represents a field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every failing field of a submission.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

// Field returns the message for a field, if it failed.
func (v ValidationErrors) Field(name string) (string, bool) {
	for _, fe := range v {
		if fe.Field == name {
			return fe.Message, true
		}
	}
	return "", false
}
