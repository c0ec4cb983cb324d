package util

import "errors"

var (
	ErrValidation       = errors.New("invalid submission")
	ErrConflict         = errors.New("question already answered or not current")
	ErrNotFound         = errors.New("resource not found")
	ErrCapacityExceeded = errors.New("question cap exceeded")
	ErrExternalService  = errors.New("external provider failure")
	ErrSchemaValidation = errors.New("provider response does not match plan schema")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrBankExhausted    = errors.New("question bank exhausted")
)
