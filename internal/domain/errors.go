package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrSecretNotFound  = errors.New("secret not found")
	ErrNoResumableRun  = errors.New("no resumable run found")
)
