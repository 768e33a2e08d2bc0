package profile

import "errors"

var (
	ErrNotFound      = errors.New("profile: record not found")
	ErrAlreadyExists = errors.New("profile: record already exists")
	ErrFieldRequired = errors.New("profile: required field is empty")
	ErrWriteFailed   = errors.New("profile: write failed")
)
