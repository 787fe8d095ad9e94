package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrEmptyName          = errors.New("name is empty")
	ErrLocked             = errors.New("filesystem is locked")
	ErrBadPassphrase      = errors.New("wrong passphrase")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDecrypt            = errors.New("could not decrypt record")
)
