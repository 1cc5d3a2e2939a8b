package auth

import (
	"errors"

	"github.com/samber/oops"
)

var (
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrDuplicateAttendant = errors.New("attendant already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbiddenRole      = errors.New("operation not allowed for this principal")
)

// Error codes carried by oops errors returned from the flows
const (
	CodeStorage = "STORAGE_ERROR"
	CodeToken   = "TOKEN_ERROR"
	CodeHash    = "HASH_ERROR"
)

// IsStorageError reports whether err came from the credential store
func IsStorageError(err error) bool {
	return hasCode(err, CodeStorage)
}

// IsInternalError reports whether err is a storage, token or hashing failure.
// These are logged with detail and surfaced as a generic server error.
func IsInternalError(err error) bool {
	return hasCode(err, CodeStorage) || hasCode(err, CodeToken) || hasCode(err, CodeHash)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

func storageError(err error, op string) error {
	return oops.In("credential-store").Code(CodeStorage).With("op", op).Wrap(err)
}

func tokenError(err error) error {
	return oops.In("token").Code(CodeToken).Wrapf(err, "issue token")
}
