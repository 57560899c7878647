package auth

import "errors"

var (
	// ErrNoSigningKey is returned when UseAsyncKeyRetrieval is false and
	// Config.SigningKey is empty.
	ErrNoSigningKey = errors.New("auth: no signing key configured")
	// ErrNoCredentialStore is returned when UseAsyncKeyRetrieval is true
	// but no CredentialStore was supplied to the middleware.
	ErrNoCredentialStore = errors.New("auth: async key retrieval requested but no credential store configured")
	// ErrCredentialNotFound is returned when the CredentialStore has no
	// entry for Config.CredentialName.
	ErrCredentialNotFound = errors.New("auth: credential not found")
)
