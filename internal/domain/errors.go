package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrStorageUnavailable indicates the durable local store could not be read or written
	ErrStorageUnavailable = errors.New("local storage is unavailable")

	// ErrMalformedSnapshot indicates the persisted ledger snapshot could not be parsed
	ErrMalformedSnapshot = errors.New("ledger snapshot is malformed")

	// ErrRemoteSync indicates a single entry could not be written to the remote store
	ErrRemoteSync = errors.New("remote sync failed")

	// ErrDocumentNotFound indicates the remote document does not exist
	ErrDocumentNotFound = errors.New("remote document not found")

	// ErrServerOffline indicates the remote document store is unreachable
	ErrServerOffline = errors.New("remote document store is unreachable")

	// ErrAuthFailed indicates the remote store rejected our credentials
	ErrAuthFailed = errors.New("remote credentials are invalid")
)
