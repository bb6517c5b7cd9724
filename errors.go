package loyaltysync

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("loyaltysync: no store configured")
	ErrStoreClosed = errors.New("loyaltysync: store closed")

	// Not found errors.
	ErrJobNotFound     = errors.New("loyaltysync: job not found")
	ErrRequestNotFound = errors.New("loyaltysync: request not found")
	ErrParkedNotFound  = errors.New("loyaltysync: parked entry not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("loyaltysync: job already exists")
	ErrJobLeased        = errors.New("loyaltysync: job leased by another worker")

	// Dispatch errors.
	ErrUnknownRequestType = errors.New("loyaltysync: unknown request type")
	ErrDuplicateType      = errors.New("loyaltysync: request type already registered")

	// Connector errors.
	ErrAuthenticationFailed = errors.New("loyaltysync: authentication failed")
	ErrNoCredentials        = errors.New("loyaltysync: no credentials for store")
)
