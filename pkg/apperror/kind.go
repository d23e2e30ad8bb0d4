package apperror

// Kind classifies an error for callers and maps onto an HTTP status.
type Kind string

const (
	// caller mistakes
	InvalidInput  Kind = "invalid_input" // rejected monitor, channel or tenant fields
	NotFound      Kind = "not_found"     // unknown or dangling id
	AlreadyExists Kind = "already_exist" // duplicate id
	Conflict      Kind = "conflict"      // second open FAILURE, stale alert state, stopped scheduler
	Unauthorised  Kind = "unauthorised"  // bad API key or token
	Forbidden     Kind = "forbidden"     // resource of another tenant

	// our side
	RequestTimeout Kind = "request_timeout"    // context cancelled or deadline hit
	Internal       Kind = "internal"           // bug or unclassified failure
	Dependency     Kind = "dependency_failure" // redis, rabbitmq or a delivery endpoint
	DatabaseErr    Kind = "database_error"     // postgres failure with no caller cause

	Integrity Kind = "integrity_failure" // tampered or foreign ciphertext
)
