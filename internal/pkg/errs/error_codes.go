/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific request or system errors
both internally within the server and in HTTP responses to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room Errors
const (
	// ErrRoomNotFound indicates that the requested room is not present in the registry.
	ErrRoomNotFound = 2103
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrRoomIDGeneration indicates that a room identifier could not be generated.
	ErrRoomIDGeneration = 5001
)
