package replay

import "fmt"

// AuthError means the remote system rejected the login credentials.
// Fatal for the whole batch.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// RoutingError means a record's facility name has no configured menu
// path. The record is skipped; the batch continues.
type RoutingError struct {
	Facility string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no menu route configured for facility %q", e.Facility)
}

// LookupError means the target person could not be located on the
// registration page. The record is marked failed; the batch continues.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("user %q not found on registration page", e.Name)
}

// ValidationError means the remote system rejected a submission with one
// or more error messages. The record is marked failed; the batch
// continues.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("submission rejected: %v", e.Messages)
}
