package replay

import "strings"

// Routes maps a facility's display name to the remote system's menu link
// label. Static configuration data, never mutated at runtime.
type Routes map[string]string

// Resolve returns the menu label for a facility name. Matching ignores
// surrounding whitespace. An unmapped name yields a RoutingError.
func (r Routes) Resolve(facility string) (string, error) {
	key := strings.TrimSpace(facility)
	if label, ok := r[key]; ok {
		return label, nil
	}
	return "", &RoutingError{Facility: facility}
}
