package server

import (
	"fmt"
	"sort"
)

// Negotiate computes the effective scope set for a grant.
//
// An empty request grants an unscoped token: no named scopes are attached.
// Otherwise every requested scope must be a member of the authorized set;
// the check is all-or-nothing and a single unauthorized scope rejects the
// whole request. The effective set is exactly the requested set, deduplicated,
// with order carrying no meaning.
func Negotiate(requested, authorized []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, nil
	}

	authorizedSet := make(map[string]struct{}, len(authorized))
	for _, scope := range authorized {
		authorizedSet[scope] = struct{}{}
	}

	granted := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, scope := range requested {
		if _, ok := authorizedSet[scope]; !ok {
			return nil, fmt.Errorf("scope %q: %w", scope, ErrUnauthorizedScope)
		}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		granted = append(granted, scope)
	}

	sort.Strings(granted)
	return granted, nil
}
