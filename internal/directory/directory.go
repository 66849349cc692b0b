// Package directory resolves internal usernames to the identity used
// for outbound message signatures. The corporate directory itself is
// an external collaborator; only the lookup contract lives here.
package directory

import "fmt"

type Identity struct {
	DisplayName string
	Department  string
}

type Directory interface {
	Lookup(username string) (Identity, error)
}

// Static serves lookups from a fixed map, typically loaded from
// configuration. Unknown users are an error so callers can fall back
// to an unsigned body.
type Static struct {
	users map[string]Identity
}

func NewStatic(users map[string]Identity) *Static {
	if users == nil {
		users = make(map[string]Identity)
	}
	return &Static{users: users}
}

func (s *Static) Lookup(username string) (Identity, error) {
	id, ok := s.users[username]
	if !ok {
		return Identity{}, fmt.Errorf("unknown user %q", username)
	}
	return id, nil
}
