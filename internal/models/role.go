package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lib/pq"
)

// Role identifies a platform role accumulated on an identity.
type Role string

// Platform roles. The Spanish tags are the wire and storage values; other
// subsystems (course access control) depend on them verbatim.
const (
	RoleStudent          Role = "estudiante"
	RoleTeacher          Role = "docente"
	RoleStaff            Role = "nodocente"
	RoleInstitutionAdmin Role = "admin-institucion"
	RolePlatformAdmin    Role = "admin-plataforma"
	RoleSupervisor       Role = "supervisor"
)

// ValidRoles enumerates every role accepted on enrollment operations.
var ValidRoles = map[Role]bool{
	RoleStudent:          true,
	RoleTeacher:          true,
	RoleStaff:            true,
	RoleInstitutionAdmin: true,
	RolePlatformAdmin:    true,
	RoleSupervisor:       true,
}

// RoleSet holds the accumulated roles of an identity with set semantics.
// Membership is what matters; insertion order never does.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Add inserts a role. Adding an existing role is a no-op.
func (s RoleSet) Add(r Role) {
	s[r] = struct{}{}
}

// Remove deletes a role if present.
func (s RoleSet) Remove(r Role) {
	delete(s, r)
}

// Has reports membership.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// HasAny reports whether any of the given roles is present.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Values returns the roles sorted for deterministic output.
func (s RoleSet) Values() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON renders the set as a sorted array.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON accepts an array of role tags.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var roles []Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return err
	}
	*s = NewRoleSet(roles...)
	return nil
}

// Value implements driver.Valuer, persisting the set as a text array.
func (s RoleSet) Value() (driver.Value, error) {
	values := s.Values()
	arr := make(pq.StringArray, len(values))
	for i, r := range values {
		arr[i] = string(r)
	}
	return arr.Value()
}

// Scan implements sql.Scanner for text array columns.
func (s *RoleSet) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("scan role set: %w", err)
	}
	set := make(RoleSet, len(arr))
	for _, r := range arr {
		set[Role(r)] = struct{}{}
	}
	*s = set
	return nil
}
