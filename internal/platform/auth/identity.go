// Package auth carries the caller identity, the closed role set, and the
// JWT middleware that turns a bearer token into an Identity on the request
// context. Services receive the Identity as an explicit argument; nothing
// reads ambient request state.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of user roles. Every endpoint declares an explicit
// allow-list over these; unlisted roles are denied.
type Role string

const (
	RolePatient        Role = "patient"
	RoleDoctor         Role = "doctor"
	RoleAdmin          Role = "admin"
	RoleTechnician     Role = "technician"
	RoleLabSupervisor  Role = "lab_supervisor"
	RoleReceptionist   Role = "receptionist"
	RoleBillingStaff   Role = "billing_staff"
	RolePharmacist     Role = "pharmacist"
	RoleNurse          Role = "nurse"
	RoleInsuranceStaff Role = "insurance_staff"
)

var allRoles = map[Role]bool{
	RolePatient:        true,
	RoleDoctor:         true,
	RoleAdmin:          true,
	RoleTechnician:     true,
	RoleLabSupervisor:  true,
	RoleReceptionist:   true,
	RoleBillingStaff:   true,
	RolePharmacist:     true,
	RoleNurse:          true,
	RoleInsuranceStaff: true,
}

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !allRoles[r] {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// StaffRoles returns every role except patient.
func StaffRoles() []Role {
	return []Role{
		RoleDoctor, RoleAdmin, RoleTechnician, RoleLabSupervisor,
		RoleReceptionist, RoleBillingStaff, RolePharmacist, RoleNurse,
		RoleInsuranceStaff,
	}
}

// Identity is the authenticated caller: the decoded {id, role} pair from the
// bearer token. Token internals stay inside this package.
type Identity struct {
	ID   uuid.UUID
	Role Role
}

// Owns is the single ownership predicate: identifier equality between the
// caller and a resource's owner field.
func (i Identity) Owns(ownerID uuid.UUID) bool {
	return i.ID == ownerID
}

// CanActFor reports whether the caller may operate on data scoped to the
// given patient user: patients only on themselves, every staff role freely.
func (i Identity) CanActFor(patientUserID uuid.UUID) bool {
	if i.Role == RolePatient {
		return i.ID == patientUserID
	}
	return true
}

type contextKey string

const identityKey contextKey = "auth_identity"

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext retrieves the caller identity placed by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
