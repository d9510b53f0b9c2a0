package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. A patient may be linked to a user
// account through UserID; unlinked rows are walk-in registrations.
type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	UserID           *uuid.UUID `db:"user_id" json:"userId,omitempty"`
	FirstName        string     `db:"first_name" json:"firstName"`
	LastName         string     `db:"last_name" json:"lastName"`
	BirthDate        time.Time  `db:"birth_date" json:"birthDate"`
	Gender           string     `db:"gender" json:"gender"`
	Phone            string     `db:"phone" json:"phone"`
	Email            *string    `db:"email" json:"email,omitempty"`
	Address          *string    `db:"address" json:"address,omitempty"`
	BloodGroup       *string    `db:"blood_group" json:"bloodGroup,omitempty"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergencyContact,omitempty"`
	Active           bool       `db:"active" json:"active"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "unknown": true,
}
