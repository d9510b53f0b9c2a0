package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/hms/internal/platform/auth"
)

// User maps to the app_user table. One row per account; patients additionally
// get a row in the patient registry linked through patient.user_id.
type User struct {
	ID               uuid.UUID `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	Role             auth.Role `db:"role" json:"role"`
	FirstName        string    `db:"first_name" json:"firstName"`
	LastName         string    `db:"last_name" json:"lastName"`
	Phone            *string   `db:"phone" json:"phone,omitempty"`
	DoctorDepartment *string   `db:"doctor_department" json:"doctorDepartment,omitempty"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// Doctor is the slim projection other domains embed when expanding a
// doctor reference.
type Doctor struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	DoctorDepartment string    `json:"doctorDepartment"`
}
