// Package patient owns patient rows, user-patient relationships, and
// the access decision derived from them.
package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrPatientNotFound covers both a genuine lookup miss and the case
// where a caller-scoped lookup finds the patient but no relationship,
// so patient existence is not leaked.
var ErrPatientNotFound = errors.New("patient not found")

// Patient maps to the patient table. It is a subtype marker on a
// demographics record, created at most once per user.
type Patient struct {
	ID                uuid.UUID `db:"id" json:"id"`
	DemographicsID    uuid.UUID `db:"demographics_id" json:"demographics_id"`
	RegistrationEmail *string   `db:"registration_email" json:"registration_email,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Relationship maps to the user_patient_relationship table. The
// composite key (user, patient, role) allows one row per role; any
// row grants access.
type Relationship struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	RoleCode  string    `db:"role_code" json:"role_code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PatientWithRole is a patient annotated with the role the querying
// user holds toward it.
type PatientWithRole struct {
	Patient
	RelationshipRole string `json:"relationship_role"`
}
