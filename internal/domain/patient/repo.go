package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// GetByMRN resolves a patient through an identifier under the
	// given system code attached to its demographics record.
	GetByMRN(ctx context.Context, mrn, mrnSystemCode string) (*Patient, error)
	UpdateRegistrationEmail(ctx context.Context, id uuid.UUID, email string) error
	// AddRelationship is idempotent per (user, patient, role).
	AddRelationship(ctx context.Context, rel *Relationship) error
	HasRelationship(ctx context.Context, userID, patientID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*PatientWithRole, error)
}
