package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/c2s/ums/internal/domain/user"
)

// UserDirectory resolves non-disabled users by external auth id. An
// adapter in cmd wires it to the user service.
type UserDirectory interface {
	GetByAuthID(ctx context.Context, authID string) (*user.User, error)
}

type Service struct {
	repo          Repository
	users         UserDirectory
	mrnSystemCode string
}

func NewService(repo Repository, users UserDirectory, mrnSystemCode string) *Service {
	return &Service{repo: repo, users: users, mrnSystemCode: mrnSystemCode}
}

// CreatePatient creates the patient row for a demographics record.
func (s *Service) CreatePatient(ctx context.Context, demographicsID uuid.UUID, registrationEmail *string) (uuid.UUID, error) {
	p := &Patient{DemographicsID: demographicsID, RegistrationEmail: registrationEmail}
	if err := s.repo.Create(ctx, p); err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// AddRelationship links a user to a patient in the given role.
func (s *Service) AddRelationship(ctx context.Context, userID, patientID uuid.UUID, roleCode string) error {
	return s.repo.AddRelationship(ctx, &Relationship{
		UserID:    userID,
		PatientID: patientID,
		RoleCode:  roleCode,
	})
}

// UpdateRegistrationEmail replaces a patient's registration-purpose
// email.
func (s *Service) UpdateRegistrationEmail(ctx context.Context, patientID uuid.UUID, email string) error {
	return s.repo.UpdateRegistrationEmail(ctx, patientID, email)
}

// AccessDecision reports whether the user behind authID may access the
// patient behind mrn. Both sides must resolve; access is granted iff
// any relationship row exists, regardless of role. A resolvable pair
// without a relationship yields false, not an error.
func (s *Service) AccessDecision(ctx context.Context, userAuthID, mrn string) (bool, error) {
	u, err := s.users.GetByAuthID(ctx, userAuthID)
	if err != nil {
		return false, err
	}
	p, err := s.repo.GetByMRN(ctx, mrn, s.mrnSystemCode)
	if err != nil {
		return false, err
	}
	return s.repo.HasRelationship(ctx, u.ID, p.ID)
}

// GetByMRN resolves a patient by MRN. When userAuthID is non-empty the
// caller's relationship is checked and a missing one is reported as
// ErrPatientNotFound.
func (s *Service) GetByMRN(ctx context.Context, mrn, userAuthID string) (*Patient, error) {
	p, err := s.repo.GetByMRN(ctx, mrn, s.mrnSystemCode)
	if err != nil {
		return nil, err
	}
	if userAuthID == "" {
		return p, nil
	}
	u, err := s.users.GetByAuthID(ctx, userAuthID)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.HasRelationship(ctx, u.ID, p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

// ListForUser returns every patient related to the user behind authID,
// annotated with the relationship role.
func (s *Service) ListForUser(ctx context.Context, userAuthID string) ([]*PatientWithRole, error) {
	u, err := s.users.GetByAuthID(ctx, userAuthID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, u.ID)
}
