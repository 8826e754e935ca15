package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/c2s/ums/internal/domain/identifier"
	"github.com/c2s/ums/internal/platform/db"
)

// IdentifierStore is the identifier service surface this package
// consumes.
type IdentifierStore interface {
	ResolveOrCreate(ctx context.Context, value, systemCode string) (*identifier.Identifier, error)
	Release(ctx context.Context, id uuid.UUID) error
	GeneratedSystems(ctx context.Context) ([]*identifier.System, error)
	IssueGenerated(ctx context.Context, sys *identifier.System) (*identifier.Identifier, error)
}

// PatientLedger is the patient-domain surface this package consumes.
// An adapter in cmd wires it to the patient service.
type PatientLedger interface {
	CreatePatient(ctx context.Context, demographicsID uuid.UUID, registrationEmail *string) (uuid.UUID, error)
	AddRelationship(ctx context.Context, userID, patientID uuid.UUID, roleCode string) error
	UpdateRegistrationEmail(ctx context.Context, patientID uuid.UUID, email string) error
}

// RecordPublisher delivers FHIR projections downstream. Delivery is
// best effort; failures are logged, never surfaced to callers.
type RecordPublisher interface {
	PublishNew(ctx context.Context, resource map[string]interface{}) error
	PublishUpdate(ctx context.Context, resource map[string]interface{}) error
}

// AccountActivator flips login accounts in the external identity
// provider. Same best-effort policy as the publisher.
type AccountActivator interface {
	Activate(ctx context.Context, userAuthID string) error
	Deactivate(ctx context.Context, userAuthID string) error
}

// TxRunner executes fn inside one database transaction. Tests inject a
// passthrough.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

type Service struct {
	repo      Repository
	store     IdentifierStore
	patients  PatientLedger
	publisher RecordPublisher
	activator AccountActivator
	runTx     TxRunner
	merger    *Merger
	log       zerolog.Logger
}

func NewService(repo Repository, store IdentifierStore, patients PatientLedger, runTx TxRunner, ssnSystemCode string, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		patients: patients,
		runTx:    runTx,
		merger:   NewMerger(store, ssnSystemCode),
		log:      log,
	}
}

// SetPublisher attaches the optional record publisher.
func (s *Service) SetPublisher(p RecordPublisher) { s.publisher = p }

// SetActivator attaches the optional account activator.
func (s *Service) SetActivator(a AccountActivator) { s.activator = a }

// RegisterUser creates a user with its demographics aggregate. When
// the resolved role set includes "patient", an email is required, one
// identifier per system-generated system is issued, and a patient row
// plus a self relationship are created. Everything up to the commit is
// one transaction; publishing happens after, best effort.
func (s *Service) RegisterUser(ctx context.Context, in *UserInput) (*User, error) {
	u := &User{
		UserAuthID: in.UserAuthID,
		Locale:     in.Locale,
		Demographics: Demographics{
			FirstName:  in.FirstName,
			MiddleName: in.MiddleName,
			LastName:   in.LastName,
			BirthDate:  in.BirthDate,
			GenderCode: in.GenderCode,
		},
	}

	err := s.runTx(ctx, func(ctx context.Context) error {
		roles, err := s.repo.ResolveRoles(ctx, in.RoleCodes)
		if err != nil {
			return err
		}
		u.Roles = roles

		d := &u.Demographics
		if _, err := s.merger.ReconcileIdentifiers(ctx, d, in.Identifiers); err != nil {
			return err
		}
		if in.SSN != nil {
			if _, err := s.merger.ReconcileSSN(ctx, d, in.SSN); err != nil {
				return err
			}
		}
		if err := s.merger.ReconcileTelecoms(d, in.Telecoms); err != nil {
			return err
		}
		if err := s.merger.ReconcileAddresses(d, in.Addresses); err != nil {
			return err
		}

		isPatient := u.HasRole(RolePatient)
		if isPatient {
			if d.EmailTelecom() == nil && (in.RegistrationEmail == nil || *in.RegistrationEmail == "") {
				return ErrMissingEmail
			}
			systems, err := s.store.GeneratedSystems(ctx)
			if err != nil {
				return err
			}
			for _, sys := range systems {
				issued, err := s.store.IssueGenerated(ctx, sys)
				if err != nil {
					return err
				}
				d.Identifiers = append(d.Identifiers, issued)
			}
		}

		if err := s.repo.Create(ctx, u); err != nil {
			if db.IsUniqueViolation(err) {
				return db.ErrConflict
			}
			return err
		}

		if isPatient {
			patientID, err := s.patients.CreatePatient(ctx, d.ID, in.RegistrationEmail)
			if err != nil {
				return err
			}
			if err := s.patients.AddRelationship(ctx, u.ID, patientID, RolePatient); err != nil {
				return err
			}
			d.PatientID = &patientID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishNew(ctx, u)
	return u, nil
}

// UpdateUser loads the user, applies scalar fields and the role set,
// runs the merge engine, and persists the result in one transaction.
// Unknown role codes are dropped. The registration-purpose email is
// ignored when the user has no patient.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in *UserInput) (*User, error) {
	var u *User

	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		u.Locale = in.Locale
		roles, err := s.repo.ResolveRoles(ctx, in.RoleCodes)
		if err != nil {
			return err
		}
		u.Roles = roles

		d := &u.Demographics
		d.FirstName = in.FirstName
		d.MiddleName = in.MiddleName
		d.LastName = in.LastName
		d.BirthDate = in.BirthDate
		d.GenderCode = in.GenderCode

		if in.RegistrationEmail != nil && d.PatientID != nil {
			if err := s.patients.UpdateRegistrationEmail(ctx, *d.PatientID, *in.RegistrationEmail); err != nil {
				return err
			}
		}

		detached, err := s.merger.ReconcileIdentifiers(ctx, d, in.Identifiers)
		if err != nil {
			return err
		}
		ssnDetached, err := s.merger.ReconcileSSN(ctx, d, in.SSN)
		if err != nil {
			return err
		}
		detached = append(detached, ssnDetached...)

		if err := s.merger.ReconcileTelecoms(d, in.Telecoms); err != nil {
			return err
		}
		if err := s.merger.ReconcileAddresses(d, in.Addresses); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, u); err != nil {
			if db.IsUniqueViolation(err) {
				return db.ErrConflict
			}
			return err
		}

		identifierIDs := make([]uuid.UUID, 0, len(d.Identifiers))
		for _, ident := range d.Identifiers {
			identifierIDs = append(identifierIDs, ident.ID)
		}
		if err := s.repo.SyncIdentifiers(ctx, d.ID, identifierIDs); err != nil {
			return err
		}
		for _, t := range d.Telecoms {
			if err := s.repo.UpsertTelecom(ctx, t); err != nil {
				return err
			}
		}
		for _, a := range d.Addresses {
			if err := s.repo.UpsertAddress(ctx, a); err != nil {
				return err
			}
		}

		// Links are gone now, so orphaned identifier rows can go too.
		for _, ident := range detached {
			if err := s.store.Release(ctx, ident.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, u)
	return u, nil
}

// GetUser returns the user aggregate by surrogate id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetUserByAuthID resolves a non-disabled user by external auth id.
func (s *Service) GetUserByAuthID(ctx context.Context, authID string) (*User, error) {
	return s.repo.GetByAuthID(ctx, authID)
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// SearchUsers matches term against first and last name.
func (s *Service) SearchUsers(ctx context.Context, term string, limit, offset int) ([]*User, int, error) {
	return s.repo.Search(ctx, term, limit, offset)
}

// DisableUser flips the disabled flag on and deactivates the external
// account. The flag commits first; the external call is best effort.
func (s *Service) DisableUser(ctx context.Context, id uuid.UUID) error {
	return s.setDisabled(ctx, id, true)
}

// EnableUser flips the disabled flag off and reactivates the external
// account.
func (s *Service) EnableUser(ctx context.Context, id uuid.UUID) error {
	return s.setDisabled(ctx, id, false)
}

func (s *Service) setDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	var authID string

	err := s.runTx(ctx, func(ctx context.Context) error {
		u, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u.UserAuthID == nil || *u.UserAuthID == "" {
			return ErrUserActivationNotFound
		}
		authID = *u.UserAuthID
		return s.repo.SetDisabled(ctx, id, disabled)
	})
	if err != nil {
		return err
	}

	if s.activator != nil {
		var actErr error
		if disabled {
			actErr = s.activator.Deactivate(ctx, authID)
		} else {
			actErr = s.activator.Activate(ctx, authID)
		}
		if actErr != nil {
			s.log.Error().Err(actErr).
				Str("user_id", id.String()).
				Bool("disabled", disabled).
				Msg("external account activation call failed")
		}
	}
	return nil
}

func (s *Service) publishNew(ctx context.Context, u *User) {
	if s.publisher == nil || u.Demographics.PatientID == nil {
		return
	}
	if err := s.publisher.PublishNew(ctx, u.ToFHIRPatient(*u.Demographics.PatientID)); err != nil {
		s.log.Error().Err(err).
			Str("user_id", u.ID.String()).
			Msg("patient record publish failed")
	}
}

func (s *Service) publishUpdate(ctx context.Context, u *User) {
	if s.publisher == nil || u.Demographics.PatientID == nil {
		return
	}
	if err := s.publisher.PublishUpdate(ctx, u.ToFHIRPatient(*u.Demographics.PatientID)); err != nil {
		s.log.Error().Err(err).
			Str("user_id", u.ID.String()).
			Msg("patient record publish failed")
	}
}
