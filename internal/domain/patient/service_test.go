package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/c2s/ums/internal/domain/user"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	mrns     map[string]uuid.UUID // mrn|system -> patient id
	rels     map[string]*Relationship
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[uuid.UUID]*Patient),
		mrns:     make(map[string]uuid.UUID),
		rels:     make(map[string]*Relationship),
	}
}

func relKey(userID, patientID uuid.UUID, role string) string {
	return userID.String() + "|" + patientID.String() + "|" + role
}

func (m *mockRepo) addMRN(mrn, system string, patientID uuid.UUID) {
	m.mrns[mrn+"|"+system] = patientID
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockRepo) GetByMRN(_ context.Context, mrn, system string) (*Patient, error) {
	id, ok := m.mrns[mrn+"|"+system]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return m.patients[id], nil
}

func (m *mockRepo) UpdateRegistrationEmail(_ context.Context, id uuid.UUID, email string) error {
	p, ok := m.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	p.RegistrationEmail = &email
	return nil
}

func (m *mockRepo) AddRelationship(_ context.Context, rel *Relationship) error {
	m.rels[relKey(rel.UserID, rel.PatientID, rel.RoleCode)] = rel
	return nil
}

func (m *mockRepo) HasRelationship(_ context.Context, userID, patientID uuid.UUID) (bool, error) {
	for _, rel := range m.rels {
		if rel.UserID == userID && rel.PatientID == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*PatientWithRole, error) {
	var out []*PatientWithRole
	for _, rel := range m.rels {
		if rel.UserID != userID {
			continue
		}
		out = append(out, &PatientWithRole{
			Patient:          *m.patients[rel.PatientID],
			RelationshipRole: rel.RoleCode,
		})
	}
	return out, nil
}

type mockDirectory struct {
	users map[string]*user.User
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{users: make(map[string]*user.User)}
}

func (d *mockDirectory) addUser(authID string) *user.User {
	u := &user.User{ID: uuid.New(), UserAuthID: &authID}
	d.users[authID] = u
	return u
}

func (d *mockDirectory) GetByAuthID(_ context.Context, authID string) (*user.User, error) {
	u, ok := d.users[authID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func newTestService() (*Service, *mockRepo, *mockDirectory) {
	repo := newMockRepo()
	dir := newMockDirectory()
	return NewService(repo, dir, "MRN"), repo, dir
}

func seedPatient(t *testing.T, svc *Service, repo *mockRepo, mrn string) *Patient {
	t.Helper()
	id, err := svc.CreatePatient(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	repo.addMRN(mrn, "MRN", id)
	return repo.patients[id]
}

func TestAccessDecision(t *testing.T) {
	svc, repo, dir := newTestService()
	ctx := context.Background()

	u := dir.addUser("auth-1")
	p := seedPatient(t, svc, repo, "mrn-1")

	granted, err := svc.AccessDecision(ctx, "auth-1", "mrn-1")
	if err != nil {
		t.Fatalf("AccessDecision: %v", err)
	}
	if granted {
		t.Error("access granted without a relationship")
	}

	if err := svc.AddRelationship(ctx, u.ID, p.ID, "caregiver"); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}
	granted, err = svc.AccessDecision(ctx, "auth-1", "mrn-1")
	if err != nil {
		t.Fatalf("AccessDecision: %v", err)
	}
	if !granted {
		t.Error("access denied despite a caregiver relationship")
	}
}

func TestAccessDecision_UnknownUser(t *testing.T) {
	svc, repo, _ := newTestService()
	seedPatient(t, svc, repo, "mrn-1")

	_, err := svc.AccessDecision(context.Background(), "nobody", "mrn-1")
	if !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestAccessDecision_UnknownMRN(t *testing.T) {
	svc, _, dir := newTestService()
	dir.addUser("auth-1")

	_, err := svc.AccessDecision(context.Background(), "auth-1", "missing")
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("err = %v, want ErrPatientNotFound", err)
	}
}

func TestGetByMRN_PlainLookup(t *testing.T) {
	svc, repo, _ := newTestService()
	p := seedPatient(t, svc, repo, "mrn-1")

	got, err := svc.GetByMRN(context.Background(), "mrn-1", "")
	if err != nil {
		t.Fatalf("GetByMRN: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("patient = %s, want %s", got.ID, p.ID)
	}
}

func TestGetByMRN_ScopedWithoutRelationship(t *testing.T) {
	svc, repo, dir := newTestService()
	dir.addUser("auth-1")
	seedPatient(t, svc, repo, "mrn-1")

	_, err := svc.GetByMRN(context.Background(), "mrn-1", "auth-1")
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("err = %v, want ErrPatientNotFound to hide existence", err)
	}
}

func TestGetByMRN_ScopedWithRelationship(t *testing.T) {
	svc, repo, dir := newTestService()
	ctx := context.Background()
	u := dir.addUser("auth-1")
	p := seedPatient(t, svc, repo, "mrn-1")
	if err := svc.AddRelationship(ctx, u.ID, p.ID, "patient"); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	got, err := svc.GetByMRN(ctx, "mrn-1", "auth-1")
	if err != nil {
		t.Fatalf("GetByMRN: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("patient = %s, want %s", got.ID, p.ID)
	}
}

func TestListForUser(t *testing.T) {
	svc, repo, dir := newTestService()
	ctx := context.Background()
	u := dir.addUser("auth-1")
	self := seedPatient(t, svc, repo, "mrn-1")
	ward := seedPatient(t, svc, repo, "mrn-2")
	seedPatient(t, svc, repo, "mrn-3") // unrelated

	if err := svc.AddRelationship(ctx, u.ID, self.ID, "patient"); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}
	if err := svc.AddRelationship(ctx, u.ID, ward.ID, "caregiver"); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	patients, err := svc.ListForUser(ctx, "auth-1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(patients) != 2 {
		t.Fatalf("patients = %d, want 2", len(patients))
	}
	roles := map[uuid.UUID]string{}
	for _, p := range patients {
		roles[p.ID] = p.RelationshipRole
	}
	if roles[self.ID] != "patient" || roles[ward.ID] != "caregiver" {
		t.Errorf("roles = %v", roles)
	}
}

func TestAddRelationship_IdempotentPerRole(t *testing.T) {
	svc, repo, dir := newTestService()
	ctx := context.Background()
	u := dir.addUser("auth-1")
	p := seedPatient(t, svc, repo, "mrn-1")

	for i := 0; i < 2; i++ {
		if err := svc.AddRelationship(ctx, u.ID, p.ID, "patient"); err != nil {
			t.Fatalf("AddRelationship: %v", err)
		}
	}
	if len(repo.rels) != 1 {
		t.Errorf("relationship rows = %d, want 1", len(repo.rels))
	}
}

func TestUpdateRegistrationEmail(t *testing.T) {
	svc, repo, _ := newTestService()
	p := seedPatient(t, svc, repo, "mrn-1")

	if err := svc.UpdateRegistrationEmail(context.Background(), p.ID, "new@b.com"); err != nil {
		t.Fatalf("UpdateRegistrationEmail: %v", err)
	}
	if p.RegistrationEmail == nil || *p.RegistrationEmail != "new@b.com" {
		t.Errorf("email = %v", p.RegistrationEmail)
	}

	err := svc.UpdateRegistrationEmail(context.Background(), uuid.New(), "x@b.com")
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("err = %v, want ErrPatientNotFound", err)
	}
}
