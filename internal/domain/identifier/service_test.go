package identifier

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/c2s/ums/internal/platform/db"
)

type mockRepo struct {
	systems     map[string]*System
	idents      map[string]*Identifier // keyed by value + "|" + system code
	failCreates int                    // next N creates fail with a unique violation
	refs        map[uuid.UUID]int      // demographics references per identifier
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		systems: make(map[string]*System),
		idents:  make(map[string]*Identifier),
		refs:    make(map[uuid.UUID]int),
	}
}

func (m *mockRepo) addSystem(code string, generated bool) *System {
	s := &System{ID: uuid.New(), Code: code, SystemGenerated: generated}
	m.systems[code] = s
	return s
}

func (m *mockRepo) GetSystemByCode(_ context.Context, code string) (*System, error) {
	s, ok := m.systems[code]
	if !ok {
		return nil, ErrSystemNotFound
	}
	return s, nil
}

func (m *mockRepo) ListSystemGenerated(_ context.Context) ([]*System, error) {
	var out []*System
	for _, s := range m.systems {
		if s.SystemGenerated {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) FindByValueAndSystem(_ context.Context, value, systemCode string) (*Identifier, error) {
	return m.idents[value+"|"+systemCode], nil
}

func (m *mockRepo) Create(_ context.Context, ident *Identifier) error {
	if m.failCreates > 0 {
		m.failCreates--
		return &pgconn.PgError{Code: "23505"}
	}
	ident.ID = uuid.New()
	m.idents[ident.Value+"|"+ident.SystemCode] = ident
	return nil
}

func (m *mockRepo) DeleteIfUnreferenced(_ context.Context, id uuid.UUID) error {
	if m.refs[id] > 0 {
		return nil
	}
	for k, ident := range m.idents {
		if ident.ID == id {
			delete(m.idents, k)
		}
	}
	return nil
}

func TestResolveOrCreate_CreatesAndReuses(t *testing.T) {
	repo := newMockRepo()
	repo.addSystem("SSN", false)
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.ResolveOrCreate(ctx, "123-45-6789", "SSN")
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	if first.Value != "123-45-6789" || first.SystemCode != "SSN" {
		t.Errorf("identifier = %+v", first)
	}

	second, err := svc.ResolveOrCreate(ctx, "123-45-6789", "SSN")
	if err != nil {
		t.Fatalf("ResolveOrCreate again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same identifier row, got %s and %s", first.ID, second.ID)
	}
}

func TestResolveOrCreate_UnknownSystem(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.ResolveOrCreate(context.Background(), "v1", "NPI")
	if !errors.Is(err, ErrSystemNotFound) {
		t.Fatalf("err = %v, want ErrSystemNotFound", err)
	}
}

func TestResolveOrCreate_ConcurrentInsert(t *testing.T) {
	repo := newMockRepo()
	repo.addSystem("SSN", false)
	svc := NewService(repo)

	// Another transaction wins the insert race. The unique violation
	// has already aborted our transaction, so the loser reports a
	// conflict instead of re-reading.
	repo.failCreates = 1

	_, err := svc.ResolveOrCreate(context.Background(), "v9", "SSN")
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("err = %v, want db.ErrConflict", err)
	}
}

func TestIssueGenerated_ValueCollision(t *testing.T) {
	repo := newMockRepo()
	mrn := repo.addSystem("MRN", true)
	svc := NewService(repo)

	repo.failCreates = 1

	_, err := svc.IssueGenerated(context.Background(), mrn)
	if !errors.Is(err, db.ErrConflict) {
		t.Fatalf("err = %v, want db.ErrConflict", err)
	}
}

func TestIssueGenerated(t *testing.T) {
	repo := newMockRepo()
	mrn := repo.addSystem("MRN", true)
	svc := NewService(repo)
	ctx := context.Background()

	a, err := svc.IssueGenerated(ctx, mrn)
	if err != nil {
		t.Fatalf("IssueGenerated: %v", err)
	}
	b, err := svc.IssueGenerated(ctx, mrn)
	if err != nil {
		t.Fatalf("IssueGenerated: %v", err)
	}
	if a.Value == b.Value {
		t.Errorf("two issued values collided: %s", a.Value)
	}
	if !a.SystemGenerated {
		t.Errorf("issued identifier not flagged system generated")
	}
}

func TestIssueGenerated_RejectsUserSuppliedSystem(t *testing.T) {
	repo := newMockRepo()
	ssn := repo.addSystem("SSN", false)
	svc := NewService(repo)

	if _, err := svc.IssueGenerated(context.Background(), ssn); err == nil {
		t.Fatal("expected error issuing against a user-supplied system")
	}
}

func TestRelease_KeepsReferencedIdentifier(t *testing.T) {
	repo := newMockRepo()
	repo.addSystem("SSN", false)
	svc := NewService(repo)
	ctx := context.Background()

	ident, err := svc.ResolveOrCreate(ctx, "shared", "SSN")
	if err != nil {
		t.Fatalf("ResolveOrCreate: %v", err)
	}
	repo.refs[ident.ID] = 1

	if err := svc.Release(ctx, ident.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got, _ := svc.Find(ctx, "shared", "SSN"); got == nil {
		t.Error("referenced identifier was deleted")
	}

	repo.refs[ident.ID] = 0
	if err := svc.Release(ctx, ident.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got, _ := svc.Find(ctx, "shared", "SSN"); got != nil {
		t.Error("unreferenced identifier survived release")
	}
}
