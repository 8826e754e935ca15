package identifier

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/c2s/ums/internal/platform/db"
)

// Service is the identifier store consumed by the user and patient
// domains. Creation is idempotent per (value, system) pair.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Find returns the identifier for (value, systemCode), or nil when no
// such identifier exists.
func (s *Service) Find(ctx context.Context, value, systemCode string) (*Identifier, error) {
	return s.repo.FindByValueAndSystem(ctx, value, systemCode)
}

// SystemByCode resolves a system code, returning ErrSystemNotFound
// when no row matches.
func (s *Service) SystemByCode(ctx context.Context, code string) (*System, error) {
	return s.repo.GetSystemByCode(ctx, code)
}

// ResolveOrCreate looks up (value, systemCode) and creates the
// identifier when absent. The system must already exist; unknown codes
// fail with ErrSystemNotFound. Losing an insert race surfaces
// db.ErrConflict: the unique violation aborts the enclosing
// transaction, so a re-read on the same connection cannot succeed.
func (s *Service) ResolveOrCreate(ctx context.Context, value, systemCode string) (*Identifier, error) {
	if existing, err := s.repo.FindByValueAndSystem(ctx, value, systemCode); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	sys, err := s.repo.GetSystemByCode(ctx, systemCode)
	if err != nil {
		return nil, err
	}

	ident := &Identifier{
		Value:           value,
		SystemID:        sys.ID,
		SystemCode:      sys.Code,
		SystemGenerated: sys.SystemGenerated,
	}
	if err := s.repo.Create(ctx, ident); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("identifier %s/%s: %w", systemCode, value, db.ErrConflict)
		}
		return nil, err
	}
	return ident, nil
}

// IssueGenerated mints a fresh value for a system-generated system and
// stores it. The unique constraint on (value, system) is the only
// collision check.
func (s *Service) IssueGenerated(ctx context.Context, sys *System) (*Identifier, error) {
	if !sys.SystemGenerated {
		return nil, fmt.Errorf("identifier: system %s is not system generated", sys.Code)
	}
	ident := &Identifier{
		Value:           GenerateValue(),
		SystemID:        sys.ID,
		SystemCode:      sys.Code,
		SystemGenerated: true,
	}
	if err := s.repo.Create(ctx, ident); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("identifier %s/%s: %w", sys.Code, ident.Value, db.ErrConflict)
		}
		return nil, err
	}
	return ident, nil
}

// GeneratedSystems lists every system-generated identifier system.
func (s *Service) GeneratedSystems(ctx context.Context) ([]*System, error) {
	return s.repo.ListSystemGenerated(ctx)
}

// Release drops an identifier that no demographics record references
// anymore. Shared identifiers survive.
func (s *Service) Release(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteIfUnreferenced(ctx, id)
}
