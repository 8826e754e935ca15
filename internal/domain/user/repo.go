package user

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists the user with its demographics, telecoms,
	// addresses, role links and identifier links.
	Create(ctx context.Context, u *User) error
	// Update persists the user and demographics scalar fields plus
	// the role links. Owned collections are synced separately.
	Update(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	// GetByAuthID resolves a non-disabled user by external auth id.
	GetByAuthID(ctx context.Context, authID string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	// Search matches term as a substring of first or last name.
	Search(ctx context.Context, term string, limit, offset int) ([]*User, int, error)
	SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error
	// ResolveRoles returns the subset of codes that exist as roles.
	// Unknown codes are dropped, not an error.
	ResolveRoles(ctx context.Context, codes []string) ([]Role, error)
	// SyncIdentifiers replaces the demographics_identifier links for
	// a demographics record with exactly the given identifier ids.
	SyncIdentifiers(ctx context.Context, demographicsID uuid.UUID, identifierIDs []uuid.UUID) error
	UpsertTelecom(ctx context.Context, t *Telecom) error
	UpsertAddress(ctx context.Context, a *Address) error
}
