package identifier

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetSystemByCode(ctx context.Context, code string) (*System, error)
	ListSystemGenerated(ctx context.Context) ([]*System, error)
	FindByValueAndSystem(ctx context.Context, value, systemCode string) (*Identifier, error)
	Create(ctx context.Context, ident *Identifier) error
	// DeleteIfUnreferenced removes an identifier row only when no
	// demographics record still points at it.
	DeleteIfUnreferenced(ctx context.Context, id uuid.UUID) error
}
