// Package identifier owns identifier systems and the identifier store.
// An identifier is a (value, system) pair unique across the store;
// systems are either user-supplied (SSN, external IDs) or system
// generated (MRN), in which case only this service issues values.
package identifier

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSystemNotFound is returned when an identifier references a system
// code with no corresponding identifier_system row.
var ErrSystemNotFound = errors.New("identifier system not found")

// System maps to the identifier_system table.
type System struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Code            string    `db:"code" json:"code"`
	DisplayName     *string   `db:"display_name" json:"display_name,omitempty"`
	SystemGenerated bool      `db:"system_generated" json:"system_generated"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Identifier maps to the identifier table, joined with its system.
type Identifier struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Value           string    `db:"value" json:"value"`
	SystemID        uuid.UUID `db:"system_id" json:"system_id"`
	SystemCode      string    `db:"system_code" json:"system_code"`
	SystemGenerated bool      `db:"system_generated" json:"system_generated"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
