package roster

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence capability the reconciliation engine consumes.
type Store interface {
	// Due returns every person still worth checking: not yet recorded dead,
	// with at least a page title or an entity ID to look up.
	Due(ctx context.Context) ([]TrackedPerson, error)

	// RecordVitals refreshes a living person's birth date, age and entity ID.
	RecordVitals(ctx context.Context, id uuid.UUID, update VitalsUpdate) error

	// RecordDeath marks a person dead. The row drops out of Due from the
	// next pass on.
	RecordDeath(ctx context.Context, id uuid.UUID, update DeathUpdate) error

	// OptInRecipients lists subscribers for death broadcasts.
	OptInRecipients(ctx context.Context) ([]Recipient, error)
}
