// Package roster persists the set of tracked public figures and the SMS
// recipients who asked to hear about them.
package roster

import (
	"github.com/google/uuid"

	"mortality/internal/dates"
)

// TrackedPerson is one roster row due for reconciliation. PageTitle and
// EntityID are as stored; either may be empty, never both, since the due
// query requires at least one.
type TrackedPerson struct {
	ID        uuid.UUID
	Name      string
	PageTitle string
	EntityID  string

	// KnownAge is the age recorded on a previous pass, nil before the
	// first successful one. It feeds the change fingerprint.
	KnownAge *int
}

// VitalsUpdate refreshes a living person's row after a pass. EntityID is
// written back so titles resolved this run stay resolved. A nil BirthDate or
// Age means the source had no such fact this pass; stores keep whatever they
// already hold rather than erasing it.
type VitalsUpdate struct {
	EntityID  string
	BirthDate *dates.Date
	Age       *int
}

// DeathUpdate closes out a person's row. BirthDate and Age stay nil when the
// source reported a death without a birth; the death still gets recorded and
// any previously stored birth date is left in place.
type DeathUpdate struct {
	EntityID  string
	BirthDate *dates.Date
	DeathDate dates.Date
	Age       *int
}

// Recipient is an opted-in SMS subscriber.
type Recipient struct {
	Name        string
	PhoneNumber string
}
