package roster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mortality/internal/dates"
	"mortality/pkg/platform/sentinel"
)

// memoryRow is the full roster row the memory store keeps, including the
// fields the Store interface only writes.
type memoryRow struct {
	TrackedPerson
	BirthDate *dates.Date
	DeathDate *dates.Date
}

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	people     map[uuid.UUID]*memoryRow
	recipients []Recipient
}

func NewMemory() *MemoryStore {
	return &MemoryStore{people: make(map[uuid.UUID]*memoryRow)}
}

// Add seeds a person and returns the generated ID.
func (s *MemoryStore) Add(p TrackedPerson) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.people[p.ID] = &memoryRow{TrackedPerson: p}
	return p.ID
}

// SetRecipients replaces the subscriber list.
func (s *MemoryStore) SetRecipients(recipients []Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = recipients
}

func (s *MemoryStore) Due(_ context.Context) ([]TrackedPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []TrackedPerson
	for _, row := range s.people {
		if row.DeathDate != nil {
			continue
		}
		if row.PageTitle == "" && row.EntityID == "" {
			continue
		}
		due = append(due, row.TrackedPerson)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Name < due[j].Name })
	return due, nil
}

func (s *MemoryStore) RecordVitals(_ context.Context, id uuid.UUID, update VitalsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.people[id]
	if !ok {
		return fmt.Errorf("person %s: %w", id, sentinel.ErrNotFound)
	}
	if update.EntityID != "" {
		row.EntityID = update.EntityID
	}
	if update.BirthDate != nil {
		row.BirthDate = update.BirthDate
	}
	if update.Age != nil {
		row.KnownAge = update.Age
	}
	return nil
}

func (s *MemoryStore) RecordDeath(_ context.Context, id uuid.UUID, update DeathUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.people[id]
	if !ok {
		return fmt.Errorf("person %s: %w", id, sentinel.ErrNotFound)
	}
	if update.EntityID != "" {
		row.EntityID = update.EntityID
	}
	if update.BirthDate != nil {
		row.BirthDate = update.BirthDate
	}
	death := update.DeathDate
	row.DeathDate = &death
	row.KnownAge = update.Age
	return nil
}

func (s *MemoryStore) OptInRecipients(_ context.Context) ([]Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Recipient, len(s.recipients))
	copy(out, s.recipients)
	return out, nil
}

// Snapshot returns a copy of a person's stored state for assertions.
func (s *MemoryStore) Snapshot(id uuid.UUID) (TrackedPerson, *dates.Date, *dates.Date, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.people[id]
	if !ok {
		return TrackedPerson{}, nil, nil, false
	}
	return row.TrackedPerson, row.BirthDate, row.DeathDate, true
}
