//go:build integration

package roster_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mortality/internal/dates"
	"mortality/internal/roster"
	"mortality/pkg/testutil/containers"
)

const schema = `
CREATE TABLE tracked_people (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	wiki_page TEXT,
	wiki_id TEXT,
	birth_date DATE,
	death_date DATE,
	age INT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE sms_recipients (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	opted_in BOOLEAN NOT NULL DEFAULT TRUE
);
`

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *roster.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), schema)
	s.store = roster.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "tracked_people", "sms_recipients")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) insertPerson(name string, page, entity any) uuid.UUID {
	id := uuid.New()
	_, err := s.postgres.DB.ExecContext(context.Background(),
		`INSERT INTO tracked_people (id, name, wiki_page, wiki_id) VALUES ($1, $2, $3, $4)`,
		id, name, page, entity)
	s.Require().NoError(err)
	return id
}

func (s *PostgresStoreSuite) TestDuePredicate() {
	ctx := context.Background()
	s.insertPerson("Alpha Person", "Alpha Person", nil)
	s.insertPerson("Beta Person", nil, "Q2")
	unworkable := s.insertPerson("Gamma Person", nil, nil)
	_ = unworkable

	dead := s.insertPerson("Dead Person", "Dead Person", "Q3")
	err := s.store.RecordDeath(ctx, dead, roster.DeathUpdate{
		EntityID:  "Q3",
		DeathDate: dates.New(2020, 5, 1),
	})
	s.Require().NoError(err)

	due, err := s.store.Due(ctx)
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal("Alpha Person", due[0].Name)
	s.Equal("Alpha Person", due[0].PageTitle)
	s.Empty(due[0].EntityID)
	s.Nil(due[0].KnownAge)
	s.Equal("Beta Person", due[1].Name)
	s.Equal("Q2", due[1].EntityID)
}

func (s *PostgresStoreSuite) TestRecordVitalsRoundTrip() {
	ctx := context.Background()
	id := s.insertPerson("Alpha Person", "Alpha Person", nil)

	birth := dates.New(1952, 3, 11)
	age := 72
	err := s.store.RecordVitals(ctx, id, roster.VitalsUpdate{
		EntityID:  "Q2252",
		BirthDate: &birth,
		Age:       &age,
	})
	s.Require().NoError(err)

	due, err := s.store.Due(ctx)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal("Q2252", due[0].EntityID, "resolved entity ID written back")
	s.Require().NotNil(due[0].KnownAge)
	s.Equal(72, *due[0].KnownAge)
}

func (s *PostgresStoreSuite) TestRecordVitalsKeepsKnownFactsOnNilUpdate() {
	ctx := context.Background()
	id := s.insertPerson("Alpha Person", "Alpha Person", nil)

	birth := dates.New(1952, 3, 11)
	age := 72
	s.Require().NoError(s.store.RecordVitals(ctx, id, roster.VitalsUpdate{
		EntityID:  "Q2252",
		BirthDate: &birth,
		Age:       &age,
	}))

	// A pass where the source returned no facts must not erase the stored
	// birth date or age.
	s.Require().NoError(s.store.RecordVitals(ctx, id, roster.VitalsUpdate{
		EntityID: "Q2252",
	}))

	var birthDate string
	var storedAge int
	row := s.postgres.DB.QueryRowContext(ctx,
		`SELECT to_char(birth_date, 'YYYY-MM-DD'), age FROM tracked_people WHERE id = $1`, id)
	s.Require().NoError(row.Scan(&birthDate, &storedAge))
	s.Equal("1952-03-11", birthDate)
	s.Equal(72, storedAge)
}

func (s *PostgresStoreSuite) TestRecordDeathKeepsStoredBirthDate() {
	ctx := context.Background()
	id := s.insertPerson("Alpha Person", "Alpha Person", nil)

	birth := dates.New(1952, 3, 11)
	age := 72
	s.Require().NoError(s.store.RecordVitals(ctx, id, roster.VitalsUpdate{
		EntityID:  "Q2252",
		BirthDate: &birth,
		Age:       &age,
	}))

	s.Require().NoError(s.store.RecordDeath(ctx, id, roster.DeathUpdate{
		EntityID:  "Q2252",
		DeathDate: dates.New(2024, 1, 2),
	}))

	var birthDate, deathDate string
	row := s.postgres.DB.QueryRowContext(ctx,
		`SELECT to_char(birth_date, 'YYYY-MM-DD'), to_char(death_date, 'YYYY-MM-DD') FROM tracked_people WHERE id = $1`, id)
	s.Require().NoError(row.Scan(&birthDate, &deathDate))
	s.Equal("1952-03-11", birthDate, "stored birth date survives a death report without one")
	s.Equal("2024-01-02", deathDate)
}

func (s *PostgresStoreSuite) TestRecordDeathWithoutBirth() {
	ctx := context.Background()
	id := s.insertPerson("Beta Person", nil, "Q2")

	err := s.store.RecordDeath(ctx, id, roster.DeathUpdate{
		EntityID:  "Q2",
		DeathDate: dates.New(2021, 8, 14),
	})
	s.Require().NoError(err)

	var deathDate string
	var age *int
	row := s.postgres.DB.QueryRowContext(ctx,
		`SELECT to_char(death_date, 'YYYY-MM-DD'), age FROM tracked_people WHERE id = $1`, id)
	s.Require().NoError(row.Scan(&deathDate, &age))
	s.Equal("2021-08-14", deathDate)
	s.Nil(age, "age stays unknown when the source had no birth date")
}

func (s *PostgresStoreSuite) TestRecordOnMissingRow() {
	age := 50
	err := s.store.RecordVitals(context.Background(), uuid.New(), roster.VitalsUpdate{Age: &age})
	s.Error(err)
}

func (s *PostgresStoreSuite) TestOptInRecipients() {
	ctx := context.Background()
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO sms_recipients (name, phone_number, opted_in) VALUES
		('Pat', '+15550100', TRUE),
		('Sam', '+15550101', FALSE)
	`)
	s.Require().NoError(err)

	recipients, err := s.store.OptInRecipients(ctx)
	s.Require().NoError(err)
	s.Require().Len(recipients, 1)
	s.Equal("Pat", recipients[0].Name)
	s.Equal("+15550100", recipients[0].PhoneNumber)
}
