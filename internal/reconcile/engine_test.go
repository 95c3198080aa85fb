package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortality/internal/biography"
	"mortality/internal/dates"
	"mortality/internal/events"
	"mortality/internal/notify"
	"mortality/internal/roster"
	"mortality/pkg/platform/retry"
	"mortality/pkg/platform/sentinel"
)

type fakeSource struct {
	facts map[string]biography.Facts
	errs  map[string]error
	calls int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Facts(_ context.Context, subject biography.Subject) (biography.Facts, error) {
	f.calls++
	if err, ok := f.errs[subject.EntityID]; ok {
		return biography.Facts{}, err
	}
	return f.facts[subject.EntityID], nil
}

type fakeResolver struct {
	ids map[string]string
}

func (f *fakeResolver) Resolve(_ context.Context, pageTitle string) (string, error) {
	if id, ok := f.ids[pageTitle]; ok {
		return id, nil
	}
	return "", fmt.Errorf("no entity for %q: %w", pageTitle, sentinel.ErrNotFound)
}

type fakeChat struct {
	msgs []notify.Message
}

func (f *fakeChat) Post(_ context.Context, msg notify.Message) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeSMS struct {
	bodies  []string
	numbers [][]string
}

func (f *fakeSMS) Broadcast(_ context.Context, body string, numbers []string) error {
	f.bodies = append(f.bodies, body)
	f.numbers = append(f.numbers, numbers)
	return nil
}

type fakePublisher struct {
	events []events.StatusEvent
}

func (f *fakePublisher) Publish(_ context.Context, event events.StatusEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeCommentator struct {
	remark string
	err    error
}

func (f *fakeCommentator) Remark(_ context.Context, _ string, _ *int) (string, error) {
	return f.remark, f.err
}

type fixture struct {
	store     *roster.MemoryStore
	source    *fakeSource
	resolver  *fakeResolver
	chat      *fakeChat
	sms       *fakeSMS
	publisher *fakePublisher
	engine    *Engine
}

// april22 is the reference instant for every test run: the day after the
// death date used in the death-flow fixtures.
var april22 = time.Date(2016, time.April, 22, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...func(*Params)) *fixture {
	t.Helper()
	f := &fixture{
		store:     roster.NewMemory(),
		source:    &fakeSource{facts: map[string]biography.Facts{}, errs: map[string]error{}},
		resolver:  &fakeResolver{ids: map[string]string{}},
		chat:      &fakeChat{},
		sms:       &fakeSMS{},
		publisher: &fakePublisher{},
	}
	params := Params{
		Store:    f.store,
		Resolver: f.resolver,
		Source:   f.source,
		Chat:     f.chat,
		SMS:      f.sms,
		Events:   f.publisher,
		Log:      slog.New(slog.DiscardHandler),
		Retry:    retry.Policy{Attempts: 2, Sleep: func(time.Duration) {}},
		Now:      func() time.Time { return april22 },
	}
	for _, opt := range opts {
		opt(&params)
	}
	f.engine = New(params)
	return f
}

func datePtr(d dates.Date) *dates.Date { return &d }

func TestEngine_DeathFlow(t *testing.T) {
	f := newFixture(t)
	age := 58
	id := f.store.Add(roster.TrackedPerson{Name: "Prince", PageTitle: "Prince (musician)", EntityID: "Q7542", KnownAge: &age})
	f.store.SetRecipients([]roster.Recipient{
		{Name: "Pat", PhoneNumber: "+15550100"},
		{Name: "Sam", PhoneNumber: "+15550101"},
	})
	f.source.facts["Q7542"] = biography.Facts{
		Birth: datePtr(dates.New(1958, time.June, 7)),
		Death: datePtr(dates.New(2016, time.April, 21)),
	}

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified)
	assert.Equal(t, 1, report.Total())

	_, _, death, ok := f.store.Snapshot(id)
	require.True(t, ok)
	require.NotNil(t, death)
	assert.Equal(t, "2016-04-21", death.String())

	require.Len(t, f.chat.msgs, 1)
	msg := f.chat.msgs[0]
	assert.Equal(t, "New Death Alert", msg.Title)
	assert.Equal(t, notify.Detail{Label: "Age", Value: "57"}, msg.Details[1], "age at death, not age today")

	require.Len(t, f.sms.bodies, 1)
	assert.Equal(t, "Prince has died at the age 57.", f.sms.bodies[0])
	assert.Equal(t, []string{"+15550100", "+15550101"}, f.sms.numbers[0])

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.StatusDied, f.publisher.events[0].Status)
	assert.Equal(t, "2016-04-21", f.publisher.events[0].DeathDate)
	assert.Equal(t, report.RunID.String(), f.publisher.events[0].RunID)
}

func TestEngine_SecondRunAfterDeathIsQuiet(t *testing.T) {
	f := newFixture(t)
	f.store.Add(roster.TrackedPerson{Name: "Prince", EntityID: "Q7542"})
	f.source.facts["Q7542"] = biography.Facts{
		Birth: datePtr(dates.New(1958, time.June, 7)),
		Death: datePtr(dates.New(2016, time.April, 21)),
	}

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total(), "the dead drop out of the due roster")
	assert.Len(t, f.chat.msgs, 1, "no second alert")
	assert.Len(t, f.sms.bodies, 1)
}

func TestEngine_VitalsUpdateThenIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.Add(roster.TrackedPerson{Name: "Dick Van Dyke", EntityID: "Q213706"})
	f.source.facts["Q213706"] = biography.Facts{
		Birth: datePtr(dates.New(1925, time.December, 13)),
	}

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated, "first pass records the computed age")

	due, err := f.store.Due(context.Background())
	require.NoError(t, err)
	require.NotNil(t, due[0].KnownAge)
	assert.Equal(t, 90, *due[0].KnownAge, "birthday not yet reached in April")

	report, err = f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged, "same facts, same fingerprint, no write")
	assert.Empty(t, f.chat.msgs)
	assert.Empty(t, f.sms.bodies)
}

func TestEngine_ResolvesEntityFromPageTitle(t *testing.T) {
	f := newFixture(t)
	f.store.Add(roster.TrackedPerson{Name: "Dick Van Dyke", PageTitle: "Dick_Van_Dyke"})
	f.resolver.ids["Dick_Van_Dyke"] = "Q213706"
	f.source.facts["Q213706"] = biography.Facts{
		Birth: datePtr(dates.New(1925, time.December, 13)),
	}

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	due, err := f.store.Due(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Q213706", due[0].EntityID, "resolved ID persisted for the next pass")
}

func TestEngine_PersistsResolvedEntityWhenSourceHasNoFacts(t *testing.T) {
	f := newFixture(t)
	id := f.store.Add(roster.TrackedPerson{Name: "Obscure Person", PageTitle: "Obscure_Person"})
	f.resolver.ids["Obscure_Person"] = "Q99"
	// No facts registered for Q99: the source reports neither birth nor death.

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated, "the resolution alone is worth writing back")

	due, err := f.store.Due(context.Background())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Q99", due[0].EntityID, "resolved ID persisted even with no age to record")
	assert.Nil(t, due[0].KnownAge)

	p, _, _, ok := f.store.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, "Q99", p.EntityID)
}

func TestEngine_NilBirthFetchKeepsStoredBirthDate(t *testing.T) {
	f := newFixture(t)
	id := f.store.Add(roster.TrackedPerson{Name: "Dick Van Dyke", PageTitle: "Dick_Van_Dyke"})
	birth := dates.New(1925, time.December, 13)
	age := 90
	require.NoError(t, f.store.RecordVitals(context.Background(), id, roster.VitalsUpdate{
		BirthDate: &birth,
		Age:       &age,
	}))
	f.resolver.ids["Dick_Van_Dyke"] = "Q213706"
	// The source momentarily has no claims for the entity; the newly
	// resolved ID still changes the fingerprint and triggers a write.

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	p, storedBirth, _, ok := f.store.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, "Q213706", p.EntityID)
	require.NotNil(t, storedBirth, "a fetch with no birth fact must not erase the stored one")
	assert.Equal(t, "1925-12-13", storedBirth.String())
	require.NotNil(t, p.KnownAge)
	assert.Equal(t, 90, *p.KnownAge)
}

func TestEngine_BadPageSkipsWithAlert(t *testing.T) {
	f := newFixture(t)
	id := f.store.Add(roster.TrackedPerson{Name: "Mystery Person", PageTitle: "Mystery_Person"})
	f.store.SetRecipients([]roster.Recipient{{Name: "Pat", PhoneNumber: "+15550100"}})

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	require.Len(t, f.chat.msgs, 1)
	assert.Equal(t, "Bad Wiki Page Alert", f.chat.msgs[0].Title)
	assert.Empty(t, f.sms.bodies, "bad pages never page subscribers")

	p, _, death, ok := f.store.Snapshot(id)
	require.True(t, ok)
	assert.Nil(t, death)
	assert.Nil(t, p.KnownAge, "nothing written for a skipped person")
}

func TestEngine_FetchFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	f.store.Add(roster.TrackedPerson{Name: "Alpha Person", EntityID: "Q1"})
	f.store.Add(roster.TrackedPerson{Name: "Beta Person", EntityID: "Q2"})
	f.source.errs["Q1"] = biography.NewFetchError(biography.CategoryOutage, "fake", "upstream down", nil)
	f.source.facts["Q2"] = biography.Facts{
		Birth: datePtr(dates.New(1970, time.January, 1)),
	}

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Updated)
	assert.GreaterOrEqual(t, f.source.calls, 3, "the outage was retried before giving up")
}

func TestEngine_DeathWithoutBirthDate(t *testing.T) {
	f := newFixture(t)
	id := f.store.Add(roster.TrackedPerson{Name: "Obscure Person", EntityID: "Q9"})
	f.store.SetRecipients([]roster.Recipient{{Name: "Pat", PhoneNumber: "+15550100"}})
	f.source.facts["Q9"] = biography.Facts{
		Death: datePtr(dates.New(2016, time.April, 21)),
	}

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified, "a death with no birth date still gets recorded and announced")

	_, birth, death, ok := f.store.Snapshot(id)
	require.True(t, ok)
	assert.Nil(t, birth)
	require.NotNil(t, death)

	require.Len(t, f.chat.msgs, 1)
	assert.Contains(t, f.chat.msgs[0].Details, notify.Detail{Label: "Age", Value: "unknown"})
	require.Len(t, f.sms.bodies, 1)
	assert.Equal(t, "Obscure Person has died.", f.sms.bodies[0])
}

func TestEngine_CommentaryDecoratesDeathNotice(t *testing.T) {
	f := newFixture(t, func(p *Params) {
		p.Commentator = &fakeCommentator{remark: "A quiet giant of the stage."}
	})
	f.store.Add(roster.TrackedPerson{Name: "Prince", EntityID: "Q7542"})
	f.source.facts["Q7542"] = biography.Facts{
		Birth: datePtr(dates.New(1958, time.June, 7)),
		Death: datePtr(dates.New(2016, time.April, 21)),
	}

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.chat.msgs, 1)
	assert.Contains(t, f.chat.msgs[0].Details, notify.Detail{Label: "Remark", Value: "A quiet giant of the stage."})
}

func TestEngine_CommentaryFailureFallsBackToPlainNotice(t *testing.T) {
	f := newFixture(t, func(p *Params) {
		p.Commentator = &fakeCommentator{err: fmt.Errorf("model unavailable")}
	})
	f.store.Add(roster.TrackedPerson{Name: "Prince", EntityID: "Q7542"})
	f.source.facts["Q7542"] = biography.Facts{
		Birth: datePtr(dates.New(1958, time.June, 7)),
		Death: datePtr(dates.New(2016, time.April, 21)),
	}

	report, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified)

	require.Len(t, f.chat.msgs, 1)
	for _, d := range f.chat.msgs[0].Details {
		assert.NotEqual(t, "Remark", d.Label)
	}
}
