// Package reconcile walks the roster, compares each person's stored state
// against the biography source, and turns differences into writes and
// notifications.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"mortality/internal/biography"
	"mortality/internal/dates"
	"mortality/internal/events"
	"mortality/internal/notify"
	"mortality/internal/reconcile/metrics"
	"mortality/internal/roster"
	"mortality/pkg/platform/retry"
	"mortality/pkg/platform/sentinel"
)

// Outcome classifies what one pass did for one person.
type Outcome string

const (
	// OutcomeNotified: a new death was recorded and announced.
	OutcomeNotified Outcome = "notified"

	// OutcomeUpdated: vitals changed and were written back.
	OutcomeUpdated Outcome = "updated"

	// OutcomeUnchanged: nothing to do.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeSkipped: the person has no usable upstream record; operators
	// were told to fix the roster row.
	OutcomeSkipped Outcome = "skipped_no_entity"

	// OutcomeFailed: the fetch failed after retries. The row stays due.
	OutcomeFailed Outcome = "failed"
)

// Resolver maps a page title to its structured entity ID.
type Resolver interface {
	Resolve(ctx context.Context, pageTitle string) (string, error)
}

// Report summarizes one full pass.
type Report struct {
	RunID     uuid.UUID
	Notified  int
	Updated   int
	Unchanged int
	Skipped   int
	Failed    int
}

// Total returns the number of people considered.
func (r Report) Total() int {
	return r.Notified + r.Updated + r.Unchanged + r.Skipped + r.Failed
}

// Params collects the engine's collaborators. Store, Resolver, Source and
// Chat are required; the rest default or disable cleanly.
type Params struct {
	Store    roster.Store
	Resolver Resolver
	Source   biography.Source
	Chat     notify.ChatSink
	SMS      notify.SMSSink

	// Commentator decorates death notices; nil disables it.
	Commentator notify.Commentator

	// Events streams status changes; nil disables it.
	Events events.Publisher

	Metrics *metrics.Metrics
	Log     *slog.Logger
	Retry   retry.Policy
	Now     func() time.Time
}

// Engine reconciles the roster against the biography source.
type Engine struct {
	store       roster.Store
	resolver    Resolver
	source      biography.Source
	chat        notify.ChatSink
	sms         notify.SMSSink
	commentator notify.Commentator
	events      events.Publisher
	metrics     *metrics.Metrics
	log         *slog.Logger
	retry       retry.Policy
	now         func() time.Time
}

func New(p Params) *Engine {
	if p.Log == nil {
		p.Log = slog.Default()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Retry.Attempts == 0 {
		p.Retry.Attempts = 3
		p.Retry.Delay = 2 * time.Second
	}
	if p.Retry.Retryable == nil {
		p.Retry.Retryable = biography.IsRetryable
	}
	return &Engine{
		store:       p.Store,
		resolver:    p.Resolver,
		source:      p.Source,
		chat:        p.Chat,
		sms:         p.SMS,
		commentator: p.Commentator,
		events:      p.Events,
		metrics:     p.Metrics,
		log:         p.Log,
		retry:       p.Retry,
		now:         p.Now,
	}
}

// Run executes one full pass over the due roster. A person failing never
// aborts the batch; only being unable to list the roster does.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	start := e.now()
	report := Report{RunID: uuid.New()}
	log := e.log.With("run_id", report.RunID)

	people, err := e.store.Due(ctx)
	if err != nil {
		return report, fmt.Errorf("list due people: %w", err)
	}
	log.Info("starting roster pass", "due", len(people), "source", e.source.Name())

	for _, person := range people {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome := e.reconcile(ctx, log, report.RunID, person)
		e.metrics.IncrementOutcome(string(outcome), e.source.Name())
		switch outcome {
		case OutcomeNotified:
			report.Notified++
		case OutcomeUpdated:
			report.Updated++
		case OutcomeUnchanged:
			report.Unchanged++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
	}

	e.metrics.ObserveRunDuration(e.now().Sub(start))
	log.Info("roster pass complete",
		"notified", report.Notified,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (e *Engine) reconcile(ctx context.Context, log *slog.Logger, runID uuid.UUID, person roster.TrackedPerson) Outcome {
	name := strings.TrimSpace(person.Name)
	page := normalizeTitle(person.PageTitle)
	entityID := strings.TrimSpace(person.EntityID)
	log = log.With("person", name)

	before := Fingerprint(name, page, entityID, person.KnownAge)

	if entityID == "" {
		id, err := e.resolver.Resolve(ctx, page)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			e.reportBadPage(ctx, log, name, page, "page has no linked entity")
			return OutcomeSkipped
		case err != nil:
			log.Error("entity resolution failed", "page", page, "error", err)
			return OutcomeFailed
		}
		entityID = id
	}

	facts, err := e.fetch(ctx, biography.Subject{PageTitle: page, EntityID: entityID})
	switch {
	case biography.IsNotFound(err):
		e.reportBadPage(ctx, log, name, page, err.Error())
		return OutcomeSkipped
	case err != nil:
		log.Error("biography fetch failed", "entity_id", entityID, "error", err)
		return OutcomeFailed
	}

	age := person.KnownAge
	if facts.Birth != nil {
		ref := dates.FromTime(e.now())
		if facts.Death != nil {
			ref = *facts.Death
		}
		n := dates.Age(*facts.Birth, ref)
		age = &n
	}

	if facts.Death != nil {
		return e.recordDeath(ctx, log, runID, person, name, entityID, facts, age)
	}

	// The fingerprint also covers an entity ID resolved this run, so the
	// resolution gets written back even when the vitals themselves held.
	// Nil facts ride along as nil update fields; the store keeps what it
	// already holds for those.
	after := Fingerprint(name, page, entityID, age)
	if before == after {
		return OutcomeUnchanged
	}

	if err := e.store.RecordVitals(ctx, person.ID, roster.VitalsUpdate{
		EntityID:  entityID,
		BirthDate: facts.Birth,
		Age:       age,
	}); err != nil {
		log.Error("record vitals failed", "error", err)
		return OutcomeFailed
	}
	e.publish(ctx, log, events.StatusEvent{
		RunID:    runID.String(),
		PersonID: person.ID.String(),
		Name:     name,
		Status:   events.StatusUpdated,
		Age:      age,
	})
	if age != nil {
		log.Info("vitals updated", "age", *age)
	} else {
		log.Info("vitals updated")
	}
	return OutcomeUpdated
}

func (e *Engine) fetch(ctx context.Context, subject biography.Subject) (biography.Facts, error) {
	var facts biography.Facts
	start := e.now()
	err := retry.Do(ctx, e.retry, func(ctx context.Context) error {
		var ferr error
		facts, ferr = e.source.Facts(ctx, subject)
		return ferr
	})
	e.metrics.ObserveFetchLatency(e.source.Name(), e.now().Sub(start))
	return facts, err
}

func (e *Engine) recordDeath(ctx context.Context, log *slog.Logger, runID uuid.UUID, person roster.TrackedPerson, name, entityID string, facts biography.Facts, age *int) Outcome {
	if err := e.store.RecordDeath(ctx, person.ID, roster.DeathUpdate{
		EntityID:  entityID,
		BirthDate: facts.Birth,
		DeathDate: *facts.Death,
		Age:       age,
	}); err != nil {
		log.Error("record death failed", "error", err)
		return OutcomeFailed
	}
	log.Info("death recorded", "died", facts.Death.String())

	e.announceDeath(ctx, log, name, facts, age)
	e.broadcastDeath(ctx, log, name, age)
	e.publish(ctx, log, events.StatusEvent{
		RunID:     runID.String(),
		PersonID:  person.ID.String(),
		Name:      name,
		Status:    events.StatusDied,
		Age:       age,
		DeathDate: facts.Death.String(),
	})
	return OutcomeNotified
}

// announceDeath posts the operator-facing chat notice. Delivery failure is
// logged and swallowed: the death is already persisted and a retried run
// would no longer see the person as due.
func (e *Engine) announceDeath(ctx context.Context, log *slog.Logger, name string, facts biography.Facts, age *int) {
	if e.chat == nil {
		return
	}
	ageText := "unknown"
	if age != nil {
		ageText = fmt.Sprintf("%d", *age)
	}
	details := []notify.Detail{
		{Label: "Name", Value: name},
		{Label: "Age", Value: ageText},
	}
	if facts.Birth != nil {
		details = append(details, notify.Detail{Label: "Born", Value: facts.Birth.String()})
	}
	details = append(details, notify.Detail{Label: "Died", Value: facts.Death.String()})
	msg := notify.Message{
		Title:   "New Death Alert",
		Emoji:   "skull",
		Details: details,
	}
	if e.commentator != nil {
		remark, err := e.commentator.Remark(ctx, name, age)
		if err != nil {
			log.Warn("commentary failed, sending plain notice", "error", err)
		} else {
			msg.Details = append(msg.Details, notify.Detail{Label: "Remark", Value: remark})
		}
	}
	if err := e.chat.Post(ctx, msg); err != nil {
		log.Warn("death notice delivery failed", "error", err)
	}
}

func (e *Engine) broadcastDeath(ctx context.Context, log *slog.Logger, name string, age *int) {
	if e.sms == nil {
		return
	}
	recipients, err := e.store.OptInRecipients(ctx)
	if err != nil {
		log.Warn("listing sms recipients failed", "error", err)
		return
	}
	numbers := make([]string, 0, len(recipients))
	for _, r := range recipients {
		numbers = append(numbers, r.PhoneNumber)
	}
	body := fmt.Sprintf("%s has died.", name)
	if age != nil {
		body = fmt.Sprintf("%s has died at the age %d.", name, *age)
	}
	if err := e.sms.Broadcast(ctx, body, numbers); err != nil {
		log.Warn("sms broadcast failed", "error", err)
	}
}

func (e *Engine) reportBadPage(ctx context.Context, log *slog.Logger, name, page, reason string) {
	log.Warn("unusable source page", "page", page, "reason", reason)
	if e.chat == nil {
		return
	}
	err := e.chat.Post(ctx, notify.Message{
		Title: "Bad Wiki Page Alert",
		Emoji: "warning",
		Details: []notify.Detail{
			{Label: "Name", Value: name},
			{Label: "Page", Value: page},
			{Label: "Reason", Value: reason},
		},
	})
	if err != nil {
		log.Warn("bad page notice delivery failed", "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, log *slog.Logger, event events.StatusEvent) {
	if e.events == nil {
		return
	}
	event.OccurredAt = e.now()
	if err := e.events.Publish(ctx, event); err != nil {
		log.Warn("status event publish failed", "error", err)
	}
}

// normalizeTitle undoes URL escaping that leaks into roster rows pasted from
// browser address bars.
func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if unescaped, err := url.PathUnescape(title); err == nil {
		title = unescaped
	}
	return title
}
