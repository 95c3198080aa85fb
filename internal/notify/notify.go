// Package notify delivers reconciliation outcomes to people: chat messages
// for the operators, SMS for subscribers. Sinks are fire-and-report; the
// engine logs delivery failures but never rolls back persisted facts over
// them.
package notify

import "context"

// Detail is one labeled line of a chat message.
type Detail struct {
	Label string
	Value string
}

// Message is a sink-agnostic notification. Sinks render it however their
// medium allows.
type Message struct {
	Title   string
	Emoji   string
	Details []Detail
}

// ChatSink posts operator-facing notifications.
type ChatSink interface {
	Post(ctx context.Context, msg Message) error
}

// SMSSink fans a short text out to subscriber phone numbers.
type SMSSink interface {
	Broadcast(ctx context.Context, body string, numbers []string) error
}
