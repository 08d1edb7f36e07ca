// Package notify sends SMS notifications to guardians. The default provider
// only logs; Twilio delivery is opt-in via configuration.
package notify

import "context"

// Message is one outbound SMS.
type Message struct {
	To   string
	Body string
}

// Sender delivers a message through one provider.
type Sender interface {
	// Name identifies the provider in logs and metrics labels.
	Name() string
	Send(ctx context.Context, msg Message) error
}
